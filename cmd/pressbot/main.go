package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/m3rciful/pressbot/core/app"
	"github.com/m3rciful/pressbot/core/buildinfo"
	corecmd "github.com/m3rciful/pressbot/core/cmd"
	coreconfig "github.com/m3rciful/pressbot/core/config"
	"github.com/m3rciful/pressbot/core/database"
	"github.com/m3rciful/pressbot/core/logger"
	"github.com/m3rciful/pressbot/core/placeholder"
	"github.com/m3rciful/pressbot/core/publish"
)

const (
	configEnvVar      = "PRESSBOT_CONFIG"
	defaultConfigPath = "config.yaml"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "pressbot",
		Short:        "Chat-driven publishing bot for static sites",
		Version:      fmt.Sprintf("%s (%s)", buildinfo.Version, buildinfo.Commit),
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return coreconfig.LoadDotEnv()
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"path to the YAML config (default $"+configEnvVar+" or "+defaultConfigPath+")")

	serve := newServeCmd(&configPath)
	root.RunE = serve.RunE
	root.AddCommand(serve, newMigrateCmd(&configPath), newTemplateCmd())
	return root
}

func resolveConfig(configPath string) (string, error) {
	return corecmd.ResolveConfigPath(corecmd.Options{
		ConfigPath:        configPath,
		ConfigEnvVar:      configEnvVar,
		DefaultConfigPath: defaultConfigPath,
	})
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot (default)",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return corecmd.Run(corecmd.Options{
				ConfigPath:        *configPath,
				ConfigEnvVar:      configEnvVar,
				DefaultConfigPath: defaultConfigPath,
				LoadConfig: func(path string) (*coreconfig.Config, error) {
					cfg, err := coreconfig.Load(path)
					if err != nil {
						return nil, err
					}
					if err := coreconfig.NormalizeBot(cfg); err != nil {
						return nil, err
					}
					return cfg, nil
				},
				Bootstrap: func(ctx context.Context, cfg *coreconfig.Config) (corecmd.TelegramApp, error) {
					return app.New(ctx, cfg, app.Options{})
				},
			})
		},
	}
}

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := resolveConfig(*configPath)
			if err != nil {
				return err
			}
			cfg, err := coreconfig.Load(path)
			if err != nil {
				return err
			}
			if err := logger.InitLogger(cfg); err != nil {
				return err
			}
			defer func() { _ = logger.Shutdown() }()

			rep, err := database.Migrate(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrations applied (%s): version %d -> %d, %d files\n",
				cfg.Database.Driver, rep.From, rep.To, len(rep.Applied))
			return nil
		},
	}
}

func newTemplateCmd() *cobra.Command {
	tmpl := &cobra.Command{
		Use:   "template",
		Short: "Inspect page templates",
	}
	tmpl.AddCommand(&cobra.Command{
		Use:   "check <file>",
		Short: "Validate a template and list its placeholders",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return checkTemplate(cmd.OutOrStdout(), string(data))
		},
	})
	return tmpl
}

// checkTemplate reports the placeholders of doc. Names outside the builtin
// catalog are listed as unknown; a bot would offer to define them.
func checkTemplate(w io.Writer, doc string) error {
	if err := publish.ValidateHTML(doc); err != nil {
		return fmt.Errorf("invalid HTML: %w", err)
	}
	scan := placeholder.ScanTemplate(doc, placeholder.NewCatalog(nil))
	for _, row := range []struct {
		label string
		names []string
	}{
		{"required", scan.Required},
		{"optional", scan.Optional},
		{"auto", scan.Auto},
		{"unknown", scan.Unknown},
		{"missing", scan.Missing},
	} {
		if len(row.names) == 0 {
			continue
		}
		fmt.Fprintf(w, "%-9s %s\n", row.label+":", strings.Join(row.names, ", "))
	}
	return scan.MissingError()
}
