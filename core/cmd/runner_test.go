package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/pressbot/core/config"
	coretelegram "github.com/m3rciful/pressbot/core/telegram"
)

type fakeApp struct {
	bgErr     error
	bgStopped bool
}

func (a *fakeApp) TelegramRunOptions() (coretelegram.RunOptions, error) {
	return coretelegram.RunOptions{}, nil
}

func (a *fakeApp) Background(ctx context.Context) error {
	if a.bgErr != nil {
		return a.bgErr
	}
	<-ctx.Done()
	a.bgStopped = true
	return nil
}

func baseOptions(app *fakeApp) Options {
	return Options{
		ConfigPath:     "config.yaml",
		LoadConfig:     func(string) (*coreconfig.Config, error) { return &coreconfig.Config{}, nil },
		Bootstrap:      func(context.Context, *coreconfig.Config) (TelegramApp, error) { return app, nil },
		ShutdownLogger: func() error { return nil },
	}
}

func TestResolveConfigPath(t *testing.T) {
	t.Setenv("PRESSBOT_TEST_CONFIG", "")
	_, err := ResolveConfigPath(Options{ConfigEnvVar: "PRESSBOT_TEST_CONFIG"})
	require.Error(t, err)

	p, err := ResolveConfigPath(Options{ConfigEnvVar: "PRESSBOT_TEST_CONFIG", DefaultConfigPath: "config.yaml"})
	require.NoError(t, err)
	assert.Equal(t, "config.yaml", p)

	t.Setenv("PRESSBOT_TEST_CONFIG", "/etc/pressbot.yaml")
	p, err = ResolveConfigPath(Options{ConfigEnvVar: "PRESSBOT_TEST_CONFIG", DefaultConfigPath: "config.yaml"})
	require.NoError(t, err)
	assert.Equal(t, "/etc/pressbot.yaml", p)

	p, err = ResolveConfigPath(Options{ConfigPath: "cli.yaml", ConfigEnvVar: "PRESSBOT_TEST_CONFIG"})
	require.NoError(t, err)
	assert.Equal(t, "cli.yaml", p)
}

func TestRunStopsBackgroundWhenBotReturns(t *testing.T) {
	app := &fakeApp{}
	opts := baseOptions(app)
	started := false
	opts.RunTelegram = func(ctx context.Context, ro coretelegram.RunOptions) error {
		assert.NoError(t, ro.OnStart(ctx, coretelegram.Runtime{}))
		started = true
		return ro.OnStop(ctx, coretelegram.Runtime{})
	}
	require.NoError(t, Run(opts))
	assert.True(t, started)
	assert.True(t, app.bgStopped)
}

func TestRunBackgroundFailureStopsBot(t *testing.T) {
	boom := errors.New("listen failed")
	app := &fakeApp{bgErr: boom}
	opts := baseOptions(app)
	opts.RunTelegram = func(ctx context.Context, _ coretelegram.RunOptions) error {
		<-ctx.Done()
		return nil
	}
	assert.ErrorIs(t, Run(opts), boom)
}

func TestRunValidation(t *testing.T) {
	require.Error(t, Run(Options{}))

	opts := baseOptions(&fakeApp{})
	boom := errors.New("bad config")
	opts.LoadConfig = func(string) (*coreconfig.Config, error) { return nil, boom }
	assert.ErrorIs(t, Run(opts), boom)

	opts = baseOptions(&fakeApp{})
	opts.Bootstrap = func(context.Context, *coreconfig.Config) (TelegramApp, error) { return nil, boom }
	assert.ErrorIs(t, Run(opts), boom)
}
