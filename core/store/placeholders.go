package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/pressbot/core/logger"
	"github.com/m3rciful/pressbot/core/placeholder"
)

// Placeholders stores the custom placeholders of each site.
type Placeholders struct {
	db *sqlx.DB
}

type customRow struct {
	Name    string `db:"name"`
	Label   string `db:"label"`
	Kind    string `db:"kind"`
	Options string `db:"options"`
}

// ListCustom returns the custom placeholders of siteID in creation order.
func (s *Placeholders) ListCustom(ctx context.Context, siteID int64) ([]placeholder.Placeholder, error) {
	var rows []customRow
	q := s.db.Rebind(`SELECT name, label, kind, options FROM custom_placeholders WHERE site_id = ? ORDER BY id`)
	if err := s.db.SelectContext(ctx, &rows, q, siteID); err != nil {
		return nil, fmt.Errorf("list custom placeholders of site %d: %w", siteID, err)
	}
	out := make([]placeholder.Placeholder, 0, len(rows))
	for _, r := range rows {
		kind, err := placeholder.ParseKind(r.Kind)
		if err != nil {
			logger.Warn(ctx, "template", "placeholder.kind",
				slog.String("status", "fallback"),
				slog.Int64("site_id", siteID),
				slog.String("name", r.Name),
				slog.String("err", err.Error()),
			)
			kind = placeholder.KindText
		}
		p := placeholder.Placeholder{
			Name:   r.Name,
			Label:  r.Label,
			Kind:   kind,
			Origin: placeholder.OriginCustom,
		}
		if kind == placeholder.KindEnumerated {
			p.Options = placeholder.SplitOptions(r.Options)
		}
		out = append(out, p)
	}
	return out, nil
}

// DeleteCustom removes every custom placeholder of siteID.
func (s *Placeholders) DeleteCustom(ctx context.Context, siteID int64) error {
	q := s.db.Rebind(`DELETE FROM custom_placeholders WHERE site_id = ?`)
	if _, err := s.db.ExecContext(ctx, q, siteID); err != nil {
		return fmt.Errorf("delete custom placeholders of site %d: %w", siteID, err)
	}
	return nil
}

// CreateCustom inserts one custom placeholder. A name already used by the
// site violates UNIQUE(site_id, name) and is returned as an error.
func (s *Placeholders) CreateCustom(ctx context.Context, siteID int64, p placeholder.Placeholder) error {
	q := s.db.Rebind(`INSERT INTO custom_placeholders (site_id, name, label, kind, options, created_at)
VALUES (?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, q, siteID, p.Name, p.Label, string(p.Kind), placeholder.JoinOptions(p.Options), now())
	if err != nil {
		return fmt.Errorf("create custom placeholder %s of site %d: %w", p.Name, siteID, err)
	}
	return nil
}
