package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// Site is a publishing destination owned by one user.
type Site struct {
	ID          int64     `db:"id"`
	OwnerID     int64     `db:"owner_id"`
	Name        string    `db:"name"`
	Domain      string    `db:"domain"`
	PublishPath string    `db:"publish_path"`
	Template    string    `db:"template"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// URL returns the public base URL of the site.
func (s Site) URL() string {
	d := strings.TrimSuffix(strings.TrimSpace(s.Domain), "/")
	if strings.HasPrefix(d, "http://") || strings.HasPrefix(d, "https://") {
		return d
	}
	return "https://" + d
}

// HasTemplate reports whether a template was uploaded.
func (s Site) HasTemplate() bool { return strings.TrimSpace(s.Template) != "" }

// Sites stores site settings and templates.
type Sites struct {
	db *sqlx.DB
}

const siteColumns = `id, owner_id, name, domain, publish_path, template, created_at, updated_at`

// Save creates the site of ownerID or renames it when it already exists.
func (s *Sites) Save(ctx context.Context, ownerID int64, name, domain string) (Site, error) {
	ts := now()
	q := s.db.Rebind(`INSERT INTO sites (owner_id, name, domain, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (owner_id) DO UPDATE
SET name = excluded.name, domain = excluded.domain, updated_at = excluded.updated_at
RETURNING id`)
	var id int64
	if err := s.db.QueryRowxContext(ctx, q, ownerID, name, domain, ts, ts).Scan(&id); err != nil {
		return Site{}, fmt.Errorf("save site of user %d: %w", ownerID, err)
	}
	return s.ByID(ctx, id)
}

// ByID returns the site with id or ErrNotFound.
func (s *Sites) ByID(ctx context.Context, id int64) (Site, error) {
	var site Site
	q := s.db.Rebind(`SELECT ` + siteColumns + ` FROM sites WHERE id = ?`)
	if err := s.db.GetContext(ctx, &site, q, id); err != nil {
		return Site{}, notFound(err)
	}
	return site, nil
}

// ByOwner returns the site of ownerID or ErrNotFound.
func (s *Sites) ByOwner(ctx context.Context, ownerID int64) (Site, error) {
	var site Site
	q := s.db.Rebind(`SELECT ` + siteColumns + ` FROM sites WHERE owner_id = ?`)
	if err := s.db.GetContext(ctx, &site, q, ownerID); err != nil {
		return Site{}, notFound(err)
	}
	return site, nil
}

// SetPublishPath stores the directory pages of the site are delivered to.
func (s *Sites) SetPublishPath(ctx context.Context, siteID int64, path string) error {
	return s.set(ctx, siteID, "publish_path", path)
}

// SetTemplate stores the HTML template of the site.
func (s *Sites) SetTemplate(ctx context.Context, siteID int64, html string) error {
	return s.set(ctx, siteID, "template", html)
}

func (s *Sites) set(ctx context.Context, siteID int64, column, value string) error {
	q := s.db.Rebind(`UPDATE sites SET ` + column + ` = ?, updated_at = ? WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, q, value, now(), siteID)
	if err != nil {
		return fmt.Errorf("update %s of site %d: %w", column, siteID, err)
	}
	return affectedOne(res)
}
