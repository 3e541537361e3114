package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Post is a published page.
type Post struct {
	ID          uuid.UUID `db:"id"`
	SiteID      int64     `db:"site_id"`
	Title       string    `db:"title"`
	Slug        string    `db:"slug"`
	Category    string    `db:"category"`
	Description string    `db:"description"`
	Path        string    `db:"path"`
	PublishedAt time.Time `db:"published_at"`
	CreatedAt   time.Time `db:"created_at"`
	Featured    bool      `db:"featured"`
	// Body is the encoded article the page was rendered from.
	Body string `db:"body"`
}

// Posts records published pages.
type Posts struct {
	db *sqlx.DB
}

const postColumns = `id, site_id, title, slug, category, description, path, published_at, created_at, featured, body`

// Record stores p. Publishing the same path of a site again updates the
// existing record and keeps its id and featured flag; p.ID is set to the
// stored id.
func (s *Posts) Record(ctx context.Context, p *Post) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.PublishedAt.IsZero() {
		p.PublishedAt = now()
	}
	p.CreatedAt = now()
	q := s.db.Rebind(`INSERT INTO posts (id, site_id, title, slug, category, description, path, published_at, created_at, body)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (site_id, path) DO UPDATE
SET title = excluded.title, slug = excluded.slug, category = excluded.category,
    description = excluded.description, published_at = excluded.published_at, body = excluded.body
RETURNING id`)
	var id uuid.UUID
	err := s.db.QueryRowxContext(ctx, q,
		p.ID, p.SiteID, p.Title, p.Slug, p.Category, p.Description, p.Path, p.PublishedAt.UTC(), p.CreatedAt, p.Body,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("record post %s of site %d: %w", p.Path, p.SiteID, err)
	}
	p.ID = id
	return nil
}

// Get returns the post with id or ErrNotFound.
func (s *Posts) Get(ctx context.Context, id uuid.UUID) (Post, error) {
	var p Post
	q := s.db.Rebind(`SELECT ` + postColumns + ` FROM posts WHERE id = ?`)
	if err := s.db.GetContext(ctx, &p, q, id); err != nil {
		return Post{}, notFound(err)
	}
	return p, nil
}

// ListBySite returns the newest posts of siteID first.
func (s *Posts) ListBySite(ctx context.Context, siteID int64, limit int) ([]Post, error) {
	if limit <= 0 {
		limit = 20
	}
	var posts []Post
	q := s.db.Rebind(`SELECT ` + postColumns + ` FROM posts WHERE site_id = ? ORDER BY published_at DESC, title LIMIT ?`)
	if err := s.db.SelectContext(ctx, &posts, q, siteID, limit); err != nil {
		return nil, fmt.Errorf("list posts of site %d: %w", siteID, err)
	}
	return posts, nil
}

// Update rewrites the post with p.ID, including its path. It fails with
// ErrDuplicate when another post of the site already uses the new path.
func (s *Posts) Update(ctx context.Context, p *Post) error {
	if p.PublishedAt.IsZero() {
		p.PublishedAt = now()
	}
	other, err := s.ByPath(ctx, p.SiteID, p.Path)
	switch {
	case err == nil && other.ID != p.ID:
		return fmt.Errorf("post path %s: %w", p.Path, ErrDuplicate)
	case err != nil && !errors.Is(err, ErrNotFound):
		return err
	}
	q := s.db.Rebind(`UPDATE posts
SET title = ?, slug = ?, category = ?, description = ?, path = ?, published_at = ?, body = ?
WHERE id = ? AND site_id = ?`)
	res, err := s.db.ExecContext(ctx, q,
		p.Title, p.Slug, p.Category, p.Description, p.Path, p.PublishedAt.UTC(), p.Body, p.ID, p.SiteID,
	)
	if err != nil {
		return fmt.Errorf("update post %s: %w", p.ID, err)
	}
	return affectedOne(res)
}

// ByPath returns the post of siteID published at path or ErrNotFound.
func (s *Posts) ByPath(ctx context.Context, siteID int64, path string) (Post, error) {
	var p Post
	q := s.db.Rebind(`SELECT ` + postColumns + ` FROM posts WHERE site_id = ? AND path = ?`)
	if err := s.db.GetContext(ctx, &p, q, siteID, path); err != nil {
		return Post{}, notFound(err)
	}
	return p, nil
}

// SetFeatured marks or unmarks post id as featured.
func (s *Posts) SetFeatured(ctx context.Context, id uuid.UUID, featured bool) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE posts SET featured = ? WHERE id = ?`), featured, id)
	if err != nil {
		return fmt.Errorf("feature post %s: %w", id, err)
	}
	return affectedOne(res)
}
