package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrDuplicate is returned when a name is already taken.
var ErrDuplicate = errors.New("already exists")

// Category groups the posts of a site. Posts refer to it by name.
type Category struct {
	ID        int64     `db:"id"`
	SiteID    int64     `db:"site_id"`
	Name      string    `db:"name"`
	Color     string    `db:"color"`
	CreatedAt time.Time `db:"created_at"`
	// Posts counts the posts filed under the category; set by List.
	Posts int `db:"posts"`
}

// Categories stores the categories of every site.
type Categories struct {
	db *sqlx.DB
}

// List returns the categories of siteID ordered by name, with post counts.
func (s *Categories) List(ctx context.Context, siteID int64) ([]Category, error) {
	var out []Category
	q := s.db.Rebind(`SELECT c.id, c.site_id, c.name, c.color, c.created_at, COUNT(p.id) AS posts
FROM categories c
LEFT JOIN posts p ON p.site_id = c.site_id AND p.category = c.name
WHERE c.site_id = ?
GROUP BY c.id, c.site_id, c.name, c.color, c.created_at
ORDER BY c.name`)
	if err := s.db.SelectContext(ctx, &out, q, siteID); err != nil {
		return nil, fmt.Errorf("list categories of site %d: %w", siteID, err)
	}
	return out, nil
}

// Get returns the category with id or ErrNotFound.
func (s *Categories) Get(ctx context.Context, id int64) (Category, error) {
	var c Category
	q := s.db.Rebind(`SELECT id, site_id, name, color, created_at FROM categories WHERE id = ?`)
	if err := s.db.GetContext(ctx, &c, q, id); err != nil {
		return Category{}, notFound(err)
	}
	return c, nil
}

// Create adds a category. Names are unique per site regardless of case.
func (s *Categories) Create(ctx context.Context, siteID int64, name, color string) (Category, error) {
	if err := s.checkName(ctx, s.db, siteID, 0, name); err != nil {
		return Category{}, err
	}
	q := s.db.Rebind(`INSERT INTO categories (site_id, name, color, created_at) VALUES (?, ?, ?, ?) RETURNING id`)
	var id int64
	if err := s.db.QueryRowxContext(ctx, q, siteID, name, color, now()).Scan(&id); err != nil {
		return Category{}, fmt.Errorf("create category %q of site %d: %w", name, siteID, err)
	}
	return s.Get(ctx, id)
}

// Rename changes the name of category id and refiles its posts. It returns
// the number of posts moved.
func (s *Categories) Rename(ctx context.Context, id int64, name string) (int64, error) {
	var moved int64
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		c, err := s.getTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.checkName(ctx, tx, c.SiteID, id, name); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE categories SET name = ? WHERE id = ?`), name, id); err != nil {
			return fmt.Errorf("rename category %d: %w", id, err)
		}
		moved, err = refile(ctx, tx, c.SiteID, c.Name, name)
		return err
	})
	return moved, err
}

// Recolor changes the color of category id.
func (s *Categories) Recolor(ctx context.Context, id int64, color string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE categories SET color = ? WHERE id = ?`), color, id)
	if err != nil {
		return fmt.Errorf("recolor category %d: %w", id, err)
	}
	return affectedOne(res)
}

// Delete removes category id and files its posts under fallback. It returns
// the deleted category and the number of posts moved.
func (s *Categories) Delete(ctx context.Context, id int64, fallback string) (Category, int64, error) {
	var (
		c     Category
		moved int64
	)
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		if c, err = s.getTx(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM categories WHERE id = ?`), id); err != nil {
			return fmt.Errorf("delete category %d: %w", id, err)
		}
		moved, err = refile(ctx, tx, c.SiteID, c.Name, fallback)
		return err
	})
	return c, moved, err
}

func (s *Categories) getTx(ctx context.Context, tx *sqlx.Tx, id int64) (Category, error) {
	var c Category
	q := tx.Rebind(`SELECT id, site_id, name, color, created_at FROM categories WHERE id = ?`)
	if err := tx.GetContext(ctx, &c, q, id); err != nil {
		return Category{}, notFound(err)
	}
	return c, nil
}

func (s *Categories) checkName(ctx context.Context, q sqlx.QueryerContext, siteID, exceptID int64, name string) error {
	var n int
	query := s.db.Rebind(`SELECT COUNT(*) FROM categories WHERE site_id = ? AND LOWER(name) = LOWER(?) AND id <> ?`)
	if err := sqlx.GetContext(ctx, q, &n, query, siteID, name, exceptID); err != nil {
		return fmt.Errorf("check category name %q: %w", name, err)
	}
	if n > 0 {
		return fmt.Errorf("category %q: %w", name, ErrDuplicate)
	}
	return nil
}

func (s *Categories) inTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func refile(ctx context.Context, tx *sqlx.Tx, siteID int64, from, to string) (int64, error) {
	res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE posts SET category = ? WHERE site_id = ? AND category = ?`), to, siteID, from)
	if err != nil {
		return 0, fmt.Errorf("refile posts of %q: %w", from, err)
	}
	return res.RowsAffected()
}
