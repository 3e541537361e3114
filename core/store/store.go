// Package store implements the sqlx repositories behind the conversation
// engine, the placeholder catalog and the publishing flow. Queries are
// written with ? bind vars and rebound for the connected driver, so the same
// code serves postgres and sqlite.
package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/pressbot/core/conversation"
	"github.com/m3rciful/pressbot/core/placeholder"
)

// ErrNotFound is returned when a looked up record does not exist.
var ErrNotFound = errors.New("not found")

var (
	_ conversation.RowStore         = (*States)(nil)
	_ conversation.UserStatusSource = (*Users)(nil)
	_ conversation.CustomSink       = (*Placeholders)(nil)
	_ placeholder.CustomSource      = (*Placeholders)(nil)
)

// Repos bundles every repository over one connection.
type Repos struct {
	States       *States
	Users        *Users
	Sites        *Sites
	Placeholders *Placeholders
	Posts        *Posts
	Categories   *Categories
}

// New builds the repositories for db.
func New(db *sqlx.DB) *Repos {
	return &Repos{
		States:       &States{db: db},
		Users:        &Users{db: db},
		Sites:        &Sites{db: db},
		Placeholders: &Placeholders{db: db},
		Posts:        &Posts{db: db},
		Categories:   &Categories{db: db},
	}
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func affectedOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
