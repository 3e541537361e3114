package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/pressbot/core/conversation"
)

// Account statuses as stored in users.status.
const (
	StatusPreRegistered = "pre_registered"
	StatusActive        = "active"
	StatusInactive      = "inactive"
)

// User is a registered Telegram account.
type User struct {
	TelegramID int64     `db:"telegram_id"`
	Username   string    `db:"username"`
	FullName   string    `db:"full_name"`
	Status     string    `db:"status"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// Active reports whether the account may use the bot.
func (u User) Active() bool { return u.Status == StatusActive }

// Users stores accounts and answers account status lookups.
type Users struct {
	db *sqlx.DB
}

const userColumns = `telegram_id, username, full_name, status, created_at, updated_at`

// Register records a new account as pre-registered. An existing account is
// returned unchanged apart from its non-empty names; created tells which
// case applied.
func (s *Users) Register(ctx context.Context, id int64, username, fullName string) (User, bool, error) {
	ts := now()
	q := s.db.Rebind(`INSERT INTO users (telegram_id, username, full_name, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (telegram_id) DO NOTHING`)
	res, err := s.db.ExecContext(ctx, q, id, username, fullName, StatusPreRegistered, ts, ts)
	if err != nil {
		return User{}, false, fmt.Errorf("register user %d: %w", id, err)
	}
	created := affectedOne(res) == nil
	if !created {
		q = s.db.Rebind(`UPDATE users SET username = COALESCE(NULLIF(?, ''), username), full_name = COALESCE(NULLIF(?, ''), full_name), updated_at = ? WHERE telegram_id = ?`)
		if _, err := s.db.ExecContext(ctx, q, username, fullName, ts, id); err != nil {
			return User{}, false, fmt.Errorf("refresh user %d: %w", id, err)
		}
	}
	u, err := s.Get(ctx, id)
	return u, created, err
}

// Get returns the account of id or ErrNotFound.
func (s *Users) Get(ctx context.Context, id int64) (User, error) {
	var u User
	q := s.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE telegram_id = ?`)
	if err := s.db.GetContext(ctx, &u, q, id); err != nil {
		return User{}, notFound(err)
	}
	return u, nil
}

// SetStatus changes the status of an existing account.
func (s *Users) SetStatus(ctx context.Context, id int64, status string) error {
	switch status {
	case StatusPreRegistered, StatusActive, StatusInactive:
	default:
		return fmt.Errorf("unknown account status %q", status)
	}
	q := s.db.Rebind(`UPDATE users SET status = ?, updated_at = ? WHERE telegram_id = ?`)
	res, err := s.db.ExecContext(ctx, q, status, now(), id)
	if err != nil {
		return fmt.Errorf("set status of user %d: %w", id, err)
	}
	return affectedOne(res)
}

// EnsureActive creates or activates the account of id.
func (s *Users) EnsureActive(ctx context.Context, id int64) (created bool, err error) {
	ts := now()
	q := s.db.Rebind(`INSERT INTO users (telegram_id, status, created_at, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (telegram_id) DO NOTHING`)
	res, err := s.db.ExecContext(ctx, q, id, StatusActive, ts, ts)
	if err != nil {
		return false, fmt.Errorf("seed user %d: %w", id, err)
	}
	if affectedOne(res) == nil {
		return true, nil
	}
	return false, s.SetStatus(ctx, id, StatusActive)
}

// AccountStatus maps the stored status of id. Unknown accounts are reported
// as StatusUnknown without an error.
func (s *Users) AccountStatus(ctx context.Context, id int64) (conversation.AccountStatus, error) {
	u, err := s.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return conversation.StatusUnknown, nil
	}
	if err != nil {
		return conversation.StatusUnknown, fmt.Errorf("account status of user %d: %w", id, err)
	}
	switch u.Status {
	case StatusActive:
		return conversation.StatusActive, nil
	case StatusInactive:
		return conversation.StatusInactive, nil
	case StatusPreRegistered:
		return conversation.StatusPreRegistered, nil
	}
	return conversation.StatusUnknown, nil
}
