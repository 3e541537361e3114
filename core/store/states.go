package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/pressbot/core/conversation"
)

// States persists conversation rows in the user_states table.
type States struct {
	db *sqlx.DB
}

type stateRow struct {
	UserID int64  `db:"user_id"`
	Phase  int    `db:"phase"`
	Data   string `db:"data"`
}

// UpsertState inserts or replaces the row of row.UserID.
func (s *States) UpsertState(ctx context.Context, row conversation.Row) error {
	q := s.db.Rebind(`INSERT INTO user_states (user_id, phase, data, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (user_id) DO UPDATE
SET phase = excluded.phase, data = excluded.data, updated_at = excluded.updated_at`)
	// data travels as text; lib/pq would hex-encode a []byte argument
	if _, err := s.db.ExecContext(ctx, q, row.UserID, row.Phase, string(row.Data), now()); err != nil {
		return fmt.Errorf("upsert state of user %d: %w", row.UserID, err)
	}
	return nil
}

// ListStates returns every persisted row.
func (s *States) ListStates(ctx context.Context) ([]conversation.Row, error) {
	var rows []stateRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT user_id, phase, data FROM user_states ORDER BY user_id`); err != nil {
		return nil, fmt.Errorf("list states: %w", err)
	}
	out := make([]conversation.Row, 0, len(rows))
	for _, r := range rows {
		out = append(out, conversation.Row{UserID: r.UserID, Phase: r.Phase, Data: []byte(r.Data)})
	}
	return out, nil
}

// DeleteState removes the row of userID. Deleting a missing row is not an
// error.
func (s *States) DeleteState(ctx context.Context, userID int64) error {
	q := s.db.Rebind(`DELETE FROM user_states WHERE user_id = ?`)
	if _, err := s.db.ExecContext(ctx, q, userID); err != nil {
		return fmt.Errorf("delete state of user %d: %w", userID, err)
	}
	return nil
}
