package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/m3rciful/pressbot/core/logger"
)

// Observer receives state engine events, typically to feed metrics.
type Observer interface {
	Transition(from, to Phase)
	PersistFailure(op string)
	Reloaded(restored, purged int)
}

type nopObserver struct{}

func (nopObserver) Transition(Phase, Phase) {}
func (nopObserver) PersistFailure(string)   {}
func (nopObserver) Reloaded(int, int)       {}

// Option configures a Manager.
type Option func(*Manager)

// WithObserver installs an event observer.
func WithObserver(o Observer) Option {
	return func(m *Manager) {
		if o != nil {
			m.obs = o
		}
	}
}

// entry holds one user's committed state. mu serialises writers of the same
// user across the persistence round trip; st is replaced, never mutated, and
// is read under Manager.mu.
type entry struct {
	mu   sync.Mutex
	st   *State
	gone bool
}

// Manager owns the in-memory conversation states and writes every change
// through to a RowStore before it becomes visible.
type Manager struct {
	store RowStore
	obs   Observer

	mu    sync.RWMutex
	users map[int64]*entry
}

// NewManager returns a Manager persisting to store.
func NewManager(store RowStore, opts ...Option) *Manager {
	m := &Manager{
		store: store,
		obs:   nopObserver{},
		users: make(map[int64]*entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) current(userID int64) *State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.users[userID]; ok && e.st != nil {
		return e.st
	}
	return nil
}

// Phase returns the user's phase, PhaseIdle for users without a state.
func (m *Manager) Phase(userID int64) Phase {
	if st := m.current(userID); st != nil {
		return st.Phase
	}
	return PhaseIdle
}

// Value returns a scratch value.
func (m *Manager) Value(userID int64, key string) (any, bool) {
	st := m.current(userID)
	if st == nil {
		return nil, false
	}
	v, ok := st.Scratch[key]
	return v, ok
}

// ValueOr returns a scratch value or def when it is absent.
func (m *Manager) ValueOr(userID int64, key string, def any) any {
	if v, ok := m.Value(userID, key); ok {
		return v
	}
	return def
}

// Snapshot returns a copy of the user's state that the caller may keep.
func (m *Manager) Snapshot(userID int64) State {
	return *m.current(userID).Clone()
}

// Active reports whether the user is somewhere other than idle.
func (m *Manager) Active(userID int64) bool {
	return m.Phase(userID) != PhaseIdle
}

// SetPhase moves the user to phase.
func (m *Manager) SetPhase(ctx context.Context, userID int64, phase Phase) error {
	if !phase.Valid() {
		return fmt.Errorf("set phase: unknown phase %d", int(phase))
	}
	var from Phase
	err := m.mutate(ctx, userID, "set_phase", func(st *State) error {
		from = st.Phase
		st.Phase = phase
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info(ctx, "state", "state.transition",
		slog.String("status", "ok"),
		slog.Int64("user_id", userID),
		slog.String("from", from.String()),
		slog.String("to", phase.String()),
	)
	m.obs.Transition(from, phase)
	return nil
}

// SetValue stores a scratch value. The value must be JSON encodable.
func (m *Manager) SetValue(ctx context.Context, userID int64, key string, value any) error {
	return m.mutate(ctx, userID, "set_value", func(st *State) error {
		st.Scratch[key] = value
		return nil
	})
}

// ClearValue removes a scratch value.
func (m *Manager) ClearValue(ctx context.Context, userID int64, key string) error {
	return m.mutate(ctx, userID, "clear_value", func(st *State) error {
		delete(st.Scratch, key)
		return nil
	})
}

// ClearUserData drops the payloads and scratch values of a user and keeps
// the phase.
func (m *Manager) ClearUserData(ctx context.Context, userID int64) error {
	return m.mutate(ctx, userID, "clear_data", func(st *State) error {
		st.ClearData()
		return nil
	})
}

// Update applies fn to a copy of the user's state and commits the result.
// When fn fails nothing changes and its error is returned as is.
func (m *Manager) Update(ctx context.Context, userID int64, fn func(*State) error) error {
	var from, to Phase
	err := m.mutate(ctx, userID, "update", func(st *State) error {
		from = st.Phase
		if err := fn(st); err != nil {
			return err
		}
		if !st.Phase.Valid() {
			return fmt.Errorf("update: unknown phase %d", int(st.Phase))
		}
		to = st.Phase
		return nil
	})
	if err != nil {
		return err
	}
	if from != to {
		logger.Info(ctx, "state", "state.transition",
			slog.String("status", "ok"),
			slog.Int64("user_id", userID),
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
		m.obs.Transition(from, to)
	}
	return nil
}

// ResetUser forgets the user entirely, in memory and in the row store.
func (m *Manager) ResetUser(ctx context.Context, userID int64) error {
	e := m.acquire(userID)
	defer e.mu.Unlock()

	if err := m.store.DeleteState(ctx, userID); err != nil {
		m.dropIfEmpty(userID, e)
		return m.persistFailed(ctx, "reset", userID, err)
	}
	m.mu.Lock()
	delete(m.users, userID)
	e.gone = true
	m.mu.Unlock()
	logger.Debug(ctx, "state", "state.reset",
		slog.String("status", "ok"),
		slog.Int64("user_id", userID),
	)
	return nil
}

// acquire returns the user's entry with its writer lock held, creating an
// empty one when needed.
func (m *Manager) acquire(userID int64) *entry {
	for {
		m.mu.Lock()
		e, ok := m.users[userID]
		if !ok {
			e = &entry{}
			m.users[userID] = e
		}
		m.mu.Unlock()

		e.mu.Lock()
		if !e.gone {
			return e
		}
		e.mu.Unlock()
	}
}

// dropIfEmpty removes an entry created by acquire that never committed.
// The caller holds e.mu.
func (m *Manager) dropIfEmpty(userID int64, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.st == nil && m.users[userID] == e {
		delete(m.users, userID)
		e.gone = true
	}
}

func (m *Manager) mutate(ctx context.Context, userID int64, op string, fn func(*State) error) error {
	e := m.acquire(userID)
	defer e.mu.Unlock()

	m.mu.RLock()
	next := e.st.Clone()
	m.mu.RUnlock()

	if err := fn(next); err != nil {
		m.dropIfEmpty(userID, e)
		return err
	}
	row, err := encodeState(userID, next)
	if err == nil {
		err = m.store.UpsertState(ctx, row)
	}
	if err != nil {
		m.dropIfEmpty(userID, e)
		return m.persistFailed(ctx, op, userID, err)
	}

	m.mu.Lock()
	e.st = next
	m.mu.Unlock()
	return nil
}

func (m *Manager) persistFailed(ctx context.Context, op string, userID int64, err error) error {
	logger.Error(ctx, "state", "state.persist",
		slog.String("status", "fail"),
		slog.String("op", op),
		slog.Int64("user_id", userID),
		slog.String("err", err.Error()),
	)
	m.obs.PersistFailure(op)
	return &PersistError{Op: op, UserID: userID, Err: err}
}

// ReloadReport summarises a Reload.
type ReloadReport struct {
	Restored int
	Purged   int
	Skipped  int
}

// Reload restores persisted states. Rows of active accounts are loaded into
// memory; rows of any other account and rows that cannot be decoded are
// deleted. Rows whose account status cannot be determined, or whose delete
// fails, stay in the store and are counted as skipped. A user whose state
// changed in memory while Reload ran keeps that state.
func (m *Manager) Reload(ctx context.Context, src UserStatusSource) (ReloadReport, error) {
	var report ReloadReport
	rows, err := m.store.ListStates(ctx)
	if err != nil {
		return report, fmt.Errorf("list conversation states: %w", err)
	}

	restored := make(map[int64]*State, len(rows))
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		st, decodeErr := decodeRow(row)
		if decodeErr == nil {
			status, statusErr := src.AccountStatus(ctx, row.UserID)
			if statusErr != nil {
				report.Skipped++
				logger.Warn(ctx, "state", "state.reload.status",
					slog.String("status", "skip"),
					slog.Int64("user_id", row.UserID),
					slog.String("err", statusErr.Error()),
				)
				continue
			}
			if status == StatusActive {
				restored[row.UserID] = st
				continue
			}
			decodeErr = fmt.Errorf("account %s", status)
		}
		if err := m.store.DeleteState(ctx, row.UserID); err != nil {
			report.Skipped++
			logger.Error(ctx, "state", "state.reload.purge",
				slog.String("status", "fail"),
				slog.Int64("user_id", row.UserID),
				slog.String("err", err.Error()),
			)
			continue
		}
		report.Purged++
		level := slog.LevelDebug
		if errors.Is(decodeErr, ErrCorruptState) {
			level = slog.LevelWarn
		}
		logger.Event(ctx, "state", level, "state.reload.purge",
			slog.String("status", "ok"),
			slog.Int64("user_id", row.UserID),
			slog.String("cause", decodeErr.Error()),
		)
	}

	for userID, st := range restored {
		e := m.acquire(userID)
		if e.st == nil {
			m.mu.Lock()
			e.st = st
			m.mu.Unlock()
			report.Restored++
		}
		e.mu.Unlock()
	}

	logger.Info(ctx, "state", "state.reload",
		slog.String("status", "ok"),
		slog.Int("restored", report.Restored),
		slog.Int("purged", report.Purged),
		slog.Int("skipped", report.Skipped),
	)
	m.obs.Reloaded(report.Restored, report.Purged)
	return report, nil
}
