package conversation

import "context"

// Row is the persisted form of one user's state.
type Row struct {
	UserID int64
	Phase  int
	Data   []byte
}

// RowStore persists conversation rows keyed by user id.
type RowStore interface {
	UpsertState(ctx context.Context, row Row) error
	ListStates(ctx context.Context) ([]Row, error)
	DeleteState(ctx context.Context, userID int64) error
}

// AccountStatus is the lifecycle state of a user account.
type AccountStatus int

const (
	StatusUnknown AccountStatus = iota
	StatusActive
	StatusInactive
	StatusPreRegistered
)

func (s AccountStatus) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusInactive:
		return "inactive"
	case StatusPreRegistered:
		return "pre_registered"
	default:
		return "unknown"
	}
}

// UserStatusSource answers whether a persisted state still belongs to an
// active account.
type UserStatusSource interface {
	AccountStatus(ctx context.Context, userID int64) (AccountStatus, error)
}

// UserStatusFunc adapts a function to UserStatusSource.
type UserStatusFunc func(ctx context.Context, userID int64) (AccountStatus, error)

// AccountStatus calls f.
func (f UserStatusFunc) AccountStatus(ctx context.Context, userID int64) (AccountStatus, error) {
	return f(ctx, userID)
}
