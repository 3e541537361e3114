package conversation

import (
	"errors"
	"fmt"
)

// PersistError reports that a state change could not be written to the row
// store. The in-memory state is left as it was before the change.
type PersistError struct {
	Op     string
	UserID int64
	Err    error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s for user %d: %v", e.Op, e.UserID, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// Code exposes a stable identifier for handler summaries.
func (e *PersistError) Code() string { return "PERSISTENCE" }

// ErrCorruptState marks a stored row that cannot be turned back into a State.
var ErrCorruptState = errors.New("corrupt conversation state")

// ErrNoCustomFlow is returned when a sub-flow step runs without an active flow.
var ErrNoCustomFlow = errors.New("no custom placeholder flow in progress")
