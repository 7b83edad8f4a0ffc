// Package simerr defines the error kinds surfaced by the simulation core.
// Callers match with errors.Is; Kind maps an error to a stable string used
// in the event stream and CLI output.
package simerr

import (
	"context"
	"errors"
)

var (
	// ErrCapacityExceeded is returned when a station refuses admission.
	ErrCapacityExceeded = errors.New("station capacity exceeded")
	// ErrInvalidRoute is returned when a route references an unknown station.
	ErrInvalidRoute = errors.New("invalid route")
	// ErrInvalidSeed is returned when the procedural generator seed cannot be parsed.
	ErrInvalidSeed = errors.New("invalid seed")
	// ErrEmptySchedule is returned when predetermined mode has no entries.
	ErrEmptySchedule = errors.New("empty schedule")
	// ErrSessionClosed is returned for mutations after the session completed.
	ErrSessionClosed = errors.New("session closed")

	ErrUnknownOrder      = errors.New("unknown order")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrNothingToUndo     = errors.New("nothing to undo")
	ErrNothingToRedo     = errors.New("nothing to redo")
	ErrNotUndoable       = errors.New("decision can no longer be undone")
	ErrUnknownValue      = errors.New("unknown value")
	ErrInvalidSettings   = errors.New("invalid settings")
)

// Kind returns a snake_case classification for err.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""

	case errors.Is(err, ErrCapacityExceeded):
		return "capacity_exceeded"

	case errors.Is(err, ErrInvalidRoute):
		return "invalid_route"

	case errors.Is(err, ErrInvalidSeed):
		return "invalid_seed"

	case errors.Is(err, ErrEmptySchedule):
		return "empty_schedule"

	case errors.Is(err, ErrSessionClosed):
		return "session_closed"

	case errors.Is(err, ErrUnknownOrder):
		return "unknown_order"

	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"

	case errors.Is(err, ErrNothingToUndo):
		return "nothing_to_undo"

	case errors.Is(err, ErrNothingToRedo):
		return "nothing_to_redo"

	case errors.Is(err, ErrNotUndoable):
		return "not_undoable"

	case errors.Is(err, ErrUnknownValue):
		return "unknown_value"

	case errors.Is(err, ErrInvalidSettings):
		return "invalid_settings"

	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"

	case errors.Is(err, context.Canceled):
		return "canceled"

	default:
		return "internal"
	}
}

// IsFatal reports whether err terminates the order it concerns.
// Fatal errors never abort the session.
func IsFatal(err error) bool {
	return errors.Is(err, ErrInvalidRoute)
}
