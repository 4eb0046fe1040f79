package schedule

import "errors"

var (
	// ErrInvalidInterval is returned when a start is not strictly before its end.
	ErrInvalidInterval = errors.New("invalid interval")
	// ErrUnknownKind is returned for kind tags outside the closed set.
	ErrUnknownKind = errors.New("unknown event kind")
	// ErrEventNotFound is returned by event sources for unknown ids.
	ErrEventNotFound = errors.New("event not found")
	// ErrPersistenceFailed marks a valid move the system of record did not save.
	ErrPersistenceFailed = errors.New("persistence failed")
	// ErrActionNotAllowed is returned when an event does not offer the action.
	ErrActionNotAllowed = errors.New("action not allowed for event")
	// ErrNoHandler is returned when no command handler is wired for an action.
	ErrNoHandler = errors.New("no handler for action")
)
