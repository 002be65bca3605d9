package engagement

import "errors"

var (
	// ErrNotStarted is returned for verbs that need a live session.
	ErrNotStarted = errors.New("no engagement started")
	// ErrAlreadyStarted is returned when start is called on a live session.
	ErrAlreadyStarted = errors.New("engagement already started")
	// ErrInvalidKind is returned for a start intent naming no engagement kind.
	ErrInvalidKind = errors.New("invalid engagement kind")
	// ErrBadTransition is returned for verbs invalid in the current mode.
	ErrBadTransition = errors.New("transition not valid in current mode")
	// ErrAlreadyRunning is returned when Run is called twice.
	ErrAlreadyRunning = errors.New("coordinator already running")
)
