package manager

import "errors"

var (
	ErrDuplicateName  = errors.New("server already exists")
	ErrNotFound       = errors.New("server not found")
	ErrAlreadyRunning = errors.New("server already running")
	ErrNotRunning     = errors.New("server not running")
	ErrPortInUse      = errors.New("port already in use")
	ErrInvalid        = errors.New("invalid server definition")
	// ErrPersist wraps a failed registry save. The in-memory change stands.
	ErrPersist = errors.New("failed to persist registry")
)
