package client

import (
	"errors"
	"fmt"

	"github.com/loykin/srvctl/internal/manager"
	"github.com/loykin/srvctl/internal/server"
)

// ErrSpawnFailed is matched by API errors for commands the daemon could not launch.
var ErrSpawnFailed = errors.New("spawn failed")

// APIError is a non-2xx reply from the daemon. It unwraps to the matching
// manager sentinel so callers can use errors.Is the same way as in-process.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	return e.Message
}

func (e *APIError) Unwrap() error {
	switch e.Code {
	case server.CodeNotFound:
		return manager.ErrNotFound
	case server.CodeDuplicate:
		return manager.ErrDuplicateName
	case server.CodeAlreadyRunning:
		return manager.ErrAlreadyRunning
	case server.CodeNotRunning:
		return manager.ErrNotRunning
	case server.CodePortInUse:
		return manager.ErrPortInUse
	case server.CodeInvalid:
		return manager.ErrInvalid
	case server.CodePersist:
		return manager.ErrPersist
	case server.CodeSpawn:
		return ErrSpawnFailed
	}
	return nil
}
