package server

import (
	"errors"
	"net/http"

	"github.com/loykin/srvctl/internal/manager"
	"github.com/loykin/srvctl/internal/process"
)

// Error codes carried in error responses. Clients map them back to the
// manager sentinel errors.
const (
	CodeNotFound       = "not_found"
	CodeDuplicate      = "duplicate_name"
	CodeAlreadyRunning = "already_running"
	CodeNotRunning     = "not_running"
	CodePortInUse      = "port_in_use"
	CodeInvalid        = "invalid"
	CodeSpawn          = "spawn_failed"
	CodePersist        = "persist_failed"
	CodeInternal       = "internal"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// classify maps an engine error to an HTTP status and error code.
func classify(err error) (int, string) {
	var se *process.SpawnError
	switch {
	case errors.Is(err, manager.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, manager.ErrDuplicateName):
		return http.StatusConflict, CodeDuplicate
	case errors.Is(err, manager.ErrAlreadyRunning):
		return http.StatusConflict, CodeAlreadyRunning
	case errors.Is(err, manager.ErrNotRunning):
		return http.StatusConflict, CodeNotRunning
	case errors.Is(err, manager.ErrPortInUse):
		return http.StatusConflict, CodePortInUse
	case errors.Is(err, manager.ErrInvalid):
		return http.StatusBadRequest, CodeInvalid
	case errors.As(err, &se):
		return http.StatusUnprocessableEntity, CodeSpawn
	case errors.Is(err, manager.ErrPersist):
		return http.StatusInternalServerError, CodePersist
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// CodeOf returns the error code for err, empty for nil.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	_, code := classify(err)
	return code
}
