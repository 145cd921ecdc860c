package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Status is the cached lifecycle state of a server. It is set by the engine
// at start/stop time and is not a live-polled value.
type Status string

const (
	StatusStopped Status = "stopped"
	StatusRunning Status = "running"
)

// Valid reports whether s is one of the known status literals.
func (s Status) Valid() bool {
	return s == StatusStopped || s == StatusRunning
}

func (s *Status) UnmarshalJSON(b []byte) error {
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	st := Status(v)
	// empty is filled in as stopped by record validation
	if st != "" && !st.Valid() {
		return fmt.Errorf("unknown status %q", v)
	}
	*s = st
	return nil
}

// Server is a managed process definition plus its last-known runtime state.
type Server struct {
	Name             string `json:"name"`
	Command          string `json:"command"`
	Port             int    `json:"port"`
	WorkingDirectory string `json:"working_directory"`
	Description      string `json:"description"`
	AutoStart        bool   `json:"auto_start"`
	PID              *int   `json:"pid"`
	Status           Status `json:"status"`
}

// Running reports the cached belief, not OS liveness.
func (s Server) Running() bool { return s.Status == StatusRunning }

// PIDValue returns the pid or 0 when unset.
func (s Server) PIDValue() int {
	if s.PID == nil {
		return 0
	}
	return *s.PID
}

// Clone returns a deep copy so callers never share the PID pointer.
func (s Server) Clone() Server {
	c := s
	if s.PID != nil {
		pid := *s.PID
		c.PID = &pid
	}
	return c
}

// Registry maps server name to its record.
type Registry map[string]Server

// Names returns the registry iteration order (sorted by name).
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for n := range r {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy of the registry.
func (r Registry) Clone() Registry {
	out := make(Registry, len(r))
	for n, s := range r {
		out[n] = s.Clone()
	}
	return out
}

// IntPtr is a small helper for building records with a pid.
func IntPtr(v int) *int { return &v }

// MaxPort is the highest valid TCP port; 0 means the server has no port.
const MaxPort = 65535

// ValidateName rejects names that cannot serve as a log file name or URL segment.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("empty name")
	}
	if strings.ContainsAny(name, " \t\r\n/\\") {
		return fmt.Errorf("name %q contains whitespace or a path separator", name)
	}
	return nil
}

// ValidateDefinition checks the user-supplied part of a record.
func ValidateDefinition(command string, port int) error {
	if strings.TrimSpace(command) == "" {
		return errors.New("empty command")
	}
	if port < 0 || port > MaxPort {
		return fmt.Errorf("port %d out of range 0-%d", port, MaxPort)
	}
	return nil
}

// validate checks a record decoded under key.
func validate(key string, s *Server) error {
	if s.Name == "" {
		s.Name = key
	}
	if s.Name != key {
		return fmt.Errorf("record key %q does not match name %q", key, s.Name)
	}
	if err := ValidateName(key); err != nil {
		return fmt.Errorf("server %q: %w", key, err)
	}
	if err := ValidateDefinition(s.Command, s.Port); err != nil {
		return fmt.Errorf("server %s: %w", key, err)
	}
	if s.Status == "" {
		s.Status = StatusStopped
	}
	if !s.Status.Valid() {
		return fmt.Errorf("server %s: unknown status %q", key, s.Status)
	}
	if s.PID != nil && *s.PID <= 0 {
		return fmt.Errorf("server %s: invalid pid %d", key, *s.PID)
	}
	return nil
}
