package manager

import (
	"log/slog"
	"time"

	"github.com/loykin/srvctl/internal/history"
	"github.com/loykin/srvctl/internal/registry"
)

// PortProber reports whether TCP ports are accepting connections.
type PortProber interface {
	IsInUse(port int) bool
	InUse(ports []int) map[int]bool
}

// Options tunes an Engine. The zero value is usable.
type Options struct {
	// RestartDelay is the settle time between the stop and start halves of Restart.
	RestartDelay time.Duration
	Logger       *slog.Logger
	Sinks        []history.Sink
}

// Patch holds the editable fields of a server; nil fields are left unchanged.
type Patch struct {
	Command          *string `json:"command,omitempty"`
	Port             *int    `json:"port,omitempty"`
	WorkingDirectory *string `json:"working_directory,omitempty"`
	Description      *string `json:"description,omitempty"`
	AutoStart        *bool   `json:"auto_start,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Command == nil && p.Port == nil && p.WorkingDirectory == nil &&
		p.Description == nil && p.AutoStart == nil
}

// Detail is the cached record plus live observations taken at inspection time.
// StartedAt and UptimeSeconds are set only while the process is alive and its
// start time is known.
type Detail struct {
	registry.Server
	PortInUse     bool       `json:"port_in_use"`
	ProcessAlive  bool       `json:"process_alive"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	UptimeSeconds int64      `json:"uptime_seconds,omitempty"`
}

// Uptime returns UptimeSeconds as a duration.
func (d Detail) Uptime() time.Duration {
	return time.Duration(d.UptimeSeconds) * time.Second
}

// PortUsage is one row of the port report.
type PortUsage struct {
	Name   string          `json:"name"`
	Port   int             `json:"port"`
	InUse  bool            `json:"in_use"`
	Status registry.Status `json:"status"`
}

// Result is the per-server outcome of a bulk operation.
type Result struct {
	Name string
	Err  error
}

// Failed returns the results that carry an error.
func Failed(rs []Result) []Result {
	var out []Result
	for _, r := range rs {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}
