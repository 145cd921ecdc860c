package process

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/loykin/srvctl/internal/logger"
)

// ErrNoProcess reports that the target process (group) no longer exists.
var ErrNoProcess = errors.New("no such process")

var errEmptyCommand = errors.New("empty command")

// Handle identifies a spawned process.
type Handle struct {
	PID       int
	StartedAt time.Time
}

// Controller spawns, signals and queries OS processes.
type Controller interface {
	// Spawn launches command in dir as a new process-group leader.
	// name only selects the output log files.
	Spawn(name, command, dir string) (Handle, error)
	// Terminate force-kills the whole process group rooted at pid.
	Terminate(pid int) error
	// Alive reports whether pid currently exists.
	Alive(pid int) bool
}

// SpawnError is returned when a command cannot be launched.
type SpawnError struct {
	Command string
	Dir     string
	Err     error
}

func (e *SpawnError) Error() string {
	if e.Dir != "" {
		return fmt.Sprintf("spawn %q in %s: %v", e.Command, e.Dir, e.Err)
	}
	return fmt.Sprintf("spawn %q: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// TerminateError is returned when a process group could not be killed.
type TerminateError struct {
	PID int
	Err error
}

func (e *TerminateError) Error() string { return fmt.Sprintf("terminate pid %d: %v", e.PID, e.Err) }

func (e *TerminateError) Unwrap() error { return e.Err }

// OS is the Controller backed by the host operating system.
type OS struct {
	// Log captures child stdout/stderr to files; disabled means discard.
	Log logger.Config
	// Env replaces the inherited environment when non-nil.
	Env []string
}

// NewOS returns a controller writing child output according to log.
func NewOS(log logger.Config) *OS { return &OS{Log: log} }

// BuildCommand tokenizes command on whitespace into an *exec.Cmd. No shell is
// involved, so metacharacters are passed through literally. PATH lookup of the
// first token is done by os/exec when it has no path separator.
func BuildCommand(command string) (*exec.Cmd, error) {
	argv := strings.Fields(command)
	if len(argv) == 0 {
		return nil, errEmptyCommand
	}
	// #nosec G204 -- running user-registered commands is the purpose of the supervisor
	cmd := exec.Command(argv[0], argv[1:]...)
	if cmd.Err != nil {
		return nil, cmd.Err
	}
	return cmd, nil
}

func (o *OS) Spawn(name, command, dir string) (Handle, error) {
	cmd, err := BuildCommand(command)
	if err != nil {
		return Handle{}, &SpawnError{Command: command, Dir: dir, Err: err}
	}
	if dir != "" {
		info, err := os.Stat(dir)
		if err != nil {
			return Handle{}, &SpawnError{Command: command, Dir: dir, Err: fmt.Errorf("working directory: %w", err)}
		}
		if !info.IsDir() {
			return Handle{}, &SpawnError{Command: command, Dir: dir, Err: errors.New("working directory is not a directory")}
		}
		cmd.Dir = dir
	}
	if o.Env != nil {
		cmd.Env = o.Env
	}
	configureSysProcAttr(cmd)

	stdout, stderr, err := o.Log.Open(name)
	if err != nil {
		return Handle{}, &SpawnError{Command: command, Dir: dir, Err: fmt.Errorf("open output logs: %w", err)}
	}
	// nil stdout/stderr connect the child to the null device
	if stdout != nil {
		cmd.Stdout = stdout
		cmd.Stderr = stderr
	}

	startErr := cmd.Start()
	// the child holds its own descriptors from here on
	if stdout != nil {
		_ = stdout.Close()
		_ = stderr.Close()
	}
	if startErr != nil {
		return Handle{}, &SpawnError{Command: command, Dir: dir, Err: startErr}
	}

	h := Handle{PID: cmd.Process.Pid, StartedAt: time.Now()}
	// reap in the background so an exited child does not linger as a zombie;
	// nobody is notified of the exit
	go func() {
		err := cmd.Wait()
		slog.Debug("child exited", "name", name, "pid", h.PID, "error", err)
	}()
	return h, nil
}

func (o *OS) Terminate(pid int) error {
	if pid <= 0 {
		return &TerminateError{PID: pid, Err: ErrNoProcess}
	}
	if err := terminateGroup(pid); err != nil {
		return &TerminateError{PID: pid, Err: err}
	}
	return nil
}

func (o *OS) Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return alive(pid)
}

// StartTime returns the creation time of pid, zero when unknown.
func StartTime(pid int) time.Time {
	secs := getProcStartUnix(pid)
	if secs <= 0 {
		return time.Time{}
	}
	return time.Unix(secs, 0)
}

// StartTime implements the optional start-time lookup used by status inspection.
func (o *OS) StartTime(pid int) time.Time { return StartTime(pid) }
