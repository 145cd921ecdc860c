package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/loykin/srvctl/internal/history"
	"github.com/loykin/srvctl/internal/metrics"
	"github.com/loykin/srvctl/internal/process"
	"github.com/loykin/srvctl/internal/registry"
)

// Engine owns the registry and drives every server through stopped <-> running.
// All operations are serialized by one mutex. Status is the engine's cached
// belief, updated only by its own start/stop calls (and the optional Reconciler).
type Engine struct {
	mu    sync.Mutex
	store registry.Store
	ctrl  process.Controller
	probe PortProber
	opts  Options
	log   *slog.Logger
	reg   registry.Registry

	now   func() time.Time
	sleep func(time.Duration)
}

// startTimer is implemented by controllers that can report process creation time.
type startTimer interface {
	StartTime(pid int) time.Time
}

func New(store registry.Store, ctrl process.Controller, probe PortProber, opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		store: store,
		ctrl:  ctrl,
		probe: probe,
		opts:  opts,
		log:   log,
		reg:   registry.Registry{},
		now:   time.Now,
		sleep: time.Sleep,
	}
}

// Load replaces the in-memory registry with the persisted one. On any load
// error (including registry.ErrConfigCorrupt) the engine continues with an
// empty registry and the error is returned for reporting.
func (e *Engine) Load(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	reg, err := e.store.Load(ctx)
	if err != nil {
		e.log.Debug("registry load failed", "error", err)
		e.reg = registry.Registry{}
		return err
	}
	e.reg = reg
	for _, name := range reg.Names() {
		metrics.SetRunning(name, reg[name].Running())
	}
	e.log.Debug("registry loaded", "servers", len(reg))
	return nil
}

// Boot starts every auto_start server whose cached status is not running.
// Persisted running records are trusted and left alone.
func (e *Engine) Boot(ctx context.Context) []Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []Result
	for _, name := range e.reg.Names() {
		srv := e.reg[name]
		if !srv.AutoStart || srv.Running() {
			continue
		}
		out = append(out, Result{Name: name, Err: e.startLocked(ctx, name)})
	}
	return out
}

func (e *Engine) Add(ctx context.Context, srv registry.Server) error {
	if err := validateName(srv.Name); err != nil {
		return err
	}
	if err := validateDefinition(srv.Command, srv.Port); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.reg[srv.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateName, srv.Name)
	}
	e.reg[srv.Name] = registry.Server{
		Name:             srv.Name,
		Command:          strings.TrimSpace(srv.Command),
		Port:             srv.Port,
		WorkingDirectory: srv.WorkingDirectory,
		Description:      srv.Description,
		AutoStart:        srv.AutoStart,
		Status:           registry.StatusStopped,
	}
	metrics.SetRunning(srv.Name, false)
	e.log.Info("server added", "name", srv.Name, "port", srv.Port)
	return e.persist(ctx)
}

// Remove deletes a server, stopping it first when it is running.
func (e *Engine) Remove(ctx context.Context, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	srv, ok := e.reg[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if srv.Running() {
		e.markStopped(ctx, srv)
	}
	delete(e.reg, name)
	metrics.Forget(name)
	e.log.Info("server removed", "name", name)
	return e.persist(ctx)
}

func (e *Engine) Start(ctx context.Context, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.startLocked(ctx, name)
}

func (e *Engine) Stop(ctx context.Context, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopLocked(ctx, name)
}

// Restart stops (ignoring ErrNotRunning), waits RestartDelay and starts.
// The returned error is the start result.
func (e *Engine) Restart(ctx context.Context, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.stopLocked(ctx, name); err != nil {
		switch {
		case errors.Is(err, ErrNotRunning):
		case errors.Is(err, ErrNotFound):
			return err
		default:
			e.log.Warn("restart: stop reported an error, starting anyway", "name", name, "error", err)
		}
	}
	if d := e.opts.RestartDelay; d > 0 {
		e.sleep(d)
	}
	return e.startLocked(ctx, name)
}

// Update edits the definition of a server. A running server keeps its
// current process; the new definition applies from the next start.
func (e *Engine) Update(ctx context.Context, name string, p Patch) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	srv, ok := e.reg[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if p.Empty() {
		return nil
	}
	if p.Command != nil {
		srv.Command = strings.TrimSpace(*p.Command)
	}
	if p.Port != nil {
		srv.Port = *p.Port
	}
	if p.WorkingDirectory != nil {
		srv.WorkingDirectory = *p.WorkingDirectory
	}
	if p.Description != nil {
		srv.Description = *p.Description
	}
	if p.AutoStart != nil {
		srv.AutoStart = *p.AutoStart
	}
	if err := validateDefinition(srv.Command, srv.Port); err != nil {
		return err
	}
	e.reg[name] = srv
	e.log.Info("server updated", "name", name, "running", srv.Running())
	return e.persist(ctx)
}

// Get returns a copy of the cached record.
func (e *Engine) Get(name string) (registry.Server, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	srv, ok := e.reg[name]
	if !ok {
		return registry.Server{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return srv.Clone(), nil
}

// Inspect returns the cached record plus live port, liveness and uptime data.
// The live checks never modify the registry.
func (e *Engine) Inspect(name string) (Detail, error) {
	srv, err := e.Get(name)
	if err != nil {
		return Detail{}, err
	}
	d := Detail{Server: srv, PortInUse: e.probe.IsInUse(srv.Port)}
	if pid := srv.PIDValue(); pid > 0 {
		d.ProcessAlive = e.ctrl.Alive(pid)
		if st, ok := e.ctrl.(startTimer); ok && d.ProcessAlive {
			if t := st.StartTime(pid); !t.IsZero() {
				d.StartedAt = &t
				d.UptimeSeconds = int64(e.now().Sub(t) / time.Second)
			}
		}
	}
	return d, nil
}

// List returns copies of every record in registry order.
func (e *Engine) List() []registry.Server {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]registry.Server, 0, len(e.reg))
	for _, name := range e.reg.Names() {
		out = append(out, e.reg[name].Clone())
	}
	return out
}

// StartAll starts every server in registry order; failures do not stop the sweep.
func (e *Engine) StartAll(ctx context.Context) []Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := e.reg.Names()
	out := make([]Result, 0, len(names))
	for _, name := range names {
		out = append(out, Result{Name: name, Err: e.startLocked(ctx, name)})
	}
	return out
}

// StopAll stops every server in registry order; failures do not stop the sweep.
func (e *Engine) StopAll(ctx context.Context) []Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := e.reg.Names()
	out := make([]Result, 0, len(names))
	for _, name := range names {
		out = append(out, Result{Name: name, Err: e.stopLocked(ctx, name)})
	}
	return out
}

// Ports reports every server's port with a live in-use flag. Ports are probed in parallel.
func (e *Engine) Ports() []PortUsage {
	servers := e.List()
	ports := make([]int, 0, len(servers))
	for _, s := range servers {
		ports = append(ports, s.Port)
	}
	busy := e.probe.InUse(ports)
	out := make([]PortUsage, 0, len(servers))
	for _, s := range servers {
		out = append(out, PortUsage{Name: s.Name, Port: s.Port, InUse: busy[s.Port], Status: s.Status})
	}
	return out
}

// ReconcileOnce marks running servers whose process has disappeared as stopped
// and returns their names. It never starts anything.
func (e *Engine) ReconcileOnce(ctx context.Context) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var lost []string
	for _, name := range e.reg.Names() {
		srv := e.reg[name]
		if !srv.Running() {
			continue
		}
		pid := srv.PIDValue()
		if pid > 0 && e.ctrl.Alive(pid) {
			continue
		}
		srv.PID = nil
		srv.Status = registry.StatusStopped
		e.reg[name] = srv
		lost = append(lost, name)

		metrics.IncLost(name)
		metrics.SetRunning(name, false)
		metrics.RecordStateTransition(name, string(registry.StatusRunning), string(registry.StatusStopped))
		e.emit(ctx, history.EventLost, srv, pid, "process no longer exists")
		e.log.Warn("server process lost", "name", name, "pid", pid, "port", srv.Port)
	}
	if len(lost) == 0 {
		return nil, nil
	}
	return lost, e.persist(ctx)
}

func (e *Engine) startLocked(ctx context.Context, name string) error {
	srv, ok := e.reg[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if srv.Running() {
		return fmt.Errorf("%w: %s (pid %d)", ErrAlreadyRunning, name, srv.PIDValue())
	}
	began := e.now()
	if e.probe.IsInUse(srv.Port) {
		metrics.IncStartFailure(name, metrics.ReasonPortInUse)
		e.log.Warn("start refused, port busy", "name", name, "port", srv.Port)
		return fmt.Errorf("%w: %s port %d", ErrPortInUse, name, srv.Port)
	}
	h, err := e.ctrl.Spawn(name, srv.Command, srv.WorkingDirectory)
	if err != nil {
		metrics.IncStartFailure(name, metrics.ReasonSpawn)
		e.log.Error("start failed", "name", name, "port", srv.Port, "error", err)
		return fmt.Errorf("start %s: %w", name, err)
	}

	srv.PID = registry.IntPtr(h.PID)
	srv.Status = registry.StatusRunning
	e.reg[name] = srv

	metrics.IncStart(name)
	metrics.ObserveStartDuration(name, e.now().Sub(began).Seconds())
	metrics.SetRunning(name, true)
	metrics.RecordStateTransition(name, string(registry.StatusStopped), string(registry.StatusRunning))
	e.emit(ctx, history.EventStart, srv, h.PID, "")
	e.log.Info("server started", "name", name, "pid", h.PID, "port", srv.Port)

	if err := e.persist(ctx); err != nil {
		metrics.IncStartFailure(name, metrics.ReasonPersist)
		return err
	}
	return nil
}

func (e *Engine) stopLocked(ctx context.Context, name string) error {
	srv, ok := e.reg[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if !srv.Running() {
		return fmt.Errorf("%w: %s", ErrNotRunning, name)
	}
	e.markStopped(ctx, srv)
	return e.persist(ctx)
}

// markStopped kills the process group (when a pid is known) and clears the
// runtime fields. A failed kill is logged; the record is stopped regardless.
func (e *Engine) markStopped(ctx context.Context, srv registry.Server) {
	pid := srv.PIDValue()
	var killErr string
	if pid > 0 {
		if err := e.ctrl.Terminate(pid); err != nil {
			killErr = err.Error()
			if errors.Is(err, process.ErrNoProcess) {
				e.log.Info("process already gone", "name", srv.Name, "pid", pid)
			} else {
				e.log.Warn("terminate failed", "name", srv.Name, "pid", pid, "error", err)
			}
		}
	}
	srv.PID = nil
	srv.Status = registry.StatusStopped
	e.reg[srv.Name] = srv

	metrics.IncStop(srv.Name)
	metrics.SetRunning(srv.Name, false)
	metrics.RecordStateTransition(srv.Name, string(registry.StatusRunning), string(registry.StatusStopped))
	e.emit(ctx, history.EventStop, srv, pid, killErr)
	e.log.Info("server stopped", "name", srv.Name, "pid", pid, "port", srv.Port)
}

func (e *Engine) persist(ctx context.Context) error {
	if err := e.store.Save(ctx, e.reg.Clone()); err != nil {
		e.log.Error("registry save failed", "error", err)
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

func (e *Engine) emit(ctx context.Context, t history.EventType, srv registry.Server, pid int, errText string) {
	if len(e.opts.Sinks) == 0 {
		return
	}
	history.Dispatch(ctx, e.log, e.opts.Sinks, history.Event{
		Type:       t,
		OccurredAt: e.now().UTC(),
		Name:       srv.Name,
		PID:        pid,
		Port:       srv.Port,
		Error:      errText,
	})
}

func validateName(name string) error {
	if err := registry.ValidateName(name); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

func validateDefinition(command string, port int) error {
	if err := registry.ValidateDefinition(command, port); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}
