package manager

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/loykin/srvctl/internal/history"
	"github.com/loykin/srvctl/internal/process"
	"github.com/loykin/srvctl/internal/registry"
)

type spawnCall struct{ name, command, dir string }

type fakeController struct {
	mu         sync.Mutex
	nextPID    int
	alive      map[int]bool
	spawns     []spawnCall
	terminated []int
	spawnErr   map[string]error // by server name
	started    map[int]time.Time
}

func newFakeController() *fakeController {
	return &fakeController{nextPID: 1000, alive: map[int]bool{}, spawnErr: map[string]error{}, started: map[int]time.Time{}}
}

func (f *fakeController) Spawn(name, command, dir string) (process.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spawns = append(f.spawns, spawnCall{name, command, dir})
	if err := f.spawnErr[name]; err != nil {
		return process.Handle{}, &process.SpawnError{Command: command, Dir: dir, Err: err}
	}
	f.nextPID++
	pid := f.nextPID
	f.alive[pid] = true
	f.started[pid] = time.Now().Add(-90 * time.Second)
	return process.Handle{PID: pid, StartedAt: time.Now()}, nil
}

func (f *fakeController) Terminate(pid int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terminated = append(f.terminated, pid)
	if !f.alive[pid] {
		return &process.TerminateError{PID: pid, Err: process.ErrNoProcess}
	}
	delete(f.alive, pid)
	return nil
}

func (f *fakeController) Alive(pid int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive[pid]
}

func (f *fakeController) StartTime(pid int) time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started[pid]
}

func (f *fakeController) kill(pid int) {
	f.mu.Lock()
	delete(f.alive, pid)
	f.mu.Unlock()
}

func (f *fakeController) spawnCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.spawns)
}

type fakeProber struct {
	mu   sync.Mutex
	busy map[int]bool
}

func newFakeProber(busy ...int) *fakeProber {
	p := &fakeProber{busy: map[int]bool{}}
	for _, port := range busy {
		p.busy[port] = true
	}
	return p
}

func (p *fakeProber) IsInUse(port int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.busy[port]
}

func (p *fakeProber) InUse(ports []int) map[int]bool {
	out := make(map[int]bool, len(ports))
	for _, port := range ports {
		out[port] = p.IsInUse(port)
	}
	return out
}

type memStore struct {
	mu      sync.Mutex
	data    registry.Registry
	saves   int
	loadErr error
	saveErr error
}

func newMemStore(r registry.Registry) *memStore {
	if r == nil {
		r = registry.Registry{}
	}
	return &memStore{data: r.Clone()}
}

func (m *memStore) Load(context.Context) (registry.Registry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.data.Clone(), nil
}

func (m *memStore) Save(_ context.Context, r registry.Registry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.data = r.Clone()
	return nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) snapshot() (registry.Registry, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.Clone(), m.saves
}

type recSink struct {
	mu     sync.Mutex
	events []history.Event
}

func (r *recSink) Send(_ context.Context, e history.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recSink) types() []history.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]history.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

var errBoom = errors.New("boom")

// logBuffer collects slog text output from concurrent goroutines.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *logBuffer) logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(b, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
