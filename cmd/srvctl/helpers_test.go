package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/loykin/srvctl/internal/manager"
	"github.com/loykin/srvctl/internal/process"
	"github.com/loykin/srvctl/internal/registry"
	"github.com/loykin/srvctl/internal/server"
)

// run executes the CLI with args and returns stdout, stderr and the error.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := buildRoot(&out, &errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), errOut.String(), err
}

func decode[T any](t *testing.T, s string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(s), &v), s)
	return v
}

type stubController struct {
	mu   sync.Mutex
	next int
	live map[int]bool
}

func (s *stubController) Spawn(_, command, dir string) (process.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if command == "missing-binary" {
		return process.Handle{}, &process.SpawnError{Command: command, Dir: dir, Err: errors.New("not found")}
	}
	s.next++
	s.live[s.next] = true
	return process.Handle{PID: s.next}, nil
}

func (s *stubController) Terminate(pid int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.live, pid)
	return nil
}

func (s *stubController) Alive(pid int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live[pid]
}

type freePorts struct{}

func (freePorts) IsInUse(int) bool               { return false }
func (freePorts) InUse(ports []int) map[int]bool { return map[int]bool{} }

// daemon serves the HTTP API over a stub controller and returns its base URL.
func daemon(t *testing.T) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	st, err := registry.NewFileStore(filepath.Join(t.TempDir(), "servers.json"))
	require.NoError(t, err)
	eng := manager.New(st, &stubController{live: map[int]bool{}}, freePorts{}, manager.Options{})
	require.NoError(t, eng.Load(context.Background()))
	ts := httptest.NewServer(server.NewRouter(eng, "/api", nil).Handler())
	t.Cleanup(ts.Close)
	return ts.URL + "/api"
}
