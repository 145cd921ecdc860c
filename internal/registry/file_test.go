package registry

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func sampleRegistry() Registry {
	return Registry{
		"web": {
			Name:             "web",
			Command:          "python3 -m http.server 9000",
			Port:             9000,
			WorkingDirectory: "/srv/web",
			Description:      "static files",
			AutoStart:        true,
			PID:              IntPtr(4242),
			Status:           StatusRunning,
		},
		"api": {
			Name:             "api",
			Command:          "./api --port 8081",
			Port:             8081,
			WorkingDirectory: "/srv/api",
			Status:           StatusStopped,
		},
	}
}

func TestFileStoreMissingFileIsEmpty(t *testing.T) {
	st, err := NewFileStore(filepath.Join(t.TempDir(), "servers.json"))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	reg, err := st.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(reg) != 0 {
		t.Fatalf("expected empty registry, got %v", reg)
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "servers.json")
	st, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()
	want := sampleRegistry()
	if err := st.Save(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := st.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("unexpected mode %v", info.Mode().Perm())
	}
}

func TestFileStoreWireFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "servers.json")
	st, _ := NewFileStore(path)
	if err := st.Save(context.Background(), sampleRegistry()); err != nil {
		t.Fatalf("save: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var raw map[string]map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	api := raw["api"]
	for _, k := range []string{"name", "command", "port", "working_directory", "description", "auto_start", "pid", "status"} {
		if _, ok := api[k]; !ok {
			t.Fatalf("field %q missing in %v", k, api)
		}
	}
	if api["pid"] != nil {
		t.Fatalf("stopped server pid should be null, got %v", api["pid"])
	}
	if raw["web"]["status"] != "running" || raw["web"]["pid"].(float64) != 4242 {
		t.Fatalf("unexpected web record: %v", raw["web"])
	}
}

func TestFileStoreNoTempLeftBehind(t *testing.T) {
	dir := t.TempDir()
	st, _ := NewFileStore(filepath.Join(dir, "servers.json"))
	for i := 0; i < 3; i++ {
		if err := st.Save(context.Background(), sampleRegistry()); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the registry file, got %d entries", len(entries))
	}
}

func TestFileStoreCorrupt(t *testing.T) {
	cases := map[string]string{
		"syntax":         `{"web": {`,
		"status":         `{"web": {"name": "web", "command": "serve", "status": "sleeping"}}`,
		"key":            `{"web": {"name": "api", "command": "serve", "status": "stopped"}}`,
		"pid":            `{"web": {"name": "web", "command": "serve", "pid": -3, "status": "running"}}`,
		"wrong type":     `{"web": {"name": "web", "command": "serve", "port": "eighty"}}`,
		"null record":    `{"web": null}`,
		"empty command":  `{"web": {"command": "  ", "status": "stopped"}}`,
		"port too high":  `{"web": {"command": "serve", "port": 70000, "status": "running", "pid": null}}`,
		"negative port":  `{"web": {"command": "serve", "port": -1}}`,
		"path separator": `{"../escaped": {"command": "true"}}`,
		"whitespace":     `{"my web": {"command": "true"}}`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "servers.json")
			if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
				t.Fatalf("write: %v", err)
			}
			st, _ := NewFileStore(path)
			_, err := st.Load(context.Background())
			if !errors.Is(err, ErrConfigCorrupt) {
				t.Fatalf("expected ErrConfigCorrupt, got %v", err)
			}
		})
	}
}

func TestFileStoreFillsNameAndStatus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "servers.json")
	content := `{"db": {"command": "redis-server", "port": 6379, "pid": null}}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	st, _ := NewFileStore(path)
	reg, err := st.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	db := reg["db"]
	if db.Name != "db" || db.Status != StatusStopped || db.PID != nil {
		t.Fatalf("unexpected record %+v", db)
	}
}

func TestNewFileStoreEmptyPath(t *testing.T) {
	if _, err := NewFileStore("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestRegistryNamesSortedAndCloneIsDeep(t *testing.T) {
	reg := sampleRegistry()
	if got := reg.Names(); !reflect.DeepEqual(got, []string{"api", "web"}) {
		t.Fatalf("names = %v", got)
	}
	c := reg.Clone()
	*c["web"].PID = 1
	if *reg["web"].PID != 4242 {
		t.Fatal("clone shares pid pointer")
	}
}
