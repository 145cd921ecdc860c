package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileStore keeps the registry in a JSON file: an object keyed by server name.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by the JSON file at path.
func NewFileStore(path string) (*FileStore, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty registry path")
	}
	return &FileStore{path: filepath.Clean(p)}, nil
}

// Path returns the registry file location.
func (f *FileStore) Path() string { return f.path }

// Load reads the registry. A missing file yields an empty registry.
func (f *FileStore) Load(_ context.Context) (Registry, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Registry{}, nil
		}
		return nil, err
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return Registry{}, nil
	}
	var raw map[string]Server
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, Corrupt(err)
	}
	reg := make(Registry, len(raw))
	for key, s := range raw {
		if err := Validate(key, &s); err != nil {
			return nil, err
		}
		reg[key] = s
	}
	return reg, nil
}

// Save writes the registry to a temp file next to the target and renames it
// into place, so readers see either the old or the new content.
func (f *FileStore) Save(_ context.Context, r Registry) error {
	if r == nil {
		r = Registry{}
	}
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create registry dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		cleanup()
		return err
	}
	return nil
}

func (f *FileStore) Close() error { return nil }
