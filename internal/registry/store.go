package registry

import (
	"context"
	"errors"
	"fmt"
)

// ErrConfigCorrupt is returned by Load when persisted content cannot be decoded.
// Callers log it and continue with an empty registry.
var ErrConfigCorrupt = errors.New("registry content corrupt")

// Store reads and writes the whole registry. Save is a full write: a reader
// never observes a partially written registry.
type Store interface {
	Load(ctx context.Context) (Registry, error)
	Save(ctx context.Context, r Registry) error
	Close() error
}

// Config selects and configures a Store backend.
type Config struct {
	Type string `toml:"type" mapstructure:"type"` // "json" (default), "sqlite", "postgres"
	Path string `toml:"path" mapstructure:"path"` // json file or sqlite database path
	DSN  string `toml:"dsn" mapstructure:"dsn"`   // postgres connection string
}

// Corrupt wraps err so that errors.Is(err, ErrConfigCorrupt) holds.
func Corrupt(err error) error {
	return fmt.Errorf("%w: %v", ErrConfigCorrupt, err)
}

// Validate runs the record checks applied by every backend on load.
func Validate(key string, s *Server) error {
	if err := validate(key, s); err != nil {
		return Corrupt(err)
	}
	return nil
}
