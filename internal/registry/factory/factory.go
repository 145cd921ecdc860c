package factory

import (
	"fmt"
	"strings"

	"github.com/loykin/srvctl/internal/registry"
	"github.com/loykin/srvctl/internal/registry/postgres"
	"github.com/loykin/srvctl/internal/registry/sqlite"
)

// DefaultPath is used by the json backend when no path is configured.
const DefaultPath = "servers.json"

// New builds the registry store selected by cfg.Type.
// Supported types: "json" (default), "sqlite", "postgres" / "postgresql".
func New(cfg registry.Config) (registry.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "", "json", "file":
		path := cfg.Path
		if strings.TrimSpace(path) == "" {
			path = DefaultPath
		}
		return registry.NewFileStore(path)
	case "sqlite":
		return sqlite.New(cfg.Path)
	case "postgres", "postgresql":
		return postgres.New(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported registry type: %s (supported: json, sqlite, postgres)", cfg.Type)
	}
}
