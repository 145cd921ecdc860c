// Package srvctl supervises a registry of named local server processes.
// It is the embedding facade over the internal engine, stores and HTTP API.
package srvctl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/srvctl/internal/config"
	"github.com/loykin/srvctl/internal/history"
	histfactory "github.com/loykin/srvctl/internal/history/factory"
	"github.com/loykin/srvctl/internal/manager"
	"github.com/loykin/srvctl/internal/metrics"
	"github.com/loykin/srvctl/internal/portprobe"
	"github.com/loykin/srvctl/internal/process"
	"github.com/loykin/srvctl/internal/registry"
	regfactory "github.com/loykin/srvctl/internal/registry/factory"
	iapi "github.com/loykin/srvctl/internal/server"
)

// Re-export core types for external consumers.
type (
	Config    = config.Config
	Server    = registry.Server
	Status    = registry.Status
	Detail    = manager.Detail
	PortUsage = manager.PortUsage
	Patch     = manager.Patch
	Result    = manager.Result
	Engine    = manager.Engine
)

const (
	StatusStopped = registry.StatusStopped
	StatusRunning = registry.StatusRunning
)

// Sentinel errors, comparable with errors.Is.
var (
	ErrDuplicateName  = manager.ErrDuplicateName
	ErrNotFound       = manager.ErrNotFound
	ErrAlreadyRunning = manager.ErrAlreadyRunning
	ErrNotRunning     = manager.ErrNotRunning
	ErrPortInUse      = manager.ErrPortInUse
	ErrInvalid        = manager.ErrInvalid
	ErrPersist        = manager.ErrPersist
	ErrConfigCorrupt  = registry.ErrConfigCorrupt
)

// LoadConfig reads a TOML config file; an empty path yields defaults plus
// SRVCTL_* environment overrides.
func LoadConfig(path string) (*Config, error) { return config.Load(path) }

// Supervisor bundles an engine with the resources it was built from.
type Supervisor struct {
	*manager.Engine
	cfg   *Config
	store registry.Store
	sinks []history.Sink
	log   *slog.Logger
}

// Open builds the store, history sinks, process controller and port probe
// described by cfg and loads the registry. An unreadable registry is logged
// and the supervisor starts empty.
func Open(ctx context.Context, cfg *Config, log *slog.Logger) (*Supervisor, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	if log == nil {
		log = slog.Default()
	}
	store, err := regfactory.New(cfg.Registry)
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	sinks, err := histfactory.NewSinks(ctx, cfg.History.Sinks)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open history sinks: %w", err)
	}
	env, err := cfg.ChildEnv()
	if err != nil {
		history.CloseAll(sinks)
		_ = store.Close()
		return nil, err
	}
	ctrl := process.NewOS(cfg.ChildLog)
	ctrl.Env = env

	eng := manager.New(store, ctrl, portprobe.New(cfg.Probe.Host, cfg.Probe.Timeout), manager.Options{
		RestartDelay: cfg.RestartDelay,
		Logger:       log,
		Sinks:        sinks,
	})
	if err := eng.Load(ctx); err != nil {
		if errors.Is(err, registry.ErrConfigCorrupt) {
			log.Warn("registry is corrupt, continuing with an empty registry", "error", err)
		} else {
			log.Error("registry could not be loaded, continuing with an empty registry", "error", err)
		}
	}
	return &Supervisor{Engine: eng, cfg: cfg, store: store, sinks: sinks, log: log}, nil
}

// Failed returns the bulk results that carry an error.
func Failed(rs []Result) []Result { return manager.Failed(rs) }

// Config returns the configuration the supervisor was opened with.
func (s *Supervisor) Config() *Config { return s.cfg }

// Reconciler returns the liveness reconciler configured by reconcile.interval.
func (s *Supervisor) Reconciler() *manager.Reconciler {
	return manager.NewReconciler(s.Engine, s.cfg.Reconcile.Interval)
}

// Handler returns the HTTP API mounted under basePath.
func (s *Supervisor) Handler(basePath string) http.Handler {
	return iapi.NewRouter(s.Engine, basePath, s.log).Handler()
}

// NewHTTPServer starts the HTTP API on addr in the background.
func (s *Supervisor) NewHTTPServer(addr, basePath string) *http.Server {
	return iapi.NewServer(addr, basePath, s.Engine, s.log)
}

// Close releases the store and history sinks. Child processes are left running.
func (s *Supervisor) Close() error {
	history.CloseAll(s.sinks)
	return s.store.Close()
}

// Metrics helpers

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// NewMetricsServer starts an HTTP server exposing /metrics from the default
// registry on addr in the background.
func NewMetricsServer(addr string, log *slog.Logger) *http.Server {
	if log == nil {
		log = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", "addr", addr, "error", err)
		}
	}()
	return srv
}
