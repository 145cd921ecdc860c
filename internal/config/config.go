package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/loykin/srvctl/internal/env"
	"github.com/loykin/srvctl/internal/logger"
	"github.com/loykin/srvctl/internal/portprobe"
	"github.com/loykin/srvctl/internal/registry"
)

// EnvPrefix prefixes environment overrides, e.g. SRVCTL_REGISTRY_PATH.
const EnvPrefix = "SRVCTL"

// Config is the top-level TOML structure.
type Config struct {
	Registry     registry.Config   `toml:"registry" mapstructure:"registry"`
	Probe        ProbeConfig       `toml:"probe" mapstructure:"probe"`
	RestartDelay time.Duration     `toml:"restart_delay" mapstructure:"restart_delay"`
	Reconcile    ReconcileConfig   `toml:"reconcile" mapstructure:"reconcile"`
	Log          logger.SlogConfig `toml:"log" mapstructure:"log"`
	ChildLog     logger.Config     `toml:"child_log" mapstructure:"child_log"`
	Env          []string          `toml:"env" mapstructure:"env"`
	EnvFiles     []string          `toml:"env_files" mapstructure:"env_files"`
	Server       ServerConfig      `toml:"server" mapstructure:"server"`
	Metrics      MetricsConfig     `toml:"metrics" mapstructure:"metrics"`
	History      HistoryConfig     `toml:"history" mapstructure:"history"`

	// File is the config file that was read, empty when none.
	File string `toml:"-" mapstructure:"-"`
}

type ProbeConfig struct {
	Host    string        `toml:"host" mapstructure:"host"`
	Timeout time.Duration `toml:"timeout" mapstructure:"timeout"`
}

type ReconcileConfig struct {
	// Interval 0 disables the reconciler.
	Interval time.Duration `toml:"interval" mapstructure:"interval"`
}

type ServerConfig struct {
	Listen   string `toml:"listen" mapstructure:"listen"`
	BasePath string `toml:"base_path" mapstructure:"base_path"`
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled" mapstructure:"enabled"`
	Listen  string `toml:"listen" mapstructure:"listen"`
}

type HistoryConfig struct {
	Sinks []string `toml:"sinks" mapstructure:"sinks"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("registry.type", "json")
	v.SetDefault("registry.path", "servers.json")
	v.SetDefault("registry.dsn", "")
	v.SetDefault("probe.host", portprobe.DefaultHost)
	v.SetDefault("probe.timeout", portprobe.DefaultTimeout)
	v.SetDefault("restart_delay", time.Second)
	v.SetDefault("reconcile.interval", time.Duration(0))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.color", true)
	v.SetDefault("log.file", "")
	v.SetDefault("child_log.dir", "")
	v.SetDefault("child_log.max_size_mb", logger.DefaultMaxSizeMB)
	v.SetDefault("child_log.max_backups", logger.DefaultMaxBackups)
	v.SetDefault("child_log.max_age_days", logger.DefaultMaxAgeDays)
	v.SetDefault("child_log.compress", false)
	v.SetDefault("env", []string{})
	v.SetDefault("env_files", []string{})
	v.SetDefault("server.listen", "127.0.0.1:8080")
	v.SetDefault("server.base_path", "/api")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", ":9090")
	v.SetDefault("history.sinks", []string{})
}

// Load reads the TOML file at path (optional: empty path means defaults only)
// and applies SRVCTL_* environment overrides. Relative paths in the file are
// resolved against the file's directory.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = path
	if path != "" {
		base := filepath.Dir(path)
		cfg.Registry.Path = resolve(base, cfg.Registry.Path)
		cfg.ChildLog.Dir = resolve(base, cfg.ChildLog.Dir)
		cfg.Log.File = resolve(base, cfg.Log.File)
		for i, f := range cfg.EnvFiles {
			cfg.EnvFiles[i] = resolve(base, f)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// resolve makes p absolute relative to base. Empty and absolute paths are kept.
// ":memory:" and URL-like values are left alone.
func resolve(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" || filepath.IsAbs(p) || strings.HasPrefix(p, ":") || strings.Contains(p, "://") {
		return p
	}
	return filepath.Join(base, p)
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Registry.Type) {
	case "", "json", "file", "sqlite":
		if strings.TrimSpace(c.Registry.Path) == "" {
			errs = append(errs, errors.New("registry.path is required"))
		}
	case "postgres", "postgresql":
		if strings.TrimSpace(c.Registry.DSN) == "" {
			errs = append(errs, errors.New("registry.dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("registry.type %q is not one of json, sqlite, postgres", c.Registry.Type))
	}
	if c.Probe.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("probe.timeout must be positive, got %s", c.Probe.Timeout))
	}
	if c.RestartDelay < 0 {
		errs = append(errs, fmt.Errorf("restart_delay must not be negative, got %s", c.RestartDelay))
	}
	if c.Reconcile.Interval < 0 {
		errs = append(errs, fmt.Errorf("reconcile.interval must not be negative, got %s", c.Reconcile.Interval))
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not one of text, json", c.Log.Format))
	}
	if c.ChildLog.MaxSizeMB < 0 || c.ChildLog.MaxBackups < 0 || c.ChildLog.MaxAgeDays < 0 {
		errs = append(errs, errors.New("child_log limits must not be negative"))
	}
	if !strings.HasPrefix(c.Server.BasePath, "/") {
		errs = append(errs, fmt.Errorf("server.base_path must start with '/', got %q", c.Server.BasePath))
	}
	for _, kv := range c.Env {
		if strings.IndexByte(kv, '=') <= 0 {
			errs = append(errs, fmt.Errorf("env entry %q is not KEY=VALUE", kv))
		}
	}
	return errors.Join(errs...)
}

// ChildEnv returns the environment for spawned servers. It is nil (inherit the
// supervisor's environment unchanged) unless env or env_files are configured,
// in which case those values are layered over the supervisor's environment:
// OS first, then env files in order, then the env list.
func (c *Config) ChildEnv() ([]string, error) {
	if len(c.Env) == 0 && len(c.EnvFiles) == 0 {
		return nil, nil
	}
	e := env.FromOS()
	for _, p := range c.EnvFiles {
		if err := e.LoadFile(p); err != nil {
			return nil, err
		}
	}
	e.SetPairs(c.Env)
	return e.Environ(), nil
}
