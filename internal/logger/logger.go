package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default rotation settings.
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days

	megabyte = 1024 * 1024
)

// Config describes where a spawned server's stdout/stderr go.
// With an empty Dir nothing is written and the child output is discarded.
// Files are Dir/<name>.stdout.log and Dir/<name>.stderr.log, rotated with
// lumberjack semantics.
type Config struct {
	Dir        string `toml:"dir" mapstructure:"dir"`
	MaxSizeMB  int    `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `toml:"compress" mapstructure:"compress"`
}

// Enabled reports whether child output should be captured to files.
func (c Config) Enabled() bool { return strings.TrimSpace(c.Dir) != "" }

// Paths returns the stdout and stderr file paths for name.
func (c Config) Paths(name string) (string, string) {
	return filepath.Join(c.Dir, fmt.Sprintf("%s.stdout.log", name)),
		filepath.Join(c.Dir, fmt.Sprintf("%s.stderr.log", name))
}

// Open returns append-mode files for the server's stdout and stderr, both nil
// when the config is not enabled. The files are handed to the child directly so
// output keeps flowing after the supervisor exits; rotation therefore happens
// here, at spawn time, once a file has grown past MaxSizeMB.
func (c Config) Open(name string) (*os.File, *os.File, error) {
	if !c.Enabled() {
		return nil, nil, nil
	}
	if err := os.MkdirAll(c.Dir, 0o750); err != nil {
		return nil, nil, err
	}
	stdoutPath, stderrPath := c.Paths(name)
	stdout, err := c.open(stdoutPath)
	if err != nil {
		return nil, nil, err
	}
	stderr, err := c.open(stderrPath)
	if err != nil {
		_ = stdout.Close()
		return nil, nil, err
	}
	return stdout, stderr, nil
}

func (c Config) open(path string) (*os.File, error) {
	if info, err := os.Stat(path); err == nil && info.Size() >= int64(valOr(c.MaxSizeMB, DefaultMaxSizeMB))*megabyte {
		l := c.rotating(path)
		if err := l.Rotate(); err != nil {
			return nil, err
		}
		_ = l.Close()
	}
	return os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
}

func (c Config) rotating(path string) *lj.Logger {
	return &lj.Logger{
		Filename:   path,
		MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   c.Compress,
	}
}

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
