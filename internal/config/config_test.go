package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "srvctl.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "json", cfg.Registry.Type)
	assert.Equal(t, "servers.json", cfg.Registry.Path)
	assert.Equal(t, "localhost", cfg.Probe.Host)
	assert.Equal(t, 500*time.Millisecond, cfg.Probe.Timeout)
	assert.Equal(t, time.Second, cfg.RestartDelay)
	assert.Zero(t, cfg.Reconcile.Interval)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Log.Color)
	assert.Equal(t, 10, cfg.ChildLog.MaxSizeMB)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Listen)
	assert.Equal(t, "/api", cfg.Server.BasePath)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Empty(t, cfg.History.Sinks)
	assert.Empty(t, cfg.File)
}

func TestLoadFileAndResolveRelativePaths(t *testing.T) {
	path := writeConfig(t, `
restart_delay = "250ms"

[registry]
type = "sqlite"
path = "data/servers.db"

[probe]
host = "127.0.0.1"
timeout = "2s"

[reconcile]
interval = "30s"

[log]
level = "debug"
format = "json"
color = false

[child_log]
dir = "logs"
max_size_mb = 5
compress = true

[server]
listen = ":18080"
base_path = "/v1"

[metrics]
enabled = true
listen = ":19090"

[history]
sinks = ["sqlite://history.db", "opensearch://localhost:9200/srv"]
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	dir := filepath.Dir(path)

	assert.Equal(t, "sqlite", cfg.Registry.Type)
	assert.Equal(t, filepath.Join(dir, "data", "servers.db"), cfg.Registry.Path)
	assert.Equal(t, filepath.Join(dir, "logs"), cfg.ChildLog.Dir)
	assert.Equal(t, 250*time.Millisecond, cfg.RestartDelay)
	assert.Equal(t, 2*time.Second, cfg.Probe.Timeout)
	assert.Equal(t, "127.0.0.1", cfg.Probe.Host)
	assert.Equal(t, 30*time.Second, cfg.Reconcile.Interval)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.False(t, cfg.Log.Color)
	assert.Equal(t, 5, cfg.ChildLog.MaxSizeMB)
	assert.Equal(t, 3, cfg.ChildLog.MaxBackups, "unset keys keep defaults")
	assert.True(t, cfg.ChildLog.Compress)
	assert.Equal(t, "/v1", cfg.Server.BasePath)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, []string{"sqlite://history.db", "opensearch://localhost:9200/srv"}, cfg.History.Sinks)
	assert.Equal(t, path, cfg.File)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SRVCTL_REGISTRY_PATH", "/var/lib/srvctl/servers.json")
	t.Setenv("SRVCTL_RESTART_DELAY", "3s")
	t.Setenv("SRVCTL_METRICS_ENABLED", "true")
	path := writeConfig(t, "[registry]\npath = \"local.json\"\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/srvctl/servers.json", cfg.Registry.Path)
	assert.Equal(t, 3*time.Second, cfg.RestartDelay)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "[registry\ntype="))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"registry type":   "[registry]\ntype = \"etcd\"\n",
		"postgres no dsn": "[registry]\ntype = \"postgres\"\n",
		"probe timeout":   "[probe]\ntimeout = \"0s\"\n",
		"restart delay":   "restart_delay = \"-1s\"\n",
		"reconcile":       "[reconcile]\ninterval = \"-5s\"\n",
		"log level":       "[log]\nlevel = \"loud\"\n",
		"log format":      "[log]\nformat = \"xml\"\n",
		"base path":       "[server]\nbase_path = \"api\"\n",
		"env entry":       "env = [\"NOEQUALS\"]\n",
		"child log":       "[child_log]\nmax_backups = -1\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	_, err := Load(writeConfig(t, "[log]\nlevel = \"loud\"\nformat = \"xml\"\n"))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "log.level") && strings.Contains(err.Error(), "log.format"))
}
