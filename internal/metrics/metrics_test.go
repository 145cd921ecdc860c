package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freshRegistry(t *testing.T) *prometheus.Registry {
	t.Helper()
	regOK.Store(false)
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	return reg
}

// sample returns the value of the series of family whose "name" label is server,
// and whether it exists.
func sample(t *testing.T, reg *prometheus.Registry, family, server string) (float64, bool) {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != family {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "name" && lp.GetValue() == server {
					if m.GetGauge() != nil {
						return m.GetGauge().GetValue(), true
					}
					if m.GetHistogram() != nil {
						return float64(m.GetHistogram().GetSampleCount()), true
					}
					return m.GetCounter().GetValue(), true
				}
			}
		}
	}
	return 0, false
}

func TestHelpersNoopBeforeRegister(t *testing.T) {
	regOK.Store(false)
	reg := prometheus.NewRegistry()
	IncStart("noop-before")
	require.NoError(t, Register(reg))
	_, ok := sample(t, reg, "srvctl_server_starts_total", "noop-before")
	assert.False(t, ok)
}

func TestRegisterIdempotent(t *testing.T) {
	reg := freshRegistry(t)
	require.NoError(t, Register(reg))

	regOK.Store(false)
	// collectors already present in reg are tolerated
	require.NoError(t, Register(reg))
}

func TestHelpersRecord(t *testing.T) {
	reg := freshRegistry(t)

	IncStart("web")
	IncStart("web")
	IncStop("web")
	IncStartFailure("web", ReasonPortInUse)
	IncLost("web")
	ObserveStartDuration("web", 0.02)
	SetRunning("web", true)
	RecordStateTransition("web", "stopped", "running")

	v, ok := sample(t, reg, "srvctl_server_starts_total", "web")
	require.True(t, ok)
	assert.GreaterOrEqual(t, v, 2.0)
	v, _ = sample(t, reg, "srvctl_server_running", "web")
	assert.Equal(t, 1.0, v)
	v, _ = sample(t, reg, "srvctl_server_start_duration_seconds", "web")
	assert.GreaterOrEqual(t, v, 1.0)

	SetRunning("web", false)
	v, _ = sample(t, reg, "srvctl_server_running", "web")
	assert.Equal(t, 0.0, v)

	for _, family := range []string{
		"srvctl_server_stops_total",
		"srvctl_server_start_failures_total",
		"srvctl_server_lost_total",
		"srvctl_server_state_transitions_total",
	} {
		_, ok := sample(t, reg, family, "web")
		assert.True(t, ok, "missing metric %s", family)
	}

	Forget("web")
	_, ok = sample(t, reg, "srvctl_server_running", "web")
	assert.False(t, ok)
}

func TestHandlerForServesMetrics(t *testing.T) {
	reg := freshRegistry(t)
	IncStart("api")

	srv := httptest.NewServer(HandlerFor(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	b, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(b), `srvctl_server_starts_total{name="api"}`)
}
