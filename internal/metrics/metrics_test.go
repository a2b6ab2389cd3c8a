package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counterValue sums every series of the named family.
func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		var total float64
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
		return total
	}
	return 0
}

func TestExtractorCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewExtractor(reg)

	m.Page()
	m.Page()
	m.Accepted()
	m.Rejected("no_bio")
	m.Rejected("no_avatar")
	m.UpstreamError("detail", "forbidden")
	m.RateLimitWait(65 * time.Second)

	assert.Equal(t, 2.0, counterValue(t, reg, "ghusers_extractor_pages_total"))
	assert.Equal(t, 1.0, counterValue(t, reg, "ghusers_extractor_users_accepted_total"))
	assert.Equal(t, 2.0, counterValue(t, reg, "ghusers_extractor_users_rejected_total"))
	assert.Equal(t, 1.0, counterValue(t, reg, "ghusers_extractor_upstream_errors_total"))
	assert.Equal(t, 1.0, counterValue(t, reg, "ghusers_extractor_rate_limit_waits_total"))
	assert.Equal(t, 65.0, counterValue(t, reg, "ghusers_extractor_rate_limit_wait_seconds_total"))
}

func TestHTTPObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTP(reg)

	m.Observe("/users/{login}", "GET", 200, 3*time.Millisecond)
	m.Observe("/users/{login}", "GET", 404, time.Millisecond)

	assert.Equal(t, 2.0, counterValue(t, reg, "ghusers_http_requests_total"))

	families, err := reg.Gather()
	require.NoError(t, err)
	var found bool
	for _, mf := range families {
		if mf.GetName() == "ghusers_http_request_duration_seconds" {
			found = true
			assert.Equal(t, uint64(2), mf.GetMetric()[0].GetHistogram().GetSampleCount())
		}
	}
	assert.True(t, found)
}

func TestWriteTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewExtractor(reg).Page()
	path := filepath.Join(t.TempDir(), "extract.prom")

	require.NoError(t, WriteTextfile(path, reg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ghusers_extractor_pages_total 1")
}
