package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusCollectorTextfile(t *testing.T) {
	pc, err := NewPrometheusCollector("ibank")
	require.NoError(t, err)

	pc.RecordLogin()
	pc.RecordSuccess(12*time.Second, 7, time.Unix(1709373600, 0))
	pc.RecordFailure("authentication", time.Second)
	pc.RecordFailure("authentication", time.Second)
	pc.RecordRecovered("session_load")

	path := filepath.Join(t.TempDir(), "ibank.prom")
	require.NoError(t, pc.WriteTextfile(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(raw)

	assert.Contains(t, out, "ibank_logins_total 1\n")
	assert.Contains(t, out, "ibank_transactions 7\n")
	assert.Contains(t, out, "ibank_last_success_timestamp_seconds ")
	assert.Contains(t, out, `ibank_failures_total{kind="authentication"} 2`)
	assert.Contains(t, out, `ibank_recovered_errors_total{kind="session_load"} 1`)
	assert.Contains(t, out, `ibank_scrape_duration_seconds_count{outcome="success"} 1`)
	assert.Contains(t, out, `ibank_scrape_duration_seconds_count{outcome="failure"} 2`)
}

func TestPrometheusCollectorGather(t *testing.T) {
	pc, err := NewPrometheusCollector("ibank")
	require.NoError(t, err)

	families, err := pc.Registry().Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	// vectors without observations are not exported yet
	assert.True(t, names["ibank_logins_total"])
	assert.True(t, names["ibank_transactions"])
	assert.False(t, names["ibank_failures_total"])
}

func TestNoOpCollector(t *testing.T) {
	var c Collector = NoOpCollector{}
	c.RecordLogin()
	c.RecordRecovered("session_load")
	c.RecordSuccess(time.Second, 1, time.Now())
	c.RecordFailure("automation", time.Second)
}
