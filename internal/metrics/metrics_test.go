package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func family(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("%s metric not found", name)
	return nil
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

func TestRecordOutcome_CountsPerLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordOutcome("created")
	c.RecordOutcome("extended")
	c.RecordOutcome("extended")

	got := map[string]float64{}
	for _, m := range family(t, reg, "shelflog_feed_records_total").GetMetric() {
		got[labelValue(m, "outcome")] = m.GetCounter().GetValue()
	}
	assert.Equal(t, map[string]float64{"created": 1, "extended": 2}, got)
}

func TestRecordFeedRequest_CountsPerScope(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordFeedRequest("friends")

	m := family(t, reg, "shelflog_feed_requests_total").GetMetric()
	require.Len(t, m, 1)
	assert.Equal(t, "friends", labelValue(m[0], "scope"))
	assert.Equal(t, float64(1), m[0].GetCounter().GetValue())
}

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordConflict()
	c.RecordDegraded()
	c.RecordDegraded()

	assert.Equal(t, float64(1), family(t, reg, "shelflog_feed_conflicts_total").GetMetric()[0].GetCounter().GetValue())
	assert.Equal(t, float64(2), family(t, reg, "shelflog_feed_degraded_total").GetMetric()[0].GetCounter().GetValue())
}

func TestObserveExpand(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ObserveExpand(120 * time.Millisecond)

	h := family(t, reg, "shelflog_feed_expand_seconds").GetMetric()[0].GetHistogram()
	assert.Equal(t, uint64(1), h.GetSampleCount())
	assert.InDelta(t, 0.12, h.GetSampleSum(), 1e-9)
}

func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordConflict()

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), "shelflog_feed_conflicts_total 1"))
}
