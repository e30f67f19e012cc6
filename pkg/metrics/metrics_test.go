package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCountsRequests(t *testing.T) {
	r := New()
	r.ObserveRequest("query", "success", 20*time.Millisecond)
	r.ObserveRequest("query", "success", 10*time.Millisecond)
	r.ObserveRequest("rest", "unreachable", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.requests.WithLabelValues("query", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.requests.WithLabelValues("rest", "unreachable")))
}

func TestRecorderCounters(t *testing.T) {
	r := New()
	r.AddDropped(3)
	r.AddDropped(0)
	r.IncStale()
	r.SetDocuments(4)

	assert.Equal(t, 3.0, testutil.ToFloat64(r.dropped))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.staleResponses))
	assert.Equal(t, 4.0, testutil.ToFloat64(r.documentsActive))
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ObserveRequest("rest", "success", time.Second)
		r.ObserveFindings("python", 2)
		r.AddDropped(1)
		r.IncStale()
		r.SetDocuments(1)
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := New()
	r.ObserveFindings("python", 2)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pairprog_findings_per_analysis")
}
