package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ObserveRun("hybrid", nil)
		r.ObserveStep("Manager", time.Second)
		r.ObserveMemory("save", errors.New("x"))
	})
	assert.Nil(t, r.Registry())
}

func TestRecorderCounts(t *testing.T) {
	r := New()
	r.ObserveRun("web_research", nil)
	r.ObserveRun("web_research", nil)
	r.ObserveRun("", errors.New("boom"))
	r.ObserveMemory("search", errors.New("down"))

	assert.InDelta(t, 2, testutil.ToFloat64(r.runs.WithLabelValues("web_research", "ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.runs.WithLabelValues("unknown", "error")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.memory.WithLabelValues("search", "error")), 0)
}

func TestHandlerExposesCollectors(t *testing.T) {
	r := New()
	r.ObserveStep("Research", 20*time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `researcher_step_duration_seconds_count{agent="Research"} 1`)
}
