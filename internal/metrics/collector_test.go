package metrics

import (
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bulkgofer/internal/batcher"
)

func TestCollector_RecordFlushAndDispatch(t *testing.T) {
	c := NewCollector("test")

	c.RecordSubmit("/meshes/sphere")
	c.RecordSubmit("/meshes/sphere")
	c.RecordFlush(2, 1, 5*time.Millisecond)
	c.RecordDispatch(batcher.ModeCombined, 2, 3*time.Millisecond, nil)
	c.RecordDispatch(batcher.ModeSingle, 1, time.Millisecond, errors.New("down"))

	assert.Equal(t, float64(2), testutil.ToFloat64(c.submitted.WithLabelValues("meshes")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.flushes))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.dispatches.WithLabelValues("combined", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.dispatches.WithLabelValues("single", "error")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.dispatchDuration))
}

func TestCollector_SubmitLabelledByGroup(t *testing.T) {
	c := NewCollector("test")

	for i := 0; i < 1000; i++ {
		c.RecordSubmit(fmt.Sprintf("/meshes/sphere?nonce=%d", i))
	}
	c.RecordSubmit("/meshes")
	c.RecordSubmit("textures/wood")

	assert.Equal(t, 2, testutil.CollectAndCount(c.submitted))
	assert.Equal(t, float64(1001), testutil.ToFloat64(c.submitted.WithLabelValues("meshes")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.submitted.WithLabelValues("textures")))
}

func TestCollector_ResultsAndCache(t *testing.T) {
	c := NewCollector("test")

	c.RecordResult(OutcomeOK)
	c.RecordResult(OutcomeOK)
	c.RecordResult(OutcomeShape)
	c.RecordCacheLookup(true)
	c.RecordCacheLookup(false)
	c.RecordCacheLookup(false)

	assert.Equal(t, float64(2), testutil.ToFloat64(c.results.WithLabelValues(OutcomeOK)))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.results.WithLabelValues(OutcomeShape)))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.cacheLookups.WithLabelValues("miss")))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("bulkgofer")
	depth := 7
	c.RegisterQueueDepth("bulkgofer", func() int { return depth })
	c.RecordFlush(3, 2, time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "bulkgofer_queue_depth 7")
	assert.Contains(t, string(body), "bulkgofer_flushes_total 1")
}

func TestCollector_WithDispatcher(t *testing.T) {
	c := NewCollector("test")
	d := batcher.NewDispatcher(echoTransport{}, batcher.Options{Recorder: c})

	d.Submit("/a", []byte(`1`))
	d.Submit("/a", []byte(`2`))
	d.Flush(t.Context())

	assert.Equal(t, float64(2), testutil.ToFloat64(c.submitted.WithLabelValues("a")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.dispatches.WithLabelValues("combined", "ok")))
}
