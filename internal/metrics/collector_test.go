package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollectorRecords(t *testing.T) {
	c := NewCollector("daytrail")

	c.RecordSmartGuessLookup(true)
	c.RecordSmartGuessLookup(false)
	c.RecordSmartGuessLookup(false)
	c.RecordSmartGuessesPurged(4)
	c.RecordPipelineRun("success", 20*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.SmartGuessLookups.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.SmartGuessLookups.WithLabelValues("miss")))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.SmartGuessesPurged))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.PipelineRuns.WithLabelValues("success")))
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordHTTPRequest("GET", "/", "200", time.Millisecond)
		c.RecordPipelineRun("failed", time.Second)
		c.RecordTimeSlotPersisted()
		c.RecordEventIngested("location")
		c.RecordSmartGuessLookup(true)
		c.RecordSmartGuessEviction()
		c.RecordSmartGuessesPurged(1)
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := NewCollector("daytrail")
	c.RecordTimeSlotPersisted()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "daytrail_time_slots_persisted_total 1"))
}
