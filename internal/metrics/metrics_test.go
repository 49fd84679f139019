package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecorder_Counts(t *testing.T) {
	r := New()
	r.RecordOutcome("EUR/USD", "success")
	r.RecordOutcome("EUR/USD", "success")
	r.RecordQuotaWait()

	body := scrape(t, r)
	assert.Contains(t, body, `fxsentinel_fetch_outcomes_total{instrument="EUR/USD",status="success"} 2`)
	assert.Contains(t, body, "fxsentinel_quota_waits_total 1")
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	r.RecordOutcome("EUR/USD", "success")
	r.RecordRunSkipped()
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 404, rec.Code)
}

func TestRecorder_Handler(t *testing.T) {
	r := New()
	r.RecordLastRate("EUR/USD", 1.0842)

	assert.True(t, strings.Contains(scrape(t, r), `fxsentinel_last_rate{instrument="EUR/USD"} 1.0842`))
}

func scrape(t *testing.T, r *Recorder) string {
	t.Helper()
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	return rec.Body.String()
}
