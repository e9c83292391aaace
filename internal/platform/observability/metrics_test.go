package observability

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()

	m.IncVerdict("safe")
	m.IncVerdict("safe")
	m.IncVerdict("risky")
	m.IncRejection("gatekeeper")
	m.IncUpstreamAttempt("overloaded")
	m.IncRateLimited()
	m.IncRiskyFood("")
	m.IncRiskyFood("alcohol")
	m.ObserveHTTP(http.MethodPost, "/api/analyze", http.StatusOK, 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.verdicts.WithLabelValues("safe")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.verdicts.WithLabelValues("risky")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejections.WithLabelValues("gatekeeper")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.upstreamAttempts.WithLabelValues("overloaded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rateLimited))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.riskyFoods.WithLabelValues("other")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.riskyFoods.WithLabelValues("alcohol")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("POST", "/api/analyze", "200")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncVerdict("safe")
		m.IncRejection("payload")
		m.IncUpstreamAttempt("ok")
		m.IncRateLimited()
		m.IncRiskyFood("raw_fish")
		m.ObserveHTTP("GET", "", 200, time.Millisecond)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.IncVerdict("failed")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `pregnancy_food_checker_verdicts_total{outcome="failed"} 1`))
}

func TestStartSpan_Disabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{}, nil)
	require.NoError(t, err)
	defer shutdown(context.Background())

	ctx, end := StartSpan(context.Background(), "test", "noop")
	assert.NotNil(t, ctx)
	assert.NotPanics(t, func() { end(nil) })
	assert.False(t, Enabled())
}
