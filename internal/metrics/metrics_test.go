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

func TestMetrics_Fetch(t *testing.T) {
	m := New()

	m.ObserveFetch("yahoo", time.Now(), nil)
	m.ObserveFetch("yahoo", time.Now(), errors.New("boom"))
	m.CountFetchError("wiki")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.fetchRequests.WithLabelValues("yahoo")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fetchErrors.WithLabelValues("yahoo")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fetchErrors.WithLabelValues("wiki")))
}

func TestMetrics_SymbolsAndExports(t *testing.T) {
	m := New()

	m.CountSymbol(nil)
	m.CountSymbol(nil)
	m.CountSymbol(errors.New("boom"))
	m.CountExport(nil)
	m.CountCache("page", true)
	m.CountCache("page", false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.symbolsFetched))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.symbolsFailed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.exportsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheHits.WithLabelValues("page")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheMisses.WithLabelValues("page")))
	assert.Greater(t, testutil.ToFloat64(m.lastExport), 0.0)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveFetch("yahoo", time.Now(), nil)
		m.CountFetchError("yahoo")
		m.CountCache("page", true)
		m.CountSymbol(nil)
		m.CountExport(nil)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.CountSymbol(nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sp500_symbols_fetched_total 1")
}
