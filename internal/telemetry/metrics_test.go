package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	require.NotPanics(t, func() {
		m.ObserveHTTP("GET", "/individuals", "200", time.Millisecond)
		m.ObserveDB("individuals/list_all", "ok", time.Millisecond)
		m.ObserveLedger("individuals", "deposit", "ok")
	})
}

func TestObserve(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveLedger("corporates", "withdraw", "insufficient_funds")
	m.ObserveLedger("corporates", "withdraw", "insufficient_funds")
	m.ObserveDB("corporates/withdraw", "ok", time.Millisecond)
	m.ObserveHTTP("POST", "/corporates/:id/withdraw", "422", time.Millisecond)

	require.Equal(t, 2.0, testutil.ToFloat64(
		m.ledgerOperationsTotal.WithLabelValues("corporates", "withdraw", "insufficient_funds")))
	require.Equal(t, 1.0, testutil.ToFloat64(
		m.dbQueriesTotal.WithLabelValues("corporates/withdraw", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(
		m.httpRequestsTotal.WithLabelValues("POST", "/corporates/:id/withdraw", "422")))
}

func TestRegisterDBPoolMetricsNilDB(t *testing.T) {
	require.Error(t, RegisterDBPoolMetrics(nil, prometheus.NewRegistry()))
}
