// Package telemetry holds the prometheus metrics of the service.
package telemetry

import (
	"database/sql"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	dbQueriesTotal  *prometheus.CounterVec
	dbQueryDuration *prometheus.HistogramVec

	ledgerOperationsTotal *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with the registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_http_requests_total",
				Help: "Total HTTP requests by method, route and status code.",
			},
			[]string{"method", "route", "code"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds by method and route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		dbQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_db_queries_total",
				Help: "Total repository calls by method and status.",
			},
			[]string{"method", "status"},
		),
		dbQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_db_query_duration_seconds",
				Help:    "Repository call duration in seconds by method and status.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "status"},
		),
		ledgerOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_balance_operations_total",
				Help: "Total deposits and withdrawals by kind, operation and outcome.",
			},
			[]string{"kind", "operation", "outcome"},
		),
	}

	registerer.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.dbQueriesTotal,
		m.dbQueryDuration,
		m.ledgerOperationsTotal,
	)

	return m
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route, code string, duration time.Duration) {
	if m == nil {
		return
	}

	m.httpRequestsTotal.WithLabelValues(method, route, code).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveDB records one repository call.
func (m *Metrics) ObserveDB(method, status string, duration time.Duration) {
	if m == nil {
		return
	}

	m.dbQueriesTotal.WithLabelValues(method, status).Inc()
	m.dbQueryDuration.WithLabelValues(method, status).Observe(duration.Seconds())
}

// ObserveLedger records the outcome of a deposit or withdrawal.
func (m *Metrics) ObserveLedger(kind, operation, outcome string) {
	if m == nil {
		return
	}

	m.ledgerOperationsTotal.WithLabelValues(kind, operation, outcome).Inc()
}

// RegisterDBPoolMetrics exposes the connection pool statistics of db.
func RegisterDBPoolMetrics(db *sql.DB, registerer prometheus.Registerer) error {
	if db == nil {
		return errors.New("db is nil")
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	collectors := []prometheus.Collector{
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "ledger_db_pool_open_connections",
				Help: "Open database connections.",
			},
			func() float64 { return float64(db.Stats().OpenConnections) },
		),
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "ledger_db_pool_in_use_connections",
				Help: "In-use database connections.",
			},
			func() float64 { return float64(db.Stats().InUse) },
		),
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "ledger_db_pool_idle_connections",
				Help: "Idle database connections.",
			},
			func() float64 { return float64(db.Stats().Idle) },
		),
		prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Name: "ledger_db_pool_wait_count_total",
				Help: "Total number of waits for a free connection.",
			},
			func() float64 { return float64(db.Stats().WaitCount) },
		),
	}

	for _, c := range collectors {
		if err := registerer.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return err
		}
	}

	return nil
}
