package metrics

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerOperations counts ledger mutations by operation and outcome
// (ok, invalid_amount, insufficient_funds, not_found, timeout, unavailable, error)
var LedgerOperations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "accountmanager_ledger_operations_total",
		Help: "Total number of ledger operations by outcome",
	},
	[]string{"operation", "status"},
)

// LedgerOperationDuration records the end to end latency of a ledger operation,
// including lock waits and retries
var LedgerOperationDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "accountmanager_ledger_operation_duration_seconds",
		Help:    "Latency in seconds of ledger operations",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"operation"},
)

// LedgerRetries counts unit of work attempts that were retried after a conflict
var LedgerRetries = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "accountmanager_ledger_retries_total",
		Help: "Total number of retried ledger transactions",
	},
	[]string{"operation"},
)

// LockWaitDuration records how long callers waited for account locks
var LockWaitDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "accountmanager_lock_wait_seconds",
		Help:    "Time spent waiting for account locks",
		Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
	},
	[]string{"locker"},
)

// BalanceCacheRequests counts balance cache lookups by result (hit, miss, error, stale)
var BalanceCacheRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "accountmanager_balance_cache_requests_total",
		Help: "Balance cache lookups by result",
	},
	[]string{"result"},
)

// HTTP metrics
var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accountmanager_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "accountmanager_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)
)

// Database connection pool metrics
var (
	DBOpenConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "accountmanager_db_open_connections",
			Help: "Number of open connections in the DB pool",
		},
		[]string{"db"},
	)

	DBIdleConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "accountmanager_db_idle_connections",
			Help: "Number of idle connections in the DB pool",
		},
		[]string{"db"},
	)

	DBInUseConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "accountmanager_db_in_use_connections",
			Help: "Number of in-use connections in the DB pool",
		},
		[]string{"db"},
	)
)

func init() {
	prometheus.MustRegister(LedgerOperations, LedgerOperationDuration, LedgerRetries)
	prometheus.MustRegister(LockWaitDuration, BalanceCacheRequests)
	prometheus.MustRegister(HTTPRequestsTotal, HTTPRequestDuration)
	prometheus.MustRegister(DBOpenConns, DBIdleConns, DBInUseConns)
}

// RecordPoolStats copies database/sql pool statistics into the pool gauges.
func RecordPoolStats(name string, stats sql.DBStats) {
	DBOpenConns.WithLabelValues(name).Set(float64(stats.OpenConnections))
	DBIdleConns.WithLabelValues(name).Set(float64(stats.Idle))
	DBInUseConns.WithLabelValues(name).Set(float64(stats.InUse))
}
