// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Composer metrics
	OperationsComposed *prometheus.CounterVec
	ComposeErrors      *prometheus.CounterVec
	ATACreateDecisions *prometheus.CounterVec

	// Submission metrics
	TransactionsSubmitted *prometheus.CounterVec
	ConfirmationLatency   prometheus.Histogram

	// Aggregator metrics
	PositionsListed      prometheus.Histogram
	StakeAccountsSkipped *prometheus.CounterVec
	EnrichmentFailures   prometheus.Counter

	// Protocol metrics
	SnapshotFetches  *prometheus.CounterVec
	ExchangeRate     prometheus.Gauge
	TotalValueLocked prometheus.Gauge
	StSolSupply      prometheus.Gauge

	// Latency metrics
	RPCCallLatency *prometheus.HistogramVec
	RPCErrors      *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// HTTP API metrics
	HTTPRequests     *prometheus.CounterVec
	HTTPRateLimited  prometheus.Counter
	LastRateRecorded prometheus.Gauge
	RecorderFailures prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solido_stake"
	}

	return &Metrics{
		// Composer metrics
		OperationsComposed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "composer",
			Name:      "operations_composed_total",
			Help:      "Total number of transactions composed by operation kind",
		}, []string{"kind"}),
		ComposeErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "composer",
			Name:      "errors_total",
			Help:      "Total number of composition failures by operation kind",
		}, []string{"kind"}),
		ATACreateDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "composer",
			Name:      "ata_probe_results_total",
			Help:      "Receipt token account probe results",
		}, []string{"result"}),

		// Submission metrics
		TransactionsSubmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wallet",
			Name:      "transactions_submitted_total",
			Help:      "Total number of transactions broadcast by status",
		}, []string{"kind", "status"}),
		ConfirmationLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "wallet",
			Name:      "confirmation_latency_seconds",
			Help:      "Time from broadcast to confirmation in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}),

		// Aggregator metrics
		PositionsListed: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "positions",
			Name:      "accounts_per_listing",
			Help:      "Number of stake claim accounts returned per listing",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		}),
		StakeAccountsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "positions",
			Name:      "accounts_skipped_total",
			Help:      "Stake accounts excluded from listings by reason",
		}, []string{"reason"}),
		EnrichmentFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "positions",
			Name:      "enrichment_failures_total",
			Help:      "Total number of listings failed by a per-account lookup",
		}),

		// Protocol metrics
		SnapshotFetches: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solido",
			Name:      "snapshot_fetches_total",
			Help:      "Total number of protocol snapshot reads by status",
		}, []string{"status"}),
		ExchangeRate: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "solido",
			Name:      "exchange_rate",
			Help:      "SOL per stSOL from the latest snapshot",
		}),
		TotalValueLocked: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "solido",
			Name:      "total_value_locked_lamports",
			Help:      "Total value locked from the latest snapshot",
		}),
		StSolSupply: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "solido",
			Name:      "stsol_supply",
			Help:      "stSOL mint supply in smallest units from the latest snapshot",
		}),

		// Latency metrics
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_errors_total",
			Help:      "Total number of failed Solana RPC calls",
		}, []string{"method"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// HTTP API metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of API requests by route and status code",
		}, []string{"route", "code"}),
		HTTPRateLimited: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "rate_limited_total",
			Help:      "Total number of API requests rejected by the rate limiter",
		}),
		LastRateRecorded: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "recorder",
			Name:      "last_success_timestamp",
			Help:      "Unix timestamp of the last recorded exchange rate",
		}),
		RecorderFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recorder",
			Name:      "failures_total",
			Help:      "Total number of failed recorder ticks",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordComposed records a composition attempt.
func RecordComposed(kind string, err error) {
	if err != nil {
		DefaultMetrics.ComposeErrors.WithLabelValues(kind).Inc()
		return
	}
	DefaultMetrics.OperationsComposed.WithLabelValues(kind).Inc()
}

// RecordProbe records the outcome of a receipt token account probe.
func RecordProbe(result string) {
	DefaultMetrics.ATACreateDecisions.WithLabelValues(result).Inc()
}

// RecordSubmitted records a broadcast transaction outcome.
func RecordSubmitted(kind, status string) {
	DefaultMetrics.TransactionsSubmitted.WithLabelValues(kind, status).Inc()
}

// RecordConfirmation records confirmation latency.
func RecordConfirmation(seconds float64) {
	DefaultMetrics.ConfirmationLatency.Observe(seconds)
}

// RecordPositions records the size of a position listing.
func RecordPositions(n int) {
	DefaultMetrics.PositionsListed.Observe(float64(n))
}

// RecordSkippedStakeAccount records an excluded stake account.
func RecordSkippedStakeAccount(reason string) {
	DefaultMetrics.StakeAccountsSkipped.WithLabelValues(reason).Inc()
}

// RecordEnrichmentFailure increments the enrichment failure counter.
func RecordEnrichmentFailure() {
	DefaultMetrics.EnrichmentFailures.Inc()
}

// RecordSnapshot records a snapshot read.
func RecordSnapshot(err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	DefaultMetrics.SnapshotFetches.WithLabelValues(status).Inc()
}

// UpdateProtocolStats updates the protocol gauges.
func UpdateProtocolStats(rate float64, tvl, supply uint64) {
	DefaultMetrics.ExchangeRate.Set(rate)
	DefaultMetrics.TotalValueLocked.Set(float64(tvl))
	DefaultMetrics.StSolSupply.Set(float64(supply))
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64, err error) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
	if err != nil {
		DefaultMetrics.RPCErrors.WithLabelValues(method).Inc()
	}
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordHTTPRequest records a served API request.
func RecordHTTPRequest(route string, code int) {
	DefaultMetrics.HTTPRequests.WithLabelValues(route, statusLabel(code)).Inc()
}

// RecordRateLimited increments the rate limited counter.
func RecordRateLimited() {
	DefaultMetrics.HTTPRateLimited.Inc()
}

// RecordRecorderTick records a recorder tick outcome.
func RecordRecorderTick(unixSeconds int64, err error) {
	if err != nil {
		DefaultMetrics.RecorderFailures.Inc()
		return
	}
	DefaultMetrics.LastRateRecorded.Set(float64(unixSeconds))
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
