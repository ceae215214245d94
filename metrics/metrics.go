package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Group payment metrics
	PoolsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketpool_pools_created_total",
			Help: "Total number of funding pools created",
		},
	)

	ContributionsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketpool_contributions_created_total",
			Help: "Total number of contributions accepted by intake",
		},
	)

	ContributionsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketpool_contributions_rejected_total",
			Help: "Total number of contributions rejected by intake, by reason",
		},
		[]string{"reason"},
	)

	Settlements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketpool_settlements_total",
			Help: "Total number of settlement notifications applied, by outcome",
		},
		[]string{"outcome"},
	)

	DuplicateSettlements = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketpool_settlements_duplicate_total",
			Help: "Settlement notifications ignored because the contribution was already terminal",
		},
	)

	DataIntegrityErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketpool_data_integrity_errors_total",
			Help: "Settlement notifications referencing unknown pools or contributions",
		},
	)

	PoolsFinalized = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketpool_pools_finalized_total",
			Help: "Total number of pools transitioned to completed",
		},
	)

	TicketsIssued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketpool_tickets_issued_total",
			Help: "Total number of tickets issued from completed pools",
		},
	)

	IssuanceFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketpool_issuance_failures_total",
			Help: "Ticket issuance attempts that failed and are left for the recovery sweep",
		},
	)

	// API metrics
	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ticketpool_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

func init() {
	prometheus.MustRegister(PoolsCreated)
	prometheus.MustRegister(ContributionsCreated)
	prometheus.MustRegister(ContributionsRejected)
	prometheus.MustRegister(Settlements)
	prometheus.MustRegister(DuplicateSettlements)
	prometheus.MustRegister(DataIntegrityErrors)
	prometheus.MustRegister(PoolsFinalized)
	prometheus.MustRegister(TicketsIssued)
	prometheus.MustRegister(IssuanceFailures)
	prometheus.MustRegister(APIRequestDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures elapsed time for a histogram observation
type Timer struct {
	start time.Time
}

// NewTimer starts a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDurationVec records the elapsed seconds on a histogram vec
func (t *Timer) ObserveDurationVec(h *prometheus.HistogramVec, labels ...string) {
	h.WithLabelValues(labels...).Observe(t.Duration().Seconds())
}
