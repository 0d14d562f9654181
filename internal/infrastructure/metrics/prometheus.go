package metrics

import (
	"time"

	"auction-settlement/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "auction_closer"

// Prometheus implements domain.ClosureMetrics.
type Prometheus struct {
	scanned         prometheus.Counter
	scanFailures    prometheus.Counter
	closed          *prometheus.CounterVec
	errors          *prometheus.CounterVec
	inconsistencies *prometheus.CounterVec
	repaired        *prometheus.CounterVec
	notifyFailures  *prometheus.CounterVec
	duration        *prometheus.HistogramVec
}

var _ domain.ClosureMetrics = (*Prometheus)(nil)

// NewPrometheus registers the closing metrics on reg.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	m := &Prometheus{
		scanned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auctions_scanned_total",
			Help:      "Due auctions returned by scans.",
		}),
		scanFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_failures_total",
			Help:      "Scans that failed and aborted their cycle.",
		}),
		closed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auctions_closed_total",
			Help:      "Closures by outcome.",
		}, []string{"outcome"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "closure_errors_total",
			Help:      "Failed closures by stage.",
		}, []string{"stage"}),
		inconsistencies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "closure_inconsistencies_total",
			Help:      "Ended auctions left in an incomplete state, by kind.",
		}, []string{"kind"}),
		repaired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "closure_repairs_total",
			Help:      "Incomplete closures repaired by reconciliation, by kind.",
		}, []string{"kind"}),
		notifyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_failures_total",
			Help:      "Notifications that could not be dispatched, by kind.",
		}, []string{"kind"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "closure_duration_seconds",
			Help:      "Time spent closing one auction.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.scanned,
		m.scanFailures,
		m.closed,
		m.errors,
		m.inconsistencies,
		m.repaired,
		m.notifyFailures,
		m.duration,
	)
	return m
}

func (m *Prometheus) AuctionsScanned(n int) {
	m.scanned.Add(float64(n))
}

func (m *Prometheus) ScanFailed() {
	m.scanFailures.Inc()
}

func (m *Prometheus) AuctionClosed(outcome domain.OutcomeKind, took time.Duration) {
	m.closed.WithLabelValues(string(outcome)).Inc()
	m.duration.WithLabelValues("ok").Observe(took.Seconds())
}

func (m *Prometheus) ClosureFailed(stage string, took time.Duration) {
	m.errors.WithLabelValues(stage).Inc()
	m.duration.WithLabelValues("error").Observe(took.Seconds())
}

func (m *Prometheus) Inconsistency(kind string) {
	m.inconsistencies.WithLabelValues(kind).Inc()
}

func (m *Prometheus) Repaired(kind string) {
	m.repaired.WithLabelValues(kind).Inc()
}

func (m *Prometheus) NotificationFailed(kind domain.NotificationKind) {
	m.notifyFailures.WithLabelValues(string(kind)).Inc()
}
