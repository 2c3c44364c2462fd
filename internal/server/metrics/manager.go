// Package metrics holds the server's Prometheus collectors and the admin
// HTTP endpoint that exposes them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	Namespace = "notesync"
	Subsystem = "server"
)

type Manager struct {
	// counters
	CounterRequests         *prometheus.CounterVec
	CounterUpserts          *prometheus.CounterVec
	CounterEventsPublished  prometheus.Counter
	CounterEventsDropped    prometheus.Counter
	CounterTombstonesPurged prometheus.Counter
	CounterExports          prometheus.Counter

	// gauges
	GaugeSubscribers prometheus.Gauge
	GaugeLifeSignal  prometheus.Gauge

	// histograms
	HistRequestDuration *prometheus.HistogramVec
}

func NewTestManager() *Manager {
	return NewManager(Namespace, "test_server", prometheus.NewRegistry())
}

func NewTestManagerAndRegistry() (*Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewManager(Namespace, "test_server", reg), reg
}

func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	return &Manager{
		CounterRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rpc_requests_total",
			Help:      "The total number of handled RPCs",
		}, []string{"method", "code"}),
		CounterUpserts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "note_upserts_total",
			Help:      "Note upserts by outcome",
		}, []string{"result"}),
		CounterEventsPublished: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "change_events_published_total",
			Help:      "Change events delivered to subscribers",
		}),
		CounterEventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "change_events_dropped_total",
			Help:      "Change events dropped because a subscriber was too slow",
		}),
		CounterTombstonesPurged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tombstones_purged_total",
			Help:      "Deleted notes removed for good",
		}),
		CounterExports: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "exports_total",
			Help:      "Note backups written to object storage",
		}),
		GaugeSubscribers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "subscribers",
			Help:      "Open change-feed streams",
		}),
		GaugeLifeSignal: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "life_signal",
			Help:      "Shows whether the service is alive",
		}),
		HistRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rpc_duration_seconds",
			Help:      "Duration of unary RPCs in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"method"}),
	}
}

// UpsertApplied and UpsertStale label the CounterUpserts outcomes.
const (
	UpsertApplied = "applied"
	UpsertStale   = "stale"
)
