package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	DropMalformed = "malformed"
	DropOrphan    = "orphan"
	DropOverflow  = "overflow"
	DropStale     = "stale"
	DropCleared   = "cleared"
)

// Metrics holds the Prometheus collectors of the feed engine
type Metrics struct {
	EventsApplied *prometheus.CounterVec
	EventsDropped *prometheus.CounterVec
	QueueDepth    prometheus.Gauge
	FeedResets    prometheus.Counter
	Rollbacks     *prometheus.CounterVec
	ActionErrors  *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "feedsync",
			Name:      "events_applied_total",
			Help:      "Feed events merged into the store, by kind.",
		}, []string{"kind"}),
		EventsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "feedsync",
			Name:      "events_dropped_total",
			Help:      "Feed events discarded before or during merge, by reason.",
		}, []string{"reason"}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "feedsync",
			Name:      "queue_depth",
			Help:      "Remote events waiting to be applied.",
		}),
		FeedResets: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "feedsync",
			Name:      "feed_resets_total",
			Help:      "Full feed replacements after a fetch.",
		}),
		Rollbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "feedsync",
			Name:      "optimistic_rollbacks_total",
			Help:      "Optimistic mutations undone after the server refused them, by action.",
		}, []string{"action"}),
		ActionErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "feedsync",
			Name:      "action_errors_total",
			Help:      "User actions that failed at the server, by action.",
		}, []string{"action"}),
	}
}
