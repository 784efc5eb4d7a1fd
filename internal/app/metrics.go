package app

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dshills/rewind/internal/engine/history"
)

const metricsNamespace = "rewind"

// Metrics holds the Prometheus instruments for timelines and scripts.
// It implements history.Observer.
type Metrics struct {
	// CommitsTotal counts committed transactions.
	CommitsTotal prometheus.Counter

	// CommitCost observes the accumulated cost of each transaction.
	CommitCost prometheus.Histogram

	// CheckpointsTotal counts checkpoints taken on commit.
	CheckpointsTotal prometheus.Counter

	// NavigationsTotal counts undo and redo landings.
	// Labels: direction (undo, redo)
	NavigationsTotal *prometheus.CounterVec

	// ReplayedTransactions observes how many transactions a navigation replayed.
	ReplayedTransactions prometheus.Histogram

	// TruncatedTotal counts transactions dropped by branching.
	TruncatedTotal prometheus.Counter

	// ScriptsTotal counts script runs.
	// Labels: status (success, error, timeout, limit)
	ScriptsTotal *prometheus.CounterVec

	// ScriptDuration observes script wall time in seconds.
	ScriptDuration prometheus.Histogram
}

// NewMetrics registers the instruments with reg. A nil reg uses the
// default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		CommitsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "history",
			Name:      "commits_total",
			Help:      "Transactions committed to a timeline.",
		}),
		CommitCost: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "history",
			Name:      "commit_cost",
			Help:      "Accumulated command cost per committed transaction.",
			Buckets:   []float64{1, 2, 5, 10, 50, 100, 1000, 5000},
		}),
		CheckpointsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "history",
			Name:      "checkpoints_total",
			Help:      "Checkpoints taken after the cost threshold was crossed.",
		}),
		NavigationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "history",
			Name:      "navigations_total",
			Help:      "Undo and redo operations that changed position.",
		}, []string{"direction"}),
		ReplayedTransactions: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "history",
			Name:      "replayed_transactions",
			Help:      "Transactions replayed to reach a new position.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		TruncatedTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "history",
			Name:      "truncated_transactions_total",
			Help:      "Forward transactions discarded when a new branch was recorded.",
		}),
		ScriptsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "script",
			Name:      "runs_total",
			Help:      "Lua script runs by outcome.",
		}, []string{"status"}),
		ScriptDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "script",
			Name:      "duration_seconds",
			Help:      "Lua script wall time.",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

// OnCommit implements history.Observer.
func (m *Metrics) OnCommit(tx *history.Transaction) {
	m.CommitsTotal.Inc()
	m.CommitCost.Observe(float64(tx.Cost))
}

// OnCheckpoint implements history.Observer.
func (m *Metrics) OnCheckpoint(*history.Checkpoint) {
	m.CheckpointsTotal.Inc()
}

// OnNavigate implements history.Observer.
func (m *Metrics) OnNavigate(from, to, replayed int) {
	direction := "redo"
	if to < from {
		direction = "undo"
	}
	m.NavigationsTotal.WithLabelValues(direction).Inc()
	m.ReplayedTransactions.Observe(float64(replayed))
}

// OnTruncate implements history.Observer.
func (m *Metrics) OnTruncate(dropped int) {
	m.TruncatedTotal.Add(float64(dropped))
}

func (m *Metrics) observeScript(status string, d time.Duration) {
	m.ScriptsTotal.WithLabelValues(status).Inc()
	m.ScriptDuration.Observe(d.Seconds())
}
