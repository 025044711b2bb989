// Package metrics holds the notary's prometheus meters.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "notary"

// Registry collects every notary meter plus the go and process collectors.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

// Result labels.
const (
	ResultAccepted = "accepted"
	ResultRejected = "rejected"
	ResultBusy     = "busy"
)

var (
	Notarizations = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notarizations_total",
		Help:      "Notarization submissions by result.",
	}, []string{"result"})

	NotarizationDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "notarization_duration_seconds",
		Help:      "Time to apply one notarization.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
	})

	BalanceChanges = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "balance_changes_total",
		Help:      "Balance changes accepted.",
	})

	ChainTransfers = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chain_transfers_total",
		Help:      "Chain transfers by direction.",
	}, []string{"direction"})

	NotebooksClosed = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notebooks_closed_total",
		Help:      "Notebooks sealed.",
	})

	NotebookCloseDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "notebook_close_duration_seconds",
		Help:      "Time to seal one notebook.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
	})

	NotebookLeaves = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "notebook_leaves",
		Help:      "Changed accounts per sealed notebook.",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
	})

	OpenNotebook = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "open_notebook_number",
		Help:      "Number of the notebook accepting notarizations.",
	})

	FinalizedNotebook = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "finalized_notebook_number",
		Help:      "Highest notebook confirmed final by the base chain.",
	})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// ObserveSince records the seconds elapsed since start.
func ObserveSince(h prometheus.Observer, start time.Time) {
	h.Observe(time.Since(start).Seconds())
}

// Handler serves the registry in the prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
