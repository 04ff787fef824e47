package vectorstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RebuildsTotal counts rebuilds. Labels: backend, result (success, error).
	RebuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragify",
			Subsystem: "vectorstore",
			Name:      "rebuilds_total",
			Help:      "Total number of index rebuilds",
		},
		[]string{"backend", "result"},
	)

	// RebuildDuration tracks how long rebuilds take, embedding included.
	RebuildDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragify",
			Subsystem: "vectorstore",
			Name:      "rebuild_duration_seconds",
			Help:      "Duration of index rebuilds in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"backend"},
	)

	// IndexedDocuments is the document count of the active index.
	IndexedDocuments = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "ragify",
			Subsystem: "vectorstore",
			Name:      "indexed_documents",
			Help:      "Number of documents in the active index",
		},
		[]string{"backend"},
	)

	// SearchesTotal counts searches. Labels: backend, result (hit, empty, error).
	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragify",
			Subsystem: "vectorstore",
			Name:      "searches_total",
			Help:      "Total number of similarity searches",
		},
		[]string{"backend", "result"},
	)

	// SearchDuration tracks search latency.
	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragify",
			Subsystem: "vectorstore",
			Name:      "search_duration_seconds",
			Help:      "Duration of similarity searches in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"backend"},
	)
)

func recordRebuild(backend string, seconds float64, docs int, err error) {
	RebuildDuration.WithLabelValues(backend).Observe(seconds)
	if err != nil {
		RebuildsTotal.WithLabelValues(backend, "error").Inc()
		return
	}
	RebuildsTotal.WithLabelValues(backend, "success").Inc()
	IndexedDocuments.WithLabelValues(backend).Set(float64(docs))
}

func recordSearch(backend string, seconds float64, results int, err error) {
	SearchDuration.WithLabelValues(backend).Observe(seconds)
	switch {
	case err != nil:
		SearchesTotal.WithLabelValues(backend, "error").Inc()
	case results == 0:
		SearchesTotal.WithLabelValues(backend, "empty").Inc()
	default:
		SearchesTotal.WithLabelValues(backend, "hit").Inc()
	}
}
