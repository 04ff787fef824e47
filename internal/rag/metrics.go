package rag

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AnswersTotal counts Answer calls. Labels: result (answered,
	// no_results, error).
	AnswersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragify",
			Subsystem: "rag",
			Name:      "answers_total",
			Help:      "Total number of questions answered, by outcome",
		},
		[]string{"result"},
	)

	// AnswerDuration tracks end-to-end answer latency.
	AnswerDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ragify",
			Subsystem: "rag",
			Name:      "answer_duration_seconds",
			Help:      "Duration of Answer calls in seconds, retrieval and generation included",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	// IndexRunsTotal counts Index calls. Labels: result (success, error).
	IndexRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragify",
			Subsystem: "rag",
			Name:      "index_runs_total",
			Help:      "Total number of indexing runs, by outcome",
		},
		[]string{"result"},
	)

	// IndexedChunks is the chunk count of the last successful Index call.
	IndexedChunks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ragify",
			Subsystem: "rag",
			Name:      "indexed_chunks",
			Help:      "Number of chunks written by the last successful indexing run",
		},
	)
)
