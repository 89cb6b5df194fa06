package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "retailpulse_events_ingested_total",
		Help: "Total number of sale events appended to the stream.",
	})

	EventsDuplicate = promauto.NewCounter(prometheus.CounterOpts{
		Name: "retailpulse_events_duplicate_total",
		Help: "Total number of sale events rejected as duplicates on ingest.",
	})

	EventsAggregated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "retailpulse_events_aggregated_total",
		Help: "Total number of sale events folded into feature snapshots.",
	})

	EventsDeduplicated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "retailpulse_events_deduplicated_total",
		Help: "Total number of redelivered events skipped by the dedup window.",
	})

	EventsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "retailpulse_events_skipped_total",
		Help: "Total number of malformed events skipped during aggregation.",
	})

	AggregationCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "retailpulse_aggregation_cycles_total",
		Help: "Total number of aggregation cycles, labelled by outcome.",
	}, []string{"status"})

	AggregationCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "retailpulse_aggregation_cycle_duration_ms",
		Help:    "End-to-end aggregation cycle latency in milliseconds.",
		Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	})

	TrainingRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "retailpulse_training_runs_total",
		Help: "Total number of training runs, labelled by outcome.",
	}, []string{"status"})

	ModelPromotions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "retailpulse_model_promotions_total",
		Help: "Total number of candidate models promoted to active.",
	})

	AnalystQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "retailpulse_analyst_queries_total",
		Help: "Total number of analyst queries, labelled by outcome.",
	}, []string{"status"})

	RecordsIndexed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "retailpulse_records_indexed_total",
		Help: "Total number of sale records embedded into the semantic index.",
	})
)
