// Package metrics counts what an ingestion run did, for export in the
// Prometheus text format.
//
// A nil *Recorder is valid and records nothing, so components take one
// unconditionally.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "docingest"

// Item outcomes.
const (
	OutcomeProcessed = "processed"
	OutcomeCached    = "cached"
	OutcomeError     = "error"
	OutcomeTooShort  = "too_short"
	OutcomeUnchanged = "unchanged"
)

// Shard and fetch outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Recorder holds the run's counters in a private registry.
type Recorder struct {
	registry      *prometheus.Registry
	items         *prometheus.CounterVec
	chunks        *prometheus.CounterVec
	shards        *prometheus.CounterVec
	fetchAttempts *prometheus.CounterVec
	indexDocs     prometheus.Gauge
}

// NewRecorder creates a recorder with its own registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		items: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "Discovered items by source and outcome.",
		}, []string{"source", "outcome"}),
		chunks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_upserted_total",
			Help:      "Chunk documents written to the index.",
		}, []string{"source"}),
		shards: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shards_total",
			Help:      "Shard files handed to workers by outcome.",
		}, []string{"outcome"}),
		fetchAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_attempts_total",
			Help:      "HTTP fetch attempts by outcome, retries included.",
		}, []string{"outcome"}),
		indexDocs: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_documents",
			Help:      "Documents in the index collection at the end of the run.",
		}),
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Items adds n items with the given outcome.
func (r *Recorder) Items(source, outcome string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.items.WithLabelValues(source, outcome).Add(float64(n))
}

// ChunksUpserted adds n upserted chunks.
func (r *Recorder) ChunksUpserted(source string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.chunks.WithLabelValues(source).Add(float64(n))
}

// Shard records one shard outcome.
func (r *Recorder) Shard(ok bool) {
	if r == nil {
		return
	}
	r.shards.WithLabelValues(outcome(ok)).Inc()
}

// FetchAttempt records one HTTP attempt. Its signature matches
// fetch.WithAttemptObserver.
func (r *Recorder) FetchAttempt(ok bool) {
	if r == nil {
		return
	}
	r.fetchAttempts.WithLabelValues(outcome(ok)).Inc()
}

// IndexDocuments sets the index size gauge.
func (r *Recorder) IndexDocuments(n int) {
	if r == nil {
		return
	}
	r.indexDocs.Set(float64(n))
}

// WriteTextfile writes every metric to path in the text exposition format,
// replacing the file atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}

func outcome(ok bool) string {
	if ok {
		return OutcomeSuccess
	}
	return OutcomeFailure
}
