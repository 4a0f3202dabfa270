package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// initRetrievalMetrics initializes memory recall metrics.
func (m *Manager) initRetrievalMetrics(cfg Config) {
	m.retrievalRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retrieval_requests_total",
			Help: "Total number of hybrid recall requests by outcome",
		},
		[]string{"outcome"},
	)

	m.retrievalDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "retrieval_duration_seconds",
			Help:    "Hybrid recall duration in seconds",
			Buckets: cfg.RetrievalDurationBuckets,
		},
	)

	m.retrievalResults = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "retrieval_results",
			Help:    "Number of memories returned per recall, by source leg",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"source"},
	)

	m.registry.MustRegister(m.retrievalRequests)
	m.registry.MustRegister(m.retrievalDuration)
	m.registry.MustRegister(m.retrievalResults)
}

// RecordRetrieval records one hybrid recall.
func (m *Manager) RecordRetrieval(outcome string, duration time.Duration) {
	if !m.enabled {
		return
	}
	m.retrievalRequests.WithLabelValues(outcome).Inc()
	m.retrievalDuration.Observe(duration.Seconds())
}

// RecordRetrievalResults records how many memories a leg contributed.
func (m *Manager) RecordRetrievalResults(source string, count int) {
	if !m.enabled {
		return
	}
	m.retrievalResults.WithLabelValues(source).Observe(float64(count))
}

// initEmbeddingMetrics initializes embedding metrics.
func (m *Manager) initEmbeddingMetrics(cfg Config) {
	m.embeddingRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "embedding_requests_total",
			Help: "Total number of embedding requests by result (hit, miss, error)",
		},
		[]string{"result"},
	)

	m.embeddingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "embedding_duration_seconds",
			Help:    "Embedding computation duration in seconds",
			Buckets: cfg.EmbeddingDurationBuckets,
		},
	)

	m.registry.MustRegister(m.embeddingRequests)
	m.registry.MustRegister(m.embeddingDuration)
}

// RecordEmbedding records one embedding request.
func (m *Manager) RecordEmbedding(result string, duration time.Duration) {
	if !m.enabled {
		return
	}
	m.embeddingRequests.WithLabelValues(result).Inc()
	m.embeddingDuration.Observe(duration.Seconds())
}
