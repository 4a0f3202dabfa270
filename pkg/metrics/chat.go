package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// initChatMetrics initializes chat exchange metrics.
func (m *Manager) initChatMetrics(cfg Config) {
	m.chatExchanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_exchanges_total",
			Help: "Total number of chat exchanges by outcome",
		},
		[]string{"outcome"},
	)

	m.chatTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_tokens_total",
			Help: "Total tokens consumed by chat completions, by direction",
		},
		[]string{"direction"},
	)

	m.chatDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chat_duration_seconds",
			Help:    "Chat completion duration in seconds",
			Buckets: cfg.ChatDurationBuckets,
		},
	)

	m.streamsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_streams_active",
			Help: "Number of chat streams currently open",
		},
	)

	m.registry.MustRegister(m.chatExchanges)
	m.registry.MustRegister(m.chatTokens)
	m.registry.MustRegister(m.chatDuration)
	m.registry.MustRegister(m.streamsActive)
}

// RecordChatExchange records one completed chat exchange.
func (m *Manager) RecordChatExchange(outcome string, duration time.Duration) {
	if !m.enabled {
		return
	}
	m.chatExchanges.WithLabelValues(outcome).Inc()
	m.chatDuration.Observe(duration.Seconds())
}

// RecordChatTokens records token usage reported by the model.
func (m *Manager) RecordChatTokens(promptTokens, completionTokens int) {
	if !m.enabled {
		return
	}
	m.chatTokens.WithLabelValues("prompt").Add(float64(promptTokens))
	m.chatTokens.WithLabelValues("completion").Add(float64(completionTokens))
}

// StreamOpened increments the active stream gauge.
func (m *Manager) StreamOpened() {
	if !m.enabled {
		return
	}
	m.streamsActive.Inc()
}

// StreamClosed decrements the active stream gauge.
func (m *Manager) StreamClosed() {
	if !m.enabled {
		return
	}
	m.streamsActive.Dec()
}
