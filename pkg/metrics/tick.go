package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// initTickMetrics initializes background tick loop metrics.
func (m *Manager) initTickMetrics(cfg Config) {
	m.tickRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tick_runs_total",
			Help: "Total number of scheduler ticks by outcome",
		},
		[]string{"outcome"},
	)

	m.tickDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tick_step_duration_seconds",
			Help:    "Duration of individual tick steps in seconds",
			Buckets: cfg.TickDurationBuckets,
		},
		[]string{"step"},
	)

	m.dreams = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dreams_total",
			Help: "Total number of dream cycles completed",
		},
	)

	m.reflections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reflections_total",
			Help: "Total number of daily reflections completed",
		},
	)

	m.registry.MustRegister(m.tickRuns)
	m.registry.MustRegister(m.tickDuration)
	m.registry.MustRegister(m.dreams)
	m.registry.MustRegister(m.reflections)
}

// RecordTick records one scheduler tick.
func (m *Manager) RecordTick(outcome string) {
	if !m.enabled {
		return
	}
	m.tickRuns.WithLabelValues(outcome).Inc()
}

// RecordTickStep records the duration of one tick step.
func (m *Manager) RecordTickStep(step string, duration time.Duration) {
	if !m.enabled {
		return
	}
	m.tickDuration.WithLabelValues(step).Observe(duration.Seconds())
}

// RecordDream records a completed dream cycle.
func (m *Manager) RecordDream() {
	if !m.enabled {
		return
	}
	m.dreams.Inc()
}

// RecordReflection records a completed daily reflection.
func (m *Manager) RecordReflection() {
	if !m.enabled {
		return
	}
	m.reflections.Inc()
}
