// Package metrics exposes run progress as Prometheus collectors.
package metrics

import (
	"github.com/entrhq/coursewatch/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "coursewatch"

// Metrics exposes Prometheus collectors that report watch-loop activity. It
// consumes run events as a types.Sink.
type Metrics struct {
	targets          *prometheus.CounterVec
	sessionChecks    *prometheus.CounterVec
	sessionRefreshes prometheus.Counter
	resumes          prometheus.Counter
	ticks            prometheus.Counter
	runs             *prometheus.CounterVec
	completed        prometheus.Gauge
	total            prometheus.Gauge
}

// MustNewMetrics constructs and registers the collectors. Registration errors
// panic, mirroring promauto.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		targets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "targets_total",
			Help:      "Targets processed, by result (finished or skipped).",
		}, []string{"result"}),
		sessionChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "checks_total",
			Help:      "Session validity probes, by result.",
		}, []string{"result"}),
		sessionRefreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "refreshes_total",
			Help:      "Times the extend-session control was pressed and credentials re-saved.",
		}),
		resumes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "playback",
			Name:      "resumes_total",
			Help:      "Times paused playback was resumed.",
		}),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "playback",
			Name:      "poll_ticks_total",
			Help:      "Playback poll ticks served.",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished runs, by stop classification.",
		}, []string{"stop"}),
		completed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_targets_completed",
			Help:      "Targets completed in the current run.",
		}),
		total: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_targets",
			Help:      "Targets queued in the current run.",
		}),
	}

	reg.MustRegister(m.targets, m.sessionChecks, m.sessionRefreshes, m.resumes, m.ticks, m.runs, m.completed, m.total)
	return m
}

// Emit implements types.Sink.
func (m *Metrics) Emit(e types.Event) {
	if m == nil {
		return
	}

	switch e.Type {
	case types.EventTypeRunStarted:
		m.completed.Set(0)
		if e.Run != nil {
			m.total.Set(float64(e.Run.Total))
		}
	case types.EventTypeTargetFinished:
		m.targets.WithLabelValues("finished").Inc()
		m.completed.Inc()
	case types.EventTypeTargetSkipped:
		m.targets.WithLabelValues("skipped").Inc()
		m.completed.Inc()
	case types.EventTypePlaybackProgress:
		m.ticks.Inc()
	case types.EventTypePlaybackResumed:
		m.resumes.Inc()
	case types.EventTypeSessionCheck:
		m.sessionChecks.WithLabelValues(checkResult(e.Session)).Inc()
	case types.EventTypeSessionRefreshed:
		m.sessionRefreshes.Inc()
	case types.EventTypeRunFinished:
		if e.Run != nil {
			m.runs.WithLabelValues(e.Run.Stop).Inc()
			m.completed.Set(float64(e.Run.Completed))
		}
	}
}

func checkResult(s *types.SessionStatus) string {
	switch {
	case s == nil:
		return "unknown"
	case s.ProbeFailed:
		return "probe_failed"
	case s.Valid:
		return "valid"
	default:
		return "invalid"
	}
}
