// Package metrics provides Prometheus instrumentation for the timer engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all metric instances for the timer engine.
// A nil *Registry is valid and records nothing.
type Registry struct {
	TimersCreated    prometheus.Counter
	TimersRemoved    prometheus.Counter
	TimersFired      prometheus.Counter
	TimersLive       prometheus.Gauge
	CallbackFailures prometheus.Counter
	RecordsReplayed  prometheus.Counter
	LinesSkipped     prometheus.Counter
	FireLag          prometheus.Histogram
}

// NewRegistry creates a metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		TimersCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "timervault",
			Name:      "timers_created_total",
			Help:      "Total number of timers created",
		}),
		TimersRemoved: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "timervault",
			Name:      "timers_removed_total",
			Help:      "Total number of timers explicitly removed before firing",
		}),
		TimersFired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "timervault",
			Name:      "timers_fired_total",
			Help:      "Total number of timers fired",
		}),
		TimersLive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "timervault",
			Name:      "timers_live",
			Help:      "Current number of live (pending) timers",
		}),
		CallbackFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "timervault",
			Name:      "callback_failures_total",
			Help:      "Total number of expiration callbacks that panicked",
		}),
		RecordsReplayed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "timervault",
			Name:      "oplog_records_replayed_total",
			Help:      "Operation log records replayed during recovery",
		}),
		LinesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "timervault",
			Name:      "oplog_lines_skipped_total",
			Help:      "Malformed operation log lines skipped during recovery",
		}),
		FireLag: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "timervault",
			Name:      "fire_lag_seconds",
			Help:      "Wall-clock lateness between a timer's deadline and its firing",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 30, 300},
		}),
	}
}

func (r *Registry) IncCreated() {
	if r != nil {
		r.TimersCreated.Inc()
	}
}

func (r *Registry) IncRemoved() {
	if r != nil {
		r.TimersRemoved.Inc()
	}
}

func (r *Registry) IncFired(lagSeconds float64) {
	if r != nil {
		r.TimersFired.Inc()
		r.FireLag.Observe(lagSeconds)
	}
}

func (r *Registry) IncCallbackFailure() {
	if r != nil {
		r.CallbackFailures.Inc()
	}
}

func (r *Registry) SetLive(n int) {
	if r != nil {
		r.TimersLive.Set(float64(n))
	}
}

func (r *Registry) AddReplayed(records, skipped int) {
	if r != nil {
		r.RecordsReplayed.Add(float64(records))
		r.LinesSkipped.Add(float64(skipped))
	}
}
