package scheduler

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// metrics collects the per-scheduler Prometheus series. Every series is
// labeled with the owning scheduler's id so a fleet of schedulers can be
// scraped from one registry without series collisions.
type metrics struct {
	sessionCount    prometheus.Gauge
	miscQueueDepth  prometheus.Gauge
	pendingInits    prometheus.Gauge
	validatorBudget prometheus.Gauge
	dispatched      *prometheus.CounterVec
	gcRuns          prometheus.Counter
}

func newMetrics(reg prometheus.Registerer, schedulerID uint64) *metrics {
	id := strconv.FormatUint(schedulerID, 10)
	constLabels := prometheus.Labels{"scheduler": id}

	m := &metrics{
		sessionCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "lealone",
			Subsystem:   "scheduler",
			Name:        "sessions",
			Help:        "Number of sessions currently registered on this scheduler.",
			ConstLabels: constLabels,
		}),
		miscQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "lealone",
			Subsystem:   "scheduler",
			Name:        "misc_queue_depth",
			Help:        "Number of misc tasks currently queued.",
			ConstLabels: constLabels,
		}),
		pendingInits: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "lealone",
			Subsystem:   "scheduler",
			Name:        "pending_session_inits",
			Help:        "Number of session-init tasks awaiting admission.",
			ConstLabels: constLabels,
		}),
		validatorBudget: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "lealone",
			Subsystem:   "scheduler",
			Name:        "admission_permits",
			Help:        "Current admission permit budget for new session inits.",
			ConstLabels: constLabels,
		}),
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "lealone",
			Subsystem:   "scheduler",
			Name:        "commands_dispatched_total",
			Help:        "Commands advanced by this scheduler, by outcome.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		gcRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "lealone",
			Subsystem:   "scheduler",
			Name:        "full_gc_runs_total",
			Help:        "Full GC passes run by this scheduler.",
			ConstLabels: constLabels,
		}),
	}

	if reg != nil {
		reg.MustRegister(m.sessionCount, m.miscQueueDepth, m.pendingInits, m.validatorBudget, m.dispatched, m.gcRuns)
	}
	return m
}

func (m *metrics) observeDispatch(result CommandResult) {
	switch result {
	case CommandDone:
		m.dispatched.WithLabelValues("done").Inc()
	case CommandYielded:
		m.dispatched.WithLabelValues("yielded").Inc()
	case CommandError:
		m.dispatched.WithLabelValues("error").Inc()
	}
}
