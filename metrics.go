package statebox

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	commits          *prometheus.CounterVec
	dispatches       *prometheus.CounterVec
	listenerErrors   prometheus.Counter
	listeners        prometheus.Gauge
	deferredInflight prometheus.Gauge
}

const (
	modeMerge     = "merge"
	modeOverwrite = "overwrite"
	resultError   = "error"
)

func newMetrics(cfg MetricsConfig, store string) (*metrics, error) {
	labels := prometheus.Labels{"store": store}
	for k, v := range cfg.ConstLabels {
		labels[k] = v
	}

	m := &metrics{
		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "commits_total",
			Help:        "Total number of committed state changes",
			ConstLabels: labels,
		}, []string{"mode"}),

		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "dispatches_total",
			Help:        "Total number of dispatched actions by result kind",
			ConstLabels: labels,
		}, []string{"result"}),

		listenerErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "listener_errors_total",
			Help:        "Total number of errors returned by listeners",
			ConstLabels: labels,
		}),

		listeners: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "listeners",
			Help:        "Number of registered listeners",
			ConstLabels: labels,
		}),

		deferredInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "deferred_inflight",
			Help:        "Number of deferred actions not yet committed",
			ConstLabels: labels,
		}),
	}

	if cfg.Registerer == nil {
		return m, nil
	}

	r := &registrar{reg: cfg.Registerer}
	m.commits = register(r, m.commits)
	m.dispatches = register(r, m.dispatches)
	m.listenerErrors = register(r, m.listenerErrors)
	m.listeners = register(r, m.listeners)
	m.deferredInflight = register(r, m.deferredInflight)
	if r.err != nil {
		r.rollback()
		return nil, r.err
	}
	return m, nil
}

// registrar tracks the collectors a Store added to a Registerer so a failed
// registration leaves the Registerer as it found it
type registrar struct {
	reg   prometheus.Registerer
	added []prometheus.Collector
	err   error
}

// register adds c to the registrar's Registerer, reusing the collector
// already registered under the same descriptor. After a failure it does
// nothing
func register[C prometheus.Collector](r *registrar, c C) C {
	if r.err != nil {
		return c
	}

	err := r.reg.Register(c)
	if err == nil {
		r.added = append(r.added, c)
		return c
	}

	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing
		}
	}
	r.err = err
	return c
}

func (r *registrar) rollback() {
	for _, c := range r.added {
		r.reg.Unregister(c)
	}
	r.added = nil
}
