package statebox_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/kode4food/statebox"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	cfg := statebox.DefaultConfig()
	cfg.Name = "metrics"
	cfg.Metrics.Registerer = reg

	store, err := statebox.NewStore[any, *API](cfg, nil, nil)
	assert.NoError(t, err)
	defer func() { _ = store.Close() }()

	rec := &recorder{}
	store.Subscribe(rec)
	store.Subscribe(rec)

	assert.NoError(t, store.SetState(AppUpdate{"a": 1}, true, nil))
	_, err = store.Dispatch(context.Background(), immediate(AppUpdate{"b": 2}))
	assert.NoError(t, err)
	_, err = store.Dispatch(context.Background(), immediate(nil))
	assert.NoError(t, err)

	count, err := testutil.GatherAndCount(reg,
		"statebox_commits_total",
		"statebox_dispatches_total",
		"statebox_listeners",
	)
	assert.NoError(t, err)
	assert.Equal(t, 5, count)

	families, err := reg.Gather()
	assert.NoError(t, err)

	values := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			name := mf.GetName()
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "mode" || lp.GetName() == "result" {
					name += "/" + lp.GetValue()
				}
			}
			switch {
			case m.GetCounter() != nil:
				values[name] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				values[name] = m.GetGauge().GetValue()
			}
		}
	}

	assert.Equal(t, 1.0, values["statebox_commits_total/overwrite"])
	assert.Equal(t, 1.0, values["statebox_commits_total/merge"])
	assert.Equal(t, 1.0, values["statebox_dispatches_total/immediate"])
	assert.Equal(t, 1.0, values["statebox_dispatches_total/none"])
	assert.Equal(t, 2.0, values["statebox_listeners"])

	store.Unsubscribe(rec)
	families, err = reg.Gather()
	assert.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "statebox_listeners" {
			assert.Equal(t, 0.0, mf.GetMetric()[0].GetGauge().GetValue())
		}
	}
}

func TestMetricsSharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	cfg := statebox.DefaultConfig()
	cfg.Metrics.Registerer = reg

	first, err := statebox.NewStore[any, *API](cfg, nil, nil)
	assert.NoError(t, err)
	defer func() { _ = first.Close() }()

	second, err := statebox.NewStore[any, *API](cfg, nil, nil)
	assert.NoError(t, err)
	defer func() { _ = second.Close() }()

	assert.NoError(t, first.SetState(AppUpdate{"a": 1}, false, nil))
	assert.NoError(t, second.SetState(AppUpdate{"a": 1}, false, nil))

	families, err := reg.Gather()
	assert.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "statebox_commits_total" {
			assert.Len(t, mf.GetMetric(), 1)
			assert.Equal(t, 2.0, mf.GetMetric()[0].GetCounter().GetValue())
		}
	}
}

func TestMetricsRegistrationRollback(t *testing.T) {
	reg := prometheus.NewRegistry()
	conflict := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "statebox",
		Name:      "listeners",
		Help:      "Registered by someone else",
	})
	assert.NoError(t, reg.Register(conflict))

	cfg := statebox.DefaultConfig()
	cfg.Metrics.Registerer = reg

	store, err := statebox.NewStore[any, *API](cfg, nil, nil)
	assert.Error(t, err)
	assert.Nil(t, store)

	families, err := reg.Gather()
	assert.NoError(t, err)
	for _, mf := range families {
		assert.Equal(t, "statebox_listeners", mf.GetName())
	}

	assert.True(t, reg.Unregister(conflict))
	store, err = statebox.NewStore[any, *API](cfg, nil, nil)
	assert.NoError(t, err)
	defer func() { _ = store.Close() }()

	count, err := testutil.GatherAndCount(reg, "statebox_listener_errors_total")
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}
