package database

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gatherPool(t *testing.T, c prometheus.Collector) map[string][]*dto.Metric {
	t.Helper()
	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))

	families, err := reg.Gather()
	require.NoError(t, err)

	out := make(map[string][]*dto.Metric, len(families))
	for _, mf := range families {
		out[mf.GetName()] = mf.GetMetric()
	}
	return out
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

func byLabel(metrics []*dto.Metric, label string) map[string]float64 {
	out := make(map[string]float64, len(metrics))
	for _, m := range metrics {
		v := m.GetGauge().GetValue()
		if m.GetCounter() != nil {
			v = m.GetCounter().GetValue()
		}
		out[labelValue(m, label)] = v
	}
	return out
}

func TestPoolCollector_ExportsSnapshot(t *testing.T) {
	c := NewPoolCollector("sources", func() PoolStats {
		return PoolStats{
			Acquired:         3,
			Idle:             2,
			Max:              10,
			AcquireCount:     40,
			EmptyAcquires:    6,
			CanceledAcquires: 1,
			AcquireDuration:  1500 * time.Millisecond,
		}
	})

	got := gatherPool(t, c)

	assert.Equal(t, map[string]float64{"acquired": 3, "idle": 2},
		byLabel(got["marketsearch_db_pool_connections"], "state"))
	assert.Equal(t, map[string]float64{"immediate": 34, "waited": 6, "canceled": 1},
		byLabel(got["marketsearch_db_pool_acquires_total"], "outcome"))

	require.Len(t, got["marketsearch_db_pool_max_connections"], 1)
	maxConns := got["marketsearch_db_pool_max_connections"][0]
	assert.Equal(t, 10.0, maxConns.GetGauge().GetValue())
	assert.Equal(t, "sources", labelValue(maxConns, "pool"))

	require.Len(t, got["marketsearch_db_pool_acquire_seconds_total"], 1)
	assert.InDelta(t, 1.5, got["marketsearch_db_pool_acquire_seconds_total"][0].GetCounter().GetValue(), 1e-9)
}

func TestPoolCollector_SamplesOnEveryScrape(t *testing.T) {
	calls := 0
	c := NewPoolCollector("sources", func() PoolStats {
		calls++
		return PoolStats{Acquired: int32(calls)}
	})

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(c))
	_, err := reg.Gather()
	require.NoError(t, err)
	_, err = reg.Gather()
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
}

func TestPoolCollector_DuplicateNameRejected(t *testing.T) {
	reg := prometheus.NewRegistry()
	stats := func() PoolStats { return PoolStats{} }

	require.NoError(t, reg.Register(NewPoolCollector("sources", stats)))
	assert.Error(t, reg.Register(NewPoolCollector("sources", stats)))
}
