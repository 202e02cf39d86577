package database

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// PoolStats is a point-in-time view of a connection pool.
type PoolStats struct {
	Acquired int32
	Idle     int32
	Max      int32

	AcquireCount     int64
	EmptyAcquires    int64
	CanceledAcquires int64
	AcquireDuration  time.Duration
}

// StatsOf reads PoolStats from a pgx pool.
func StatsOf(pool *pgxpool.Pool) func() PoolStats {
	return func() PoolStats {
		s := pool.Stat()
		return PoolStats{
			Acquired:         s.AcquiredConns(),
			Idle:             s.IdleConns(),
			Max:              s.MaxConns(),
			AcquireCount:     s.AcquireCount(),
			EmptyAcquires:    s.EmptyAcquireCount(),
			CanceledAcquires: s.CanceledAcquireCount(),
			AcquireDuration:  s.AcquireDuration(),
		}
	}
}

// PoolCollector exports pool statistics labelled by pool name.
type PoolCollector struct {
	name  string
	stats func() PoolStats

	connections    *prometheus.Desc
	maxConnections *prometheus.Desc
	acquires       *prometheus.Desc
	acquireSeconds *prometheus.Desc
}

var _ prometheus.Collector = (*PoolCollector)(nil)

// NewPoolCollector creates a collector that samples stats on every scrape.
func NewPoolCollector(name string, stats func() PoolStats) *PoolCollector {
	labels := prometheus.Labels{"pool": name}
	return &PoolCollector{
		name:  name,
		stats: stats,
		connections: prometheus.NewDesc(
			"marketsearch_db_pool_connections",
			"Open connections by state",
			[]string{"state"}, labels,
		),
		maxConnections: prometheus.NewDesc(
			"marketsearch_db_pool_max_connections",
			"Configured connection limit",
			nil, labels,
		),
		acquires: prometheus.NewDesc(
			"marketsearch_db_pool_acquires_total",
			"Connection acquires by outcome: immediate, waited or canceled",
			[]string{"outcome"}, labels,
		),
		acquireSeconds: prometheus.NewDesc(
			"marketsearch_db_pool_acquire_seconds_total",
			"Time spent acquiring connections",
			nil, labels,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.connections
	ch <- c.maxConnections
	ch <- c.acquires
	ch <- c.acquireSeconds
}

// Collect implements prometheus.Collector.
func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats()

	ch <- prometheus.MustNewConstMetric(c.connections, prometheus.GaugeValue, float64(s.Acquired), "acquired")
	ch <- prometheus.MustNewConstMetric(c.connections, prometheus.GaugeValue, float64(s.Idle), "idle")
	ch <- prometheus.MustNewConstMetric(c.maxConnections, prometheus.GaugeValue, float64(s.Max))
	ch <- prometheus.MustNewConstMetric(c.acquires, prometheus.CounterValue, float64(s.AcquireCount-s.EmptyAcquires), "immediate")
	ch <- prometheus.MustNewConstMetric(c.acquires, prometheus.CounterValue, float64(s.EmptyAcquires), "waited")
	ch <- prometheus.MustNewConstMetric(c.acquires, prometheus.CounterValue, float64(s.CanceledAcquires), "canceled")
	ch <- prometheus.MustNewConstMetric(c.acquireSeconds, prometheus.CounterValue, s.AcquireDuration.Seconds())
}

// RegisterPoolMetrics registers a collector for pool under name.
func RegisterPoolMetrics(reg prometheus.Registerer, name string, pool *pgxpool.Pool) error {
	if err := reg.Register(NewPoolCollector(name, StatsOf(pool))); err != nil {
		return fmt.Errorf("register %s pool metrics: %w", name, err)
	}
	return nil
}
