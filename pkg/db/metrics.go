package db

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

type poolGauge struct {
	desc  *prometheus.Desc
	value func(*pgxpool.Stat) float64
}

// PoolStatsCollector exports pgx pool statistics, read from the pool on each scrape.
type PoolStatsCollector struct {
	pool   *pgxpool.Pool
	gauges []poolGauge
}

// NewPoolStatsCollector creates a collector for pool under the given namespace.
func NewPoolStatsCollector(pool *pgxpool.Pool, namespace string) *PoolStatsCollector {
	gauge := func(name, help string, value func(*pgxpool.Stat) float64) poolGauge {
		return poolGauge{
			desc:  prometheus.NewDesc(prometheus.BuildFQName(namespace, "db_pool", name), help, nil, nil),
			value: value,
		}
	}

	return &PoolStatsCollector{
		pool: pool,
		gauges: []poolGauge{
			gauge("total_conns", "Total number of connections currently open in the pool",
				func(s *pgxpool.Stat) float64 { return float64(s.TotalConns()) }),
			gauge("idle_conns", "Number of idle connections in the pool",
				func(s *pgxpool.Stat) float64 { return float64(s.IdleConns()) }),
			gauge("acquired_conns", "Number of connections currently acquired from the pool",
				func(s *pgxpool.Stat) float64 { return float64(s.AcquiredConns()) }),
			gauge("max_conns", "Maximum number of connections allowed in the pool",
				func(s *pgxpool.Stat) float64 { return float64(s.MaxConns()) }),
		},
	}
}

// Describe implements prometheus.Collector.
func (c *PoolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, g := range c.gauges {
		ch <- g.desc
	}
}

// Collect implements prometheus.Collector.
func (c *PoolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	if c.pool == nil {
		return
	}
	stats := c.pool.Stat()
	for _, g := range c.gauges {
		ch <- prometheus.MustNewConstMetric(g.desc, prometheus.GaugeValue, g.value(stats))
	}
}

// RegisterPoolStats registers a pool collector, tolerating duplicate registration.
func RegisterPoolStats(reg prometheus.Registerer, pool *pgxpool.Pool, namespace string) error {
	if err := reg.Register(NewPoolStatsCollector(pool, namespace)); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
			return err
		}
	}
	return nil
}
