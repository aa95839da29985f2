package database

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// poolStatsCollector exports pgxpool connection statistics as Prometheus metrics.
type poolStatsCollector struct {
	pool    *pgxpool.Pool
	service string

	acquired     *prometheus.Desc
	idle         *prometheus.Desc
	total        *prometheus.Desc
	max          *prometheus.Desc
	acquireCount *prometheus.Desc
	acquireWait  *prometheus.Desc
	emptyAcquire *prometheus.Desc
	newConns     *prometheus.Desc
}

// NewPoolStatsCollector builds a prometheus.Collector over the pool's Stat().
func NewPoolStatsCollector(pool *pgxpool.Pool, service string) prometheus.Collector {
	labels := []string{"service"}
	return &poolStatsCollector{
		pool:    pool,
		service: service,
		acquired: prometheus.NewDesc("db_pool_acquired_connections",
			"Connections currently checked out", labels, nil),
		idle: prometheus.NewDesc("db_pool_idle_connections",
			"Connections currently idle", labels, nil),
		total: prometheus.NewDesc("db_pool_total_connections",
			"Connections held by the pool", labels, nil),
		max: prometheus.NewDesc("db_pool_max_connections",
			"Configured connection ceiling", labels, nil),
		acquireCount: prometheus.NewDesc("db_pool_acquire_count_total",
			"Total connection acquires", labels, nil),
		acquireWait: prometheus.NewDesc("db_pool_acquire_duration_seconds_total",
			"Cumulative time spent acquiring connections", labels, nil),
		emptyAcquire: prometheus.NewDesc("db_pool_empty_acquire_count_total",
			"Acquires that had to wait for a free connection", labels, nil),
		newConns: prometheus.NewDesc("db_pool_new_connections_total",
			"Connections opened since start", labels, nil),
	}
}

func (c *poolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.acquired
	ch <- c.idle
	ch <- c.total
	ch <- c.max
	ch <- c.acquireCount
	ch <- c.acquireWait
	ch <- c.emptyAcquire
	ch <- c.newConns
}

func (c *poolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	stat := c.pool.Stat()

	ch <- prometheus.MustNewConstMetric(c.acquired, prometheus.GaugeValue, float64(stat.AcquiredConns()), c.service)
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(stat.IdleConns()), c.service)
	ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(stat.TotalConns()), c.service)
	ch <- prometheus.MustNewConstMetric(c.max, prometheus.GaugeValue, float64(stat.MaxConns()), c.service)
	ch <- prometheus.MustNewConstMetric(c.acquireCount, prometheus.CounterValue, float64(stat.AcquireCount()), c.service)
	ch <- prometheus.MustNewConstMetric(c.acquireWait, prometheus.CounterValue, stat.AcquireDuration().Seconds(), c.service)
	ch <- prometheus.MustNewConstMetric(c.emptyAcquire, prometheus.CounterValue, float64(stat.EmptyAcquireCount()), c.service)
	ch <- prometheus.MustNewConstMetric(c.newConns, prometheus.CounterValue, float64(stat.NewConnsCount()), c.service)
}

// RegisterPoolMetrics registers the pool collector with the default registry.
func RegisterPoolMetrics(pool *pgxpool.Pool, service string) {
	prometheus.MustRegister(NewPoolStatsCollector(pool, service))
}
