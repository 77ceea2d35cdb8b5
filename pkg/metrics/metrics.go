// Package metrics exposes Prometheus instrumentation for archipelago
// activity. A Collector is attached to an archipelago explicitly; a nil
// Collector disables instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector bundles the archipelago metric families.
type Collector struct {
	evolveTasksTotal  *prometheus.CounterVec
	taskFailuresTotal *prometheus.CounterVec
	migrantsPulled    *prometheus.CounterVec
	migrantsPublished *prometheus.CounterVec
	islands           prometheus.Gauge
}

// New builds a Collector and registers its families with reg.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		evolveTasksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archi_evolve_tasks_total",
				Help: "Evolution tasks enqueued, per island index",
			},
			[]string{"island"},
		),
		taskFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archi_task_failures_total",
				Help: "Evolution tasks that latched an error, per island index",
			},
			[]string{"island"},
		),
		migrantsPulled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archi_migrants_pulled_total",
				Help: "Individuals pulled into a destination island",
			},
			[]string{"island"},
		),
		migrantsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archi_migrants_published_total",
				Help: "Individuals published to an island's emigrant buffer",
			},
			[]string{"island"},
		),
		islands: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "archi_islands",
				Help: "Number of islands in the archipelago",
			},
		),
	}
	for _, col := range []prometheus.Collector{
		c.evolveTasksTotal, c.taskFailuresTotal, c.migrantsPulled, c.migrantsPublished, c.islands,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNew is a New that panics on registration failure.
func MustNew(reg prometheus.Registerer) *Collector {
	c, err := New(reg)
	if err != nil {
		panic(err)
	}
	return c
}

// RecordEvolveTasks counts n enqueued tasks for one island.
func (c *Collector) RecordEvolveTasks(island string, n int) {
	if c == nil {
		return
	}
	c.evolveTasksTotal.WithLabelValues(island).Add(float64(n))
}

// RecordTaskFailure counts a latched task error for one island.
func (c *Collector) RecordTaskFailure(island string) {
	if c == nil {
		return
	}
	c.taskFailuresTotal.WithLabelValues(island).Inc()
}

// RecordMigrantsPulled counts individuals merged into an island.
func (c *Collector) RecordMigrantsPulled(island string, n int) {
	if c == nil || n == 0 {
		return
	}
	c.migrantsPulled.WithLabelValues(island).Add(float64(n))
}

// RecordMigrantsPublished counts individuals published by an island.
func (c *Collector) RecordMigrantsPublished(island string, n int) {
	if c == nil || n == 0 {
		return
	}
	c.migrantsPublished.WithLabelValues(island).Add(float64(n))
}

// SetIslands records the archipelago size.
func (c *Collector) SetIslands(n int) {
	if c == nil {
		return
	}
	c.islands.Set(float64(n))
}
