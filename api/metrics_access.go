package api

import (
	"github.com/prometheus/client_golang/prometheus"

	"storedesk-admin/core/access"
	"storedesk-admin/core/janitor"
)

type accessMetricsCollector struct {
	registry *access.Registry

	fetchTotalDesc *prometheus.Desc
	cacheHitsDesc  *prometheus.Desc
	rehydratedDesc *prometheus.Desc
	decisionsDesc  *prometheus.Desc
	storesDesc     *prometheus.Desc
}

func newAccessMetricsCollector(registry *access.Registry) prometheus.Collector {
	return &accessMetricsCollector{
		registry: registry,
		fetchTotalDesc: prometheus.NewDesc(
			"storedesk_access_fetch_total",
			"Permission fetches by result.",
			[]string{"result"},
			nil,
		),
		cacheHitsDesc: prometheus.NewDesc(
			"storedesk_access_cache_hits_total",
			"Initialize calls served from a valid cached snapshot.",
			nil,
			nil,
		),
		rehydratedDesc: prometheus.NewDesc(
			"storedesk_access_rehydrated_total",
			"Snapshots restored from persistent storage.",
			nil,
			nil,
		),
		decisionsDesc: prometheus.NewDesc(
			"storedesk_guard_decisions_total",
			"Page guard decisions by outcome.",
			[]string{"decision"},
			nil,
		),
		storesDesc: prometheus.NewDesc(
			"storedesk_access_stores",
			"Permission stores currently held in memory.",
			nil,
			nil,
		),
	}
}

func (c *accessMetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.fetchTotalDesc
	ch <- c.cacheHitsDesc
	ch <- c.rehydratedDesc
	ch <- c.decisionsDesc
	ch <- c.storesDesc
}

func (c *accessMetricsCollector) Collect(ch chan<- prometheus.Metric) {
	if c == nil || c.registry == nil {
		return
	}
	s := c.registry.Stats().Snapshot()
	ch <- prometheus.MustNewConstMetric(c.fetchTotalDesc, prometheus.CounterValue, float64(s.FetchOK), "ok")
	ch <- prometheus.MustNewConstMetric(c.fetchTotalDesc, prometheus.CounterValue, float64(s.FetchFailed), "failed")
	ch <- prometheus.MustNewConstMetric(c.fetchTotalDesc, prometheus.CounterValue, float64(s.FetchDiscarded), "discarded")
	ch <- prometheus.MustNewConstMetric(c.cacheHitsDesc, prometheus.CounterValue, float64(s.CacheHits))
	ch <- prometheus.MustNewConstMetric(c.rehydratedDesc, prometheus.CounterValue, float64(s.Rehydrated))
	ch <- prometheus.MustNewConstMetric(c.decisionsDesc, prometheus.CounterValue, float64(s.Allowed), access.DecisionAllowed.String())
	ch <- prometheus.MustNewConstMetric(c.decisionsDesc, prometheus.CounterValue, float64(s.Denied), access.DecisionDenied.String())
	ch <- prometheus.MustNewConstMetric(c.decisionsDesc, prometheus.CounterValue, float64(s.Loading), access.DecisionLoading.String())
	ch <- prometheus.MustNewConstMetric(c.storesDesc, prometheus.GaugeValue, float64(c.registry.Len()))
}

type janitorMetricsCollector struct {
	janitor *janitor.Janitor

	ticksTotalDesc      *prometheus.Desc
	tickErrorsTotalDesc *prometheus.Desc
	lastTickDesc        *prometheus.Desc
}

func newJanitorMetricsCollector(j *janitor.Janitor) prometheus.Collector {
	return &janitorMetricsCollector{
		janitor: j,
		ticksTotalDesc: prometheus.NewDesc(
			"storedesk_janitor_ticks_total",
			"Total number of janitor job runs.",
			[]string{"job"},
			nil,
		),
		tickErrorsTotalDesc: prometheus.NewDesc(
			"storedesk_janitor_tick_errors_total",
			"Total number of failed janitor job runs.",
			[]string{"job"},
			nil,
		),
		lastTickDesc: prometheus.NewDesc(
			"storedesk_janitor_last_tick_timestamp",
			"Unix timestamp of the last janitor job run.",
			[]string{"job"},
			nil,
		),
	}
}

func (c *janitorMetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.ticksTotalDesc
	ch <- c.tickErrorsTotalDesc
	ch <- c.lastTickDesc
}

func (c *janitorMetricsCollector) Collect(ch chan<- prometheus.Metric) {
	if c == nil || c.janitor == nil {
		return
	}
	for name, s := range c.janitor.StatsSnapshot() {
		ch <- prometheus.MustNewConstMetric(c.ticksTotalDesc, prometheus.CounterValue, float64(s.TicksTotal), name)
		ch <- prometheus.MustNewConstMetric(c.tickErrorsTotalDesc, prometheus.CounterValue, float64(s.TickErrorsTotal), name)
		if s.LastTickAtUTC != nil {
			ch <- prometheus.MustNewConstMetric(c.lastTickDesc, prometheus.GaugeValue, float64(s.LastTickAtUTC.Unix()), name)
		}
	}
}
