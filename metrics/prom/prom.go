// Package prom exports store.Manager snapshots as Prometheus metrics.
//
// The teacher's own metrics/prom/prom.go is a push-style adapter: the cache
// calls Hit()/Miss()/Evict() inline on every operation. store.Manager keeps
// its own per-shard counters and only exposes them as an aggregated
// snapshot via Stats(), so this package is a pull-style prometheus.Collector
// instead: Collect() calls Stats() once per scrape and emits const metrics
// from the result, avoiding double-counting the mutex-protected counters
// store.Shard already maintains.
package prom

import (
	"context"
	"log"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/RogerFelipeNsk/crabcache/store"
)

// Collector adapts a *store.Manager to the prometheus.Collector interface.
// Safe for concurrent scraping: Stats() itself is safe for concurrent use
// and coalesces concurrent callers via singleflight.
type Collector struct {
	mgr *store.Manager

	keyCount    *prometheus.Desc
	bytesUsed   *prometheus.Desc
	bytesLimit  *prometheus.Desc
	hits        *prometheus.Desc
	misses      *prometheus.Desc
	admissions  *prometheus.Desc
	rejections  *prometheus.Desc
	evictions   *prometheus.Desc
	walEnabled  *prometheus.Desc
	walEntries  *prometheus.Desc
	walSegments *prometheus.Desc
	walSticky   *prometheus.Desc
}

// New constructs a Collector for mgr under the given namespace/subsystem.
// Unlike the teacher's New(reg, ns, sub, constLabels), it takes no registry:
// the caller registers the returned Collector with a registry (or
// prometheus.DefaultRegisterer) themselves.
func New(mgr *store.Manager, ns, sub string, constLabels prometheus.Labels) *Collector {
	desc := func(name, help string, variableLabels []string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(ns, sub, name), help, variableLabels, constLabels)
	}
	return &Collector{
		mgr:         mgr,
		keyCount:    desc("key_count", "Resident key count", nil),
		bytesUsed:   desc("bytes_used", "Bytes currently accounted against the memory budget", nil),
		bytesLimit:  desc("bytes_limit", "Configured memory budget in bytes", nil),
		hits:        desc("hits_total", "GET hits", nil),
		misses:      desc("misses_total", "GET misses", nil),
		admissions:  desc("admissions_total", "Keys admitted by the TinyLFU policy", nil),
		rejections:  desc("rejections_total", "Keys rejected by the TinyLFU policy", nil),
		evictions:   desc("evictions_total", "Evictions by reason", []string{"reason"}),
		walEnabled:  desc("wal_enabled", "1 if the write-ahead log is enabled", nil),
		walEntries:  desc("wal_entries_total", "Entries appended to the write-ahead log", nil),
		walSegments: desc("wal_segments", "Write-ahead log segments opened", nil),
		walSticky:   desc("wal_sticky_error", "1 if the write-ahead log has a sticky write error", nil),
	}
}

// Describe sends every metric descriptor this Collector can emit.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.keyCount
	ch <- c.bytesUsed
	ch <- c.bytesLimit
	ch <- c.hits
	ch <- c.misses
	ch <- c.admissions
	ch <- c.rejections
	ch <- c.evictions
	ch <- c.walEnabled
	ch <- c.walEntries
	ch <- c.walSegments
	ch <- c.walSticky
}

// Collect takes one store.Manager snapshot and emits it as const metrics.
// Errors fetching the snapshot are logged and the scrape is left empty
// rather than panicking the HTTP handler.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	st, err := c.mgr.Stats(context.Background())
	if err != nil {
		log.Printf("prom: stats unavailable: %v", err)
		return
	}

	ch <- prometheus.MustNewConstMetric(c.keyCount, prometheus.GaugeValue, float64(st.KeyCount))
	ch <- prometheus.MustNewConstMetric(c.bytesUsed, prometheus.GaugeValue, float64(st.BytesUsed))
	ch <- prometheus.MustNewConstMetric(c.bytesLimit, prometheus.GaugeValue, float64(st.BytesLimit))
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(st.Hits))
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(st.Misses))
	ch <- prometheus.MustNewConstMetric(c.admissions, prometheus.CounterValue, float64(st.Admissions))
	ch <- prometheus.MustNewConstMetric(c.rejections, prometheus.CounterValue, float64(st.Rejections))
	ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(st.Evictions), "capacity")
	ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(st.Expirations), "ttl")

	walOn := 0.0
	if st.WALEnabled {
		walOn = 1.0
	}
	ch <- prometheus.MustNewConstMetric(c.walEnabled, prometheus.GaugeValue, walOn)
	ch <- prometheus.MustNewConstMetric(c.walEntries, prometheus.CounterValue, float64(st.WALEntries))
	ch <- prometheus.MustNewConstMetric(c.walSegments, prometheus.GaugeValue, float64(st.WALSegments))

	sticky := 0.0
	if st.WALStickyError != "" {
		sticky = 1.0
	}
	ch <- prometheus.MustNewConstMetric(c.walSticky, prometheus.GaugeValue, sticky)
}

var _ prometheus.Collector = (*Collector)(nil)
