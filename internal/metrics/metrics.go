// Package metrics exports style cache statistics to Prometheus.
package metrics

import (
	"net/http"

	"github.com/opencode-ai/themekit/internal/style"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config configures the cache collector.
type Config struct {
	// Namespace is the metrics namespace (default: "themekit").
	Namespace string

	// Subsystem is the metrics subsystem (default: "style_cache").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels
}

// Option configures the cache collector.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "themekit",
		Subsystem: "style_cache",
	}
}

// StatsSource reports per-generator cache statistics. *style.Factory
// implements it.
type StatsSource interface {
	Stats() []style.GeneratorStats
}

// Collector reads cache statistics from a StatsSource on every scrape.
//
// Metrics exported, labeled by theme and prefix:
//   - themekit_style_cache_hits_total
//   - themekit_style_cache_misses_total
//   - themekit_style_cache_sets_total
//   - themekit_style_cache_deletes_total
//   - themekit_style_cache_evictions_total
//   - themekit_style_cache_expirations_total
//   - themekit_style_cache_entries
//   - themekit_style_cache_max_entries
//   - themekit_style_cache_hit_ratio
//   - themekit_style_cache_memory_bytes
//   - themekit_style_cache_generators (unlabeled)
type Collector struct {
	source StatsSource

	hits        *prometheus.Desc
	misses      *prometheus.Desc
	sets        *prometheus.Desc
	deletes     *prometheus.Desc
	evictions   *prometheus.Desc
	expirations *prometheus.Desc
	entries     *prometheus.Desc
	maxEntries  *prometheus.Desc
	hitRatio    *prometheus.Desc
	memory      *prometheus.Desc
	generators  *prometheus.Desc
}

// NewCollector creates a collector over source.
func NewCollector(source StatsSource, opts ...Option) *Collector {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	labels := []string{"theme", "prefix"}
	desc := func(name, help string, variable []string) *prometheus.Desc {
		return prometheus.NewDesc(
			prometheus.BuildFQName(cfg.Namespace, cfg.Subsystem, name),
			help, variable, cfg.ConstLabels,
		)
	}

	return &Collector{
		source:      source,
		hits:        desc("hits_total", "Total cache hits", labels),
		misses:      desc("misses_total", "Total cache misses", labels),
		sets:        desc("sets_total", "Total cache writes", labels),
		deletes:     desc("deletes_total", "Total explicit cache deletes", labels),
		evictions:   desc("evictions_total", "Total entries evicted by the size bound", labels),
		expirations: desc("expirations_total", "Total entries dropped after their TTL", labels),
		entries:     desc("entries", "Current number of cached entries", labels),
		maxEntries:  desc("max_entries", "Configured cache capacity", labels),
		hitRatio:    desc("hit_ratio", "Hits divided by lookups", labels),
		memory:      desc("memory_bytes", "Estimated cache memory usage in bytes", labels),
		generators:  desc("generators", "Number of pooled style generators", nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hits
	ch <- c.misses
	ch <- c.sets
	ch <- c.deletes
	ch <- c.evictions
	ch <- c.expirations
	ch <- c.entries
	ch <- c.maxEntries
	ch <- c.hitRatio
	ch <- c.memory
	ch <- c.generators
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	all := c.source.Stats()
	ch <- prometheus.MustNewConstMetric(c.generators, prometheus.GaugeValue, float64(len(all)))

	for _, g := range all {
		s := g.Stats
		counter := func(desc *prometheus.Desc, v int64) {
			ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(v), g.ThemeID, g.Prefix)
		}
		gauge := func(desc *prometheus.Desc, v float64) {
			ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, v, g.ThemeID, g.Prefix)
		}

		counter(c.hits, s.Hits)
		counter(c.misses, s.Misses)
		counter(c.sets, s.Sets)
		counter(c.deletes, s.Deletes)
		counter(c.evictions, s.Evictions)
		counter(c.expirations, s.Expirations)
		gauge(c.entries, float64(s.Size))
		gauge(c.maxEntries, float64(s.MaxSize))
		gauge(c.hitRatio, s.HitRate)
		gauge(c.memory, float64(s.MemoryUsage))
	}
}

// Register creates a collector over source and registers it with reg.
func Register(reg prometheus.Registerer, source StatsSource, opts ...Option) (*Collector, error) {
	collector := NewCollector(source, opts...)
	if err := reg.Register(collector); err != nil {
		return nil, err
	}
	return collector, nil
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
