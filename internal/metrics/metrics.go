// Package metrics exposes Prometheus collectors for the ranking service.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scrapesTotal          *prometheus.CounterVec
	scrapeDurationSeconds *prometheus.HistogramVec
	scrapedItemsTotal     *prometheus.CounterVec
	prunedSnapshotsTotal  *prometheus.CounterVec
	exportsTotal          *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		scrapesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ranking_scrapes_total",
				Help: "Total number of scrape runs, labeled by category and status.",
			},
			[]string{"category", "status"},
		)

		scrapeDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ranking_scrape_duration_seconds",
				Help:    "Duration of scrape runs, labeled by category.",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
			},
			[]string{"category"},
		)

		scrapedItemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ranking_scraped_items_total",
				Help: "Total number of eligible items extracted, labeled by category.",
			},
			[]string{"category"},
		)

		prunedSnapshotsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ranking_pruned_snapshots_total",
				Help: "Total number of snapshots removed by the retention pruner.",
			},
			[]string{"category"},
		)

		exportsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ranking_exports_total",
				Help: "Total number of spreadsheet exports, labeled by status.",
			},
			[]string{"status"},
		)
	})
}

// ObserveScrape records one scrape run outcome.
func ObserveScrape(category, status string, duration time.Duration, items int) {
	if scrapesTotal == nil {
		return
	}
	scrapesTotal.WithLabelValues(category, status).Inc()
	scrapeDurationSeconds.WithLabelValues(category).Observe(duration.Seconds())
	if items > 0 {
		scrapedItemsTotal.WithLabelValues(category).Add(float64(items))
	}
}

// AddPrunedSnapshots records snapshots removed by the retention pruner.
func AddPrunedSnapshots(category string, n int64) {
	if prunedSnapshotsTotal == nil {
		return
	}
	prunedSnapshotsTotal.WithLabelValues(category).Add(float64(n))
}

// IncExport records one export attempt outcome.
func IncExport(status string) {
	if exportsTotal == nil {
		return
	}
	exportsTotal.WithLabelValues(status).Inc()
}

// Handler returns the Prometheus scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
