package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scraper.
type Metrics struct {
	Registry          *prometheus.Registry
	ItemsTotal        *prometheus.CounterVec
	ItemDuration      prometheus.Histogram
	PagesFetchedTotal prometheus.Counter
	RowsParsedTotal   prometheus.Counter
	RecordsSavedTotal prometheus.Counter
	RowsExcludedTotal prometheus.Counter
	RetriesTotal      prometheus.Counter
	ErrorsTotal       *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	items := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statscrape_items_total",
			Help: "Total work items processed, by outcome.",
		},
		[]string{"outcome"},
	)
	itemDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "statscrape_item_duration_seconds",
			Help:    "Wall-clock duration spent on a single work item.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)
	pages := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "statscrape_pages_fetched_total",
			Help: "Total table pages fetched across all work items.",
		},
	)
	rowsParsed := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "statscrape_rows_parsed_total",
			Help: "Total raw rows parsed out of fetched tables.",
		},
	)
	recordsSaved := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "statscrape_records_saved_total",
			Help: "Total records written to the store.",
		},
	)
	rowsExcluded := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "statscrape_rows_excluded_total",
			Help: "Total rows excluded during normalization.",
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "statscrape_fetch_retries_total",
			Help: "Total navigation retries scheduled by the fetchers.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statscrape_errors_total",
			Help: "Total number of scraper errors by type.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(items, itemDuration, pages, rowsParsed, recordsSaved, rowsExcluded, retries, errorsTotal)

	return &Metrics{
		Registry:          registry,
		ItemsTotal:        items,
		ItemDuration:      itemDuration,
		PagesFetchedTotal: pages,
		RowsParsedTotal:   rowsParsed,
		RecordsSavedTotal: recordsSaved,
		RowsExcludedTotal: rowsExcluded,
		RetriesTotal:      retries,
		ErrorsTotal:       errorsTotal,
	}
}

// IncItem increments the items counter for an outcome label.
func (m *Metrics) IncItem(outcome string) {
	if m == nil {
		return
	}
	m.ItemsTotal.WithLabelValues(outcome).Inc()
}

// ObserveItemDuration records the time spent on one work item.
func (m *Metrics) ObserveItemDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.ItemDuration.Observe(d.Seconds())
}

// IncPages adds fetched pages to the pages counter.
func (m *Metrics) IncPages(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.PagesFetchedTotal.Add(float64(n))
}

// IncRowsParsed adds parsed rows to the rows counter.
func (m *Metrics) IncRowsParsed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RowsParsedTotal.Add(float64(n))
}

// IncRecordsSaved adds persisted records to the saved counter.
func (m *Metrics) IncRecordsSaved(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RecordsSavedTotal.Add(float64(n))
}

// IncRowsExcluded adds excluded rows to the exclusion counter.
func (m *Metrics) IncRowsExcluded(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RowsExcludedTotal.Add(float64(n))
}

// IncRetries increments the navigation retry counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
