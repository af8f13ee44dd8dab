package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// ingestion pipeline and the serving path.
type Metrics struct {
	IngestCycles  prometheus.Counter
	RowsFetched   prometheus.Counter
	RowsKept      prometheus.Counter
	RowsInserted  prometheus.Counter
	InsertErrors  prometheus.Counter
	RowsPurged    prometheus.Counter
	FetchErrors   *prometheus.CounterVec // label: product
	CycleDuration prometheus.Histogram
	FetchDuration *prometheus.HistogramVec // label: product

	QueryRequests *prometheus.CounterVec // label: window={rolling,opday}
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.IngestCycles,
		m.RowsFetched,
		m.RowsKept,
		m.RowsInserted,
		m.InsertErrors,
		m.RowsPurged,
		m.FetchErrors,
		m.CycleDuration,
		m.FetchDuration,
		m.QueryRequests,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		IngestCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "firewatch",
			Name:      "ingest_cycles_total",
			Help:      "Total completed ingestion cycles.",
		}),
		RowsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "firewatch",
			Name:      "rows_fetched_total",
			Help:      "Total feed rows seen across all products.",
		}),
		RowsKept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "firewatch",
			Name:      "rows_kept_total",
			Help:      "Total rows kept after coordinate validation and geofilter.",
		}),
		RowsInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "firewatch",
			Name:      "rows_inserted_total",
			Help:      "Total newly inserted detection rows.",
		}),
		InsertErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "firewatch",
			Name:      "insert_errors_total",
			Help:      "Total per-row insert failures.",
		}),
		RowsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "firewatch",
			Name:      "rows_purged_total",
			Help:      "Total rows removed by the retention sweep.",
		}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "firewatch",
			Name:      "fetch_errors_total",
			Help:      "Feed fetch or payload failures by product.",
		}, []string{"product"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "firewatch",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a complete ingestion cycle.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "firewatch",
			Name:      "fetch_duration_seconds",
			Help:      "Feed HTTP request duration by product.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"product"}),
		QueryRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "firewatch",
			Name:      "query_requests_total",
			Help:      "Read requests by windowing mode.",
		}, []string{"window"}),
	}
}
