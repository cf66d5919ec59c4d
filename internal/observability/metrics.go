package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// ingestion pipeline and the resolution path.
type Metrics struct {
	ParcelsLoaded     prometheus.Counter
	ParcelsSkipped    prometheus.Counter
	ParcelsDuplicate  prometheus.Counter
	IngestRuns        *prometheus.CounterVec // labels: outcome={success,error}
	IngestDuration    prometheus.Histogram
	IngestBatchSize   prometheus.Histogram
	IngestRunning     prometheus.Gauge
	ResolveRequests   *prometheus.CounterVec // labels: mode={identifier,coordinate}, outcome={hit,miss,error}
	ResolveCandidates prometheus.Histogram
	UpstreamDuration  *prometheus.HistogramVec // labels: service={taxlots,geocoder,demographics}
}

// NewMetrics creates and registers all metrics with the default registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.ParcelsLoaded,
		m.ParcelsSkipped,
		m.ParcelsDuplicate,
		m.IngestRuns,
		m.IngestDuration,
		m.IngestBatchSize,
		m.IngestRunning,
		m.ResolveRequests,
		m.ResolveCandidates,
		m.UpstreamDuration,
	)

	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid "already
// registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ParcelsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parcelforge",
			Name:      "parcels_loaded_total",
			Help:      "Total parcel records loaded into the staging table.",
		}),
		ParcelsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parcelforge",
			Name:      "parcels_skipped_total",
			Help:      "Total records skipped for a missing parcel identifier.",
		}),
		ParcelsDuplicate: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parcelforge",
			Name:      "parcels_duplicate_total",
			Help:      "Total records dropped as duplicate parcel identifiers within one run.",
		}),
		IngestRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parcelforge",
			Name:      "ingest_runs_total",
			Help:      "Ingestion runs by outcome.",
		}, []string{"outcome"}),
		IngestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "parcelforge",
			Name:      "ingest_duration_seconds",
			Help:      "Duration of a complete ingestion run including the table swap.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		IngestBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "parcelforge",
			Name:      "ingest_batch_size",
			Help:      "Number of records per insert batch.",
			Buckets:   []float64{1, 10, 100, 250, 500, 1000, 2000},
		}),
		IngestRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "parcelforge",
			Name:      "ingest_running",
			Help:      "1 while an ingestion run is active, 0 otherwise.",
		}),
		ResolveRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parcelforge",
			Name:      "resolve_requests_total",
			Help:      "Resolver requests by mode and outcome.",
		}, []string{"mode", "outcome"}),
		ResolveCandidates: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "parcelforge",
			Name:      "resolve_candidates_tried",
			Help:      "Number of field/type candidates tried before success or exhaustion.",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 8, 10},
		}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "parcelforge",
			Name:      "upstream_request_duration_seconds",
			Help:      "Outbound request duration by upstream service.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"service"}),
	}
}
