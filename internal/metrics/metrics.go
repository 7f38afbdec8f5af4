// Package metrics defines the Prometheus collectors for the RAG backend
// and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors. Each instance carries its own
// registry so independent instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	DocumentsIngestedTotal prometheus.Counter
	ChunksIndexedTotal     prometheus.Counter
	IngestFilesTotal       *prometheus.CounterVec
	JobsCompletedTotal     *prometheus.CounterVec
	SearchRequestsTotal    *prometheus.CounterVec
	SearchLatency          prometheus.Histogram
	IndexSize              prometheus.Gauge
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		DocumentsIngestedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rag_documents_ingested_total",
			Help: "Total documents successfully ingested.",
		}),
		ChunksIndexedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rag_chunks_indexed_total",
			Help: "Total chunks embedded and inserted into the index.",
		}),
		IngestFilesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rag_ingest_files_total",
			Help: "Files processed by the ingestion worker, by outcome.",
		}, []string{"outcome"}),
		JobsCompletedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rag_jobs_total",
			Help: "Ingestion jobs reaching a terminal state, by state.",
		}, []string{"state"}),
		SearchRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rag_search_requests_total",
			Help: "Search requests, by result (ok, empty, error).",
		}, []string{"result"}),
		SearchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rag_search_latency_seconds",
			Help:    "End-to-end search latency including query embedding.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		IndexSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rag_index_size",
			Help: "Currently live entries in the vector index.",
		}),
	}

	m.registry.MustRegister(
		m.DocumentsIngestedTotal,
		m.ChunksIndexedTotal,
		m.IngestFilesTotal,
		m.JobsCompletedTotal,
		m.SearchRequestsTotal,
		m.SearchLatency,
		m.IndexSize,
	)
	return m
}

// Handler returns the Prometheus scrape handler for this instance.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
