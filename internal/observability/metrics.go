// Package observability provides Prometheus metrics for the extraction and
// indexing pipeline.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EmbedBuckets covers local hashing (sub-millisecond) up to slow remote
// batches.
var EmbedBuckets = []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60}

var (
	// EmbedRequestsTotal counts Embed calls by provider and outcome.
	EmbedRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zotindex_embed_requests_total",
			Help: "Embedding calls",
		},
		[]string{"provider", "status"},
	)

	// EmbedLatency records Embed call duration in seconds.
	EmbedLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zotindex_embed_latency_seconds",
			Help:    "Embedding latency",
			Buckets: EmbedBuckets,
		},
		[]string{"provider"},
	)

	// EmbeddedTextsTotal counts texts successfully embedded.
	EmbeddedTextsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zotindex_embedded_texts_total",
			Help: "Texts embedded",
		},
		[]string{"provider"},
	)

	// IndexOperationsTotal counts index manager operations by outcome.
	IndexOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zotindex_index_operations_total",
			Help: "Index operations",
		},
		[]string{"op", "status"},
	)

	// CollectionDocuments tracks the last observed document count.
	CollectionDocuments = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "zotindex_collection_documents",
			Help: "Documents in collection",
		},
		[]string{"collection"},
	)
)

func init() {
	prometheus.MustRegister(
		EmbedRequestsTotal,
		EmbedLatency,
		EmbeddedTextsTotal,
		IndexOperationsTotal,
		CollectionDocuments,
	)
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveEmbed records one Embed call that started at start.
func ObserveEmbed(provider string, start time.Time, texts int, err error) {
	EmbedRequestsTotal.WithLabelValues(provider, status(err)).Inc()
	EmbedLatency.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	if err == nil {
		EmbeddedTextsTotal.WithLabelValues(provider).Add(float64(texts))
	}
}

// ObserveOperation records one index manager operation.
func ObserveOperation(op string, err error) {
	IndexOperationsTotal.WithLabelValues(op, status(err)).Inc()
}
