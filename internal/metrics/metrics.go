package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	mergesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfbinder",
			Name:      "merges_total",
			Help:      "Total merge requests by result (success, invalid_input, overflow, read_error, internal)",
		},
		[]string{"result"},
	)

	mergeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pdfbinder",
			Name:      "merge_duration_seconds",
			Help:      "Duration of merge calls",
			Buckets:   prometheus.DefBuckets,
		},
	)

	outputPages = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pdfbinder",
			Name:      "merge_output_pages",
			Help:      "Pages in merged outputs, contents page included",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	documentsPerMerge = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pdfbinder",
			Name:      "documents_per_merge",
			Help:      "Source documents per merge request",
			Buckets:   []float64{1, 2, 3, 5, 10, 20, 36},
		},
	)

	sourceFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfbinder",
			Name:      "source_fetches_total",
			Help:      "Source document fetches by scheme and result",
		},
		[]string{"scheme", "result"},
	)
)

// Init registers collectors.
func Init() {
	prometheus.MustRegister(mergesTotal, mergeDuration, outputPages, documentsPerMerge, sourceFetches)
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

// ObserveMerge records one completed merge call.
func ObserveMerge(result string, docs, pages int, dur time.Duration) {
	mergesTotal.WithLabelValues(result).Inc()
	mergeDuration.Observe(dur.Seconds())
	if result == "success" {
		outputPages.Observe(float64(pages))
		documentsPerMerge.Observe(float64(docs))
	}
}

// ObserveFetch records a source document fetch.
func ObserveFetch(scheme, result string) {
	sourceFetches.WithLabelValues(scheme, result).Inc()
}
