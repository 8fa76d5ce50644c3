// Package metrics
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recipeingest_stage_duration_seconds",
			Help:    "Duration of each ingestion pipeline stage in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)
	IngestRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipeingest_requests_total",
			Help: "Total ingestion requests, labeled by outcome code.",
		},
		[]string{"code"},
	)
	IngredientsExtracted = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recipeingest_ingredients_per_recipe",
			Help:    "Number of ingredients extracted per successful request.",
			Buckets: []float64{0, 1, 2, 5, 10, 15, 20, 30, 50},
		},
	)
	RateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "recipeingest_rate_limited_total",
			Help: "Total requests denied by the rate limiter.",
		},
	)
	ExtractionTokens = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "recipeingest_extraction_tokens_total",
			Help: "Total tokens consumed by the extraction service.",
		},
	)
)

func init() {
	prometheus.MustRegister(StageDuration)
	prometheus.MustRegister(IngestRequests)
	prometheus.MustRegister(IngredientsExtracted)
	prometheus.MustRegister(RateLimited)
	prometheus.MustRegister(ExtractionTokens)
}

// Handler returns the Prometheus scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
