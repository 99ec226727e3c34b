// Liveline - Live Event Threads with Asynchronous Media Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liveline

// Package metrics provides Prometheus instrumentation for Liveline:
// store operations, media cache efficiency, scraper outcomes, enrichment
// job results, and websocket fan-out.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Store metrics
	StoreOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "liveline_store_op_duration_seconds",
			Help:    "Duration of durable store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	StoreOpErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liveline_store_op_errors_total",
			Help: "Total number of store operation errors",
		},
		[]string{"operation"},
	)

	// Media cache metrics
	MediaCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "liveline_media_cache_hits_total",
			Help: "Total media cache hits (positive, empty, and error entries)",
		},
	)

	MediaCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "liveline_media_cache_misses_total",
			Help: "Total media cache misses requiring an outbound scrape",
		},
	)

	// Scraper metrics
	ScrapeFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liveline_scrape_fetches_total",
			Help: "Total outbound scrape attempts by provider and outcome",
		},
		[]string{"provider", "outcome"}, // outcome: ok, empty, error
	)

	ScrapeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "liveline_scrape_duration_seconds",
			Help:    "Duration of outbound scrape fetches in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider"},
	)

	// Enrichment pipeline metrics
	EnrichJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liveline_enrich_jobs_total",
			Help: "Total enrichment jobs by terminal outcome",
		},
		[]string{"outcome"}, // outcome: enriched, empty, stale, malformed, failed
	)

	EnrichEmbedsPerUpdate = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "liveline_enrich_embeds_per_update",
			Help:    "Number of media objects attached per enriched update",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 15},
		},
	)

	// Broadcast metrics
	WebsocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "liveline_websocket_clients",
			Help: "Current number of connected websocket clients",
		},
	)

	BroadcastsPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "liveline_broadcasts_published_total",
			Help: "Total broadcast payloads published to event namespaces",
		},
	)

	// HTTP surface metrics
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liveline_http_requests_total",
			Help: "Total HTTP requests by method, route pattern, and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "liveline_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds by method and route pattern",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	HTTPActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "liveline_http_active_requests",
			Help: "Current number of in-flight HTTP requests",
		},
	)

	// Visitor activity metrics
	VisitorTouches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "liveline_visitor_touches_total",
			Help: "Total visitor activity touches recorded",
		},
	)
)

// ObserveStoreOp records the duration of a store operation.
func ObserveStoreOp(operation string, start time.Time) {
	StoreOpDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// RecordStoreError increments the error counter for a store operation.
func RecordStoreError(operation string) {
	StoreOpErrors.WithLabelValues(operation).Inc()
}

// RecordMediaCacheHit increments the media cache hit counter.
func RecordMediaCacheHit() { MediaCacheHits.Inc() }

// RecordMediaCacheMiss increments the media cache miss counter.
func RecordMediaCacheMiss() { MediaCacheMisses.Inc() }

// RecordScrape records one outbound scrape attempt.
func RecordScrape(provider, outcome string, start time.Time) {
	ScrapeFetches.WithLabelValues(provider, outcome).Inc()
	ScrapeDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
}

// RecordEnrichJob records an enrichment job's terminal outcome.
func RecordEnrichJob(outcome string) {
	EnrichJobs.WithLabelValues(outcome).Inc()
}

// RecordBroadcast increments the broadcast counter.
func RecordBroadcast() { BroadcastsPublished.Inc() }

// RecordVisitorTouch increments the visitor touch counter.
func RecordVisitorTouch() { VisitorTouches.Inc() }

// RecordHTTPRequest records one completed HTTP request. route is the
// chi route pattern, not the raw path, to bound label cardinality.
func RecordHTTPRequest(method, route, status string, start time.Time) {
	HTTPRequests.WithLabelValues(method, route, status).Inc()
	HTTPDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
}

// TrackActiveRequest adjusts the in-flight HTTP request gauge.
func TrackActiveRequest(active bool) {
	if active {
		HTTPActiveRequests.Inc()
	} else {
		HTTPActiveRequests.Dec()
	}
}
