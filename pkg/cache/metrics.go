package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "retail_cache_hits_total",
			Help: "Total number of cache hits",
		},
	)

	// CacheMisses tracks cache misses
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "retail_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	// CacheFills tracks upstream fetches that populated the cache
	CacheFills = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "retail_cache_fills_total",
			Help: "Total number of cache fills from upstream",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retail_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
