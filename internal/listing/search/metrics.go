package search

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	searchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "search_time_seconds",
		Help:    "Time spent filtering and ranking listings for a search.",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})

	resultCount = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "search_results",
		Help:    "Number of listings returned per search.",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
	})
)
