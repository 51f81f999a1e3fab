package booking

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	bookingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "booking_time_seconds",
		Help:    "Time spent allocating capacity for a booking.",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})

	boxesBooked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boxes_booked_total",
		Help: "Total boxes successfully allocated across all listings.",
	})

	holdContention = promauto.NewCounter(prometheus.CounterOpts{
		Name: "booking_hold_contention_total",
		Help: "Times a booking had to retry because the listing hold was taken.",
	})
)
