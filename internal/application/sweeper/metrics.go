package sweeper

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auction_sweeps_total",
		Help: "Completed transition sweeps.",
	})
	sweepErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auction_sweep_errors_total",
		Help: "Sweeps aborted before enumerating listings.",
	})
	listingsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auction_sweep_listings_skipped_total",
		Help: "Listings skipped within a sweep after store errors.",
	})
	transitionsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auction_sweep_transitions_total",
		Help: "Status transitions applied by the sweep.",
	}, []string{"to"})
)
