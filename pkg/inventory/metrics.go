package inventory

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for ledger operations.
var (
	sellsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "retail_sells_total",
		Help: "Total sell attempts by outcome",
	}, []string{"outcome"}) // "sold", "not_enough", "out_of_stock", "not_found", "error"

	sellConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "retail_sell_conflicts_total",
		Help: "Total sell transaction aborts due to concurrent modification",
	})

	sellRetriesPerSale = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "retail_sell_retries",
		Help:    "Watch conflicts absorbed before a sell committed",
		Buckets: []float64{0, 1, 2, 5, 10, 25, 50},
	})

	restockedItemsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "retail_restocked_items_total",
		Help: "Total items written by restock batches",
	})

	refreshDeletionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "retail_refresh_deletions_total",
		Help: "Total zero-quantity items reclaimed by refresh sweeps",
	})
)
