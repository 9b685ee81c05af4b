package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the matcher's Prometheus instruments. Registered once on the
// default registry at construction.
type Metrics struct {
	OrdersAccepted  prometheus.Counter
	OrdersRejected  *prometheus.CounterVec // reason
	OrdersCancelled prometheus.Counter

	MatchesCreated *prometheus.CounterVec // path: auto | trigger
	Settlements    *prometheus.CounterVec // outcome: success | failure kind

	BookOrders      *prometheus.GaugeVec // side
	PendingDepth    prometheus.Gauge
	DeadLetterDepth prometheus.Gauge
}

func NewMetrics() *Metrics {
	return &Metrics{
		OrdersAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "darkpool_orders_accepted_total",
			Help: "Orders that entered the book",
		}),
		OrdersRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "darkpool_orders_rejected_total",
			Help: "Orders rejected before entering the book",
		}, []string{"reason"}),
		OrdersCancelled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "darkpool_orders_cancelled_total",
			Help: "Orders removed by cancel requests",
		}),
		MatchesCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "darkpool_matches_created_total",
			Help: "Matches produced, by matching path",
		}, []string{"path"}),
		Settlements: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "darkpool_settlements_total",
			Help: "Settlement attempts, by outcome",
		}, []string{"outcome"}),
		BookOrders: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "darkpool_book_orders",
			Help: "Resting orders per side",
		}, []string{"side"}),
		PendingDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "darkpool_pending_matches",
			Help: "Matches awaiting settlement",
		}),
		DeadLetterDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "darkpool_dead_letter_matches",
			Help: "Matches that exhausted settlement retries",
		}),
	}
}
