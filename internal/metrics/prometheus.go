package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const promNamespace = "bnf_quoter_bot"

type promCounter struct {
	counter prometheus.Counter
}

func (p promCounter) Inc() {
	p.counter.Inc()
}

type Prometheus struct {
	Metrics *Metrics

	registry *prometheus.Registry
}

func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()
	ordersPlaced := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "orders_placed_total",
		Help:      "Total number of limit orders sent to the exchange.",
	})
	ordersRejected := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "orders_rejected_total",
		Help:      "Total number of order placements rejected by the exchange.",
	})
	cancelsSent := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "cancels_sent_total",
		Help:      "Total number of cancel requests sent to the exchange.",
	})
	cancelsFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "cancels_failed_total",
		Help:      "Total number of cancel requests rejected by the exchange.",
	})
	fillsObserved := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "fills_observed_total",
		Help:      "Total number of TRADE status events observed.",
	})
	healsTriggered := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "heals_triggered_total",
		Help:      "Total number of full pulls forced by the order count check.",
	})

	registry.MustRegister(ordersPlaced, ordersRejected, cancelsSent, cancelsFailed, fillsObserved, healsTriggered)

	return &Prometheus{
		Metrics: &Metrics{
			OrdersPlaced:   promCounter{ordersPlaced},
			OrdersRejected: promCounter{ordersRejected},
			CancelsSent:    promCounter{cancelsSent},
			CancelsFailed:  promCounter{cancelsFailed},
			FillsObserved:  promCounter{fillsObserved},
			HealsTriggered: promCounter{healsTriggered},
		},
		registry: registry,
	}
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
