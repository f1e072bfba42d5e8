package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	CartMutations        prometheus.Counter
	CatalogFetchFailures prometheus.Counter
	OrdersSubmitted      prometheus.Counter
	OrdersFailed         prometheus.Counter
	CheckoutLatencySec   prometheus.Histogram
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	cartMutations := prometheus.NewCounter(prometheus.CounterOpts{Name: "store_cart_mutations_total"})
	fetchFailures := prometheus.NewCounter(prometheus.CounterOpts{Name: "store_catalog_fetch_failures_total"})
	ordersSubmitted := prometheus.NewCounter(prometheus.CounterOpts{Name: "store_orders_submitted_total"})
	ordersFailed := prometheus.NewCounter(prometheus.CounterOpts{Name: "store_orders_failed_total"})
	checkoutLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "store_checkout_latency_seconds",
		Buckets: prometheus.DefBuckets,
	})

	r.MustRegister(cartMutations, fetchFailures, ordersSubmitted, ordersFailed, checkoutLatency)
	return &Registry{
		reg:                  r,
		CartMutations:        cartMutations,
		CatalogFetchFailures: fetchFailures,
		OrdersSubmitted:      ordersSubmitted,
		OrdersFailed:         ordersFailed,
		CheckoutLatencySec:   checkoutLatency,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
