package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CartOpsTotal counts cart mutations by operation and result.
	CartOpsTotal *prometheus.CounterVec
	// SaleSubmitLatency records end-to-end sale submission latency by outcome.
	SaleSubmitLatency *prometheus.HistogramVec
	// ProductLookupTotal counts product lookups against the sales backend.
	ProductLookupTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers the POS domain collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CartOpsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_operations_total",
			Help:      "Count of cart mutations by operation and result.",
		}, []string{"op", "result"})
		SaleSubmitLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sale_submit_duration_ms",
			Help:      "Latency of sale submissions in milliseconds by outcome.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		}, []string{"outcome"})
		ProductLookupTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "product_lookup_total",
			Help:      "Count of product lookups by result.",
		}, []string{"result"})

		registerDomain(reg, CartOpsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CartOpsTotal = v
			}
		})
		registerDomain(reg, SaleSubmitLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				SaleSubmitLatency = v
			}
		})
		registerDomain(reg, ProductLookupTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ProductLookupTotal = v
			}
		})
	})
}

func registerDomain(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
