package checkout

import "github.com/prometheus/client_golang/prometheus"

// SubmissionsTotal counts checkout submissions by terminal outcome.
var SubmissionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "checkout_submissions_total",
		Help: "Checkout submissions by outcome (committed, rejected, indeterminate)",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(SubmissionsTotal)
}
