package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var metricPanic = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "mailflow_panic_total",
		Help: "Number of unhandled panics, by package.",
	},
	[]string{
		"pkg",
	},
)

// PanicInc counts an unhandled panic that was recovered in package pkg, e.g.
// in an HTTP handler of webflow.
func PanicInc(pkg string) {
	metricPanic.WithLabelValues(pkg).Inc()
}
