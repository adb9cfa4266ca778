package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricFlowLines = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailflow_flow_lines_total",
			Help: "Lines processed by the flowing pipeline, logical lines in and physical lines out.",
		},
		[]string{
			"kind", // logical, physical
		},
	)
	metricFlowWrapped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mailflow_flow_wrapped_total",
			Help: "Logical lines that were wrapped into multiple physical lines.",
		},
	)
	metricEncoding = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailflow_encoding_total",
			Help: "Content-Transfer-Encoding selections, by result: 7bit, 8bit, unchanged.",
		},
		[]string{
			"encoding",
		},
	)
	metricRewrite = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailflow_rewrite_parts_total",
			Help: "Message parts seen during rewrite, by action: flowed, copied.",
		},
		[]string{
			"action",
		},
	)
)

// FlowLines counts a flowed body with its number of logical lines, physical
// lines, and logical lines that were wrapped.
func FlowLines(logical, physical, wrapped int) {
	metricFlowLines.WithLabelValues("logical").Add(float64(logical))
	metricFlowLines.WithLabelValues("physical").Add(float64(physical))
	metricFlowWrapped.Add(float64(wrapped))
}

func EncodingInc(encoding string) {
	metricEncoding.WithLabelValues(encoding).Inc()
}

func RewritePartInc(action string) {
	metricRewrite.WithLabelValues(action).Inc()
}
