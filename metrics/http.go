// Package metrics has prometheus metric variables/functions.
package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mjl-/mailflow/mlog"
)

var pkglog = mlog.New("metrics", nil)

var (
	metricHTTPServer = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mailflow_httpserver_request_duration_seconds",
			Help:    "HTTP server requests, by endpoint and response code class.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.100, 0.5, 1, 5},
		},
		[]string{
			"endpoint",
			"result", // ok, usererror, servererror, other
		},
	)
)

// HTTPServerObserve tracks the result of an HTTP request in a metric, and logs
// the result.
func HTTPServerObserve(ctx context.Context, endpoint string, statusCode int, start time.Time) {
	log := pkglog.WithContext(ctx)
	var result string
	switch statusCode / 100 {
	case 2:
		result = "ok"
	case 4:
		result = "usererror"
	case 5:
		result = "servererror"
	default:
		result = "other"
	}
	metricHTTPServer.WithLabelValues(endpoint, result).Observe(float64(time.Since(start)) / float64(time.Second))
	log.Debug("httpserver result",
		slog.String("endpoint", endpoint),
		slog.String("code", fmt.Sprintf("%d", statusCode)),
		slog.Duration("duration", time.Since(start)))
}
