package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RecordAPICall records API request metrics consistently
// method: HTTP verb
// route: normalized route (IDs replaced by placeholders)
// statusCode: HTTP status, 0 when no response was received
// err: transport error (nil if a response was received)
func RecordAPICall(method, route string, statusCode int, duration time.Duration, err error) {
	APIRequests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	APIDuration.WithLabelValues(method, route).Observe(float64(duration.Milliseconds()))

	if err != nil || statusCode >= 400 {
		APIErrors.WithLabelValues(route, ClassifyAPIError(statusCode, err)).Inc()
	}
}

// ClassifyAPIError categorizes API failures for metrics
func ClassifyAPIError(statusCode int, err error) string {
	if err != nil {
		errStr := strings.ToLower(err.Error())
		switch {
		case strings.Contains(errStr, "context canceled"):
			return "canceled"
		case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline"):
			return "timeout"
		case strings.Contains(errStr, "connection"):
			return "connection"
		case strings.Contains(errStr, "tls"):
			return "tls"
		default:
			return "network"
		}
	}

	switch {
	case statusCode == 400:
		return "bad_request"
	case statusCode == 401:
		return "unauthorized"
	case statusCode == 403:
		return "forbidden"
	case statusCode == 404:
		return "not_found"
	case statusCode == 429:
		return "rate_limited"
	case statusCode >= 500:
		return "server_error"
	case statusCode >= 400:
		return "client_error"
	default:
		return "unknown"
	}
}

// WriteTextfile writes every registered metric to path in the Prometheus
// text format, for pickup by a node_exporter textfile collector
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
