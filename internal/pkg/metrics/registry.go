package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Remote API Metrics
var (
	// APIRequests tracks every HTTP request sent to the notes API
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notedesk_api_requests_total",
			Help: "Total API requests by method, normalized route, and status code",
		},
		[]string{"method", "route", "status"},
	)

	// APIDuration tracks API request latency
	APIDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "notedesk_api_request_duration_ms",
			Help:                            "API request duration in milliseconds",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"method", "route"},
	)

	// APIErrors tracks failed API requests by error type
	APIErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notedesk_api_errors_total",
			Help: "Total failed API requests by normalized route and error type",
		},
		[]string{"route", "error_type"},
	)
)

// Session Metrics
var (
	// TokenRefreshes tracks refresh-token exchanges that reached the server
	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notedesk_token_refresh_total",
			Help: "Total token refresh requests by result",
		},
		[]string{"result"},
	)

	// TokenRefreshCoalesced counts callers that shared an in-flight refresh
	TokenRefreshCoalesced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notedesk_token_refresh_coalesced_total",
			Help: "Total refresh callers that received the result of a shared in-flight refresh",
		},
	)

	// AuthRetries tracks requests retried after a 401
	AuthRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notedesk_auth_retries_total",
			Help: "Total requests retried after an authorization failure, by outcome",
		},
		[]string{"outcome"},
	)
)

// Picker Metrics
var (
	// StaleResponses counts list responses discarded because a newer query was issued
	StaleResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notedesk_stale_responses_total",
			Help: "Total list responses discarded in favor of a newer query",
		},
		[]string{"picker"},
	)
)
