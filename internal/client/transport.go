package client

import (
	"net/http"
	"regexp"
	"time"

	"github.com/devilmonastery/notedesk/internal/pkg/metrics"
)

// metricsTransport wraps an http.RoundTripper to collect metrics on API calls
type metricsTransport struct {
	base http.RoundTripper
}

// NewMetricsTransport creates a transport wrapper that records request
// counts, latency and failures for every call made through it.
func NewMetricsTransport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &metricsTransport{base: base}
}

// RoundTrip implements http.RoundTripper
func (t *metricsTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	duration := time.Since(start)

	statusCode := 0
	if resp != nil {
		statusCode = resp.StatusCode
	}

	metrics.RecordAPICall(req.Method, normalizeRoute(req.URL.Path), statusCode, duration, err)

	return resp, err
}

var routePatterns = []struct {
	regex   *regexp.Regexp
	replace string
}{
	{regexp.MustCompile(`/(notes|categories|tags)/\d+`), "/$1/:id"},
	{regexp.MustCompile(`/notes/[A-Za-z0-9_-]+/history`), "/notes/:slug/history"},
	{regexp.MustCompile(`/notes/[A-Za-z][A-Za-z0-9_-]*(/?)$`), "/notes/:slug$1"},
}

// normalizeRoute replaces IDs and slugs with placeholders so metric
// cardinality stays bounded
func normalizeRoute(path string) string {
	normalized := path
	for _, p := range routePatterns {
		normalized = p.regex.ReplaceAllString(normalized, p.replace)
	}
	return normalized
}
