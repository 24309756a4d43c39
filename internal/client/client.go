package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/devilmonastery/notedesk/internal/pkg/idgen"
	"github.com/devilmonastery/notedesk/internal/pkg/logger"
)

const (
	// DefaultTimeout bounds a single request, including reading the body
	DefaultTimeout = 30 * time.Second

	// RequestIDHeader carries a per-request Snowflake ID for log correlation
	RequestIDHeader = "X-Request-ID"
)

// Options configures a Client
type Options struct {
	// Timeout for each request; DefaultTimeout when zero
	Timeout time.Duration

	// RateLimit caps requests per second sent by this client; 0 disables limiting
	RateLimit float64

	// Burst is the rate limiter bucket size; defaults to 1 when RateLimit is set
	Burst int

	// Transport overrides the base round tripper (tests, proxies)
	Transport http.RoundTripper

	// UserAgent is sent on every request when non-empty
	UserAgent string

	Logger *slog.Logger
}

// Client sends JSON requests to the notes API. It applies no authentication
// policy of its own; see AuthInterceptor for the bearer/refresh behavior.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
	log        *slog.Logger
}

// NewClient creates a client for the API rooted at baseURL
// (e.g. "https://notes.example.com/api/")
func NewClient(baseURL string, opts Options) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API base URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid API base URL %q: scheme must be http or https", baseURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	base := opts.Transport
	if base == nil {
		base = defaultTransport(u)
	}

	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}

	c := &Client{
		baseURL: u,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: NewMetricsTransport(base),
		},
		userAgent: opts.UserAgent,
		log:       logger.WithComponent(log, "api_client"),
	}

	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return c, nil
}

// defaultTransport enforces a modern TLS floor for remote hosts
func defaultTransport(u *url.URL) http.RoundTripper {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if u.Scheme == "https" {
		transport.TLSClientConfig = &tls.Config{
			ServerName: u.Hostname(),
			MinVersion: tls.VersionTLS12,
		}
	}
	return transport
}

// BaseURL returns the API root this client was created with
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Request describes one API call
type Request struct {
	Method string
	Path   string     // relative to the base URL, e.g. "notes/12/"
	Query  url.Values // optional query parameters
	Body   any        // JSON-encoded when non-nil

	// Authorization is sent verbatim as the Authorization header when non-empty
	Authorization string
}

// Bearer formats an Authorization header value. An empty token still yields
// a Bearer header so the server, not the client, rejects the request.
func Bearer(token string) string {
	return "Bearer " + token
}

// Response is a fully buffered API response
type Response struct {
	Status    int
	Header    http.Header
	Body      []byte
	Method    string
	Path      string
	RequestID string
}

// Err returns nil for 2xx responses and a classified *Error otherwise
func (r *Response) Err() error {
	if r.Status >= 200 && r.Status < 300 {
		return nil
	}
	return &Error{
		Kind:   KindForStatus(r.Status),
		Status: r.Status,
		Method: r.Method,
		Path:   r.Path,
		Body:   truncateBody(r.Body),
	}
}

// Decode unmarshals the body into out. A nil out or an empty body is a no-op.
func (r *Response) Decode(out any) error {
	if out == nil || len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, out); err != nil {
		return &Error{
			Kind:   ErrUnknownServer,
			Status: r.Status,
			Method: r.Method,
			Path:   r.Path,
			Body:   truncateBody(r.Body),
			Err:    fmt.Errorf("invalid response body: %w", err),
		}
	}
	return nil
}

// Do sends req and decodes a 2xx body into out
func (c *Client) Do(ctx context.Context, req *Request, out any) error {
	resp, err := c.Send(ctx, req)
	if err != nil {
		return err
	}
	if err := resp.Err(); err != nil {
		return err
	}
	return resp.Decode(out)
}

// Send performs req and returns the buffered response whatever its status.
// The returned error is non-nil only when no response was received.
func (c *Client) Send(ctx context.Context, req *Request) (*Response, error) {
	payload, err := encodeBody(req)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, req, payload)
}

// encodeBody marshals the request body once; nil when there is no body
func encodeBody(req *Request) ([]byte, error) {
	if req.Body == nil {
		return nil, nil
	}
	payload, err := json.Marshal(req.Body)
	if err != nil {
		return nil, invalidArgument(req.Method, req.Path, "failed to encode request body: %w", err)
	}
	return payload, nil
}

func (c *Client) send(ctx context.Context, req *Request, payload []byte) (*Response, error) {
	requestID := idgen.RequestID()
	log := logger.WithAPIRequest(c.log, req.Method, req.Path, requestID)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, c.networkError(req, fmt.Errorf("rate limit wait: %w", err))
		}
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.resolve(req), body)
	if err != nil {
		return nil, invalidArgument(req.Method, req.Path, "failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(RequestIDHeader, requestID)
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.Authorization != "" {
		httpReq.Header.Set("Authorization", req.Authorization)
	}
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.Debug("api request failed", slog.String("error", err.Error()))
		return nil, c.networkError(req, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, c.networkError(req, fmt.Errorf("failed to read response body: %w", err))
	}

	logger.WithDuration(log, time.Since(start)).Debug("api request completed",
		slog.Int("status", httpResp.StatusCode))

	return &Response{
		Status:    httpResp.StatusCode,
		Header:    httpResp.Header,
		Body:      data,
		Method:    req.Method,
		Path:      req.Path,
		RequestID: requestID,
	}, nil
}

// resolve joins the request path and query onto the base URL
func (c *Client) resolve(req *Request) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + strings.TrimLeft(req.Path, "/")
	u.RawPath = ""
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	} else {
		u.RawQuery = ""
	}
	return u.String()
}

func (c *Client) networkError(req *Request, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		c.log.Debug("api request abandoned",
			slog.String("path", req.Path),
			slog.String("error", err.Error()))
	}
	return &Error{
		Kind:   ErrNetwork,
		Method: req.Method,
		Path:   req.Path,
		Err:    err,
	}
}
