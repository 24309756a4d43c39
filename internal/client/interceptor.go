package client

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/devilmonastery/notedesk/internal/pkg/logger"
	"github.com/devilmonastery/notedesk/internal/pkg/metrics"
)

// AuthInterceptor is the single dispatch path for authenticated API calls.
// It attaches the bearer token and, on a 401, refreshes once and retries once.
type AuthInterceptor struct {
	client *Client
	tokens TokenManager
	log    *slog.Logger
}

// NewAuthInterceptor creates an interceptor sending requests through c with
// credentials from tokens
func NewAuthInterceptor(c *Client, tokens TokenManager) *AuthInterceptor {
	return &AuthInterceptor{
		client: c,
		tokens: tokens,
		log:    c.log.With(slog.String("component", "auth_interceptor")),
	}
}

// Do sends req with bearer authentication and decodes a 2xx body into out
func (a *AuthInterceptor) Do(ctx context.Context, req *Request, out any) error {
	resp, err := a.Send(ctx, req)
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

// Send sends req with bearer authentication and returns the 2xx response.
// Any other outcome is returned as a classified *Error.
func (a *AuthInterceptor) Send(ctx context.Context, req *Request) (*Response, error) {
	// Encode once so the retry resends an identical body
	payload, err := encodeBody(req)
	if err != nil {
		return nil, err
	}

	token, _ := a.tokens.AccessToken(ctx)

	attempt := *req
	attempt.Authorization = Bearer(token)

	resp, err := a.client.send(ctx, &attempt, payload)
	if err != nil {
		return nil, err
	}
	if resp.Status != http.StatusUnauthorized {
		return resp, resp.Err()
	}

	a.log.Info("authentication failed, attempting token refresh",
		slog.String("method", req.Method),
		slog.String("path", req.Path),
		slog.String("token_prefix", logger.TokenPreview(token)))

	newToken, err := a.renewToken(ctx, token)
	if err != nil {
		metrics.AuthRetries.WithLabelValues("refresh_failed").Inc()
		a.log.Warn("token refresh failed",
			slog.String("path", req.Path),
			slog.String("error", err.Error()))
		// Transient failures leave the session intact
		switch KindOf(err) {
		case ErrNetwork, ErrUnknownServer:
			return nil, err
		}
		return nil, &Error{
			Kind:   ErrAuthorization,
			Status: http.StatusUnauthorized,
			Method: req.Method,
			Path:   req.Path,
			Body:   truncateBody(resp.Body),
			Err:    err,
		}
	}

	// Retry exactly once; a second 401 is terminal and never refreshes again
	attempt.Authorization = Bearer(newToken)
	resp, err = a.client.send(ctx, &attempt, payload)
	if err != nil {
		return nil, err
	}
	if resp.Status == http.StatusUnauthorized {
		metrics.AuthRetries.WithLabelValues("unauthorized").Inc()
		a.log.Warn("request still unauthorized after token refresh",
			slog.String("path", req.Path))
	} else {
		metrics.AuthRetries.WithLabelValues("retried").Inc()
	}

	return resp, resp.Err()
}

// renewToken returns a token newer than stale. When another caller has
// already stored a fresh token it is reused instead of rotating again.
func (a *AuthInterceptor) renewToken(ctx context.Context, stale string) (string, error) {
	if current, ok := a.tokens.AccessToken(ctx); ok && current != stale {
		a.log.Debug("access token already renewed by a concurrent request")
		return current, nil
	}
	return a.tokens.Refresh(ctx, stale)
}
