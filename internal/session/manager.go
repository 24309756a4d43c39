package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/devilmonastery/notedesk/internal/client"
	"github.com/devilmonastery/notedesk/internal/pkg/logger"
	"github.com/devilmonastery/notedesk/internal/pkg/metrics"
)

// Auth endpoints, relative to the API base URL
const (
	LoginPath    = "auth/login/"
	RegisterPath = "auth/register/"
	LogoutPath   = "auth/logout/"
	UserPath     = "auth/user/"
	RefreshPath  = "auth/token/refresh/"
)

// Manager owns the access/refresh token pair: it logs in and out, answers
// validity questions, and refreshes the access token on demand. It is the
// client.TokenManager behind every authenticated API call.
type Manager struct {
	client *client.Client
	api    *client.AuthInterceptor
	store  TokenStore
	now    func() time.Time
	log    *slog.Logger

	refreshes singleflight.Group
}

var _ client.TokenManager = (*Manager)(nil)

// Option configures a Manager
type Option func(*Manager)

// WithClock sets the clock used for expiry checks
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithLogger sets the manager's logger
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.log = l
	}
}

// NewManager creates a session manager sending auth requests through c and
// persisting tokens in store
func NewManager(c *client.Client, store TokenStore, opts ...Option) *Manager {
	m := &Manager{
		client: c,
		store:  store,
		now:    time.Now,
		log:    logger.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = logger.WithComponent(m.log, "session")
	m.api = client.NewAuthInterceptor(c, m)
	return m
}

// Interceptor returns the authenticated dispatcher using this manager's tokens
func (m *Manager) Interceptor() *client.AuthInterceptor {
	return m.api
}

// Tokens returns the stored pair
func (m *Manager) Tokens(ctx context.Context) (TokenPair, error) {
	return m.store.Load(ctx)
}

// AccessToken returns the stored access token and whether one is present
func (m *Manager) AccessToken(ctx context.Context) (string, bool) {
	pair, err := m.store.Load(ctx)
	if err != nil {
		m.log.Warn("failed to load tokens", slog.String("error", err.Error()))
		return "", false
	}
	return pair.Access, pair.Access != ""
}

// RefreshToken returns the stored refresh token and whether one is present
func (m *Manager) RefreshToken(ctx context.Context) (string, bool) {
	pair, err := m.store.Load(ctx)
	if err != nil {
		m.log.Warn("failed to load tokens", slog.String("error", err.Error()))
		return "", false
	}
	return pair.Refresh, pair.Refresh != ""
}

// SetTokens stores a new pair, replacing both tokens
func (m *Manager) SetTokens(ctx context.Context, access, refresh string) error {
	if err := m.store.Save(ctx, TokenPair{Access: access, Refresh: refresh}); err != nil {
		return fmt.Errorf("failed to store tokens: %w", err)
	}
	return nil
}

// ClearTokens removes both tokens
func (m *Manager) ClearTokens(ctx context.Context) error {
	if err := m.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear tokens: %w", err)
	}
	return nil
}

// IsExpired reports whether token is expired by the manager's clock.
// Undecodable tokens count as expired.
func (m *Manager) IsExpired(token string) bool {
	return IsTokenExpired(token, m.now())
}

// ParseSession decodes token using the manager's clock
func (m *Manager) ParseSession(token string) (*Session, error) {
	return ParseSession(token, m.now())
}

// Session decodes the stored access token
func (m *Manager) Session(ctx context.Context) (*Session, error) {
	token, _ := m.AccessToken(ctx)
	return m.ParseSession(token)
}

type tokenResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Refresh exchanges the stored refresh token for an access token newer than
// stale. If the stored access token no longer equals stale, another caller
// already refreshed and that token is returned without a request. An empty
// stale always refreshes. Concurrent calls share one request and all receive
// its result; a caller abandoning its context does not cancel the shared
// request.
func (m *Manager) Refresh(ctx context.Context, stale string) (string, error) {
	ch := m.refreshes.DoChan("refresh", func() (any, error) {
		return m.refresh(context.WithoutCancel(ctx), stale)
	})

	select {
	case <-ctx.Done():
		return "", &client.Error{
			Kind:   client.ErrNetwork,
			Method: http.MethodPost,
			Path:   RefreshPath,
			Err:    ctx.Err(),
		}
	case res := <-ch:
		if res.Shared {
			metrics.TokenRefreshCoalesced.Inc()
		}
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (m *Manager) refresh(ctx context.Context, stale string) (string, error) {
	pair, err := m.store.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load tokens: %w", err)
	}
	// A token stored since the caller saw stale is reused, not rotated again
	if stale != "" && pair.Access != "" && pair.Access != stale {
		m.log.Debug("access token already refreshed")
		return pair.Access, nil
	}
	if pair.Refresh == "" {
		metrics.TokenRefreshes.WithLabelValues("no_token").Inc()
		return "", &client.Error{
			Kind:   client.ErrAuthentication,
			Method: http.MethodPost,
			Path:   RefreshPath,
			Err:    errors.New("no refresh token stored"),
		}
	}

	m.log.Debug("refreshing access token",
		slog.String("refresh_prefix", logger.TokenPreview(pair.Refresh)))

	var out tokenResponse
	err = m.client.Do(ctx, &client.Request{
		Method: http.MethodPost,
		Path:   RefreshPath,
		Body:   map[string]string{"refresh": pair.Refresh},
	}, &out)
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		return "", rejectedAsAuthentication(err)
	}
	if out.Access == "" {
		metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		return "", &client.Error{
			Kind:   client.ErrUnknownServer,
			Method: http.MethodPost,
			Path:   RefreshPath,
			Err:    errors.New("response has no access token"),
		}
	}

	next := TokenPair{Access: out.Access, Refresh: pair.Refresh}
	if out.Refresh != "" {
		next.Refresh = out.Refresh
	}
	if err := m.store.Save(ctx, next); err != nil {
		metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		return "", fmt.Errorf("failed to store refreshed tokens: %w", err)
	}

	metrics.TokenRefreshes.WithLabelValues("success").Inc()
	m.log.Info("access token refreshed",
		slog.Bool("refresh_rotated", out.Refresh != ""))
	return out.Access, nil
}

// Login authenticates with username and password, stores the issued pair
// and returns the decoded session
func (m *Manager) Login(ctx context.Context, username, password string) (*Session, error) {
	var out tokenResponse
	err := m.client.Do(ctx, &client.Request{
		Method: http.MethodPost,
		Path:   LoginPath,
		Body:   map[string]string{"username": username, "password": password},
	}, &out)
	if err != nil {
		m.log.Info("login rejected",
			slog.String("username", username),
			slog.String("error", err.Error()))
		return nil, rejectedAsAuthentication(err)
	}
	if out.Access == "" || out.Refresh == "" {
		return nil, &client.Error{
			Kind:   client.ErrUnknownServer,
			Method: http.MethodPost,
			Path:   LoginPath,
			Err:    errors.New("response is missing a token"),
		}
	}

	if err := m.SetTokens(ctx, out.Access, out.Refresh); err != nil {
		return nil, err
	}

	sess, err := m.ParseSession(out.Access)
	if errors.Is(err, ErrTokenExpired) {
		m.log.Warn("server issued an already expired access token, check the local clock",
			slog.Time("expires_at", sess.ExpiresAt))
		return sess, nil
	}
	if err != nil {
		return nil, fmt.Errorf("login succeeded but the access token is unreadable: %w", err)
	}

	m.log.Info("logged in",
		slog.String("username", sess.Username),
		slog.String("user_id", sess.UserID))
	return sess, nil
}

// RegisterRequest is the body of a sign-up request
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

// Register creates an account. It does not log in.
func (m *Manager) Register(ctx context.Context, req RegisterRequest) error {
	return m.client.Do(ctx, &client.Request{
		Method: http.MethodPost,
		Path:   RegisterPath,
		Body:   req,
	}, nil)
}

// Logout tells the server to revoke the refresh token, then clears the
// stored tokens whatever the server said. A server failure is still
// returned after the local session is cleared.
func (m *Manager) Logout(ctx context.Context) error {
	pair, err := m.store.Load(ctx)
	if err != nil {
		m.log.Warn("failed to load tokens for logout", slog.String("error", err.Error()))
	}

	var serverErr error
	if !pair.Empty() {
		serverErr = m.client.Do(ctx, &client.Request{
			Method:        http.MethodPost,
			Path:          LogoutPath,
			Body:          map[string]string{"refresh": pair.Refresh},
			Authorization: client.Bearer(pair.Access),
		}, nil)
		if serverErr != nil {
			m.log.Warn("server logout failed", slog.String("error", serverErr.Error()))
		}
	}

	if err := m.ClearTokens(ctx); err != nil {
		return errors.Join(err, serverErr)
	}
	if serverErr != nil {
		return fmt.Errorf("local session cleared, server logout failed: %w", serverErr)
	}
	return nil
}

// CurrentUser fetches the authenticated user, refreshing the token if needed
func (m *Manager) CurrentUser(ctx context.Context) (*client.User, error) {
	var user client.User
	if err := m.api.Do(ctx, &client.Request{Method: http.MethodGet, Path: UserPath}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// rejectedAsAuthentication relabels client errors from the auth endpoints:
// a 4xx there means the credentials were rejected. Network and server
// errors keep their kind.
func rejectedAsAuthentication(err error) error {
	status := client.StatusOf(err)
	if status >= 400 && status < 500 {
		return client.WithKind(err, client.ErrAuthentication)
	}
	return err
}
