package cli

import (
	"fmt"
	"log/slog"

	"github.com/devilmonastery/notedesk/internal/client"
	"github.com/devilmonastery/notedesk/internal/session"
)

// Version is reported in the User-Agent header; set at build time
var Version = "dev"

// newAPIClient creates the unauthenticated HTTP client for the current context
func newAPIClient(config *Config, log *slog.Logger) (*client.Client, error) {
	ctx, err := config.GetCurrentContext()
	if err != nil {
		return nil, err
	}

	serverURL, err := config.ServerURL()
	if err != nil {
		return nil, fmt.Errorf("failed to get server url: %w", err)
	}

	apiClient, err := client.NewClient(serverURL, client.Options{
		Timeout:   ctx.Server.Timeout,
		RateLimit: ctx.Server.RateLimit,
		UserAgent: "notedesk-cli/" + Version,
		Logger:    log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	return apiClient, nil
}

// newSessionManager creates a session manager persisting tokens in the
// current context's credentials file
func newSessionManager(config *Config, apiClient *client.Client, log *slog.Logger) (*session.Manager, error) {
	store, err := newTokenStore(config)
	if err != nil {
		return nil, err
	}
	return session.NewManager(apiClient, store, session.WithLogger(log)), nil
}

// newResourceAPI creates the resource clients. A non-empty static token
// bypasses the stored session and is never refreshed.
func newResourceAPI(apiClient *client.Client, manager *session.Manager, staticToken string) *client.API {
	if staticToken != "" {
		return client.NewAPI(client.NewAuthInterceptor(apiClient, client.NewStaticTokenManager(staticToken)))
	}
	return client.NewAPI(manager.Interceptor())
}
