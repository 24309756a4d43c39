package client

import (
	"context"
	"errors"
)

// TokenManager supplies bearer credentials to the AuthInterceptor.
// Different implementations keep tokens in cookies, files, memory, etc.
type TokenManager interface {
	// AccessToken returns the current access token and whether one is stored
	AccessToken(ctx context.Context) (token string, ok bool)

	// Refresh obtains and stores an access token newer than stale. When the
	// stored token already differs from stale it is returned without a
	// request. An empty stale forces a refresh. Implementations must coalesce
	// concurrent calls into a single refresh request.
	Refresh(ctx context.Context, stale string) (token string, err error)
}

// StaticTokenManager implements TokenManager for a fixed token that cannot be refreshed
type StaticTokenManager struct {
	token string
}

// NewStaticTokenManager creates a token manager that always returns token
func NewStaticTokenManager(token string) *StaticTokenManager {
	return &StaticTokenManager{token: token}
}

// AccessToken returns the static token
func (s *StaticTokenManager) AccessToken(ctx context.Context) (string, bool) {
	return s.token, s.token != ""
}

// Refresh always fails: a static token has no refresh credential
func (s *StaticTokenManager) Refresh(ctx context.Context, stale string) (string, error) {
	return "", &Error{
		Kind: ErrAuthentication,
		Err:  errors.New("static token cannot be refreshed"),
	}
}
