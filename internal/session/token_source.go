package session

import (
	"context"

	"golang.org/x/oauth2"
)

// TokenSource exposes the session as an oauth2.TokenSource, for use with
// oauth2.NewClient or any other consumer of that interface. An expired access
// token is refreshed before it is returned.
func (m *Manager) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, manager: m}
}

type tokenSource struct {
	ctx     context.Context
	manager *Manager
}

func (s *tokenSource) Token() (*oauth2.Token, error) {
	access, ok := s.manager.AccessToken(s.ctx)
	if !ok || s.manager.IsExpired(access) {
		var err error
		access, err = s.manager.Refresh(s.ctx, access)
		if err != nil {
			return nil, err
		}
	}

	token := &oauth2.Token{
		AccessToken: access,
		TokenType:   "Bearer",
	}
	if exp, ok := tokenExpiry(access); ok {
		token.Expiry = exp
	}
	if refresh, ok := s.manager.RefreshToken(s.ctx); ok {
		token.RefreshToken = refresh
	}
	return token, nil
}
