package session

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/sessions"
)

// CookieName is the name of the cookie holding the token pair
const CookieName = "notedesk_session"

// CookieManager creates per-request token stores backed by a signed cookie
type CookieManager struct {
	store *sessions.CookieStore
}

// NewCookieManager creates a cookie manager. keyPairs are passed to
// gorilla/sessions: authentication key, then optional encryption key, and
// so on for key rotation.
func NewCookieManager(keyPairs ...[]byte) *CookieManager {
	store := sessions.NewCookieStore(keyPairs...)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(TokenMaxAge.Seconds()),
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
	return &CookieManager{store: store}
}

// Store returns a TokenStore reading from r and writing Set-Cookie headers
// to w. It is only valid for the lifetime of that request.
func (m *CookieManager) Store(r *http.Request, w http.ResponseWriter) TokenStore {
	return &CookieStore{manager: m, r: r, w: w}
}

// CookieStore is a TokenStore bound to one HTTP request
type CookieStore struct {
	manager *CookieManager
	r       *http.Request
	w       http.ResponseWriter
}

func (c *CookieStore) session() (*sessions.Session, error) {
	// Get returns a fresh session alongside the error when the cookie
	// cannot be decoded, e.g. after a key rotation
	sess, err := c.manager.store.Get(c.r, CookieName)
	if err != nil && sess == nil {
		return nil, fmt.Errorf("failed to read session cookie: %w", err)
	}
	return sess, nil
}

func (c *CookieStore) Load(ctx context.Context) (TokenPair, error) {
	sess, err := c.session()
	if err != nil {
		return TokenPair{}, err
	}
	access, _ := sess.Values[AccessKey].(string)
	refresh, _ := sess.Values[RefreshKey].(string)
	return TokenPair{Access: access, Refresh: refresh}, nil
}

func (c *CookieStore) Save(ctx context.Context, pair TokenPair) error {
	sess, err := c.session()
	if err != nil {
		return err
	}
	sess.Values[AccessKey] = pair.Access
	sess.Values[RefreshKey] = pair.Refresh
	sess.Options.MaxAge = int(TokenMaxAge.Seconds())
	if err := sess.Save(c.r, c.w); err != nil {
		return fmt.Errorf("failed to save session cookie: %w", err)
	}
	return nil
}

func (c *CookieStore) Clear(ctx context.Context) error {
	sess, err := c.session()
	if err != nil {
		return err
	}
	delete(sess.Values, AccessKey)
	delete(sess.Values, RefreshKey)
	sess.Options.MaxAge = -1
	if err := sess.Save(c.r, c.w); err != nil {
		return fmt.Errorf("failed to clear session cookie: %w", err)
	}
	return nil
}
