package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoToken      = errors.New("no token")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Session is what the client knows about the logged-in user, decoded from
// the access token. Signatures are not verified; the server stays the
// authority on whether a token is accepted.
type Session struct {
	UserID    string
	Username  string
	ExpiresAt time.Time
}

// Valid reports whether the session expires strictly after now
func (s *Session) Valid(now time.Time) bool {
	return s.ExpiresAt.After(now)
}

// Remaining returns the time left before expiry, never negative
func (s *Session) Remaining(now time.Time) time.Duration {
	if d := s.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

var parser = jwt.NewParser(jwt.WithJSONNumber())

// ParseSession decodes the claims of token without verifying its signature.
// An expired token returns the decoded session together with ErrTokenExpired.
func ParseSession(token string, now time.Time) (*Session, error) {
	if token == "" {
		return nil, ErrNoToken
	}

	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if exp == nil {
		return nil, fmt.Errorf("%w: missing exp claim", ErrInvalidToken)
	}

	s := &Session{
		UserID:    claimString(claims["user_id"]),
		ExpiresAt: exp.Time,
	}
	if s.UserID == "" {
		s.UserID, _ = claims.GetSubject()
	}
	if username, ok := claims["username"].(string); ok {
		s.Username = username
	}

	if !s.Valid(now) {
		return s, ErrTokenExpired
	}
	return s, nil
}

// IsTokenExpired reports whether token is expired at now. Tokens that cannot
// be decoded or carry no exp claim count as expired.
func IsTokenExpired(token string, now time.Time) bool {
	exp, ok := tokenExpiry(token)
	if !ok {
		return true
	}
	return !exp.After(now)
}

// tokenExpiry returns the exp claim of token, if it can be decoded
func tokenExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// claimString renders a string or numeric claim as a string
func claimString(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case json.Number:
		return value.String()
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	default:
		return ""
	}
}
