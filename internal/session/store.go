package session

import (
	"context"
	"sync"
	"time"
)

// Keys under which the two tokens are stored
const (
	AccessKey  = "access"
	RefreshKey = "refresh"
)

// TokenMaxAge is how long stored tokens are kept
const TokenMaxAge = 30 * 24 * time.Hour

// TokenPair is the access/refresh token pair issued at login
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Empty reports whether neither token is set
func (p TokenPair) Empty() bool {
	return p.Access == "" && p.Refresh == ""
}

// TokenStore persists a TokenPair. Save writes both tokens in one operation
// so readers see either the old or the new pair, never a mix.
type TokenStore interface {
	// Load returns the stored pair; missing tokens are empty strings
	Load(ctx context.Context) (TokenPair, error)

	// Save replaces the stored pair
	Save(ctx context.Context, pair TokenPair) error

	// Clear removes both tokens
	Clear(ctx context.Context) error
}

// MemoryStore keeps the token pair in process memory
type MemoryStore struct {
	mu   sync.RWMutex
	pair TokenPair
}

// NewMemoryStore creates a store holding pair
func NewMemoryStore(pair TokenPair) *MemoryStore {
	return &MemoryStore{pair: pair}
}

func (m *MemoryStore) Load(ctx context.Context) (TokenPair, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pair, nil
}

func (m *MemoryStore) Save(ctx context.Context, pair TokenPair) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pair = pair
	return nil
}

func (m *MemoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pair = TokenPair{}
	return nil
}
