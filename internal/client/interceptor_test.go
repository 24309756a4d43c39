package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// fakeTokens is an in-memory TokenManager whose Refresh swaps in next
type fakeTokens struct {
	mu         sync.Mutex
	token      string
	next       string
	refreshErr error
	refreshes  int
}

func (f *fakeTokens) AccessToken(ctx context.Context) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token, f.token != ""
}

func (f *fakeTokens) Refresh(ctx context.Context, stale string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	if f.refreshErr != nil {
		return "", f.refreshErr
	}
	f.token = f.next
	return f.token, nil
}

func (f *fakeTokens) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes
}

func newTestInterceptor(t *testing.T, handler http.Handler, tokens TokenManager) *AuthInterceptor {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL+"/api", Options{})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return NewAuthInterceptor(c, tokens)
}

// acceptToken serves 200 {"ok":true} for the given bearer token and 401 otherwise
func acceptToken(valid string, seen *[]string) http.HandlerFunc {
	var mu sync.Mutex
	return func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		mu.Lock()
		*seen = append(*seen, auth)
		mu.Unlock()
		if auth != "Bearer "+valid {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"Given token not valid for any token type"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}
}

func TestAuthInterceptor_RefreshesOnceAndRetries(t *testing.T) {
	var seen []string
	tokens := &fakeTokens{token: "stale", next: "fresh"}
	api := newTestInterceptor(t, acceptToken("fresh", &seen), tokens)

	var out struct {
		OK bool `json:"ok"`
	}
	if err := api.Do(context.Background(), &Request{Method: http.MethodGet, Path: "auth/user/"}, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !out.OK {
		t.Error("expected decoded body")
	}
	if tokens.refreshCount() != 1 {
		t.Errorf("expected 1 refresh, got %d", tokens.refreshCount())
	}
	if len(seen) != 2 || seen[0] != "Bearer stale" || seen[1] != "Bearer fresh" {
		t.Errorf("expected stale then fresh token, got %v", seen)
	}
}

func TestAuthInterceptor_SecondUnauthorizedIsTerminal(t *testing.T) {
	var seen []string
	tokens := &fakeTokens{token: "stale", next: "still-bad"}
	api := newTestInterceptor(t, acceptToken("never", &seen), tokens)

	err := api.Do(context.Background(), &Request{Method: http.MethodGet, Path: "notes/"}, nil)

	if !errors.Is(err, ErrAuthorization) {
		t.Fatalf("expected ErrAuthorization, got %v", err)
	}
	if !IsSessionInvalid(err) {
		t.Error("expected terminal 401 to invalidate the session")
	}
	if StatusOf(err) != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", StatusOf(err))
	}
	if tokens.refreshCount() != 1 {
		t.Errorf("expected exactly 1 refresh, got %d", tokens.refreshCount())
	}
	if len(seen) != 2 {
		t.Errorf("expected exactly 2 requests, got %d", len(seen))
	}
}

func TestAuthInterceptor_RefreshFailure(t *testing.T) {
	var seen []string
	refreshErr := &Error{Kind: ErrAuthentication, Status: 401, Path: "auth/token/refresh/"}
	tokens := &fakeTokens{token: "stale", refreshErr: refreshErr}
	api := newTestInterceptor(t, acceptToken("fresh", &seen), tokens)

	err := api.Do(context.Background(), &Request{Method: http.MethodGet, Path: "notes/"}, nil)

	if !errors.Is(err, ErrAuthorization) {
		t.Fatalf("expected ErrAuthorization, got %v", err)
	}
	if !errors.Is(err, refreshErr) {
		t.Error("expected refresh error to be wrapped")
	}
	if KindOf(err) != ErrAuthorization {
		t.Errorf("expected outermost kind ErrAuthorization, got %v", KindOf(err))
	}
	if len(seen) != 1 {
		t.Errorf("expected no retry after failed refresh, got %d requests", len(seen))
	}
}

func TestAuthInterceptor_RefreshNetworkFailure(t *testing.T) {
	var seen []string
	tokens := &fakeTokens{token: "stale", refreshErr: &Error{Kind: ErrNetwork, Err: io.ErrUnexpectedEOF}}
	api := newTestInterceptor(t, acceptToken("fresh", &seen), tokens)

	err := api.Do(context.Background(), &Request{Method: http.MethodGet, Path: "notes/"}, nil)

	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
	if IsSessionInvalid(err) {
		t.Error("an unreachable refresh endpoint does not invalidate the session")
	}
}

func TestAuthInterceptor_RefreshServerFailure(t *testing.T) {
	var seen []string
	refreshErr := &Error{Kind: ErrUnknownServer, Status: http.StatusBadGateway, Path: "auth/token/refresh/"}
	tokens := &fakeTokens{token: "stale", refreshErr: refreshErr}
	api := newTestInterceptor(t, acceptToken("fresh", &seen), tokens)

	err := api.Do(context.Background(), &Request{Method: http.MethodGet, Path: "notes/"}, nil)

	if KindOf(err) != ErrUnknownServer {
		t.Fatalf("expected ErrUnknownServer, got %v", err)
	}
	if IsSessionInvalid(err) {
		t.Error("a failing refresh endpoint does not invalidate the session")
	}
	if len(seen) != 1 {
		t.Errorf("expected no retry after failed refresh, got %d requests", len(seen))
	}
}

func TestAuthInterceptor_ReusesTokenRenewedConcurrently(t *testing.T) {
	var seen []string
	tokens := &fakeTokens{token: "stale", next: "unused"}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Another caller renews the token while this request is in flight
		tokens.mu.Lock()
		tokens.token = "renewed"
		tokens.mu.Unlock()
		acceptToken("renewed", &seen)(w, r)
	})
	api := newTestInterceptor(t, handler, tokens)

	if err := api.Do(context.Background(), &Request{Method: http.MethodGet, Path: "notes/"}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tokens.refreshCount() != 0 {
		t.Errorf("expected the renewed token to be reused without refreshing, got %d refreshes", tokens.refreshCount())
	}
}

func TestAuthInterceptor_RetryResendsBody(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies []string
	)
	tokens := &fakeTokens{token: "stale", next: "fresh"}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(data))
		mu.Unlock()
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 3, "name": "work"})
	})
	api := newTestInterceptor(t, handler, tokens)

	var created Category
	err := api.Do(context.Background(), &Request{
		Method: http.MethodPost,
		Path:   "categories/",
		Body:   NameInput{Name: "work"},
	}, &created)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(bodies) != 2 || bodies[0] != bodies[1] || bodies[0] != `{"name":"work"}` {
		t.Errorf("expected identical bodies on both attempts, got %q", bodies)
	}
	if created.ID != 3 {
		t.Errorf("expected created id 3, got %d", created.ID)
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestAuthInterceptor_MissingTokenSendsEmptyBearer(t *testing.T) {
	var headers []string
	transport := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		headers = append(headers, r.Header.Get("Authorization"))
		return &http.Response{
			StatusCode: http.StatusUnauthorized,
			Header:     http.Header{},
			Body:       io.NopCloser(http.NoBody),
			Request:    r,
		}, nil
	})

	c, err := NewClient("http://notes.test/api/", Options{Transport: transport})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	api := NewAuthInterceptor(c, NewStaticTokenManager(""))

	err = api.Do(context.Background(), &Request{Method: http.MethodGet, Path: "notes/"}, nil)

	if !errors.Is(err, ErrAuthorization) {
		t.Fatalf("expected ErrAuthorization, got %v", err)
	}
	if len(headers) != 1 || headers[0] != "Bearer " {
		t.Errorf("expected a single request with an empty bearer credential, got %q", headers)
	}
}
