package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCookieKey = []byte("0123456789abcdef0123456789abcdef")

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(TokenPair{})

	pair, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, pair.Empty())

	require.NoError(t, store.Save(ctx, TokenPair{Access: "a1", Refresh: "r1"}))
	pair, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, TokenPair{Access: "a1", Refresh: "r1"}, pair)

	require.NoError(t, store.Clear(ctx))
	pair, err = store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, pair.Empty())
}

func TestFileStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "credentials-default.json")
	store := NewFileStore(path)

	pair, err := store.Load(ctx)
	require.NoError(t, err, "a missing file means no tokens")
	assert.True(t, pair.Empty())

	require.NoError(t, store.Save(ctx, TokenPair{Access: "a1", Refresh: "r1"}))
	require.NoError(t, store.Save(ctx, TokenPair{Access: "a2", Refresh: "r2"}))

	pair, err = NewFileStore(path).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, TokenPair{Access: "a2", Refresh: "r2"}, pair)

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")

	require.NoError(t, store.Clear(ctx))
	require.NoError(t, store.Clear(ctx), "clearing twice is not an error")

	pair, err = store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, pair.Empty())
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFileStore(path).Load(context.Background())
	assert.Error(t, err)
}

func TestCookieStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	manager := NewCookieManager(testCookieKey)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "https://notes.example.com/", nil)
	require.NoError(t, manager.Store(req, rec).Save(ctx, TokenPair{Access: "a1", Refresh: "r1"}))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1, "both tokens are written in a single cookie")
	cookie := cookies[0]
	assert.Equal(t, CookieName, cookie.Name)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, int(TokenMaxAge.Seconds()), cookie.MaxAge)
	assert.True(t, cookie.Secure)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)

	next := httptest.NewRequest(http.MethodGet, "https://notes.example.com/notes", nil)
	next.AddCookie(cookie)
	store := manager.Store(next, httptest.NewRecorder())

	pair, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, TokenPair{Access: "a1", Refresh: "r1"}, pair)
}

func TestCookieStore_Clear(t *testing.T) {
	ctx := context.Background()
	manager := NewCookieManager(testCookieKey)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "https://notes.example.com/", nil)
	require.NoError(t, manager.Store(req, rec).Save(ctx, TokenPair{Access: "a1", Refresh: "r1"}))
	saved := rec.Result().Cookies()[0]

	logoutReq := httptest.NewRequest(http.MethodPost, "https://notes.example.com/logout", nil)
	logoutReq.AddCookie(saved)
	logoutRec := httptest.NewRecorder()
	store := manager.Store(logoutReq, logoutRec)
	require.NoError(t, store.Clear(ctx))

	cookies := logoutRec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Less(t, cookies[0].MaxAge, 0, "clearing expires the cookie")

	pair, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, pair.Empty())
}

func TestCookieStore_TamperedCookie(t *testing.T) {
	manager := NewCookieManager(testCookieKey)

	req := httptest.NewRequest(http.MethodGet, "https://notes.example.com/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "forged"})

	pair, err := manager.Store(req, httptest.NewRecorder()).Load(context.Background())
	require.NoError(t, err)
	assert.True(t, pair.Empty(), "an unverifiable cookie yields no tokens")
}
