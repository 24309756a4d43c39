package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fakePageSize = 2

// fakeCollection serves a paginated CRUD collection the way the notes API does
type fakeCollection struct {
	mu       sync.Mutex
	base     string
	items    map[int64]map[string]any
	nextID   int64
	requests int
	lastBody map[string]any
	lastURL  string
}

func newFakeCollection(base string, names ...string) *fakeCollection {
	fc := &fakeCollection{base: base, items: map[int64]map[string]any{}}
	for _, name := range names {
		fc.nextID++
		fc.items[fc.nextID] = map[string]any{"id": fc.nextID, "name": name}
	}
	return fc
}

func (fc *fakeCollection) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.requests++
	fc.lastURL = r.URL.String()
	fc.lastBody = nil
	if data, _ := io.ReadAll(r.Body); len(data) > 0 {
		_ = json.Unmarshal(data, &fc.lastBody)
	}

	rest := strings.TrimPrefix(r.URL.Path, fc.base)
	if rest == "" {
		fc.serveCollection(w, r)
		return
	}

	id, err := strconv.ParseInt(strings.TrimSuffix(rest, "/"), 10, 64)
	item, ok := fc.items[id]
	if err != nil || !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Not found."})
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, item)
	case http.MethodPut:
		if _, ok := fc.lastBody["name"]; !ok {
			writeJSON(w, http.StatusBadRequest, map[string]any{"name": []string{"This field is required."}})
			return
		}
		fc.items[id] = map[string]any{"id": id, "name": fc.lastBody["name"]}
		writeJSON(w, http.StatusOK, fc.items[id])
	case http.MethodPatch:
		for k, v := range fc.lastBody {
			item[k] = v
		}
		writeJSON(w, http.StatusOK, item)
	case http.MethodDelete:
		delete(fc.items, id)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (fc *fakeCollection) serveCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		page, err := strconv.Atoi(r.URL.Query().Get("page"))
		if err != nil || page < 1 {
			writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Invalid page."})
			return
		}
		search := r.URL.Query().Get("search")

		var ids []int64
		for id, item := range fc.items {
			if strings.Contains(fmt.Sprint(item["name"]), search) {
				ids = append(ids, id)
			}
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		start := (page - 1) * fakePageSize
		if start > len(ids) || (start == len(ids) && page > 1) {
			writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Invalid page."})
			return
		}
		end := min(start+fakePageSize, len(ids))

		results := []map[string]any{}
		for _, id := range ids[start:end] {
			results = append(results, fc.items[id])
		}
		var next, previous any
		if end < len(ids) {
			next = fmt.Sprintf("http://testserver%s?page=%d", fc.base, page+1)
		}
		if page > 1 {
			previous = fmt.Sprintf("http://testserver%s?page=%d", fc.base, page-1)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"count":    len(ids),
			"next":     next,
			"previous": previous,
			"results":  results,
		})
	case http.MethodPost:
		name, _ := fc.lastBody["name"].(string)
		if name == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"name": []string{"This field may not be blank."}})
			return
		}
		fc.nextID++
		fc.items[fc.nextID] = map[string]any{"id": fc.nextID, "name": name}
		writeJSON(w, http.StatusCreated, fc.items[fc.nextID])
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (fc *fakeCollection) requestCount() int {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.requests
}

func (fc *fakeCollection) last() (string, map[string]any) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.lastURL, fc.lastBody
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newCategories(t *testing.T, names ...string) (*Resource[Category], *fakeCollection) {
	t.Helper()
	fc := newFakeCollection("/api/categories/", names...)
	api := newTestInterceptor(t, fc, NewStaticTokenManager("token"))
	return NewResource[Category](api, CategoriesPath), fc
}

func TestResource_ListEmpty(t *testing.T) {
	categories, _ := newCategories(t)

	page, err := categories.List(context.Background(), 1, "")
	require.NoError(t, err)

	assert.Equal(t, 0, page.Count)
	assert.Nil(t, page.Next)
	assert.Nil(t, page.Previous)
	assert.NotNil(t, page.Results)
	assert.Empty(t, page.Results)
}

func TestResource_ListPagesAndSearch(t *testing.T) {
	categories, fc := newCategories(t, "work", "home", "workout")
	ctx := context.Background()

	first, err := categories.List(ctx, 1, "")
	require.NoError(t, err)
	assert.Equal(t, 3, first.Count)
	assert.Len(t, first.Results, 2)
	assert.True(t, first.HasNext())
	assert.False(t, first.HasPrevious())
	assert.Equal(t, 2, first.PageCount(fakePageSize))

	second, err := categories.List(ctx, 2, "")
	require.NoError(t, err)
	assert.Len(t, second.Results, 1)
	assert.False(t, second.HasNext())
	assert.True(t, second.HasPrevious())

	found, err := categories.List(ctx, 1, "work")
	require.NoError(t, err)
	assert.Equal(t, 2, found.Count)
	lastURL, _ := fc.last()
	assert.Contains(t, lastURL, "search=work")
	assert.Contains(t, lastURL, "page=1")
}

func TestResource_ListRejectsInvalidPage(t *testing.T) {
	categories, fc := newCategories(t, "work")

	for _, page := range []int{0, -1} {
		_, err := categories.List(context.Background(), page, "")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrValidation), "page %d: expected ErrValidation, got %v", page, err)
	}
	assert.Zero(t, fc.requestCount(), "invalid pages must not reach the server")
}

func TestResource_ListPastLastPage(t *testing.T) {
	categories, _ := newCategories(t, "work")

	_, err := categories.List(context.Background(), 5, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResource_CRUD(t *testing.T) {
	categories, _ := newCategories(t)
	ctx := context.Background()

	created, err := categories.Create(ctx, NameInput{Name: "reading"})
	require.NoError(t, err)
	assert.Equal(t, "reading", created.Name)
	assert.NotZero(t, created.ID)

	got, err := categories.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, *created, *got)

	updated, err := categories.Update(ctx, created.ID, NameInput{Name: "books"})
	require.NoError(t, err)
	assert.Equal(t, "books", updated.Name)

	require.NoError(t, categories.Remove(ctx, created.ID))

	_, err = categories.Get(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResource_PatchSendsOnlyChangedFields(t *testing.T) {
	notes := newFakeCollection("/api/notes/")
	notes.items[1] = map[string]any{
		"id": 1, "title": "Groceries", "content": "milk", "category": "home",
		"tags": []any{}, "user": 7, "is_favorite": false, "slug": "groceries",
		"created_at": "2024-05-01T10:00:00Z", "updated_at": "2024-05-01T10:00:00Z",
	}
	api := newTestInterceptor(t, notes, NewStaticTokenManager("token"))
	svc := NewNoteService(api)

	title := "Shopping"
	note, err := svc.Patch(context.Background(), 1, NotePatch{Title: &title})
	require.NoError(t, err)

	_, body := notes.last()
	assert.Equal(t, map[string]any{"title": "Shopping"}, body)
	assert.Equal(t, "Shopping", note.Title)
	assert.Equal(t, "milk", note.Content)
	assert.Equal(t, CategoryName("home"), note.Category)
}

func TestResource_RemoveTwice(t *testing.T) {
	categories, _ := newCategories(t, "work")
	ctx := context.Background()

	require.NoError(t, categories.Remove(ctx, 1))

	err := categories.Remove(ctx, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, http.StatusNotFound, StatusOf(err))
}

func TestResource_ValidationErrorCarriesBody(t *testing.T) {
	categories, _ := newCategories(t)

	_, err := categories.Create(context.Background(), NameInput{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Contains(t, apiErr.Body, "may not be blank")
}

func TestResource_ServerErrors(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		expected error
	}{
		{
			name: "internal error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
			expected: ErrUnknownServer,
		},
		{
			name: "undecodable success body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("<html>maintenance</html>"))
			},
			expected: ErrUnknownServer,
		},
		{
			name: "forbidden",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusForbidden, map[string]any{"detail": "nope"})
			},
			expected: ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestInterceptor(t, tt.handler, NewStaticTokenManager("token"))
			_, err := NewResource[Tag](api, TagsPath).List(context.Background(), 1, "")
			assert.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestResource_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c, err := NewClient(url, Options{})
	require.NoError(t, err)
	tags := NewResource[Tag](NewAuthInterceptor(c, NewStaticTokenManager("token")), TagsPath)

	_, err = tags.List(context.Background(), 1, "")
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Zero(t, StatusOf(err))
}

func TestNoteService_Extras(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
	)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.Method+" "+r.URL.Path)
		mu.Unlock()

		switch {
		case r.URL.Path == "/api/notes/groceries/":
			writeJSON(w, http.StatusOK, map[string]any{"id": 4, "slug": "groceries", "category": 2})
		case r.URL.Path == "/api/notes/4/toggle_favorite/" && r.Method == http.MethodPost:
			writeJSON(w, http.StatusOK, map[string]any{"id": 4, "is_favorite": true})
		case r.URL.Path == "/api/notes/groceries/history/":
			writeJSON(w, http.StatusOK, map[string]any{
				"count": 1, "next": nil, "previous": nil,
				"results": []map[string]any{{
					"history_id": 9, "title": "Groceries", "history_type": "~",
					"history_change_reason": nil, "history_user_id": 7,
				}},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	api := newTestInterceptor(t, handler, NewStaticTokenManager("token"))
	notes := NewAPI(api).Notes
	ctx := context.Background()

	note, err := notes.GetBySlug(ctx, "groceries")
	require.NoError(t, err)
	assert.Equal(t, int64(4), note.ID)
	id, ok := note.Category.ID()
	assert.True(t, ok)
	assert.Equal(t, int64(2), id)

	toggled, err := notes.ToggleFavorite(ctx, 4)
	require.NoError(t, err)
	assert.True(t, toggled.IsFavorite)

	history, err := notes.History(ctx, "groceries", 1)
	require.NoError(t, err)
	require.Len(t, history.Results, 1)
	assert.Equal(t, "changed", history.Results[0].ChangeType())
	assert.Nil(t, history.Results[0].HistoryChangeReason)

	_, err = notes.GetBySlug(ctx, "a/b")
	assert.ErrorIs(t, err, ErrValidation)

	assert.Equal(t, []string{
		"GET /api/notes/groceries/",
		"POST /api/notes/4/toggle_favorite/",
		"GET /api/notes/groceries/history/",
	}, paths)
}

func TestCategoryName_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		input    string
		expected CategoryName
	}{
		{`"work"`, "work"},
		{`12`, "12"},
		{`null`, ""},
	}

	for _, tt := range tests {
		var c CategoryName
		require.NoError(t, json.Unmarshal([]byte(tt.input), &c), tt.input)
		assert.Equal(t, tt.expected, c)
	}

	var c CategoryName
	assert.Error(t, json.Unmarshal([]byte(`{}`), &c))
}
