package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Resource is a paginated CRUD client for one collection endpoint
// (notes, categories, tags). Every call goes through the AuthInterceptor.
type Resource[T any] struct {
	api  *AuthInterceptor
	path string
}

// NewResource creates a client for the collection at path, e.g. "notes"
func NewResource[T any](api *AuthInterceptor, path string) *Resource[T] {
	return &Resource[T]{
		api:  api,
		path: strings.Trim(path, "/") + "/",
	}
}

// Path returns the collection path with its trailing slash
func (r *Resource[T]) Path() string {
	return r.path
}

// List fetches one page of the collection. page is 1-based; search is sent
// only when non-empty.
func (r *Resource[T]) List(ctx context.Context, page int, search string) (*Page[T], error) {
	if page < 1 {
		return nil, invalidArgument(http.MethodGet, r.path, "page must be >= 1, got %d", page)
	}

	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	if search != "" {
		query.Set("search", search)
	}

	var out Page[T]
	if err := r.api.Do(ctx, &Request{Method: http.MethodGet, Path: r.path, Query: query}, &out); err != nil {
		return nil, err
	}
	out.normalize()
	return &out, nil
}

// Get fetches a single entity by id
func (r *Resource[T]) Get(ctx context.Context, id int64) (*T, error) {
	return r.one(ctx, http.MethodGet, r.itemPath(id), nil)
}

// Create posts a new entity and returns the server's representation
func (r *Resource[T]) Create(ctx context.Context, body any) (*T, error) {
	return r.one(ctx, http.MethodPost, r.path, body)
}

// Update replaces the entity with PUT
func (r *Resource[T]) Update(ctx context.Context, id int64, body any) (*T, error) {
	return r.one(ctx, http.MethodPut, r.itemPath(id), body)
}

// Patch sends only the supplied fields. Pass a map or a struct whose
// fields are omitempty pointers.
func (r *Resource[T]) Patch(ctx context.Context, id int64, body any) (*T, error) {
	return r.one(ctx, http.MethodPatch, r.itemPath(id), body)
}

// Remove deletes the entity. Deleting an already removed entity returns
// ErrNotFound.
func (r *Resource[T]) Remove(ctx context.Context, id int64) error {
	return r.api.Do(ctx, &Request{Method: http.MethodDelete, Path: r.itemPath(id)}, nil)
}

func (r *Resource[T]) one(ctx context.Context, method, path string, body any) (*T, error) {
	var out T
	if err := r.api.Do(ctx, &Request{Method: method, Path: path, Body: body}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Resource[T]) itemPath(id int64) string {
	return r.path + strconv.FormatInt(id, 10) + "/"
}

// segmentPath builds a path below the collection from raw segments. Segments
// must not contain "/"; the URL encoder escapes everything else.
func (r *Resource[T]) segmentPath(segments ...string) string {
	return r.path + strings.Join(segments, "/") + "/"
}
