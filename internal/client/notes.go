package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Collection paths of the notes API
const (
	NotesPath      = "notes"
	CategoriesPath = "categories"
	TagsPath       = "tags"
)

// NoteService adds the note-only endpoints to the generic resource client
type NoteService struct {
	*Resource[Note]
}

// NewNoteService creates the notes client
func NewNoteService(api *AuthInterceptor) *NoteService {
	return &NoteService{Resource: NewResource[Note](api, NotesPath)}
}

// GetBySlug fetches a note by its slug
func (s *NoteService) GetBySlug(ctx context.Context, slug string) (*Note, error) {
	if err := checkSlug(s.path, slug); err != nil {
		return nil, err
	}
	return s.one(ctx, http.MethodGet, s.segmentPath(slug), nil)
}

// ToggleFavorite flips the note's favorite flag and returns the updated note
func (s *NoteService) ToggleFavorite(ctx context.Context, id int64) (*Note, error) {
	path := s.segmentPath(strconv.FormatInt(id, 10), "toggle_favorite")
	return s.one(ctx, http.MethodPost, path, struct{}{})
}

// History lists the revisions of the note with the given slug
func (s *NoteService) History(ctx context.Context, slug string, page int) (*Page[NoteHistory], error) {
	if err := checkSlug(s.path, slug); err != nil {
		return nil, err
	}
	path := s.segmentPath(slug, "history")
	if page < 1 {
		return nil, invalidArgument(http.MethodGet, path, "page must be >= 1, got %d", page)
	}

	query := url.Values{}
	query.Set("page", strconv.Itoa(page))

	var out Page[NoteHistory]
	if err := s.api.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: query}, &out); err != nil {
		return nil, err
	}
	out.normalize()
	return &out, nil
}

func checkSlug(base, slug string) error {
	if slug == "" || strings.ContainsAny(slug, "/?#") {
		return invalidArgument(http.MethodGet, base, "invalid slug %q", slug)
	}
	return nil
}

// API bundles the clients for every collection
type API struct {
	Notes      *NoteService
	Categories *Resource[Category]
	Tags       *Resource[Tag]
}

// NewAPI creates clients for all collections sharing one interceptor
func NewAPI(interceptor *AuthInterceptor) *API {
	return &API{
		Notes:      NewNoteService(interceptor),
		Categories: NewResource[Category](interceptor, CategoriesPath),
		Tags:       NewResource[Tag](interceptor, TagsPath),
	}
}
