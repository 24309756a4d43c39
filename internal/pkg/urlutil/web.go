package urlutil

import (
	"fmt"
	"net/url"
	"strings"
)

// NoteViewURL builds a web application URL for viewing a note.
// Returns a URL like: {baseURL}/dashboard/notes/{slug}
func NoteViewURL(baseURL, slug string) (string, error) {
	return buildDashboardURL(baseURL, "notes", slug)
}

// NoteHistoryURL builds a web application URL for the revision list of a note.
// Returns a URL like: {baseURL}/dashboard/notes/{slug}/history
func NoteHistoryURL(baseURL, slug string) (string, error) {
	return buildDashboardURL(baseURL, "notes", slug, "history")
}

// CategoriesURL returns the category management page: {baseURL}/dashboard/categories
func CategoriesURL(baseURL string) (string, error) {
	return buildDashboardURL(baseURL, "categories")
}

// TagsURL returns the tag management page: {baseURL}/dashboard/tags
func TagsURL(baseURL string) (string, error) {
	return buildDashboardURL(baseURL, "tags")
}

// buildDashboardURL appends escaped segments under {baseURL}/dashboard,
// keeping any path prefix the base URL already carries
func buildDashboardURL(baseURL string, segments ...string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("web URL %q must be absolute", baseURL)
	}

	escaped := make([]string, 0, len(segments)+1)
	escaped = append(escaped, "dashboard")
	for _, s := range segments {
		if s == "" {
			return "", fmt.Errorf("empty path segment")
		}
		escaped = append(escaped, url.PathEscape(s))
	}

	prefix := strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	u.Path = ""
	return u.String() + prefix + "/" + strings.Join(escaped, "/"), nil
}
