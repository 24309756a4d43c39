package client

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error kinds. Every API failure returned by this package carries one of these
// as its Kind. errors.Is also sees the kinds of wrapped causes, so use KindOf
// when only the outermost classification matters.
var (
	// ErrAuthentication is returned when login or token refresh is rejected by the server
	ErrAuthentication = errors.New("authentication failed")

	// ErrAuthorization is returned when a request is still unauthorized after one refresh and retry
	ErrAuthorization = errors.New("not authorized")

	// ErrValidation is returned for 4xx responses other than 401 and 404, and for invalid arguments
	ErrValidation = errors.New("request rejected")

	// ErrNotFound is returned for 404 responses
	ErrNotFound = errors.New("not found")

	// ErrNetwork is returned when no response was received
	ErrNetwork = errors.New("network error")

	// ErrUnknownServer is returned for 5xx and otherwise unclassified responses
	ErrUnknownServer = errors.New("server error")
)

// maxErrorBody caps how much of a failed response body is kept on an Error
const maxErrorBody = 1024

// Error describes a failed API call
type Error struct {
	Kind   error  // one of the Err* kinds above
	Status int    // HTTP status, 0 when no response was received
	Method string // HTTP method of the failed request
	Path   string // API path of the failed request
	Body   string // response body, truncated
	Err    error  // underlying cause, if any
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Method != "" {
		fmt.Fprintf(&b, ": %s %s", e.Method, e.Path)
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	} else if detail := e.detail(); detail != "" {
		fmt.Fprintf(&b, ": %s", detail)
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As
func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// detail returns the first line of the response body for messages
func (e *Error) detail() string {
	line, _, _ := strings.Cut(strings.TrimSpace(e.Body), "\n")
	if len(line) > 200 {
		line = line[:200] + "..."
	}
	return line
}

// KindForStatus maps a non-2xx HTTP status to an error kind
func KindForStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized:
		return ErrAuthorization
	case status == http.StatusNotFound:
		return ErrNotFound
	case status >= 400 && status < 500:
		return ErrValidation
	default:
		return ErrUnknownServer
	}
}

// WithKind returns a copy of err re-labelled with kind. Non-*Error values are
// wrapped as the cause.
func WithKind(err error, kind error) error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		relabelled := *apiErr
		relabelled.Kind = kind
		return &relabelled
	}
	return &Error{Kind: kind, Err: err}
}

// KindOf returns the Kind of the outermost *Error in err's chain, or nil
func KindOf(err error) error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return nil
}

// StatusOf returns the HTTP status carried by err, or 0
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// IsSessionInvalid reports whether err means the session cannot be
// recovered and the user has to log in again.
func IsSessionInvalid(err error) bool {
	return errors.Is(err, ErrAuthorization)
}

func invalidArgument(method, path string, format string, args ...any) error {
	return &Error{
		Kind:   ErrValidation,
		Method: method,
		Path:   path,
		Err:    fmt.Errorf(format, args...),
	}
}

func truncateBody(body []byte) string {
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody])
	}
	return string(body)
}
