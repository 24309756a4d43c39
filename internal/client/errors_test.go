package client

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestKindForStatus(t *testing.T) {
	tests := []struct {
		status   int
		expected error
	}{
		{400, ErrValidation},
		{401, ErrAuthorization},
		{403, ErrValidation},
		{404, ErrNotFound},
		{409, ErrValidation},
		{429, ErrValidation},
		{500, ErrUnknownServer},
		{503, ErrUnknownServer},
		{302, ErrUnknownServer},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			if got := KindForStatus(tt.status); got != tt.expected {
				t.Errorf("KindForStatus(%d) = %v, want %v", tt.status, got, tt.expected)
			}
		})
	}
}

func TestError_MatchesKindAndCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := error(&Error{Kind: ErrNetwork, Method: "GET", Path: "notes/", Err: cause})

	if !errors.Is(err, ErrNetwork) {
		t.Error("expected error to match ErrNetwork")
	}
	if !errors.Is(err, cause) {
		t.Error("expected error to match its cause")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("network error must not match ErrNotFound")
	}

	var apiErr *Error
	if !errors.As(fmt.Errorf("listing: %w", err), &apiErr) {
		t.Fatal("expected errors.As to find *Error through wrapping")
	}
	if apiErr.Path != "notes/" {
		t.Errorf("expected path notes/, got %q", apiErr.Path)
	}
}

func TestError_Message(t *testing.T) {
	err := &Error{
		Kind:   ErrValidation,
		Status: 400,
		Method: "POST",
		Path:   "tags/",
		Body:   "{\"name\":[\"This field is required.\"]}\nsecond line",
	}

	msg := err.Error()
	for _, want := range []string{"request rejected", "POST tags/", "status 400", "This field is required."} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
	if strings.Contains(msg, "second line") {
		t.Errorf("message should only carry the first body line, got %q", msg)
	}
}

func TestWithKind(t *testing.T) {
	original := &Error{Kind: ErrValidation, Status: 400, Path: "auth/login/"}
	relabelled := WithKind(original, ErrAuthentication)

	if !errors.Is(relabelled, ErrAuthentication) {
		t.Error("expected relabelled error to match ErrAuthentication")
	}
	if errors.Is(relabelled, ErrValidation) {
		t.Error("relabelled error must not keep the old kind")
	}
	if original.Kind != ErrValidation {
		t.Error("WithKind must not modify the original error")
	}
	if StatusOf(relabelled) != 400 {
		t.Errorf("expected status 400, got %d", StatusOf(relabelled))
	}

	plain := WithKind(errors.New("boom"), ErrUnknownServer)
	if !errors.Is(plain, ErrUnknownServer) {
		t.Error("expected plain error to be wrapped with the kind")
	}
}

func TestIsSessionInvalid(t *testing.T) {
	if !IsSessionInvalid(&Error{Kind: ErrAuthorization, Status: 401}) {
		t.Error("authorization errors invalidate the session")
	}
	if IsSessionInvalid(&Error{Kind: ErrAuthentication}) {
		t.Error("a rejected login does not by itself invalidate the session")
	}
	if IsSessionInvalid(&Error{Kind: ErrNetwork}) {
		t.Error("network errors do not invalidate the session")
	}
	if IsSessionInvalid(nil) {
		t.Error("nil is not a session error")
	}
}

func TestTruncateBody(t *testing.T) {
	long := strings.Repeat("x", maxErrorBody+100)
	if got := truncateBody([]byte(long)); len(got) != maxErrorBody {
		t.Errorf("expected body truncated to %d bytes, got %d", maxErrorBody, len(got))
	}
	if got := truncateBody([]byte("short")); got != "short" {
		t.Errorf("expected short body unchanged, got %q", got)
	}
}

func TestKindOf(t *testing.T) {
	cause := &Error{Kind: ErrAuthentication, Status: 401, Path: "auth/token/refresh/"}
	wrapped := &Error{Kind: ErrAuthorization, Status: 401, Path: "notes/", Err: cause}

	if KindOf(wrapped) != ErrAuthorization {
		t.Errorf("expected outermost kind ErrAuthorization, got %v", KindOf(wrapped))
	}
	if !errors.Is(wrapped, ErrAuthentication) {
		t.Error("errors.Is should still see the kind of the wrapped cause")
	}
	if KindOf(fmt.Errorf("listing notes: %w", wrapped)) != ErrAuthorization {
		t.Error("expected KindOf to look through fmt wrapping")
	}
	if KindOf(errors.New("boom")) != nil {
		t.Error("expected nil kind for a non-API error")
	}
}
