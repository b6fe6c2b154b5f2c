package remote

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"unicode/utf8"
)

var (
	// ErrNoToken is returned before any network call when a protected
	// endpoint is requested without a stored token.
	ErrNoToken = errors.New("no token")
	// ErrAuthRequired matches every *AuthError.
	ErrAuthRequired = errors.New("authentication required")
	// ErrParse matches every *ParseError.
	ErrParse = errors.New("invalid response body")
)

// AuthError is returned for 401 and 419 responses. The session has already
// been purged when the caller sees it.
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("authentication required (status %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("authentication required (status %d)", e.Status)
}

func (e *AuthError) Is(target error) bool { return target == ErrAuthRequired }

// HTTPError is a non-2xx response other than 401/419.
type HTTPError struct {
	Status  int
	Method  string
	Path    string
	Message string
	Excerpt string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Excerpt != "" {
		return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.Path, e.Status, e.Excerpt)
	}
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.Status)
}

// ParseError is a 2xx body that is not JSON. An HTML body usually means the
// request hit the wrong endpoint or was redirected to a login page, which is a
// different problem from the API returning a structured error.
type ParseError struct {
	Status      int
	ContentType string
	Excerpt     string
	Err         error
}

func (e *ParseError) HTML() bool {
	return bytes.HasPrefix(bytes.TrimSpace([]byte(e.Excerpt)), []byte("<"))
}

func (e *ParseError) Error() string {
	if e.HTML() {
		return fmt.Sprintf("expected JSON but received HTML (status %d, content-type %q); check the API URL or a login redirect: %s",
			e.Status, e.ContentType, e.Excerpt)
	}
	return fmt.Sprintf("invalid JSON response (status %d, content-type %q): %s", e.Status, e.ContentType, e.Excerpt)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// IsAuthStatus reports whether status means the token was rejected. 419 is
// the backend's expired-session status.
func IsAuthStatus(status int) bool {
	return status == http.StatusUnauthorized || status == 419
}

// excerpt returns at most n bytes of b without splitting a UTF-8 sequence.
func excerpt(b []byte, n int) string {
	b = bytes.TrimSpace(b)
	if n <= 0 || len(b) <= n {
		return string(b)
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(b[cut]) {
		cut--
	}
	return string(b[:cut]) + "..."
}
