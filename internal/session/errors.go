package session

import (
	"errors"
	"fmt"
	"net/http"
)

// Machine-readable error codes carried in error payloads.
const (
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeTokenInvalid       = "TOKEN_INVALID"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeRefreshInvalid     = "REFRESH_INVALID"
	CodeValidation         = "VALIDATION_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodeInternal           = "INTERNAL"
)

var (
	// ErrSessionInvalid means the session cannot continue: the refresh
	// exchange failed, the credential was rejected, or it expired again
	// right after a refresh. The stored credential has been cleared.
	ErrSessionInvalid = errors.New("session is no longer valid")

	// ErrNotAuthenticated is returned by calls that need a credential
	// when none is stored.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// HTTPError is a non-2xx response from the API.
type HTTPError struct {
	Status  int
	Code    string
	Message string
	Method  string
	Path    string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf(
			"api error (%d %s) on %s %s: %s",
			e.Status, e.Code, e.Method, e.Path, e.Message,
		)
	}
	return fmt.Sprintf(
		"unexpected status %d on %s %s", e.Status, e.Method, e.Path,
	)
}

// IsTokenExpired reports whether err is the expired-credential response
// that triggers a refresh. Other 401s do not qualify.
func IsTokenExpired(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) &&
		httpErr.Status == http.StatusUnauthorized &&
		httpErr.Code == CodeTokenExpired
}

// IsUnauthorized reports whether err (or any error in its chain) is a
// 401 response.
func IsUnauthorized(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.Status == http.StatusUnauthorized
}

// UserMessage returns the server-supplied message carried by err, or
// fallback when there is none.
func UserMessage(err error, fallback string) string {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.Message != "" {
		return httpErr.Message
	}
	return fallback
}
