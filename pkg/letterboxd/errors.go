package letterboxd

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the client. Use errors.Is to test for them;
// they are usually wrapped with context.
var (
	// ErrNoCredentials indicates a sign-in was required but no password
	// is configured.
	ErrNoCredentials = errors.New("letterboxd: no credentials configured")

	// ErrLoginFailed indicates every sign-in attempt in the retry budget
	// failed.
	ErrLoginFailed = errors.New("letterboxd: login failed")

	// ErrNotAuthenticated indicates an operation that needs a session was
	// called without a fully authenticated one.
	ErrNotAuthenticated = errors.New("letterboxd: not authenticated")
)

// Error represents a failure from the automated browser flow, carrying
// enough page context to diagnose it without exposing credentials.
type Error struct {
	// Op is the operation that failed, such as "login" or "resolve".
	Op string
	// PageTitle is the document title at the time of failure, if known.
	PageTitle string
	// PageURL is the page URL at the time of failure, if known.
	PageURL string
	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("letterboxd: %s: %v", e.Op, e.Err)
	if e.PageTitle != "" || e.PageURL != "" {
		msg += fmt.Sprintf(" (page %q %s)", e.PageTitle, e.PageURL)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}
