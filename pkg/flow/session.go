// Package flow drives the interactive part of a harvest: logging in and
// reaching the campaign listing.
package flow

import (
	"errors"
	"log/slog"
)

var (
	// ErrAuthTriggerNotFound means no strategy located the login trigger.
	ErrAuthTriggerNotFound = errors.New("login trigger not found")
	// ErrSessionStateInvalid means a phase was entered without an
	// authenticated session.
	ErrSessionStateInvalid = errors.New("session is not authenticated")
	// ErrNavigationFailed means the page could not be loaded.
	ErrNavigationFailed = errors.New("navigation failed")
	// ErrInteraction means a click, fill or key press failed.
	ErrInteraction = errors.New("page interaction failed")
)

// Credentials are the login identifier and secret. They format as redacted
// text so they can never reach a log line.
type Credentials struct {
	Identifier string
	Secret     string
}

const redacted = "[redacted]"

// String implements fmt.Stringer.
func (c Credentials) String() string {
	return redacted
}

// GoString implements fmt.GoStringer.
func (c Credentials) GoString() string {
	return "flow.Credentials{" + redacted + "}"
}

// LogValue implements slog.LogValuer.
func (c Credentials) LogValue() slog.Value {
	return slog.StringValue(redacted)
}

// Empty reports whether either part is missing.
func (c Credentials) Empty() bool {
	return c.Identifier == "" || c.Secret == ""
}

// Session is the state handed from one phase to the next. The zero value is
// unauthenticated.
type Session struct {
	authenticated bool
	origin        string
}

// Authenticated reports whether login completed.
func (s Session) Authenticated() bool {
	return s.authenticated
}

// Origin describes how the session was obtained.
func (s Session) Origin() string {
	return s.origin
}

// Replayed returns an authenticated session for a page captured from an
// earlier authenticated run.
func Replayed(origin string) Session {
	return Session{authenticated: true, origin: origin}
}

// AuthState is a step of the login state machine.
type AuthState string

const (
	StateInit            AuthState = "INIT"
	StateTriggerLocated  AuthState = "TRIGGER_LOCATED"
	StateFieldsPopulated AuthState = "FIELDS_POPULATED"
	StateSubmitted       AuthState = "SUBMITTED"
	StateAuthenticated   AuthState = "AUTHENTICATED"
)

// Route is the mechanism that reached the campaign listing.
type Route string

const (
	RouteDirectLink Route = "direct_link"
	RouteHoverMenu  Route = "hover_menu"
	RouteDirectURL  Route = "direct_url"
	RouteSnapshot   Route = "snapshot"
)
