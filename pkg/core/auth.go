package core

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
)

// AuthScheme names how HTTP clients prove who they are.
type AuthScheme string

const (
	AuthNone   AuthScheme = "none"
	AuthBearer AuthScheme = "bearer"
	AuthBasic  AuthScheme = "basic"
)

// weakTokens are substrings that make a token guessable.
var weakTokens = []string{
	"password", "secret", "token", "admin", "test", "default",
	"12345", "osmxray", "josm",
}

// CheckToken reports tokens that are empty, short or guessable. The server
// still starts with such a token, it only warns.
func CheckToken(token string) error {
	switch {
	case token == "":
		return NewError(ErrInvalidParameter, "authentication token is empty").
			WithGuidance("Pass --http-auth-token or set --http-auth-type=none.")
	case len(token) < 16:
		return NewError(ErrInvalidParameter, "authentication token is shorter than 16 characters").
			WithGuidance("Use a randomly generated token.")
	}
	lower := strings.ToLower(token)
	for _, weak := range weakTokens {
		if strings.Contains(lower, weak) {
			return NewError(ErrInvalidParameter, fmt.Sprintf("authentication token contains %q", weak)).
				WithGuidance("Use a randomly generated token.")
		}
	}
	return nil
}

// Authenticator checks request credentials against one configured secret.
// For basic auth the secret has the form "user:password".
type Authenticator struct {
	scheme AuthScheme
	secret string
}

// NewAuthenticator returns an authenticator for scheme. An empty scheme
// disables authentication; an unknown one rejects every request.
func NewAuthenticator(scheme, secret string) *Authenticator {
	s := AuthScheme(strings.ToLower(strings.TrimSpace(scheme)))
	if s == "" {
		s = AuthNone
	}
	return &Authenticator{scheme: s, secret: secret}
}

// Scheme returns the configured scheme.
func (a *Authenticator) Scheme() AuthScheme { return a.scheme }

// Enabled reports whether requests need credentials.
func (a *Authenticator) Enabled() bool { return a.scheme != AuthNone }

// Challenge is the WWW-Authenticate value sent with a 401.
func (a *Authenticator) Challenge() string {
	if a.scheme == AuthBasic {
		return `Basic realm="osmxray"`
	}
	return "Bearer"
}

// Authenticate returns an UNAUTHORIZED error when r lacks valid credentials.
func (a *Authenticator) Authenticate(r *http.Request) error {
	switch a.scheme {
	case AuthNone:
		return nil
	case AuthBearer:
		header := r.Header.Get("Authorization")
		if header == "" {
			return unauthorized("missing Authorization header")
		}
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return unauthorized("invalid Authorization header format")
		}
		if !equalSecret(token, a.secret) {
			return unauthorized("invalid bearer token")
		}
		return nil
	case AuthBasic:
		user, pass, ok := r.BasicAuth()
		if !ok || user == "" || pass == "" {
			return unauthorized("missing basic auth credentials")
		}
		if !equalSecret(user+":"+pass, a.secret) {
			return unauthorized("invalid basic auth credentials")
		}
		return nil
	}
	return unauthorized(fmt.Sprintf("unknown auth type %q", a.scheme))
}

// equalSecret compares in constant time.
func equalSecret(got, want string) bool {
	if want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func unauthorized(msg string) *MCPError {
	return NewError(ErrUnauthorized, msg)
}
