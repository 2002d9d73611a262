package relay

import (
	"crypto/subtle"
	"net/http"
)

// SessionAuthenticator identifies the logged-in user behind a token request.
type SessionAuthenticator interface {
	Authenticate(r *http.Request) (string, error)
}

// StaticSessions maps session cookie values to user ids. It is meant for
// development and for fronting the relay with a fixed set of service users.
type StaticSessions struct {
	CookieName string
	Sessions   map[string]string
}

func (s StaticSessions) Authenticate(r *http.Request) (string, error) {
	cookie, err := r.Cookie(s.CookieName)
	if err != nil || cookie.Value == "" {
		return "", ErrUnauthorized
	}

	for session, userID := range s.Sessions {
		if subtle.ConstantTimeCompare([]byte(session), []byte(cookie.Value)) == 1 {
			return userID, nil
		}
	}
	return "", ErrUnauthorized
}

// FuncAuthenticator adapts a function into a SessionAuthenticator.
type FuncAuthenticator func(r *http.Request) (string, error)

func (f FuncAuthenticator) Authenticate(r *http.Request) (string, error) {
	return f(r)
}
