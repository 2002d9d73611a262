// Package auth runs the token handshake over a reconnecting socket and
// tracks whether the session is connected and authenticated.
package auth

type Status string

const (
	StatusDisconnected    Status = "disconnected"
	StatusUnauthenticated Status = "unauthenticated"
	StatusAuthenticated   Status = "authenticated"
)

// Color is the indicator color shown for a status.
func (s Status) Color() string {
	switch s {
	case StatusAuthenticated:
		return "green"
	case StatusUnauthenticated:
		return "orange"
	default:
		return "red"
	}
}

// Session is the connection state derived from transport events and control
// messages. Authenticated implies Connected.
type Session struct {
	Connected     bool
	Authenticated bool
}

func (s Session) Status() Status {
	return StatusOf(s.Connected, s.Authenticated)
}

func StatusOf(connected, authenticated bool) Status {
	switch {
	case !connected:
		return StatusDisconnected
	case !authenticated:
		return StatusUnauthenticated
	default:
		return StatusAuthenticated
	}
}
