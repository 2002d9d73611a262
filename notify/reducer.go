// Package notify holds the banner notifications surfaced to the user.
//
// State changes go through Reduce, a pure function over State. Store wraps
// the reducer with locking, expiry timers and change subscriptions.
package notify

import (
	"time"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

const (
	DEFAULT_DURATION = 3000 * time.Millisecond
	MAX_DURATION     = 30000 * time.Millisecond
	DEFAULT_TAG      = "default"
)

const (
	ActionShow      = "notify/SHOW"
	ActionHide      = "notify/HIDE"
	ActionHideByTag = "notify/HIDE_BY_TAG"
)

type Notification struct {
	ID         int64
	Text       string
	Level      Level
	Tag        string
	Duration   time.Duration
	Persistent bool
}

type State struct {
	Notifications []Notification
	LastID        int64
}

type Action struct {
	Type    string
	Payload any
}

// SanitizeDuration replaces missing, non-positive or unreasonably long
// durations with DEFAULT_DURATION.
func SanitizeDuration(d time.Duration) time.Duration {
	if d <= 0 || d >= MAX_DURATION {
		return DEFAULT_DURATION
	}
	return d
}

func normalize(n Notification) Notification {
	if n.Level == "" {
		n.Level = LevelInfo
	}
	if n.Tag == "" {
		n.Tag = DEFAULT_TAG
	}
	if n.Persistent {
		n.Duration = 0
	} else {
		n.Duration = SanitizeDuration(n.Duration)
	}
	return n
}

// Reduce returns the state after applying action. Unknown actions and
// malformed payloads leave the state unchanged. The input slice is never
// mutated.
func Reduce(state State, action Action) State {
	switch action.Type {
	case ActionShow:
		n, ok := action.Payload.(Notification)
		if !ok {
			return state
		}
		n = normalize(n)
		n.ID = state.LastID + 1

		next := make([]Notification, 0, len(state.Notifications)+1)
		next = append(next, state.Notifications...)
		next = append(next, n)
		return State{Notifications: next, LastID: n.ID}

	case ActionHide:
		id, ok := action.Payload.(int64)
		if !ok {
			return state
		}
		return filter(state, func(n Notification) bool { return n.ID != id })

	case ActionHideByTag:
		tag, ok := action.Payload.(string)
		if !ok {
			return state
		}
		return filter(state, func(n Notification) bool { return n.Tag != tag })
	}

	return state
}

func filter(state State, keep func(Notification) bool) State {
	next := make([]Notification, 0, len(state.Notifications))
	for _, n := range state.Notifications {
		if keep(n) {
			next = append(next, n)
		}
	}
	if len(next) == len(state.Notifications) {
		return state
	}
	return State{Notifications: next, LastID: state.LastID}
}
