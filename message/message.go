// Package message defines the frames exchanged over the realtime channel.
package message

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Heartbeat is the keep-alive frame written by the relay. It is not JSON.
const Heartbeat = "<3"

const (
	AUTH_REQUEST = "AUTH_REQUEST"
	AUTH_FAILED  = "AUTH_FAILED"
	AUTH_OK      = "AUTH_OK"
)

const (
	SHOW_NOTIFICATION         = "baselayer/SHOW_NOTIFICATION"
	HIDE_NOTIFICATIONS_BY_TAG = "baselayer/HIDE_NOTIFICATIONS_BY_TAG"
)

var ErrEmptyActionType = errors.New("message: empty actionType")

// Envelope is one inbound or outbound action frame.
type Envelope struct {
	UserID     string          `json:"user_id,omitempty"`
	ActionType string          `json:"actionType"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

func IsHeartbeat(data []byte) bool {
	return string(data) == Heartbeat
}

// Parse decodes a frame into an Envelope. Heartbeats must be filtered before
// calling Parse.
func Parse(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to parse envelope: %w", err)
	}
	if env.ActionType == "" {
		return nil, ErrEmptyActionType
	}
	if len(env.Payload) == 0 || string(env.Payload) == "null" {
		env.Payload = json.RawMessage("{}")
	}
	return &env, nil
}

// New builds an envelope, marshalling payload to JSON.
func New(actionType string, payload any) (*Envelope, error) {
	if actionType == "" {
		return nil, ErrEmptyActionType
	}
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return &Envelope{ActionType: actionType, Payload: raw}, nil
}

func (e *Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// ControlType maps legacy spellings ("AUTH REQUEST") onto the control
// vocabulary. ok is false for application actions.
func ControlType(actionType string) (string, bool) {
	normalized := strings.ReplaceAll(strings.TrimSpace(actionType), " ", "_")
	switch normalized {
	case AUTH_REQUEST, AUTH_FAILED, AUTH_OK:
		return normalized, true
	default:
		return "", false
	}
}

// NotificationPayload is the payload of SHOW_NOTIFICATION.
type NotificationPayload struct {
	Note     string `json:"note"`
	Type     string `json:"type,omitempty"`
	Duration int    `json:"duration,omitempty"`
	Tag      string `json:"tag,omitempty"`
}

// TagPayload is the payload of HIDE_NOTIFICATIONS_BY_TAG.
type TagPayload struct {
	Tag string `json:"tag"`
}
