package message

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name        string
		frame       string
		wantType    string
		wantPayload string
		wantErr     bool
	}{
		{
			name:        "action with payload",
			frame:       `{"actionType":"baselayer/SHOW_NOTIFICATION","payload":{"note":"hi"}}`,
			wantType:    SHOW_NOTIFICATION,
			wantPayload: `{"note":"hi"}`,
		},
		{
			name:        "missing payload becomes empty object",
			frame:       `{"actionType":"AUTH REQUEST"}`,
			wantType:    "AUTH REQUEST",
			wantPayload: `{}`,
		},
		{
			name:        "null payload becomes empty object",
			frame:       `{"actionType":"x","payload":null}`,
			wantType:    "x",
			wantPayload: `{}`,
		},
		{
			name:    "heartbeat is not json",
			frame:   Heartbeat,
			wantErr: true,
		},
		{
			name:    "empty action type",
			frame:   `{"payload":{}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Parse([]byte(tt.frame))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, env.ActionType)
			assert.JSONEq(t, tt.wantPayload, string(env.Payload))
		})
	}
}

func TestIsHeartbeat(t *testing.T) {
	assert.True(t, IsHeartbeat([]byte("<3")))
	assert.False(t, IsHeartbeat([]byte("<3 ")))
	assert.False(t, IsHeartbeat([]byte(`{"actionType":"<3"}`)))
}

func TestControlType(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{in: "AUTH_REQUEST", want: AUTH_REQUEST, wantOK: true},
		{in: "AUTH REQUEST", want: AUTH_REQUEST, wantOK: true},
		{in: "AUTH FAILED", want: AUTH_FAILED, wantOK: true},
		{in: "AUTH_OK", want: AUTH_OK, wantOK: true},
		{in: SHOW_NOTIFICATION, wantOK: false},
		{in: "auth_ok", wantOK: false},
	}

	for _, tt := range tests {
		got, ok := ControlType(tt.in)
		assert.Equal(t, tt.wantOK, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestNew_Encode(t *testing.T) {
	env, err := New(SHOW_NOTIFICATION, NotificationPayload{Note: "Saved", Type: "info"})
	require.NoError(t, err)
	env.UserID = "7"

	data, err := env.Encode()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "7", decoded["user_id"])
	assert.Equal(t, SHOW_NOTIFICATION, decoded["actionType"])
	assert.Equal(t, map[string]any{"note": "Saved", "type": "info"}, decoded["payload"])

	_, err = New("", nil)
	assert.ErrorIs(t, err, ErrEmptyActionType)
}
