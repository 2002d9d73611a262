package client

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cesium-ml/baselayer/auth"
	"github.com/cesium-ml/baselayer/config"
	"github.com/cesium-ml/baselayer/dispatch"
	"github.com/cesium-ml/baselayer/logger"
	"github.com/cesium-ml/baselayer/message"
	"github.com/cesium-ml/baselayer/notify"
	"github.com/cesium-ml/baselayer/relay"
)

func startRelay(t *testing.T) (*relay.Server, *config.Config) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Server.Sessions = map[string]string{"sess-42": "42"}

	server := relay.NewServer(cfg, logger.Nop())
	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)

	cfg.Socket.URL = "ws" + strings.TrimPrefix(srv.URL, "http") + cfg.Server.SocketPath
	cfg.Socket.ReconnectInterval = 10
	cfg.Socket.MaxReconnectInterval = 50
	cfg.Auth.TokenURL = srv.URL + cfg.Server.TokenPath
	cfg.Auth.SessionCookie = "sess-42"
	return server, cfg
}

func runClient(t *testing.T, c *Client) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(ctx) }()
	t.Cleanup(cancel)
	return cancel, errCh
}

func waitForStatus(t *testing.T, c *Client, want auth.Status) {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.Status() == want
	}, 3*time.Second, 10*time.Millisecond, "status never became %s", want)
}

func TestClientAuthenticatesAndShowsNotifications(t *testing.T) {
	server, cfg := startRelay(t)

	c, err := New(cfg, logger.Nop(), WithTokenStore(auth.NewMemoryTokenStore("")))
	require.NoError(t, err)

	var mu sync.Mutex
	var statuses []auth.Status
	c.OnStatusChange(func(s auth.Status) {
		mu.Lock()
		defer mu.Unlock()
		statuses = append(statuses, s)
	})

	cancel, errCh := runClient(t, c)
	waitForStatus(t, c, auth.StatusAuthenticated)

	env, err := message.New(message.SHOW_NOTIFICATION, message.NotificationPayload{Note: "Upload finished", Type: "warning"})
	require.NoError(t, err)
	env.UserID = "42"
	data, err := env.Encode()
	require.NoError(t, err)
	require.Equal(t, 1, server.Broadcast("42", data))

	require.Eventually(t, func() bool {
		return len(c.Store().List()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	n := c.Store().List()[0]
	assert.Equal(t, "Upload finished", n.Text)
	assert.Equal(t, notify.LevelWarning, n.Level)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, auth.StatusDisconnected, c.Status())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []auth.Status{
		auth.StatusUnauthenticated,
		auth.StatusAuthenticated,
		auth.StatusDisconnected,
	}, statuses)
}

func TestClientRecoversFromStaleToken(t *testing.T) {
	_, cfg := startRelay(t)

	tokens := auth.NewMemoryTokenStore("stale-token")
	c, err := New(cfg, logger.Nop(), WithTokenStore(tokens))
	require.NoError(t, err)

	runClient(t, c)
	waitForStatus(t, c, auth.StatusAuthenticated)

	stored, err := tokens.Get()
	require.NoError(t, err)
	assert.NotEqual(t, "stale-token", stored)
	assert.NotEmpty(t, stored)

	for _, n := range c.Store().List() {
		assert.NotEqual(t, auth.WEBSOCKET_TAG, n.Tag, "auth warning should be cleared once authenticated")
	}
}

func TestClientApplicationHandlers(t *testing.T) {
	server, cfg := startRelay(t)

	c, err := New(cfg, logger.Nop(), WithTokenStore(auth.NewMemoryTokenStore("")))
	require.NoError(t, err)

	got := make(chan string, 1)
	c.AddHandler(func(actionType string, payload json.RawMessage, _ dispatch.DispatchFunc, _ dispatch.StateFunc) error {
		if actionType == "app/REFRESH_SOURCE" {
			got <- string(payload)
		}
		return nil
	})

	runClient(t, c)
	waitForStatus(t, c, auth.StatusAuthenticated)

	server.Broadcast("42", []byte(`{"user_id":"42","actionType":"app/REFRESH_SOURCE","payload":{"obj_key":"ZTF21"}}`))

	select {
	case payload := <-got:
		assert.JSONEq(t, `{"obj_key":"ZTF21"}`, payload)
	case <-time.After(2 * time.Second):
		t.Fatal("handler not called")
	}
}

func TestClientUnreachableServer(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Socket.URL = "ws://127.0.0.1:1/websocket"
	cfg.Socket.ReconnectInterval = 10
	cfg.Socket.MaxReconnectInterval = 20

	c, err := New(cfg, logger.Nop(), WithTokenStore(auth.NewMemoryTokenStore("")))
	require.NoError(t, err)

	cancel, errCh := runClient(t, c)

	require.Eventually(t, func() bool {
		for _, n := range c.Store().List() {
			if n.Tag == auth.WEBSOCKET_TAG {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, auth.StatusDisconnected, c.Status())

	count := 0
	for _, n := range c.Store().List() {
		if n.Tag == auth.WEBSOCKET_TAG {
			count++
		}
	}
	assert.Equal(t, 1, count)

	cancel()
	assert.NoError(t, <-errCh)
}
