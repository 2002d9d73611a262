package websocket

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/net/websocket"
)

// NetDialer dials with golang.org/x/net/websocket. Header is sent with the
// handshake, which is how session cookies reach the server.
type NetDialer struct {
	Header http.Header
}

func (d NetDialer) Dial(ctx context.Context, rawURL string) (Conn, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid WebSocket URL: %w", err)
	}

	originScheme := "http"
	if u.Scheme == "wss" {
		originScheme = "https"
	}

	wsConfig, err := websocket.NewConfig(rawURL, originScheme+"://"+u.Host)
	if err != nil {
		return nil, fmt.Errorf("failed to create WebSocket config: %w", err)
	}

	if d.Header != nil {
		wsConfig.Header = d.Header.Clone()
	}

	conn, err := wsConfig.DialContext(ctx)
	if err != nil {
		return nil, err
	}
	return &netConn{ws: conn}, nil
}

type netConn struct {
	ws *websocket.Conn
}

func (c *netConn) Read() ([]byte, error) {
	var data []byte
	if err := websocket.Message.Receive(c.ws, &data); err != nil {
		return nil, err
	}
	return data, nil
}

func (c *netConn) Write(data []byte) error {
	return websocket.Message.Send(c.ws, string(data))
}

func (c *netConn) Close() error {
	return c.ws.Close()
}
