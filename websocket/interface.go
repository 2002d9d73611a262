package websocket

import (
	"context"
)

// Listener receives the lifecycle events of a ReconnectingSocket. Calls are
// made one at a time, in the order the events happened.
type Listener interface {
	OnConnecting(reconnect bool)
	OnOpen(reconnect bool)
	OnMessage(data []byte)
	OnError(err error)
	OnClose(event CloseEvent)
}

// BaseListener implements Listener with no-ops for embedding.
type BaseListener struct{}

func (BaseListener) OnConnecting(bool)  {}
func (BaseListener) OnOpen(bool)        {}
func (BaseListener) OnMessage([]byte)   {}
func (BaseListener) OnError(error)      {}
func (BaseListener) OnClose(CloseEvent) {}

// Conn is a single established connection.
type Conn interface {
	Read() ([]byte, error)
	Write(data []byte) error
	Close() error
}

// Dialer opens connections. Dial must give up when ctx is done.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// Sender is the write side of a socket.
type Sender interface {
	Send(data []byte) error
}

type Client interface {
	Sender
	Open(ctx context.Context) error
	Close(code int, reason string) error
	IsConnected() bool
	GetState() State
}
