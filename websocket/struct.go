package websocket

import (
	"net/http"
	"time"

	"github.com/cesium-ml/baselayer/config"
	"github.com/cesium-ml/baselayer/retry"
)

type State string

const (
	WEB_SOCKET_STATE_CONNECTING State = "ws_connecting"
	WEB_SOCKET_STATE_OPEN       State = "ws_open"
	WEB_SOCKET_STATE_CLOSING    State = "ws_closing"
	WEB_SOCKET_STATE_CLOSED     State = "ws_closed"
)

const (
	CLOSE_NORMAL   = 1000
	CLOSE_ABNORMAL = 1006
)

// CloseEvent describes why a connection went away. Forced is set only for
// the terminal event produced by Close.
type CloseEvent struct {
	Code   int
	Reason string
	Forced bool
}

// Options mirrors the socket section of the config as durations.
type Options struct {
	ReconnectInterval    time.Duration
	MaxReconnectInterval time.Duration
	ReconnectDecay       float64
	TimeoutInterval      time.Duration
	MaxReconnectAttempts int
	Header               http.Header
}

func DefaultOptions() Options {
	return OptionsFromConfig(&config.SocketConfig{})
}

func OptionsFromConfig(cfg *config.SocketConfig) Options {
	return Options{
		ReconnectInterval:    cfg.GetReconnectInterval(),
		MaxReconnectInterval: cfg.GetMaxReconnectInterval(),
		ReconnectDecay:       cfg.GetReconnectDecay(),
		TimeoutInterval:      cfg.GetTimeoutInterval(),
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
	}
}

func (o Options) backoff() retry.Backoff {
	return retry.Backoff{
		Initial: o.ReconnectInterval,
		Max:     o.MaxReconnectInterval,
		Decay:   o.ReconnectDecay,
	}
}
