// Package client wires the realtime channel together: a reconnecting
// socket, the auth handshake, the message dispatcher and the notification
// store, each constructed once per Client.
package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cesium-ml/baselayer/auth"
	"github.com/cesium-ml/baselayer/config"
	"github.com/cesium-ml/baselayer/dispatch"
	"github.com/cesium-ml/baselayer/logger"
	"github.com/cesium-ml/baselayer/notify"
	"github.com/cesium-ml/baselayer/utils"
	"github.com/cesium-ml/baselayer/websocket"
)

const SHUTDOWN_REASON = "client shutdown"

type options struct {
	dialer      websocket.Dialer
	tokenStore  auth.TokenStore
	fetcher     auth.TokenFetcher
	storeOpts   []notify.Option
	handshakeOp []auth.HandshakeOption
}

type Option func(*options)

func WithDialer(d websocket.Dialer) Option {
	return func(o *options) {
		o.dialer = d
	}
}

func WithTokenStore(s auth.TokenStore) Option {
	return func(o *options) {
		o.tokenStore = s
	}
}

func WithTokenFetcher(f auth.TokenFetcher) Option {
	return func(o *options) {
		o.fetcher = f
	}
}

func WithStoreOptions(opts ...notify.Option) Option {
	return func(o *options) {
		o.storeOpts = append(o.storeOpts, opts...)
	}
}

func WithHandshakeOptions(opts ...auth.HandshakeOption) Option {
	return func(o *options) {
		o.handshakeOp = append(o.handshakeOp, opts...)
	}
}

type Client struct {
	logger     logger.Logger
	store      *notify.Store
	dispatcher *dispatch.Dispatcher
	handshake  *auth.Handshake
	socket     *websocket.ReconnectingSocket
}

func New(cfg *config.Config, log logger.Logger, opts ...Option) (*Client, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	if o.tokenStore == nil {
		path, err := utils.ResolvePath(cfg.Auth.TokenFile)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve token file: %w", err)
		}
		o.tokenStore = auth.NewFileTokenStore(path)
	}
	if o.fetcher == nil {
		o.fetcher = auth.NewHTTPTokenFetcher(&cfg.Auth)
	}

	store := notify.NewStore(log.With("notify"), o.storeOpts...)

	dispatcher := dispatch.New(log.With("dispatch"))
	dispatcher.Init(store.Dispatch, store.GetState)
	dispatcher.Add(notify.MessageHandler())

	tokens := auth.NewTokenSource(o.tokenStore, o.fetcher, log.With("auth"))
	handshakeOpts := append([]auth.HandshakeOption{auth.WithFallbackDelay(cfg.Auth.GetFallbackDelay())}, o.handshakeOp...)
	handshake := auth.NewHandshake(tokens, store, dispatcher, log.With("auth"), handshakeOpts...)

	socketOpts := websocket.OptionsFromConfig(&cfg.Socket)
	if cfg.Auth.SessionCookie != "" {
		cookie := &http.Cookie{Name: cfg.Auth.SessionCookieName, Value: cfg.Auth.SessionCookie}
		socketOpts.Header = http.Header{"Cookie": []string{cookie.String()}}
	}

	var extra []websocket.SocketOption
	if o.dialer != nil {
		extra = append(extra, websocket.WithDialer(o.dialer))
	}
	socket := websocket.NewReconnectingSocket(cfg.Socket.URL, socketOpts, handshake, log.With("socket"), extra...)
	handshake.Attach(socket)

	return &Client{
		logger:     log,
		store:      store,
		dispatcher: dispatcher,
		handshake:  handshake,
		socket:     socket,
	}, nil
}

// Run connects and keeps the connection alive until ctx is done.
func (c *Client) Run(ctx context.Context) error {
	if err := c.socket.Open(ctx); err != nil {
		return fmt.Errorf("failed to open socket: %w", err)
	}

	<-ctx.Done()
	c.logger.Info("Shutting down client")
	return c.Close()
}

// Close stops reconnecting, abandons any pending token request and waits
// until every queued event has been delivered.
func (c *Client) Close() error {
	c.handshake.Stop()
	err := c.socket.Close(websocket.CLOSE_NORMAL, SHUTDOWN_REASON)
	<-c.socket.Done()
	return err
}

// AddHandler registers an application handler for non-control messages.
func (c *Client) AddHandler(h dispatch.Handler) {
	c.dispatcher.Add(h)
}

func (c *Client) OnStatusChange(fn func(auth.Status)) {
	c.handshake.OnStatusChange(fn)
}

func (c *Client) Store() *notify.Store {
	return c.store
}

func (c *Client) Dispatcher() *dispatch.Dispatcher {
	return c.dispatcher
}

func (c *Client) Socket() *websocket.ReconnectingSocket {
	return c.socket
}

func (c *Client) Status() auth.Status {
	return c.handshake.Status()
}
