package auth

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cesium-ml/baselayer/logger"
	"github.com/cesium-ml/baselayer/message"
	"github.com/cesium-ml/baselayer/notify"
	"github.com/cesium-ml/baselayer/websocket"
)

const (
	// PlaceholderToken is sent when no real token could be obtained. The
	// server rejects it with AUTH_FAILED, which restarts the handshake.
	PlaceholderToken = "no_auth_token_user bad_token"

	DEFAULT_FALLBACK_DELAY = 1000 * time.Millisecond

	WEBSOCKET_TAG = "websocket"

	MSG_CONNECTION_LOST = "No WebSocket connection. Trying to reconnect..."
	MSG_AUTH_FAILED     = "WebSocket authentication failed. Please log in again."
)

// Notifier is the part of the notification store the handshake needs.
type Notifier interface {
	ReplaceByTag(text string, level notify.Level, tag string) int64
	HideByTag(tag string)
}

// MessageHandler receives every non-control message.
type MessageHandler interface {
	Handle(actionType string, payload json.RawMessage) error
}

type HandshakeOption func(*Handshake)

func WithFallbackDelay(d time.Duration) HandshakeOption {
	return func(h *Handshake) {
		if d > 0 {
			h.fallbackDelay = d
		}
	}
}

// Handshake listens to a socket, answers the server's auth requests and
// keeps the session state. Attach must be called with the socket before it
// is opened.
type Handshake struct {
	websocket.BaseListener

	tokens        *TokenSource
	notifier      Notifier
	messages      MessageHandler
	logger        logger.Logger
	fallbackDelay time.Duration

	ctx     context.Context
	cancel  context.CancelFunc
	pending sync.WaitGroup

	mu         sync.Mutex
	sender     websocket.Sender
	session    Session
	observers  []func(Status)
	generation uint64
	connCtx    context.Context
	connCancel context.CancelFunc
}

func NewHandshake(tokens *TokenSource, notifier Notifier, messages MessageHandler, logger logger.Logger, opts ...HandshakeOption) *Handshake {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handshake{
		tokens:        tokens,
		notifier:      notifier,
		messages:      messages,
		logger:        logger,
		fallbackDelay: DEFAULT_FALLBACK_DELAY,
		ctx:           ctx,
		cancel:        cancel,
	}
	h.connCtx, h.connCancel = context.WithCancel(ctx)
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// nextConnection abandons token requests made for the previous connection.
func (h *Handshake) nextConnection() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connCancel()
	h.connCtx, h.connCancel = context.WithCancel(h.ctx)
	h.generation++
}

func (h *Handshake) Attach(sender websocket.Sender) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sender = sender
}

// OnStatusChange registers fn to be called whenever the status changes.
func (h *Handshake) OnStatusChange(fn func(Status)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.observers = append(h.observers, fn)
}

func (h *Handshake) Session() Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session
}

func (h *Handshake) Status() Status {
	return h.Session().Status()
}

// Stop abandons any token resolution still in flight and waits for it.
func (h *Handshake) Stop() {
	h.cancel()
	h.pending.Wait()
}

func (h *Handshake) OnOpen(reconnect bool) {
	h.logger.Info("Socket open (reconnect=%v), waiting for auth request", reconnect)
	h.nextConnection()
	h.setSession(Session{Connected: true})
}

func (h *Handshake) OnError(err error) {
	h.logger.Warn("Socket error: %v", err)
	h.disconnected()
}

func (h *Handshake) OnClose(event websocket.CloseEvent) {
	h.logger.Info("Socket closed: %d %s", event.Code, event.Reason)
	h.disconnected()
}

func (h *Handshake) OnMessage(data []byte) {
	if message.IsHeartbeat(data) {
		return
	}

	env, err := message.Parse(data)
	if err != nil {
		h.logger.Warn("Dropping malformed message: %v", err)
		return
	}

	control, ok := message.ControlType(env.ActionType)
	if !ok {
		if err := h.messages.Handle(env.ActionType, env.Payload); err != nil {
			h.logger.Debug("Handling %s: %v", env.ActionType, err)
		}
		return
	}

	switch control {
	case message.AUTH_REQUEST:
		h.authenticate()
	case message.AUTH_FAILED:
		h.logger.Warn("Authentication failed, discarding stored token")
		if err := h.tokens.Invalidate(); err != nil {
			h.logger.Warn("Failed to erase stored token: %v", err)
		}
		h.setSession(Session{Connected: true})
		h.notifier.ReplaceByTag(MSG_AUTH_FAILED, notify.LevelWarning, WEBSOCKET_TAG)
	case message.AUTH_OK:
		h.logger.Info("Authenticated")
		h.setSession(Session{Connected: true, Authenticated: true})
		h.notifier.HideByTag(WEBSOCKET_TAG)
	}
}

// authenticate resolves and sends a token without blocking the socket's
// callback queue. If no token can be had, the placeholder goes out after
// the fallback delay. A token resolved after its connection went away is
// dropped.
func (h *Handshake) authenticate() {
	h.mu.Lock()
	generation, ctx := h.generation, h.connCtx
	h.mu.Unlock()

	h.pending.Add(1)
	go func() {
		defer h.pending.Done()

		token, err := h.tokens.Resolve(ctx)
		if err != nil {
			h.logger.Warn("%v; sending placeholder token in %v", err, h.fallbackDelay)
			timer := time.NewTimer(h.fallbackDelay)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}
			token = PlaceholderToken
		}

		// Held through Send so a reconnect cannot slip in between the
		// generation check and the write.
		h.mu.Lock()
		defer h.mu.Unlock()

		if generation != h.generation {
			h.logger.Debug("Dropping token resolved for a previous connection")
			return
		}
		if h.sender == nil {
			h.logger.Error("No socket attached, cannot send token")
			return
		}
		if err := h.sender.Send([]byte(token)); err != nil {
			h.logger.Warn("Failed to send token: %v", err)
		}
	}()
}

func (h *Handshake) disconnected() {
	h.nextConnection()
	h.setSession(Session{})
	h.notifier.ReplaceByTag(MSG_CONNECTION_LOST, notify.LevelWarning, WEBSOCKET_TAG)
}

func (h *Handshake) setSession(s Session) {
	h.mu.Lock()
	before := h.session.Status()
	h.session = s
	after := s.Status()
	observers := append([]func(Status){}, h.observers...)
	h.mu.Unlock()

	if before == after {
		return
	}
	h.logger.Debug("Session status %s -> %s", before, after)
	for _, fn := range observers {
		fn(after)
	}
}
