package websocket

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/cesium-ml/baselayer/logger"
	"github.com/cesium-ml/baselayer/retry"
)

type SocketOption func(*ReconnectingSocket)

func WithDialer(d Dialer) SocketOption {
	return func(s *ReconnectingSocket) {
		s.dialer = d
	}
}

// ReconnectingSocket keeps a connection to url alive, redialling with
// exponential backoff whenever it drops, until Close is called.
//
// All connection state lives on the struct and is guarded by mu. Only the
// goroutine started by Open dials, reads and waits on the retry manager.
type ReconnectingSocket struct {
	url      string
	opts     Options
	dialer   Dialer
	listener Listener
	retry    *retry.Manager
	events   *callbackQueue
	logger   logger.Logger

	mu       sync.Mutex
	state    State
	conn     Conn
	started  bool
	forced   bool
	cancel   context.CancelFunc
	finished chan struct{}
}

func NewReconnectingSocket(url string, opts Options, listener Listener, logger logger.Logger, socketOpts ...SocketOption) *ReconnectingSocket {
	s := &ReconnectingSocket{
		url:      url,
		opts:     opts,
		dialer:   NetDialer{Header: opts.Header},
		listener: listener,
		retry:    retry.NewManager(opts.backoff(), opts.MaxReconnectAttempts, logger),
		events:   newCallbackQueue(logger),
		logger:   logger,
		state:    WEB_SOCKET_STATE_CLOSED,
		finished: make(chan struct{}),
	}
	for _, opt := range socketOpts {
		opt(s)
	}
	return s
}

// Open starts connecting in the background. Connection problems are
// reported through the listener, not returned.
func (s *ReconnectingSocket) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.forced {
		s.mu.Unlock()
		return NewInvalidStateError(WEB_SOCKET_STATE_CLOSED)
	}
	if s.started {
		s.mu.Unlock()
		return NewClientAlreadyConnectedError("socket already opened")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.started = true
	s.cancel = cancel
	s.state = WEB_SOCKET_STATE_CONNECTING
	s.emitLocked(func(l Listener) { l.OnConnecting(false) })
	s.mu.Unlock()

	go s.run(runCtx)
	return nil
}

func (s *ReconnectingSocket) run(ctx context.Context) {
	defer close(s.finished)

	reconnect := false
	for {
		conn, timedOut, err := s.dial(ctx)
		if ctx.Err() != nil || s.isForced() {
			if conn != nil {
				_ = conn.Close()
			}
			return
		}

		var event CloseEvent
		if err != nil {
			event = CloseEvent{Code: CLOSE_ABNORMAL, Reason: err.Error()}
			if timedOut {
				s.logger.Warn("Connection to %s timed out after %v", s.url, s.opts.TimeoutInterval)
			} else {
				s.logger.Error("Connection to %s failed: %v", s.url, err)
				s.emit(func(l Listener) { l.OnError(NewWebSocketError("connection failed", err)) })
			}
		} else {
			if !s.opened(conn, reconnect) {
				_ = conn.Close()
				return
			}
			reconnect = false
			event = s.readLoop(conn)

			s.mu.Lock()
			s.conn = nil
			s.mu.Unlock()
		}

		s.mu.Lock()
		if s.forced {
			s.mu.Unlock()
			return
		}
		s.state = WEB_SOCKET_STATE_CONNECTING
		s.emitLocked(func(l Listener) { l.OnConnecting(true) })
		if !reconnect && !timedOut {
			s.emitLocked(func(l Listener) { l.OnClose(event) })
		}
		s.mu.Unlock()

		if !s.retry.ShouldReconnect() {
			s.mu.Lock()
			if !s.forced {
				s.state = WEB_SOCKET_STATE_CLOSED
			}
			s.mu.Unlock()
			return
		}
		if err := s.retry.WaitBeforeReconnect(ctx); err != nil {
			return
		}
		reconnect = true
	}
}

// dial makes one attempt bounded by TimeoutInterval. timedOut is true only
// when the attempt was aborted by that bound.
func (s *ReconnectingSocket) dial(ctx context.Context) (Conn, bool, error) {
	dialCtx, cancel := context.WithTimeout(ctx, s.opts.TimeoutInterval)
	defer cancel()

	conn, err := s.dialer.Dial(dialCtx, s.url)
	timedOut := ctx.Err() == nil && errors.Is(dialCtx.Err(), context.DeadlineExceeded)

	if err == nil && timedOut {
		_ = conn.Close()
		return nil, true, context.DeadlineExceeded
	}
	if err != nil {
		return nil, timedOut, err
	}
	return conn, false, nil
}

func (s *ReconnectingSocket) opened(conn Conn, reconnect bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.forced {
		return false
	}
	s.conn = conn
	s.state = WEB_SOCKET_STATE_OPEN
	s.retry.Reset()
	s.logger.Info("Connected to %s", s.url)
	s.emitLocked(func(l Listener) { l.OnOpen(reconnect) })
	return true
}

func (s *ReconnectingSocket) readLoop(conn Conn) CloseEvent {
	for {
		data, err := conn.Read()
		if err != nil {
			if s.isForced() {
				s.logger.Debug("Read error during shutdown (expected): %v", err)
				return CloseEvent{Code: CLOSE_NORMAL}
			}
			if errors.Is(err, io.EOF) {
				s.logger.Info("Connection closed by server")
				return CloseEvent{Code: CLOSE_NORMAL, Reason: "closed by server"}
			}
			s.logger.Error("Read error: %v", err)
			s.emit(func(l Listener) { l.OnError(NewWebSocketError("read error", err)) })
			return CloseEvent{Code: CLOSE_ABNORMAL, Reason: err.Error()}
		}

		s.emit(func(l Listener) { l.OnMessage(data) })
	}
}

// Send writes one text frame. It fails with *InvalidStateError unless the
// socket is open; nothing is buffered.
func (s *ReconnectingSocket) Send(data []byte) error {
	s.mu.Lock()
	conn, state := s.conn, s.state
	s.mu.Unlock()

	if state != WEB_SOCKET_STATE_OPEN || conn == nil {
		return NewInvalidStateError(state)
	}
	if err := conn.Write(data); err != nil {
		return NewWebSocketError("write error", err)
	}
	return nil
}

// Close shuts the socket down for good and emits a final OnClose carrying
// code and reason. Later calls are no-ops.
func (s *ReconnectingSocket) Close(code int, reason string) error {
	s.mu.Lock()
	if s.forced {
		s.mu.Unlock()
		return nil
	}
	s.forced = true
	s.state = WEB_SOCKET_STATE_CLOSING
	conn, cancel := s.conn, s.cancel
	s.conn = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	var closeErr error
	if conn != nil {
		if err := conn.Close(); err != nil {
			s.logger.Debug("WebSocket connection closed during shutdown: %v", err)
			closeErr = NewWebSocketError("close error", err)
		}
	}

	s.mu.Lock()
	s.state = WEB_SOCKET_STATE_CLOSED
	event := CloseEvent{Code: code, Reason: reason, Forced: true}
	if s.listener != nil {
		s.events.push(func() { s.listener.OnClose(event) })
	}
	s.events.close()
	s.mu.Unlock()

	s.logger.Info("Disconnected from %s (%d %s)", s.url, code, reason)
	return closeErr
}

// Done is closed once Close has been called and every pending listener
// callback has run.
func (s *ReconnectingSocket) Done() <-chan struct{} {
	return s.events.done
}

// Stopped is closed when the connection goroutine started by Open exits,
// either after Close or after the reconnect cap is reached.
func (s *ReconnectingSocket) Stopped() <-chan struct{} {
	return s.finished
}

func (s *ReconnectingSocket) GetState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *ReconnectingSocket) IsConnected() bool {
	return s.GetState() == WEB_SOCKET_STATE_OPEN
}

func (s *ReconnectingSocket) URL() string {
	return s.url
}

func (s *ReconnectingSocket) isForced() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forced
}

func (s *ReconnectingSocket) emit(fn func(Listener)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emitLocked(fn)
}

// emitLocked queues fn unless the socket has been closed. Callers hold mu,
// which orders every event before the terminal close.
func (s *ReconnectingSocket) emitLocked(fn func(Listener)) {
	if s.forced || s.listener == nil {
		return
	}
	listener := s.listener
	s.events.push(func() { fn(listener) })
}
