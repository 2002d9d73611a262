// Package relay is the server side of the realtime channel. It
// authenticates browser sockets with short-lived tokens and forwards
// messages published on the bus to the sockets of their user.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/cesium-ml/baselayer/config"
	"github.com/cesium-ml/baselayer/logger"
	"github.com/cesium-ml/baselayer/message"
	"github.com/cesium-ml/baselayer/mqtt"
)

// ALL_USERS addresses every authenticated socket.
const ALL_USERS = "*"

const SHUTDOWN_TIMEOUT = 5 * time.Second

type Option func(*Server)

func WithSessionAuthenticator(a SessionAuthenticator) Option {
	return func(s *Server) {
		s.sessions = a
	}
}

type peer struct {
	conn     *websocket.Conn
	failures int
	userID   string
}

func (p *peer) send(data []byte) error {
	return websocket.Message.Send(p.conn, string(data))
}

type Server struct {
	cfg             *config.ServerConfig
	issuer          *TokenIssuer
	sessions        SessionAuthenticator
	logger          logger.Logger
	maxAuthFailures int

	mu      sync.RWMutex
	peers   map[*peer]struct{}
	sockets map[string]map[*peer]struct{}
}

func NewServer(cfg *config.Config, logger logger.Logger, opts ...Option) *Server {
	maxFailures := cfg.Server.MaxAuthFailures
	if maxFailures <= 0 {
		maxFailures = config.DEFAULT_MAX_AUTH_FAILURES
	}

	s := &Server{
		cfg:    &cfg.Server,
		issuer: NewTokenIssuer(cfg.Server.SecretKey, cfg.Server.GetTokenLifetime()),
		sessions: StaticSessions{
			CookieName: cfg.Auth.SessionCookieName,
			Sessions:   cfg.Server.Sessions,
		},
		logger:          logger,
		maxAuthFailures: maxFailures,
		peers:           make(map[*peer]struct{}),
		sockets:         make(map[string]map[*peer]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Issuer() *TokenIssuer {
	return s.issuer
}

// Handler serves the socket and token endpoints on their configured paths.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	// No Handshake func: connections from any origin are accepted.
	mux.Handle(s.cfg.SocketPath, websocket.Server{Handler: s.serveSocket})
	mux.HandleFunc(s.cfg.TokenPath, s.serveToken)
	return mux
}

// Run serves until ctx is done, writing a heartbeat to every authenticated
// socket so idle proxies keep the connections open.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.GetAddress(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Listening for websocket connections on %s%s", srv.Addr, s.cfg.SocketPath)
		errCh <- srv.ListenAndServe()
	}()

	ticker := time.NewTicker(s.cfg.GetHeartbeatInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Heartbeat()
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
			s.logger.Info("Shutting down relay")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), SHUTDOWN_TIMEOUT)
			defer cancel()
			s.closeAll()
			return srv.Shutdown(shutdownCtx)
		}
	}
}

// AttachBus forwards every message published for a user on the bus to that
// user's sockets.
func (s *Server) AttachBus(bus mqtt.Client, prefix string) error {
	return bus.Subscribe(mqtt.MessagesFilter(prefix), func(topic string, payload []byte) {
		userID, ok := mqtt.UserFromTopic(prefix, topic)
		if !ok {
			s.logger.Warn("Ignoring message on unexpected topic %s", topic)
			return
		}
		s.Broadcast(userID, payload)
	})
}

// Broadcast writes payload to the sockets of userID, or to every
// authenticated socket for ALL_USERS. It returns the number of sockets
// written to.
func (s *Server) Broadcast(userID string, payload []byte) int {
	targets := s.targets(userID)
	if userID == ALL_USERS {
		s.logger.Debug("Forwarding message to all users")
	} else {
		s.logger.Debug("Forwarding message to user %s", userID)
	}

	sent := 0
	for _, p := range targets {
		if err := p.send(payload); err != nil {
			s.logger.Debug("Failed to forward message to user %s: %v", userID, err)
			continue
		}
		sent++
	}
	return sent
}

func (s *Server) Heartbeat() {
	for _, p := range s.targets(ALL_USERS) {
		if err := p.send([]byte(message.Heartbeat)); err != nil {
			s.logger.Debug("Heartbeat failed: %v", err)
		}
	}
}

// Connections returns the number of authenticated sockets of userID, or of
// all users for ALL_USERS.
func (s *Server) Connections(userID string) int {
	return len(s.targets(userID))
}

func (s *Server) targets(userID string) []*peer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var targets []*peer
	if userID == ALL_USERS {
		for _, set := range s.sockets {
			for p := range set {
				targets = append(targets, p)
			}
		}
		return targets
	}
	for p := range s.sockets[userID] {
		targets = append(targets, p)
	}
	return targets
}

func (s *Server) serveSocket(conn *websocket.Conn) {
	p := &peer{conn: conn}

	s.mu.Lock()
	s.peers[p] = struct{}{}
	s.mu.Unlock()
	defer s.remove(p)

	s.requestAuth(p)

	for {
		var token string
		if err := websocket.Message.Receive(conn, &token); err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Debug("Socket read error: %v", err)
			}
			return
		}
		s.authenticate(p, strings.TrimSpace(token))
	}
}

func (s *Server) authenticate(p *peer, token string) {
	userID, err := s.issuer.Verify(token)
	if err != nil {
		s.logger.Debug("Socket authentication failed: %v", err)
		s.sendControl(p, message.AUTH_FAILED)
		// p.userID is only written from this socket's goroutine.
		if p.userID != "" {
			return
		}
		if p.failures <= s.maxAuthFailures {
			s.requestAuth(p)
		} else {
			s.logger.Warn("Max auth failure count reached")
		}
		return
	}

	s.register(p, userID)
	p.failures = 0
	s.sendControl(p, message.AUTH_OK)
	s.logger.Info("Socket authenticated for user %s", userID)
}

func (s *Server) requestAuth(p *peer) {
	p.failures++
	s.sendControl(p, message.AUTH_REQUEST)
}

func (s *Server) sendControl(p *peer, actionType string) {
	data, err := json.Marshal(map[string]string{"actionType": actionType})
	if err != nil {
		return
	}
	if err := p.send(data); err != nil {
		s.logger.Debug("Failed to send %s: %v", actionType, err)
	}
}

func (s *Server) register(p *peer, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.unregisterLocked(p)
	p.userID = userID
	if s.sockets[userID] == nil {
		s.sockets[userID] = make(map[*peer]struct{})
	}
	s.sockets[userID][p] = struct{}{}
}

func (s *Server) remove(p *peer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.peers, p)
	s.unregisterLocked(p)
	_ = p.conn.Close()
}

func (s *Server) unregisterLocked(p *peer) {
	if p.userID == "" {
		return
	}
	set := s.sockets[p.userID]
	delete(set, p)
	if len(set) == 0 {
		delete(s.sockets, p.userID)
	}
	p.userID = ""
}

// closeAll closes every socket; hijacked connections are not tracked by
// http.Server.Shutdown.
func (s *Server) closeAll() {
	s.mu.RLock()
	peers := make([]*peer, 0, len(s.peers))
	for p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.RUnlock()

	for _, p := range peers {
		_ = p.conn.Close()
	}
}
