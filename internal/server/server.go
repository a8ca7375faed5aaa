// Package server exposes the record stream to WebSocket subscribers.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"firestige.xyz/netscope/internal/broadcast"
	"firestige.xyz/netscope/internal/config"
	"firestige.xyz/netscope/internal/core"
	"firestige.xyz/netscope/internal/log"
)

const (
	subscriberKind = "websocket"

	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxInboundSize = 512
)

// Config configures the subscriber endpoint.
type Config struct {
	Listen        string
	Path          string
	StatusMessage string
	SendBuffer    int
	WriteTimeout  time.Duration
}

// ConfigFrom converts the server section of the configuration.
func ConfigFrom(cfg config.ServerConfig) Config {
	return Config{
		Listen:        cfg.Listen,
		Path:          cfg.Path,
		StatusMessage: cfg.StatusMessage,
		SendBuffer:    cfg.SendBuffer,
		WriteTimeout:  cfg.WriteTimeoutDuration(),
	}
}

func (c *Config) applyDefaults() {
	if c.Path == "" {
		c.Path = "/"
	}
	if c.StatusMessage == "" {
		c.StatusMessage = "Connected to sniffer"
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = broadcast.DefaultBuffer
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
}

// Server accepts WebSocket subscribers and streams records to them.
type Server struct {
	cfg      Config
	dist     *broadcast.Distributor
	upgrader websocket.Upgrader
	logger   log.Logger

	server   *http.Server
	listener net.Listener

	mu       sync.Mutex
	stopping bool
	conns    map[*websocket.Conn]struct{}
	wg       sync.WaitGroup
}

// New creates a server fed by dist.
func New(cfg Config, dist *broadcast.Distributor) *Server {
	cfg.applyDefaults()
	return &Server{
		cfg:  cfg,
		dist: dist,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Any origin may subscribe.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: log.GetLogger().WithField("component", "server"),
		conns:  make(map[*websocket.Conn]struct{}),
	}
}

// Handler returns the HTTP handler serving the WebSocket endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Path, s.ServeWS)
	return mux
}

// Start binds the listen address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Listen, err)
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.logger.WithFields(map[string]interface{}{
		"addr": ln.Addr().String(),
		"path": s.cfg.Path,
	}).Info("subscriber server listening")

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.WithError(err).Error("subscriber server error")
		}
	}()
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.cfg.Listen
}

// Stop stops accepting connections, closes every open subscriber connection
// and waits for their goroutines.
func (s *Server) Stop(ctx context.Context) error {
	var err error
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if e := s.server.Shutdown(shutdownCtx); e != nil {
			err = fmt.Errorf("subscriber server shutdown failed: %w", e)
		}
	}

	s.mu.Lock()
	s.stopping = true
	for conn := range s.conns {
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), deadline)
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("subscriber server stopped")
	return err
}

// Connections returns the number of open subscriber connections.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// ServeWS upgrades the request and streams records until either side closes.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Debug("websocket upgrade failed")
		return
	}

	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		goingAway(conn)
		return
	}
	sub, err := s.dist.SubscribeWithBuffer(subscriberKind, s.cfg.SendBuffer)
	if err != nil {
		s.mu.Unlock()
		goingAway(conn)
		return
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()

	logger := s.logger.WithFields(map[string]interface{}{
		"subscriber": sub.ID().String(),
		"remote":     r.RemoteAddr,
	})
	logger.Info("subscriber connected")

	done := make(chan struct{})
	go s.readPump(conn, done)
	s.writePump(conn, sub, done, logger)

	sub.Close()
	conn.Close()
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	s.wg.Done()
	logger.WithField("dropped", sub.Dropped()).Info("subscriber disconnected")
}

// readPump discards inbound messages and closes done when the peer goes away.
func (s *Server) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(maxInboundSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writePump(conn *websocket.Conn, sub *broadcast.Subscriber, done <-chan struct{}, logger log.Logger) {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	if err := s.write(conn, core.StatusMessage(s.cfg.StatusMessage)); err != nil {
		logger.WithError(err).Debug("status write failed")
		return
	}

	for {
		select {
		case <-done:
			return

		case record, ok := <-sub.Records():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(s.cfg.WriteTimeout))
				return
			}
			msg, err := core.PacketMessage(record)
			if err != nil {
				logger.WithError(err).Warn("encode record failed")
				continue
			}
			if err := s.write(conn, msg); err != nil {
				logger.WithError(err).Debug("record write failed")
				return
			}

		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.cfg.WriteTimeout)); err != nil {
				return
			}
		}
	}
}

func (s *Server) write(conn *websocket.Conn, msg core.Message) error {
	if err := conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
		return err
	}
	w, err := conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(msg); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func goingAway(conn *websocket.Conn) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(time.Second))
	conn.Close()
}
