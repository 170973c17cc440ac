// Package server implements the EmberKV TCP server.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/emberkv/emberkv/internal/database"
	"github.com/emberkv/emberkv/internal/metrics"
	"github.com/emberkv/emberkv/internal/protocol"
)

const errMaxClients = "ERR max number of clients reached"

// Config holds server configuration.
type Config struct {
	Addr       string
	Password   string
	MaxClients int
	Timeout    time.Duration
	RateLimit  int

	// TLSCertFile and TLSKeyFile switch the listener to TLS when both are set.
	TLSCertFile string
	TLSKeyFile  string
}

// Server accepts connections and runs one Session per connection.
type Server struct {
	config   Config
	registry *database.Registry
	metrics  *metrics.Metrics
	logger   hclog.Logger

	mu       sync.Mutex
	listener net.Listener
	closed   bool
	sessions map[string]*Session
	wg       sync.WaitGroup
}

// New creates a Server. m and logger may be nil.
func New(cfg Config, reg *database.Registry, m *metrics.Metrics, logger hclog.Logger) *Server {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Server{
		config:   cfg,
		registry: reg,
		metrics:  m,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Listen binds the configured address without accepting yet.
func (s *Server) Listen() error {
	var tlsConfig *tls.Config
	if s.config.TLSCertFile != "" || s.config.TLSKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(s.config.TLSCertFile, s.config.TLSKeyFile)
		if err != nil {
			return fmt.Errorf("server: failed to load TLS key pair: %w", err)
		}
		tlsConfig = &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}
	}

	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("server: failed to listen: %w", err)
	}
	if tlsConfig != nil {
		ln = tls.NewListener(ln, tlsConfig)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start listens and serves until ctx is cancelled or Close is called.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Serve runs the accept loop on a listener bound by Listen.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return errors.New("server: Serve called before Listen")
	}

	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	s.logger.Info("listening", "addr", ln.Addr().String(),
		"auth", s.config.Password != "", "tls", s.config.TLSCertFile != "")

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosed() {
				return nil
			}
			s.logger.Error("failed to accept connection", "error", err)
			time.Sleep(5 * time.Millisecond)
			continue
		}
		s.accept(ctx, conn)
	}
}

func (s *Server) accept(ctx context.Context, conn net.Conn) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	if s.config.MaxClients > 0 && len(s.sessions) >= s.config.MaxClients {
		s.mu.Unlock()
		s.metrics.Rejected("max_clients")
		s.logger.Warn("max clients reached, rejecting connection", "remote", conn.RemoteAddr().String())
		go s.reject(conn)
		return
	}

	sess := NewSession(conn, s.registry, SessionConfig{
		Password:  s.config.Password,
		Timeout:   s.config.Timeout,
		RateLimit: s.config.RateLimit,
	}, s.metrics, s.logger.Named("session"))
	s.sessions[sess.ID()] = sess
	s.wg.Add(1)
	s.mu.Unlock()

	s.metrics.ClientConnected()
	go func() {
		defer s.wg.Done()
		defer s.untrack(sess)
		if err := sess.Run(ctx); err != nil && !s.isClosed() {
			s.logger.Debug("session ended", "session", sess.ID(), "error", err)
		}
	}()
}

// reject tells a client over the limit why it is being dropped.
func (s *Server) reject(conn net.Conn) {
	defer conn.Close()
	_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
	w := protocol.NewWriter(conn)
	if err := w.WriteReply(protocol.Error(errMaxClients)); err == nil {
		_ = w.Flush()
	}
}

func (s *Server) untrack(sess *Session) {
	s.mu.Lock()
	delete(s.sessions, sess.ID())
	s.mu.Unlock()
	s.metrics.ClientDisconnected()
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Clients reports the number of live sessions.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close stops accepting, disconnects every client and waits for their
// sessions to return. A command already executing completes first.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.wg.Wait()
		return nil
	}
	s.closed = true
	ln := s.listener
	for _, sess := range s.sessions {
		sess.conn.Close()
	}
	s.mu.Unlock()

	var err error
	if ln != nil {
		err = ln.Close()
	}
	s.wg.Wait()
	return err
}
