package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"runtime/debug"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"github.com/emberkv/emberkv/internal/database"
	"github.com/emberkv/emberkv/internal/engine"
	"github.com/emberkv/emberkv/internal/metrics"
	"github.com/emberkv/emberkv/internal/protocol"
)

// Session-level error texts.
const (
	errNotAuthenticated = "Not authenticated"
	errInvalidPassword  = "ERR invalid password"
	errNoPassword       = "ERR Client sent AUTH, but no password is set"
	errRateLimited      = "ERR rate limit exceeded"
)

// SessionConfig holds the per-connection settings shared by all sessions.
type SessionConfig struct {
	// Password enables the auth gate when non-empty.
	Password string
	// Timeout closes the connection after this much idle time. 0 disables.
	Timeout time.Duration
	// RateLimit caps commands per second. 0 disables.
	RateLimit int
}

// Session runs the read-dispatch-reply loop of one client connection.
// All of its state is private to the goroutine calling Run.
type Session struct {
	id      string
	conn    net.Conn
	remote  string
	cfg     SessionConfig
	reg     *database.Registry
	metrics *metrics.Metrics
	logger  hclog.Logger
	limiter *rate.Limiter

	reader *protocol.Reader
	writer *protocol.Writer

	authenticated bool
	db            *engine.Engine
	name          string
	createdAt     time.Time
	lastCommand   time.Time
	commands      int64
}

// NewSession binds conn to the default namespace. m and logger may be nil.
func NewSession(conn net.Conn, reg *database.Registry, cfg SessionConfig, m *metrics.Metrics, logger hclog.Logger) *Session {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	id := ulid.Make().String()
	remote := conn.RemoteAddr().String()
	now := time.Now()

	s := &Session{
		id:            id,
		conn:          conn,
		remote:        remote,
		cfg:           cfg,
		reg:           reg,
		metrics:       m,
		logger:        logger.With("session", id, "remote", remote),
		reader:        protocol.NewReader(conn),
		writer:        protocol.NewWriter(conn),
		authenticated: cfg.Password == "",
		db:            reg.Resolve(database.DefaultNamespace),
		createdAt:     now,
		lastCommand:   now,
	}
	if cfg.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimit)
	}
	return s
}

// ID is the session's ULID.
func (s *Session) ID() string { return s.id }

// Namespace is the name of the currently selected namespace.
func (s *Session) Namespace() string { return s.db.Name() }

// Run serves commands until the client disconnects, sends quit, sends a
// malformed frame or ctx is cancelled. Replies are flushed once the read
// buffer drains so pipelined commands share a write.
func (s *Session) Run(ctx context.Context) error {
	defer s.conn.Close()

	s.logger.Debug("client connected")
	defer func() {
		s.logger.Debug("client disconnected", "commands", s.commands)
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}
		if s.cfg.Timeout > 0 {
			if err := s.conn.SetReadDeadline(time.Now().Add(s.cfg.Timeout)); err != nil {
				return err
			}
		}

		cmd, err := s.reader.ReadCommand()
		if err != nil {
			return s.readError(err)
		}

		reply := s.Handle(cmd)
		if reply == protocol.NoReply {
			return s.writer.Flush()
		}
		if err := s.writer.WriteReply(reply); err != nil {
			return err
		}
		if s.reader.Buffered() == 0 {
			if err := s.writer.Flush(); err != nil {
				return err
			}
		}
	}
}

// readError classifies a failed read. Ordinary disconnects return nil.
func (s *Session) readError(err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		return nil
	case errors.As(err, &netErr) && netErr.Timeout():
		s.logger.Debug("idle timeout", "timeout", s.cfg.Timeout)
		return nil
	case errors.Is(err, protocol.ErrProtocol):
		s.logger.Warn("closing connection on malformed frame", "error", err)
		return err
	}
	return err
}

// Handle produces the reply for one command. It never panics.
func (s *Session) Handle(cmd protocol.Command) protocol.Reply {
	verb := cmd.Verb()
	s.commands++
	s.lastCommand = time.Now()

	if s.limiter != nil && !s.limiter.Allow() {
		s.metrics.Rejected("rate_limit")
		return protocol.Error(errRateLimited)
	}

	start := time.Now()
	reply := s.guard(verb, func() protocol.Reply {
		return s.dispatch(verb, cmd.Args())
	})
	_, failed := reply.(protocol.ErrorReply)
	s.metrics.ObserveCommand(metricLabel(verb), failed, time.Since(start))
	return reply
}

func (s *Session) dispatch(verb string, args [][]byte) protocol.Reply {
	if verb == "auth" {
		return s.auth(args)
	}
	if !s.authenticated {
		return protocol.Error(errNotAuthenticated)
	}
	switch verb {
	case "select":
		return s.selectNamespace(args)
	case "client":
		return s.client(args)
	}

	op, ok := engine.Lookup(verb)
	if !ok {
		return engine.UnknownCommand(verb)
	}
	return s.db.Exec(op, args)
}

// guard turns a panic inside fn into an error reply. The engine releases
// its lock on the way out, so the session and namespace stay usable.
func (s *Session) guard(verb string, fn func() protocol.Reply) (reply protocol.Reply) {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.PanicRecovered()
			s.logger.Error("command panicked", "command", verb, "panic", r, "stack", string(debug.Stack()))
			reply = protocol.Error(fmt.Sprintf("Failed: %v", r))
		}
	}()
	return fn()
}

func (s *Session) auth(args [][]byte) protocol.Reply {
	if len(args) != 1 {
		return protocol.Error((&engine.ArgumentError{Verb: "auth"}).Error())
	}
	if s.cfg.Password == "" {
		return protocol.Error(errNoPassword)
	}
	if string(args[0]) != s.cfg.Password {
		s.logger.Warn("authentication failed")
		return protocol.Error(errInvalidPassword)
	}
	s.authenticated = true
	return protocol.OK()
}

func (s *Session) selectNamespace(args [][]byte) protocol.Reply {
	if len(args) != 1 {
		return protocol.Error((&engine.ArgumentError{Verb: "select"}).Error())
	}
	s.db = s.reg.Resolve(string(args[0]))
	return protocol.OK()
}

// client implements client id|info|getname|setname for this connection.
func (s *Session) client(args [][]byte) protocol.Reply {
	if len(args) == 0 {
		return protocol.Error((&engine.ArgumentError{Verb: "client"}).Error())
	}
	sub := strings.ToLower(string(args[0]))
	switch {
	case sub == "id" && len(args) == 1:
		return protocol.BulkString(s.id)
	case sub == "getname" && len(args) == 1:
		if s.name == "" {
			return protocol.NullBulk()
		}
		return protocol.BulkString(s.name)
	case sub == "setname" && len(args) == 2:
		if strings.ContainsAny(string(args[1]), " \n") {
			return protocol.Error("ERR Client names cannot contain spaces or newlines")
		}
		s.name = string(args[1])
		return protocol.OK()
	case sub == "info" && len(args) == 1:
		return protocol.BulkString(s.info())
	case sub == "id", sub == "getname", sub == "setname", sub == "info":
		return protocol.Error((&engine.ArgumentError{Verb: "client|" + sub}).Error())
	}
	return protocol.Error(fmt.Sprintf("ERR unknown subcommand '%s'", sub))
}

func (s *Session) info() string {
	now := time.Now()
	return fmt.Sprintf("id=%s addr=%s name=%s db=%s age=%d idle=%d cmd=%d",
		s.id, s.remote, s.name, s.db.Name(),
		int64(now.Sub(s.createdAt).Seconds()), int64(now.Sub(s.lastCommand).Seconds()), s.commands)
}

func metricLabel(verb string) string {
	switch verb {
	case "auth", "select", "client":
		return verb
	}
	if _, ok := engine.Lookup(verb); ok {
		return verb
	}
	return metrics.UnknownVerb
}
