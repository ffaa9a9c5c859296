// Package chat accepts chat room connections and runs one session per
// connection, optionally capping how many sessions are live at once.
package chat

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"chatroom/internal/protocol"
	"chatroom/internal/service"
	"chatroom/internal/session"
)

// DefaultBanner greets every accepted connection.
const DefaultBanner = "\nMy chat room server. Version One.\n"

// ErrServerFull is the reply sent to connections beyond MaxSessions.
var ErrServerFull = errors.New("Denied. Server is full, try again later.")

type Config struct {
	Banner string
	// MaxSessions caps concurrent sessions. Zero means unbounded.
	MaxSessions int
	IdleTimeout time.Duration
	MaxPayload  int64
	Logger      *logrus.Logger
}

// SessionInfo describes one live session.
type SessionInfo struct {
	ID          string    `json:"id"`
	RemoteAddr  string    `json:"remote_addr"`
	User        string    `json:"user,omitempty"`
	ConnectedAt time.Time `json:"connected_at"`
}

type Server struct {
	cfg   Config
	users service.UserService
	sem   *semaphore.Weighted

	wg sync.WaitGroup
	mu sync.Mutex
	// ln is set while Serve runs.
	ln     net.Listener
	closed bool
	active map[uuid.UUID]*handle
}

type handle struct {
	session *session.Session
	conn    net.Conn
}

func NewServer(cfg Config, users service.UserService) *Server {
	if cfg.Banner == "" {
		cfg.Banner = DefaultBanner
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	s := &Server{
		cfg:    cfg,
		users:  users,
		active: make(map[uuid.UUID]*handle),
	}
	if cfg.MaxSessions > 0 {
		s.sem = semaphore.NewWeighted(int64(cfg.MaxSessions))
	}
	return s
}

// ListenAndServe listens on the TCP address addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled or Shutdown is
// called. Each connection gets its own goroutine; Serve never waits on one.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return nil
	}
	s.ln = ln
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { s.closeListener() })
	defer stop()

	s.cfg.Logger.Infof("chat server listening on %s", ln.Addr())

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || s.isClosed() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			if isRetryableAcceptError(err) {
				backoff = nextBackoff(backoff)
				s.cfg.Logger.Warnf("accept: %v; retrying in %s", err, backoff)
				time.Sleep(backoff)
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}
		backoff = 0
		s.spawnSession(ctx, conn)
	}
}

// isRetryableAcceptError reports accept failures that clear on their own,
// such as timeouts or running out of file descriptors.
func isRetryableAcceptError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.EMFILE) ||
		errors.Is(err, syscall.ENFILE) ||
		errors.Is(err, syscall.ENOBUFS) ||
		errors.Is(err, syscall.ENOMEM) ||
		errors.Is(err, syscall.ECONNABORTED)
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	if d *= 2; d > time.Second {
		d = time.Second
	}
	return d
}

func (s *Server) spawnSession(ctx context.Context, conn net.Conn) {
	log := s.cfg.Logger.WithField("remote", conn.RemoteAddr().String())

	if s.sem != nil && !s.sem.TryAcquire(1) {
		log.Warnf("rejecting connection: %d sessions active", s.cfg.MaxSessions)
		if !s.track(nil, conn) {
			conn.Close()
			return
		}
		go func() {
			defer s.wg.Done()
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			_ = protocol.WriteMessage(conn, session.ReplyPrefix+ErrServerFull.Error())
			conn.Close()
		}()
		return
	}

	sess := session.New(conn, s.users, session.Config{
		IdleTimeout: s.cfg.IdleTimeout,
		MaxPayload:  s.cfg.MaxPayload,
		Logger:      s.cfg.Logger,
	})
	if !s.track(sess, conn) {
		conn.Close()
		if s.sem != nil {
			s.sem.Release(1)
		}
		return
	}

	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("recovered from panic in session %s: %v", sess.ID(), r)
				conn.Close()
			}
			if s.sem != nil {
				s.sem.Release(1)
			}
			s.unregister(sess.ID())
		}()

		log.Debugf("session %s started", sess.ID())
		if err := protocol.WriteMessage(conn, s.cfg.Banner); err != nil {
			log.Debugf("send banner: %v", err)
			conn.Close()
			return
		}
		if err := sess.Run(ctx); err != nil {
			log.Warnf("session %s ended: %v", sess.ID(), err)
			return
		}
		log.Debugf("session %s ended", sess.ID())
	}()
}

// track adds a connection goroutine to the wait group and, for a non-nil
// sess, to the active set. It reports false once Shutdown has started.
func (s *Server) track(sess *session.Session, conn net.Conn) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.wg.Add(1)
	if sess == nil {
		s.mu.Unlock()
		return true
	}
	s.active[sess.ID()] = &handle{session: sess, conn: conn}
	count := len(s.active)
	s.mu.Unlock()
	s.cfg.Logger.Infof("client connected from %s. Active sessions: %d", conn.RemoteAddr(), count)
	return true
}

func (s *Server) unregister(id uuid.UUID) {
	s.mu.Lock()
	h, ok := s.active[id]
	delete(s.active, id)
	count := len(s.active)
	s.mu.Unlock()
	if ok {
		s.cfg.Logger.Infof("client from %s disconnected. Active sessions: %d", h.conn.RemoteAddr(), count)
	}
}

// Sessions returns a snapshot of the live sessions.
func (s *Server) Sessions() []SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]SessionInfo, 0, len(s.active))
	for _, h := range s.active {
		out = append(out, SessionInfo{
			ID:          h.session.ID().String(),
			RemoteAddr:  h.session.RemoteAddr(),
			User:        h.session.User(),
			ConnectedAt: h.session.ConnectedAt(),
		})
	}
	return out
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) closeListener() {
	s.mu.Lock()
	s.closed = true
	ln := s.ln
	s.mu.Unlock()
	if ln != nil {
		ln.Close()
	}
}

// Shutdown stops accepting connections, closes every live session and waits
// for their goroutines until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeListener()

	s.mu.Lock()
	conns := make([]net.Conn, 0, len(s.active))
	for _, h := range s.active {
		conns = append(conns, h.conn)
	}
	s.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}
	s.cfg.Logger.Infof("closed %d client connections", len(conns))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cfg.Logger.Info("chat server stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("chat server shutdown: %w", ctx.Err())
	}
}

