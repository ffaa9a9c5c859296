// Package session runs the per-connection state machine of the chat room:
// it decodes requests, executes login, newuser, send and logout against the
// account service, and answers every request on the same connection.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"chatroom/internal/domain"
	"chatroom/internal/protocol"
	"chatroom/internal/service"
)

// ReplyPrefix marks every server response.
const ReplyPrefix = "> "

// Result is the outcome of one request.
type Result struct {
	// Reply is sent back to the client unless Skip is set.
	Reply string
	// Notice is logged on the server, never transmitted.
	Notice string
	// Close ends the session once Reply has been written.
	Close bool
	// Skip suppresses the reply entirely.
	Skip bool
}

type Config struct {
	// IdleTimeout closes a connection that sends nothing for this long. Zero disables it.
	IdleTimeout time.Duration
	// MaxPayload bounds a single request in bytes. Zero disables the bound.
	MaxPayload int64
	Logger     *logrus.Logger
}

// Session holds the state of one connection from accept to close.
type Session struct {
	id          uuid.UUID
	conn        net.Conn
	users       service.UserService
	cfg         Config
	log         *logrus.Entry
	connectedAt time.Time

	mu   sync.RWMutex
	user string
}

func New(conn net.Conn, users service.UserService, cfg Config) *Session {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	s := &Session{
		id:          uuid.New(),
		conn:        conn,
		users:       users,
		cfg:         cfg,
		connectedAt: time.Now().UTC(),
	}
	fields := logrus.Fields{"session": s.id.String()}
	if conn != nil {
		fields["remote"] = conn.RemoteAddr().String()
	}
	s.log = cfg.Logger.WithFields(fields)
	return s
}

func (s *Session) ID() uuid.UUID { return s.id }

func (s *Session) ConnectedAt() time.Time { return s.connectedAt }

func (s *Session) RemoteAddr() string {
	if s.conn == nil {
		return ""
	}
	return s.conn.RemoteAddr().String()
}

// User returns the logged in username, or "" before login.
func (s *Session) User() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

func (s *Session) setUser(user string) {
	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
}

// Run serves requests until the client logs out, disconnects, or sends a
// malformed frame. The connection is closed on return.
func (s *Session) Run(ctx context.Context) error {
	defer func() {
		s.setUser("")
		if err := s.conn.Close(); err != nil && !isExpectedCloseError(err) {
			s.log.Warnf("close connection: %v", err)
		}
	}()

	reader := protocol.NewReader(s.conn, s.cfg.MaxPayload)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if s.cfg.IdleTimeout > 0 {
			if err := s.conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout)); err != nil {
				return fmt.Errorf("set read deadline: %w", err)
			}
		}

		text, err := reader.ReadMessage()
		if err != nil {
			return s.readFailed(err)
		}

		res := s.Handle(ctx, text)
		if res.Notice != "" {
			s.log.Info(res.Notice)
		}
		if !res.Skip {
			if err := protocol.WriteMessage(s.conn, res.Reply); err != nil {
				if isExpectedCloseError(err) {
					s.log.Debugf("client gone before reply: %v", err)
					return nil
				}
				return fmt.Errorf("write reply: %w", err)
			}
		}
		if res.Close {
			return nil
		}
	}
}

func (s *Session) readFailed(err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, io.EOF):
		s.log.Debug("client closed connection")
		return nil
	case errors.As(err, &netErr) && netErr.Timeout():
		s.log.Infof("closing idle connection after %s", s.cfg.IdleTimeout)
		return nil
	case isExpectedCloseError(err):
		s.log.Debugf("connection closed: %v", err)
		return nil
	}
	return err
}

// Handle executes one request and never panics. Faults that are not the
// client's doing are logged and answered with a generic denial.
func (s *Session) Handle(ctx context.Context, text string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorf("recovered from panic handling request: %v", r)
			res = reply(domain.ErrInternal.Error())
		}
	}()

	cmd, err := protocol.Parse(text)
	if err != nil {
		if errors.Is(err, protocol.ErrEmptyCommand) {
			return Result{Skip: true}
		}
		return s.deny(err)
	}

	switch cmd.Name {
	case protocol.CommandLogin:
		return s.login(ctx, cmd)
	case protocol.CommandNewUser:
		return s.newUser(ctx, cmd)
	case protocol.CommandSend:
		return s.send(cmd)
	case protocol.CommandLogout:
		return s.logout()
	}
	return s.deny(&domain.UnknownCommandError{Name: cmd.Name})
}

func (s *Session) login(ctx context.Context, cmd protocol.Command) Result {
	if err := cmd.Validate(); err != nil {
		return s.deny(err)
	}
	if err := s.users.Authenticate(ctx, cmd.Username(), cmd.Password()); err != nil {
		return s.deny(err)
	}
	s.setUser(cmd.Username())
	res := reply("login confirmed")
	res.Notice = cmd.Username() + " login."
	return res
}

func (s *Session) newUser(ctx context.Context, cmd protocol.Command) Result {
	if err := cmd.Validate(); err != nil {
		return s.deny(err)
	}
	if err := s.users.Register(ctx, cmd.Username(), cmd.Password()); err != nil {
		return s.deny(err)
	}
	res := reply("New user account created. Please login.")
	res.Notice = "New user account created."
	return res
}

func (s *Session) send(cmd protocol.Command) Result {
	user := s.User()
	if user == "" {
		return s.deny(domain.ErrUnauthorized)
	}
	if err := cmd.Validate(); err != nil {
		return s.deny(err)
	}
	line := user + ": " + cmd.Message()
	res := reply(line)
	res.Notice = line
	return res
}

func (s *Session) logout() Result {
	user := s.User()
	s.setUser("")
	if user == "" {
		return Result{Reply: ReplyPrefix + "User left.", Notice: "User logout.", Close: true}
	}
	return Result{Reply: ReplyPrefix + user + " left.", Notice: user + " logout", Close: true}
}

// deny turns err into a reply. Errors without a client facing text are
// internal faults.
func (s *Session) deny(err error) Result {
	if msg, ok := domain.Denial(err); ok {
		return reply(msg)
	}
	s.log.Errorf("handle request: %v", err)
	return reply(domain.ErrInternal.Error())
}

func reply(text string) Result {
	return Result{Reply: ReplyPrefix + text}
}
