// Package client is a thin chat room client: it speaks the framed protocol and
// performs the same courtesy checks as the server before sending a line.
package client

import (
	"context"
	"fmt"
	"net"
	"strings"
	"unicode/utf8"

	"chatroom/internal/domain"
	"chatroom/internal/protocol"
)

type Client struct {
	conn   net.Conn
	reader *protocol.Reader
	banner string
}

// Dial connects to addr and reads the server banner.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return newClient(conn)
}

func newClient(conn net.Conn) (*Client, error) {
	c := &Client{conn: conn, reader: protocol.NewReader(conn, 0)}
	banner, err := c.reader.ReadMessage()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("read banner: %w", err)
	}
	c.banner = banner
	return c, nil
}

// Banner returns the greeting sent by the server on connect.
func (c *Client) Banner() string { return c.banner }

// Send writes one request and waits for its reply.
func (c *Client) Send(text string) (string, error) {
	if err := protocol.WriteMessage(c.conn, text); err != nil {
		return "", err
	}
	reply, err := c.reader.ReadMessage()
	if err != nil {
		return "", fmt.Errorf("read reply: %w", err)
	}
	return reply, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Precheck decides locally whether line is worth sending. When it is not, the
// returned text is the denial to show the user; an empty denial means the
// line is silently dropped.
func Precheck(line string) (string, bool) {
	line = strings.TrimSpace(line)
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return "", false
	}

	switch tokens[0] {
	case protocol.CommandLogout:
		return "", true
	case protocol.CommandLogin, protocol.CommandNewUser:
		if len(tokens) != 3 {
			return "> Denied. Please use correct command format.", false
		}
		if err := domain.ValidateCredentials(tokens[1], tokens[2]); err != nil {
			return "> " + err.Error(), false
		}
		return "", true
	case protocol.CommandSend:
		if len(tokens) < 2 {
			return "> Denied. Please use correct command format.", false
		}
		if utf8.RuneCountInString(line) > protocol.MaxLineLength {
			return "> Denied. Message must be less than 256 characters.", false
		}
		return "", true
	}
	return "> Denied. Invalid command.", false
}
