package protocol

import (
	"errors"
	"strings"
	"unicode/utf8"

	"chatroom/internal/domain"
)

// Command names understood by the server.
const (
	CommandLogin   = "login"
	CommandNewUser = "newuser"
	CommandSend    = "send"
	CommandLogout  = "logout"
)

const (
	// MaxLineLength bounds the raw send line: the body plus room for the command word.
	MaxLineLength = 260
	// MaxMessageLength bounds the body of a send command.
	MaxMessageLength = 256
)

// ErrEmptyCommand is returned for a message without tokens. Such messages get no reply.
var ErrEmptyCommand = errors.New("empty command")

// Command is one tokenized request.
type Command struct {
	Name string
	Args []string
	Raw  string
}

// Parse tokenizes text on whitespace and resolves the command name.
func Parse(text string) (Command, error) {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return Command{}, ErrEmptyCommand
	}

	cmd := Command{Name: tokens[0], Args: tokens[1:], Raw: text}
	switch cmd.Name {
	case CommandLogin, CommandNewUser, CommandSend, CommandLogout:
		return cmd, nil
	}
	return Command{}, &domain.UnknownCommandError{Name: cmd.Name}
}

// Validate applies the syntactic bounds of the command before it is executed.
func (c Command) Validate() error {
	switch c.Name {
	case CommandLogin, CommandNewUser:
		if len(c.Args) != 2 {
			return &domain.ValidationError{Reason: "Denied. Please use the format: [" + c.Name + " (username) (password)]"}
		}
		return domain.ValidateCredentials(c.Args[0], c.Args[1])

	case CommandSend:
		if len(c.Args) == 0 {
			return &domain.ValidationError{Reason: "Denied. Invalid input. Try: [send (message)]"}
		}
		if utf8.RuneCountInString(strings.TrimSpace(c.Raw)) > MaxLineLength {
			return &domain.ValidationError{Reason: "Denied. Message must be less than 256 characters."}
		}
		if n := utf8.RuneCountInString(c.Message()); n < 1 || n > MaxMessageLength {
			return &domain.ValidationError{Reason: "Denied. Message size must be between 1 and 256 characters"}
		}
	}
	return nil
}

// Username returns the username argument of login and newuser.
func (c Command) Username() string {
	if len(c.Args) == 0 {
		return ""
	}
	return c.Args[0]
}

// Password returns the password argument of login and newuser.
func (c Command) Password() string {
	if len(c.Args) < 2 {
		return ""
	}
	return c.Args[1]
}

// Message returns the send body with its tokens joined by single spaces.
func (c Command) Message() string {
	return strings.Join(c.Args, " ")
}
