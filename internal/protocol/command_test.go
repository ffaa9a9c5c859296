package protocol

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatroom/internal/domain"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Command
		wantErr error
	}{
		{name: "login", input: "login alice pass", want: Command{Name: "login", Args: []string{"alice", "pass"}, Raw: "login alice pass"}},
		{name: "extra whitespace", input: "  send\thello   world \n", want: Command{Name: "send", Args: []string{"hello", "world"}, Raw: "  send\thello   world \n"}},
		{name: "logout", input: "logout", want: Command{Name: "logout", Args: []string{}, Raw: "logout"}},
		{name: "empty", input: "", wantErr: ErrEmptyCommand},
		{name: "blank", input: "  \t ", wantErr: ErrEmptyCommand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Empty(t, cmp.Diff(tt.want, got))
		})
	}
}

func TestParse_UnknownCommand(t *testing.T) {
	for _, input := range []string{"dance", "LOGIN alice pass", "sendhello"} {
		_, err := Parse(input)
		var uerr *domain.UnknownCommandError
		require.True(t, errors.As(err, &uerr), input)
		assert.Equal(t, "Invalid command.", uerr.Error())
	}
}

func TestCommand_Validate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{name: "login ok", input: "login alice pass"},
		{name: "newuser ok", input: "newuser alice pass"},
		{name: "login missing password", input: "login alice", wantErr: "Denied. Please use the format: [login (username) (password)]"},
		{name: "newuser extra token", input: "newuser alice pass more", wantErr: "Denied. Please use the format: [newuser (username) (password)]"},
		{name: "login short username", input: "login al pass", wantErr: "Denied. Username must be between 3 and 32 characters."},
		{name: "newuser long password", input: "newuser alice 123456789", wantErr: "Denied. Password must be between 4 and 8 characters."},
		{name: "send ok", input: "send hello there"},
		{name: "send without body", input: "send", wantErr: "Denied. Invalid input. Try: [send (message)]"},
		{name: "send line too long", input: "send " + strings.Repeat("a", 256), wantErr: "Denied. Message must be less than 256 characters."},
		{name: "send at line limit", input: "send " + strings.Repeat("a", 255)},
		{name: "logout", input: "logout"},
		{name: "logout with args", input: "logout now"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := Parse(tt.input)
			require.NoError(t, err)

			err = cmd.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantErr, verr.Reason)
		})
	}
}

func TestCommand_Accessors(t *testing.T) {
	cmd, err := Parse("send  hello   big world")
	require.NoError(t, err)
	assert.Equal(t, "hello big world", cmd.Message())

	cmd, err = Parse("login alice pass")
	require.NoError(t, err)
	assert.Equal(t, "alice", cmd.Username())
	assert.Equal(t, "pass", cmd.Password())

	cmd, err = Parse("login")
	require.NoError(t, err)
	assert.Empty(t, cmd.Username())
	assert.Empty(t, cmd.Password())
}
