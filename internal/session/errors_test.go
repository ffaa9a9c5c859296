package session

import (
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsExpectedCloseError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: true},
		{name: "closed listener conn", err: &net.OpError{Op: "read", Err: net.ErrClosed}, want: true},
		{name: "closed pipe", err: fmt.Errorf("read: %w", errClosedPipe()), want: true},
		{name: "reset", err: &net.OpError{Op: "read", Err: os.NewSyscallError("read", syscall.ECONNRESET)}, want: true},
		{name: "broken pipe", err: &net.OpError{Op: "write", Err: os.NewSyscallError("write", syscall.EPIPE)}, want: true},
		{name: "message text is not enough", err: errors.New("connection reset by peer"), want: false},
		{name: "other", err: errors.New("disk on fire"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isExpectedCloseError(tt.err))
		})
	}
}

// errClosedPipe returns the error net.Pipe reports after its peer closed.
func errClosedPipe() error {
	a, b := net.Pipe()
	a.Close()
	b.Close()
	_, err := a.Read(make([]byte, 1))
	return err
}
