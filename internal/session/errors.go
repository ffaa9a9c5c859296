package session

import (
	"errors"
	"io"
	"net"
	"syscall"
)

// isExpectedCloseError reports whether err means the peer or the server
// closed the connection rather than a transport fault.
func isExpectedCloseError(err error) bool {
	return err == nil ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET)
}
