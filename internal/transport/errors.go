package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
)

var (
	// ErrClosed is returned by every operation once Close has been called.
	ErrClosed = errors.New("transport closed")

	// ErrAlreadyConnected is returned by Connect on a bound transport.
	ErrAlreadyConnected = errors.New("transport already connected")
)

// ConnectionError wraps a dial, read or write failure.
type ConnectionError struct {
	Message string
	Cause   error
}

func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

func NewConnectionError(message string, cause error) error {
	return &ConnectionError{Message: message, Cause: cause}
}

// IsNetClosedError reports whether err comes from using a connection that
// was closed locally.
func IsNetClosedError(err error) bool {
	if errors.Is(err, net.ErrClosed) || errors.Is(err, ErrClosed) {
		return true
	}
	var opErr *net.OpError
	ok := errors.As(err, &opErr)
	return ok && opErr.Timeout()
}

// DescribeReadError classifies a read failure for logs and the console.
func DescribeReadError(err error) string {
	switch {
	case errors.Is(err, io.EOF):
		return "server closed the connection"
	case os.IsTimeout(err):
		return "read timed out"
	case IsNetClosedError(err):
		return "connection closed locally"
	default:
		return fmt.Sprintf("read failed: %v", err)
	}
}
