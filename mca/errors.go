package mca

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/moffa90/go-mca8000d/protocol"
)

var (
	// ErrTransportTimeout indicates the device did not answer within the timeout
	ErrTransportTimeout = errors.New("transport timeout")

	// ErrDeviceNotFound indicates no matching device could be opened
	ErrDeviceNotFound = errors.New("device not found")

	// ErrClosed indicates use of a closed session
	ErrClosed = errors.New("session closed")
)

// TransportError wraps a failed write or read.
type TransportError struct {
	// Operation is the session operation that was running
	Operation string

	// Direction is "write" or "read"
	Direction string

	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Operation, e.Direction, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the underlying failure was a timeout.
func (e *TransportError) Timeout() bool {
	return isTimeout(e.Err)
}

// IsTransient reports whether err is a timeout the caller may retry as is.
// Checksum, buffer and size code failures are structural and return false.
func IsTransient(err error) bool {
	return isTimeout(err)
}

// IsStructural reports whether err indicates a corrupt or desynchronised response.
func IsStructural(err error) bool {
	return errors.Is(err, protocol.ErrChecksumMismatch) ||
		errors.Is(err, protocol.ErrBufferTooShort) ||
		errors.Is(err, protocol.ErrUnknownSizeCode) ||
		errors.Is(err, protocol.ErrFrameLength) ||
		errors.Is(err, protocol.ErrUnexpectedResponse)
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransportTimeout) ||
		errors.Is(err, os.ErrDeadlineExceeded) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// Is lets errors.Is match ErrTransportTimeout for any timeout reported by the transport.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransportTimeout && e.Timeout()
}
