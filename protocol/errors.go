package protocol

import (
	"errors"
	"fmt"
)

// Sentinel errors. Detail types below match them through errors.Is.
var (
	// ErrChecksumMismatch indicates a frame failed its integrity check
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrBufferTooShort indicates a payload smaller than its fixed layout
	ErrBufferTooShort = errors.New("buffer too short")

	// ErrUnknownSizeCode indicates a spectrum size code outside the size table
	ErrUnknownSizeCode = errors.New("unknown spectrum size code")

	// ErrInvalidArgument indicates a caller supplied value the device cannot accept
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrPayloadTooLarge indicates a payload that does not fit the 16-bit length field
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrFrameLength indicates a frame whose length field disagrees with its size
	ErrFrameLength = errors.New("frame length mismatch")

	// ErrUnexpectedResponse is returned when the device answers a data
	// request with an OK acknowledge instead of data
	ErrUnexpectedResponse = errors.New("unexpected acknowledge response")
)

// ChecksumError carries the checksum found in a corrupt frame.
type ChecksumError struct {
	// Expected is the checksum carried by the frame
	Expected uint16

	// Actual is the checksum computed over the received bytes
	Actual uint16
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch: frame carries 0x%04X, computed 0x%04X", e.Expected, e.Actual)
}

// Is reports whether target is ErrChecksumMismatch.
func (e *ChecksumError) Is(target error) bool {
	return target == ErrChecksumMismatch
}

// ShortBufferError describes which layout did not fit.
type ShortBufferError struct {
	What string
	Got  int
	Need int
}

func (e *ShortBufferError) Error() string {
	return fmt.Sprintf("%s too short: got %d bytes, need %d", e.What, e.Got, e.Need)
}

// Is reports whether target is ErrBufferTooShort.
func (e *ShortBufferError) Is(target error) bool {
	return target == ErrBufferTooShort
}

// AckError represents a non-OK acknowledge returned by the device.
type AckError struct {
	// Operation is the command that was acknowledged
	Operation string

	// Code is the PID2 of the acknowledge packet
	Code AckCode
}

func (e *AckError) Error() string {
	return fmt.Sprintf("%s failed: %s (0x%02X)", e.Operation, e.Code, byte(e.Code))
}

// IsAckError returns true if the error is an AckError.
func IsAckError(err error) bool {
	var ae *AckError
	return errors.As(err, &ae)
}
