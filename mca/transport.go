package mca

import "time"

// Reference USB binding of the MCA8000D.
const (
	// VendorID is the USB vendor ID of the MCA8000D
	VendorID = 0x10c4

	// ProductID is the USB product ID of the MCA8000D
	ProductID = 0x842a

	// OutEndpoint is the bulk OUT endpoint address
	OutEndpoint = 0x02

	// InEndpoint is the bulk IN endpoint address
	InEndpoint = 0x81

	// DefaultTimeout bounds every write and every read
	DefaultTimeout = 500 * time.Millisecond

	// DefaultReadBufferSize is the largest response the session accepts
	DefaultReadBufferSize = 65535
)

// Transport moves raw frames to and from the device.
//
// Implementations return an error matching ErrTransportTimeout when no data
// arrives within the timeout. A Transport is used by one Session at a time
// and need not be safe for concurrent use.
type Transport interface {
	// Write sends data to the endpoint and returns the number of bytes written
	Write(endpoint int, data []byte, timeout time.Duration) (int, error)

	// Read returns at most maxLen bytes received from the endpoint
	Read(endpoint int, maxLen int, timeout time.Duration) ([]byte, error)

	// Reset resets the device
	Reset() error

	// Close releases the underlying resources
	Close() error
}
