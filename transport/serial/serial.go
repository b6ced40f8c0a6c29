// Package serial binds mca.Transport to an MCA8000D on an RS-232 port.
//
// A serial link has no endpoints, so endpoint arguments are ignored. Frames
// are delimited by their header: Read resynchronises on the F5 FA sync bytes
// and then reads the declared payload and checksum.
package serial

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	goserial "github.com/tarm/serial"

	"github.com/moffa90/go-mca8000d/mca"
	"github.com/moffa90/go-mca8000d/protocol"
)

// Default port settings.
const (
	DefaultBaud = 115200

	// DefaultPollTimeout bounds one read from the port
	DefaultPollTimeout = 50 * time.Millisecond
)

var syncBytes = []byte{protocol.Sync1, protocol.Sync2}

// Port is the subset of *goserial.Port used by Transport.
type Port interface {
	io.ReadWriteCloser
	Flush() error
}

// Transport is an MCA8000D on a serial port.
type Transport struct {
	mu   sync.Mutex
	port Port
	buf  []byte
}

// Open opens the named port, for example "/dev/ttyUSB0" or "COM3".
// A baud of zero selects DefaultBaud.
func Open(name string, baud int) (*Transport, error) {
	if baud == 0 {
		baud = DefaultBaud
	}
	port, err := goserial.OpenPort(&goserial.Config{
		Name:        name,
		Baud:        baud,
		Size:        8,
		Parity:      goserial.ParityNone,
		StopBits:    goserial.Stop1,
		ReadTimeout: DefaultPollTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return New(port), nil
}

// New wraps an open port.
func New(port Port) *Transport {
	return &Transport{port: port}
}

// Write sends one frame.
func (t *Transport) Write(endpoint int, data []byte, timeout time.Duration) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port.Write(data)
}

// Read returns the next complete frame, reading until timeout elapses.
// Bytes before the sync pattern are discarded.
func (t *Transport) Read(endpoint int, maxLen int, timeout time.Duration) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	deadline := time.Now().Add(timeout)
	chunk := make([]byte, 512)
	for {
		if size, ok := t.nextFrame(); ok {
			// An oversized frame stays buffered
			if size > maxLen {
				return nil, fmt.Errorf("frame of %d bytes exceeds read size %d", size, maxLen)
			}
			frame := make([]byte, size)
			copy(frame, t.buf)
			t.buf = t.buf[size:]
			return frame, nil
		}
		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("%w: %d bytes buffered", mca.ErrTransportTimeout, len(t.buf))
		}

		n, err := t.port.Read(chunk)
		t.buf = append(t.buf, chunk[:n]...)
		// tarm/serial reports an expired poll as io.EOF
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
	}
}

// nextFrame drops bytes before the sync pattern and reports the size of the
// complete frame at the head of the buffer.
func (t *Transport) nextFrame() (int, bool) {
	i := bytes.Index(t.buf, syncBytes)
	if i < 0 {
		// Keep a trailing first sync byte
		if n := len(t.buf); n > 0 && t.buf[n-1] == protocol.Sync1 {
			t.buf = t.buf[n-1:]
		} else {
			t.buf = t.buf[:0]
		}
		return 0, false
	}
	t.buf = t.buf[i:]

	if len(t.buf) < protocol.HeaderSize {
		return 0, false
	}
	size := protocol.MinFrameSize + int(binary.BigEndian.Uint16(t.buf[4:6]))
	if len(t.buf) < size {
		return 0, false
	}
	return size, true
}

// Reset discards buffered input and flushes the port.
func (t *Transport) Reset() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = nil
	return t.port.Flush()
}

// Close closes the port.
func (t *Transport) Close() error {
	return t.port.Close()
}
