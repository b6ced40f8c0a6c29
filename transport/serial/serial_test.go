package serial

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-mca8000d/mca"
	"github.com/moffa90/go-mca8000d/protocol"
)

// fakePort hands out queued chunks, one per Read, and io.EOF when empty.
type fakePort struct {
	mu      sync.Mutex
	chunks  [][]byte
	written [][]byte
	flushed int
	closed  bool
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.chunks) == 0 {
		time.Sleep(time.Millisecond)
		return 0, io.EOF
	}
	n := copy(b, p.chunks[0])
	p.chunks[0] = p.chunks[0][n:]
	if len(p.chunks[0]) == 0 {
		p.chunks = p.chunks[1:]
	}
	return n, nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.written = append(p.written, append([]byte(nil), b...))
	return len(b), nil
}

func (p *fakePort) Flush() error {
	p.flushed++
	return nil
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func frame(t *testing.T, pid1, pid2 byte, payload []byte) []byte {
	t.Helper()
	f, err := protocol.BuildFrame(pid1, pid2, payload)
	require.NoError(t, err)
	return f
}

func TestReadWholeFrame(t *testing.T) {
	want := frame(t, protocol.RespStatus1, protocol.RespStatus2, make([]byte, 64))
	port := &fakePort{chunks: [][]byte{want}}

	got, err := New(port).Read(mca.InEndpoint, mca.DefaultReadBufferSize, time.Second)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestReadSplitFrames(t *testing.T) {
	first := frame(t, protocol.RespAck, 0, nil)
	second := frame(t, protocol.RespConfig1, protocol.RespConfigReadback, []byte("GAIA=3;"))
	stream := append(append([]byte{0x00, 0x13, protocol.Sync1}, first...), second...)

	// Deliver the stream three bytes at a time
	port := &fakePort{}
	for i := 0; i < len(stream); i += 3 {
		end := i + 3
		if end > len(stream) {
			end = len(stream)
		}
		port.chunks = append(port.chunks, stream[i:end])
	}
	tr := New(port)

	got, err := tr.Read(mca.InEndpoint, 1024, time.Second)
	require.NoError(t, err)
	assert.Equal(t, first, got)

	got, err = tr.Read(mca.InEndpoint, 1024, time.Second)
	require.NoError(t, err)
	assert.Equal(t, second, got)
}

func TestReadTimeout(t *testing.T) {
	partial := frame(t, protocol.RespStatus1, protocol.RespStatus2, make([]byte, 64))[:10]
	port := &fakePort{chunks: [][]byte{partial}}

	_, err := New(port).Read(mca.InEndpoint, 1024, 20*time.Millisecond)
	assert.ErrorIs(t, err, mca.ErrTransportTimeout)
	assert.True(t, mca.IsTransient(err))
}

func TestReadFrameTooLarge(t *testing.T) {
	want := frame(t, protocol.RespStatus1, protocol.RespStatus2, make([]byte, 64))
	port := &fakePort{chunks: [][]byte{want}}
	tr := New(port)

	_, err := tr.Read(mca.InEndpoint, 16, time.Second)
	assert.ErrorContains(t, err, "exceeds read size")

	// The frame is still buffered for a larger read
	got, err := tr.Read(mca.InEndpoint, mca.DefaultReadBufferSize, time.Second)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestWriteResetClose(t *testing.T) {
	port := &fakePort{}
	tr := New(port)

	req := frame(t, protocol.PIDStatus1, protocol.PIDStatus2, nil)
	n, err := tr.Write(mca.OutEndpoint, req, time.Second)
	require.NoError(t, err)
	assert.Equal(t, len(req), n)
	assert.Equal(t, [][]byte{req}, port.written)

	require.NoError(t, tr.Reset())
	assert.Equal(t, 1, port.flushed)

	require.NoError(t, tr.Close())
	assert.True(t, port.closed)
}
