package mca

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-mca8000d/metrics"
	"github.com/moffa90/go-mca8000d/protocol"
)

// MockTransport replays scripted responses and records every write.
type MockTransport struct {
	mu        sync.Mutex
	writes    [][]byte
	responses [][]byte
	writeErr  error
	readErr   error
	resetErr  error
	closeErr  error
	resets    int
	closes    int
}

func (m *MockTransport) Write(endpoint int, data []byte, timeout time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	m.writes = append(m.writes, append([]byte(nil), data...))
	return len(data), nil
}

func (m *MockTransport) Read(endpoint int, maxLen int, timeout time.Duration) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	if len(m.responses) == 0 {
		return nil, ErrTransportTimeout
	}
	resp := m.responses[0]
	m.responses = m.responses[1:]
	return resp, nil
}

func (m *MockTransport) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets++
	return m.resetErr
}

func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
	return m.closeErr
}

// AddResponse queues a well-formed response frame.
func (m *MockTransport) AddResponse(t *testing.T, pid1, pid2 byte, payload []byte) {
	t.Helper()
	frame, err := protocol.BuildFrame(pid1, pid2, payload)
	require.NoError(t, err)
	m.AddRaw(frame)
}

// AddRaw queues raw response bytes.
func (m *MockTransport) AddRaw(raw []byte) {
	m.mu.Lock()
	m.responses = append(m.responses, raw)
	m.mu.Unlock()
}

// AddAck queues an acknowledge frame.
func (m *MockTransport) AddAck(t *testing.T, code protocol.AckCode) {
	m.AddResponse(t, protocol.RespAck, byte(code), nil)
}

// LastRequest parses the last frame written.
func (m *MockTransport) LastRequest(t *testing.T) *protocol.Frame {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.writes, "no request written")
	f, err := protocol.ParseFrame(m.writes[len(m.writes)-1])
	require.NoError(t, err)
	return f
}

func (m *MockTransport) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.writes)
}

// MockLogger records messages by level.
type MockLogger struct {
	mu        sync.Mutex
	debugMsgs []string
	infoMsgs  []string
	errorMsgs []string
}

func (l *MockLogger) Debugw(msg string, kv ...interface{}) {
	l.mu.Lock()
	l.debugMsgs = append(l.debugMsgs, msg)
	l.mu.Unlock()
}

func (l *MockLogger) Infow(msg string, kv ...interface{}) {
	l.mu.Lock()
	l.infoMsgs = append(l.infoMsgs, msg)
	l.mu.Unlock()
}

func (l *MockLogger) Errorw(msg string, kv ...interface{}) {
	l.mu.Lock()
	l.errorMsgs = append(l.errorMsgs, msg)
	l.mu.Unlock()
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		options []Option
	}{
		{
			name:    "with no options",
			options: nil,
		},
		{
			name: "with all options",
			options: []Option{
				WithProgressCallback(func(p Progress) {}),
				WithLogger(&MockLogger{}),
				WithTimeout(time.Second),
				WithEndpoints(0x01, 0x82),
				WithReadBufferSize(4096),
				WithPollInterval(10 * time.Millisecond),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := New(&MockTransport{}, tt.options...)
			require.NotNil(t, sess)
			assert.NotNil(t, sess.config.Logger)
		})
	}
}

func TestNewPanicsOnNilTransport(t *testing.T) {
	assert.Panics(t, func() { New(nil) })
}

func TestOptionsIgnoreInvalidValues(t *testing.T) {
	sess := New(&MockTransport{},
		WithTimeout(0),
		WithReadBufferSize(4),
		WithPollInterval(-time.Second),
	)

	assert.Equal(t, DefaultTimeout, sess.config.Timeout)
	assert.Equal(t, DefaultReadBufferSize, sess.config.ReadBufferSize)
	assert.Equal(t, time.Second, sess.config.PollInterval)
}

func TestRequestStatus(t *testing.T) {
	m := &MockTransport{}
	want := &protocol.Status{
		FastCount:     1000,
		SlowCount:     900,
		RealTime:      1234,
		Firmware:      0x68,
		Build:         2,
		DeviceID:      protocol.DeviceMCA8000D,
		SerialNumber:  77,
		MCAEnabled:    true,
		DP5Configured: true,
		DMCALiveTime:  true,
	}
	m.AddResponse(t, protocol.RespStatus1, protocol.RespStatus2, want.Encode())

	sess := New(m)
	got, err := sess.RequestStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)

	req := m.LastRequest(t)
	assert.Equal(t, byte(protocol.PIDStatus1), req.PID1)
	assert.Equal(t, byte(protocol.PIDStatus2), req.PID2)
	assert.Empty(t, req.Payload)
}

func TestRequestStatusShortPayload(t *testing.T) {
	m := &MockTransport{}
	m.AddResponse(t, protocol.RespStatus1, protocol.RespStatus2, make([]byte, 20))

	_, err := New(m).RequestStatus(context.Background())
	assert.ErrorIs(t, err, protocol.ErrBufferTooShort)
	assert.True(t, IsStructural(err))
}

func TestRequestHWConfig(t *testing.T) {
	m := &MockTransport{}
	m.AddResponse(t, protocol.RespConfig1, protocol.RespConfigReadback, []byte("MCAC=1024;GAIA=3;GAIA=9;junk;"))

	cfg, err := New(m).RequestHWConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, protocol.ConfigMap{"MCAC": "1024", "GAIA": "3"}, cfg)

	req := m.LastRequest(t)
	assert.Equal(t, byte(protocol.PIDConfig1), req.PID1)
	assert.Equal(t, byte(protocol.PIDConfigReadback), req.PID2)
	assert.Equal(t, protocol.BuildQueryString(), string(req.Payload))
}

func TestDataRequestsRejectedByAck(t *testing.T) {
	requests := []struct {
		op   string
		call func(t *testing.T, s *Session) error
	}{
		{OpStatus, func(t *testing.T, s *Session) error {
			_, err := s.RequestStatus(context.Background())
			return err
		}},
		{OpHWConfig, func(t *testing.T, s *Session) error {
			cfg, err := s.RequestHWConfig(context.Background())
			assert.Nil(t, cfg)
			return err
		}},
		{OpSpectrum, func(t *testing.T, s *Session) error {
			_, _, err := s.RequestSpectrum(context.Background(), true, false)
			return err
		}},
	}
	acks := []protocol.AckCode{protocol.AckBadParameter, protocol.AckBusy}

	for _, rq := range requests {
		for _, code := range acks {
			t.Run(rq.op+" "+code.String(), func(t *testing.T) {
				m := &MockTransport{}
				m.AddAck(t, code)

				err := rq.call(t, New(m))
				require.Error(t, err)
				assert.True(t, protocol.IsAckError(err), err.Error())
				assert.False(t, IsStructural(err))

				var ackErr *protocol.AckError
				require.ErrorAs(t, err, &ackErr)
				assert.Equal(t, code, ackErr.Code)
				assert.Equal(t, rq.op, ackErr.Operation)
			})
		}

		t.Run(rq.op+" ok ack", func(t *testing.T) {
			m := &MockTransport{}
			m.AddAck(t, protocol.AckOK)

			err := rq.call(t, New(m))
			assert.ErrorIs(t, err, protocol.ErrUnexpectedResponse)
			assert.True(t, IsStructural(err))
		})
	}
}

func TestSendConfig(t *testing.T) {
	tests := []struct {
		name    string
		ack     protocol.AckCode
		wantErr bool
	}{
		{"acknowledged", protocol.AckOK, false},
		{"acknowledged with sharing request", protocol.AckOKSharingRequest, false},
		{"bad parameter", protocol.AckBadParameter, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &MockTransport{}
			m.AddAck(t, tt.ack)
			logger := &MockLogger{}

			resp, err := New(m, WithLogger(logger)).SendConfig(context.Background(), "GAIA=5;")
			require.NoError(t, err)
			assert.Equal(t, tt.ack, resp.AckCode())

			ackErr := resp.AckErr(OpSendConfig)
			if tt.wantErr {
				assert.True(t, protocol.IsAckError(ackErr))
				assert.NotEmpty(t, logger.errorMsgs)
			} else {
				assert.NoError(t, ackErr)
			}

			req := m.LastRequest(t)
			assert.Equal(t, byte(protocol.PIDConfigText), req.PID2)
			assert.Equal(t, "GAIA=5;", string(req.Payload))
		})
	}
}

func TestAcquisitionControl(t *testing.T) {
	m := &MockTransport{}
	m.AddAck(t, protocol.AckOK)
	m.AddAck(t, protocol.AckOK)
	sess := New(m)

	_, err := sess.EnableAcquisition(context.Background())
	require.NoError(t, err)
	req := m.LastRequest(t)
	assert.Equal(t, []byte{protocol.PIDControl1, protocol.PIDEnableMCA}, []byte{req.PID1, req.PID2})

	_, err = sess.DisableAcquisition(context.Background())
	require.NoError(t, err)
	req = m.LastRequest(t)
	assert.Equal(t, []byte{protocol.PIDControl1, protocol.PIDDisableMCA}, []byte{req.PID1, req.PID2})
}

func TestRequestSpectrum(t *testing.T) {
	spectrum := make(protocol.Spectrum, 256)
	spectrum[10] = 0x123456
	spectrum[255] = 7
	status := &protocol.Status{RealTime: 5000, DeviceID: protocol.DeviceMCA8000D, SerialNumber: 1}

	tests := []struct {
		name          string
		includeStatus bool
		clear         bool
		sizeCode      byte
		wantPID2      byte
	}{
		{"plain", false, false, 1, 1},
		{"clear", false, true, 1, 2},
		{"with status", true, false, 2, 3},
		{"with status and clear", true, true, 2, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &MockTransport{}
			payload := spectrum.Encode()
			if tt.includeStatus {
				payload = append(payload, status.Encode()...)
			}
			m.AddResponse(t, protocol.RespSpectrum1, tt.sizeCode, payload)

			got, gotStatus, err := New(m).RequestSpectrum(context.Background(), tt.includeStatus, tt.clear)
			require.NoError(t, err)
			assert.Equal(t, spectrum, got)
			if tt.includeStatus {
				require.NotNil(t, gotStatus)
				assert.Equal(t, uint32(5000), gotStatus.RealTime)
			} else {
				assert.Nil(t, gotStatus)
			}

			req := m.LastRequest(t)
			assert.Equal(t, byte(protocol.PIDSpectrum1), req.PID1)
			assert.Equal(t, tt.wantPID2, req.PID2)
		})
	}
}

func TestRequestSpectrumUnknownSizeCode(t *testing.T) {
	m := &MockTransport{}
	m.AddResponse(t, protocol.RespSpectrum1, 13, make([]byte, 30))

	_, _, err := New(m).RequestSpectrum(context.Background(), false, false)
	assert.ErrorIs(t, err, protocol.ErrUnknownSizeCode)
}

func TestSetPresetTime(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{0, "PRER=OFF;"},
		{1, "PRER=1;"},
		{20, "PRER=20;"},
	}

	for _, tt := range tests {
		m := &MockTransport{}
		m.AddAck(t, protocol.AckOK)

		_, err := New(m).SetPresetTime(context.Background(), tt.seconds)
		require.NoError(t, err)
		assert.Equal(t, tt.want, string(m.LastRequest(t).Payload))
	}
}

func TestSetPresetTimeNegativeDoesNoIO(t *testing.T) {
	m := &MockTransport{}

	_, err := New(m).SetPresetTime(context.Background(), -1)
	assert.ErrorIs(t, err, protocol.ErrInvalidArgument)
	assert.Zero(t, m.Writes())
}

func TestLoadConfig(t *testing.T) {
	m := &MockTransport{}
	m.AddAck(t, protocol.AckOK)

	_, err := New(m).LoadConfig(context.Background(), protocol.ConfigMap{"PRER": "OFF", "MCAC": "512"})
	require.NoError(t, err)
	assert.Equal(t, "MCAC=512;PRER=OFF;", string(m.LastRequest(t).Payload))

	_, err = New(&MockTransport{}).LoadConfig(context.Background(), nil)
	assert.ErrorIs(t, err, protocol.ErrInvalidArgument)
}

func TestTransportErrors(t *testing.T) {
	tests := []struct {
		name          string
		setup         func(m *MockTransport)
		wantTimeout   bool
		wantStructure bool
	}{
		{
			name:        "no response",
			setup:       func(m *MockTransport) {},
			wantTimeout: true,
		},
		{
			name:        "write timeout",
			setup:       func(m *MockTransport) { m.writeErr = ErrTransportTimeout },
			wantTimeout: true,
		},
		{
			name:  "read failure",
			setup: func(m *MockTransport) { m.readErr = errors.New("pipe broken") },
		},
		{
			name: "corrupt frame",
			setup: func(m *MockTransport) {
				frame, _ := protocol.BuildFrame(protocol.RespStatus1, protocol.RespStatus2, make([]byte, 64))
				frame[10] ^= 0x04
				m.AddRaw(frame)
			},
			wantStructure: true,
		},
		{
			name:          "truncated frame",
			setup:         func(m *MockTransport) { m.AddRaw([]byte{protocol.Sync1, protocol.Sync2, 0x80}) },
			wantStructure: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &MockTransport{}
			tt.setup(m)

			_, err := New(m).RequestStatus(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.wantTimeout, IsTransient(err))
			assert.Equal(t, tt.wantTimeout, errors.Is(err, ErrTransportTimeout))
			assert.Equal(t, tt.wantStructure, IsStructural(err))
		})
	}
}

func TestCancelledContextDoesNoIO(t *testing.T) {
	m := &MockTransport{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(m).RequestStatus(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, m.Writes())
}

func TestClose(t *testing.T) {
	t.Run("resets then closes", func(t *testing.T) {
		m := &MockTransport{}
		sess := New(m)

		require.NoError(t, sess.Close())
		assert.Equal(t, 1, m.resets)
		assert.Equal(t, 1, m.closes)

		require.NoError(t, sess.Close())
		assert.Equal(t, 1, m.closes)
	})

	t.Run("closes when reset fails", func(t *testing.T) {
		resetErr := errors.New("reset refused")
		m := &MockTransport{resetErr: resetErr}

		err := New(m).Close()
		assert.ErrorIs(t, err, resetErr)
		assert.Equal(t, 1, m.closes)
	})

	t.Run("operations after close fail", func(t *testing.T) {
		m := &MockTransport{}
		sess := New(m)
		require.NoError(t, sess.Close())

		_, err := sess.RequestStatus(context.Background())
		assert.ErrorIs(t, err, ErrClosed)
		assert.Zero(t, m.Writes())
	})
}

func TestConcurrentRequestsAreSerialised(t *testing.T) {
	m := &MockTransport{}
	status := (&protocol.Status{DeviceID: protocol.DeviceMCA8000D}).Encode()
	const n = 20
	for i := 0; i < n; i++ {
		m.AddResponse(t, protocol.RespStatus1, protocol.RespStatus2, status)
	}
	sess := New(m)

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := sess.RequestStatus(context.Background())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, n, m.Writes())
}

func TestMetricsRecorded(t *testing.T) {
	reg := prometheus.NewRegistry()
	dm := metrics.NewDeviceMetrics(reg)

	m := &MockTransport{}
	m.AddResponse(t, protocol.RespStatus1, protocol.RespStatus2, (&protocol.Status{MCAEnabled: true}).Encode())
	m.AddRaw([]byte{0x00})

	sess := New(m, WithMetrics(dm))
	_, err := sess.RequestStatus(context.Background())
	require.NoError(t, err)
	_, err = sess.RequestStatus(context.Background())
	require.Error(t, err)
	_, err = sess.RequestStatus(context.Background())
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(dm.RequestsTotal.WithLabelValues(OpStatus, resultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(dm.RequestsTotal.WithLabelValues(OpStatus, resultCorrupt)))
	assert.Equal(t, 1.0, testutil.ToFloat64(dm.RequestsTotal.WithLabelValues(OpStatus, resultTimeout)))
	assert.Equal(t, 1.0, testutil.ToFloat64(dm.Acquiring))
}
