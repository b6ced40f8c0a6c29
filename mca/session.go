package mca

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/moffa90/go-mca8000d/protocol"
)

// Operation names used in errors, logs and metrics.
const (
	OpStatus      = "status"
	OpHWConfig    = "hw_config"
	OpSendConfig  = "send_config"
	OpEnable      = "enable"
	OpDisable     = "disable"
	OpSpectrum    = "spectrum"
	OpPresetTime  = "preset_time"
	OpLoadConfig  = "load_config"
	resultOK      = "ok"
	resultTimeout = "timeout"
	resultCorrupt = "corrupt"
	resultError   = "error"
)

// Session owns a device and runs request/response transactions on it.
//
// The protocol carries no transaction identifier, so a Session allows one
// outstanding request at a time: every operation holds an internal mutex
// from write until its response is read. Session is safe for concurrent use.
type Session struct {
	mu        sync.Mutex
	transport Transport
	config    Config
	closed    bool
}

// New creates a new Session that owns transport.
//
// Example:
//
//	t, err := usb.Open()
//	sess := mca.New(t, mca.WithTimeout(time.Second))
//	defer sess.Close()
func New(transport Transport, opts ...Option) *Session {
	if transport == nil {
		panic("transport cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Session{
		transport: transport,
		config:    cfg,
	}
}

// Close resets the device and releases the transport. The transport is
// released even if the reset fails. Close is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	resetErr := s.transport.Reset()
	if resetErr != nil {
		s.logError("device reset failed", "error", resetErr)
		resetErr = fmt.Errorf("reset: %w", resetErr)
	}
	closeErr := s.transport.Close()
	if closeErr != nil {
		closeErr = fmt.Errorf("close: %w", closeErr)
	}

	s.logDebug("session closed")
	return errors.Join(resetErr, closeErr)
}

// RequestStatus reads the device status.
func (s *Session) RequestStatus(ctx context.Context) (*protocol.Status, error) {
	resp, err := s.roundTrip(ctx, OpStatus, protocol.PIDStatus1, protocol.PIDStatus2, nil)
	if err != nil {
		return nil, err
	}
	if err := dataResponse(OpStatus, resp); err != nil {
		return nil, err
	}

	status, err := protocol.DecodeStatus(resp.Payload)
	if err != nil {
		s.observeDecodeError(OpStatus, err)
		return nil, fmt.Errorf("%s: %w", OpStatus, err)
	}

	if s.config.Metrics != nil {
		s.config.Metrics.ObserveStatus(status)
	}
	return status, nil
}

// RequestHWConfig reads back every parameter in the parameter table.
func (s *Session) RequestHWConfig(ctx context.Context) (protocol.ConfigMap, error) {
	query := protocol.BuildQueryString()
	resp, err := s.roundTrip(ctx, OpHWConfig, protocol.PIDConfig1, protocol.PIDConfigReadback, []byte(query))
	if err != nil {
		return nil, err
	}
	if err := dataResponse(OpHWConfig, resp); err != nil {
		return nil, err
	}

	return protocol.ParseConfigResponse(string(resp.Payload)), nil
}

// SendConfig sends a text configuration command and returns the device's
// acknowledge frame. The caller decides whether the acknowledge is a success;
// see protocol.Frame.AckErr.
func (s *Session) SendConfig(ctx context.Context, cmd string) (*protocol.Frame, error) {
	return s.sendConfig(ctx, OpSendConfig, cmd)
}

// EnableAcquisition starts MCA/MCS acquisition.
func (s *Session) EnableAcquisition(ctx context.Context) (*protocol.Frame, error) {
	return s.roundTrip(ctx, OpEnable, protocol.PIDControl1, protocol.PIDEnableMCA, nil)
}

// DisableAcquisition stops MCA/MCS acquisition.
func (s *Session) DisableAcquisition(ctx context.Context) (*protocol.Frame, error) {
	return s.roundTrip(ctx, OpDisable, protocol.PIDControl1, protocol.PIDDisableMCA, nil)
}

// RequestSpectrum reads the spectrum. With includeStatus the status block
// sent along with it is decoded too; otherwise the returned status is nil.
// With clear the device clears its spectrum after sending it.
func (s *Session) RequestSpectrum(ctx context.Context, includeStatus, clear bool) (protocol.Spectrum, *protocol.Status, error) {
	pid2 := protocol.SpectrumPID2(includeStatus, clear)
	resp, err := s.roundTrip(ctx, OpSpectrum, protocol.PIDSpectrum1, pid2, nil)
	if err != nil {
		return nil, nil, err
	}
	if err := dataResponse(OpSpectrum, resp); err != nil {
		return nil, nil, err
	}

	// The response PID2 is the device's size code
	spectrum, status, err := protocol.DecodeSpectrum(resp.Payload, resp.PID2, includeStatus)
	if err != nil {
		s.observeDecodeError(OpSpectrum, err)
		return nil, nil, fmt.Errorf("%s: %w", OpSpectrum, err)
	}

	s.logDebug("spectrum received",
		"size_code", resp.PID2,
		"channels", len(spectrum),
		"total", spectrum.Total(),
	)
	if s.config.Metrics != nil {
		s.config.Metrics.ObserveSpectrum(spectrum)
		if status != nil {
			s.config.Metrics.ObserveStatus(status)
		}
	}
	return spectrum, status, nil
}

// SetPresetTime sets the preset real time in seconds; zero turns it off.
// Negative values fail with protocol.ErrInvalidArgument before any I/O.
func (s *Session) SetPresetTime(ctx context.Context, seconds int) (*protocol.Frame, error) {
	cmd, err := protocol.PresetTimeCommand(seconds)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", OpPresetTime, err)
	}
	return s.sendConfig(ctx, OpPresetTime, cmd)
}

// LoadConfig sends every entry of cfg as one text configuration command.
func (s *Session) LoadConfig(ctx context.Context, cfg protocol.ConfigMap) (*protocol.Frame, error) {
	if len(cfg) == 0 {
		return nil, fmt.Errorf("%s: %w: empty configuration", OpLoadConfig, protocol.ErrInvalidArgument)
	}
	return s.sendConfig(ctx, OpLoadConfig, protocol.BuildSetCommand(cfg))
}

// IsRunning reports whether acquisition is enabled.
func (s *Session) IsRunning(ctx context.Context) (bool, error) {
	status, err := s.RequestStatus(ctx)
	if err != nil {
		return false, err
	}
	return status.MCAEnabled, nil
}

// Clear clears the device spectrum and status counters.
func (s *Session) Clear(ctx context.Context) error {
	_, _, err := s.RequestSpectrum(ctx, true, true)
	return err
}

func (s *Session) sendConfig(ctx context.Context, op, cmd string) (*protocol.Frame, error) {
	resp, err := s.roundTrip(ctx, op, protocol.PIDConfig1, protocol.PIDConfigText, []byte(cmd))
	if err != nil {
		return nil, err
	}
	if ackErr := resp.AckErr(op); ackErr != nil {
		s.logError("configuration not acknowledged", "op", op, "command", cmd, "ack", resp.AckCode().String())
	}
	return resp, nil
}

// roundTrip writes one request frame and reads one response frame.
func (s *Session) roundTrip(ctx context.Context, op string, pid1, pid2 byte, payload []byte) (*protocol.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	frame, err := protocol.BuildFrame(pid1, pid2, payload)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("%s: %w", op, ErrClosed)
	}

	start := time.Now()
	s.logDebug("request",
		"op", op,
		"pid1", fmt.Sprintf("0x%02X", pid1),
		"pid2", fmt.Sprintf("0x%02X", pid2),
		"len", len(payload),
	)

	if _, err := s.transport.Write(s.config.OutEndpoint, frame, s.config.Timeout); err != nil {
		terr := &TransportError{Operation: op, Direction: "write", Err: err}
		s.observe(op, resultFor(terr), start, len(frame), 0)
		s.logError("write failed", "op", op, "error", err)
		return nil, terr
	}

	raw, err := s.transport.Read(s.config.InEndpoint, s.config.ReadBufferSize, s.config.Timeout)
	if err != nil {
		terr := &TransportError{Operation: op, Direction: "read", Err: err}
		s.observe(op, resultFor(terr), start, len(frame), 0)
		s.logError("read failed", "op", op, "error", err)
		return nil, terr
	}

	resp, err := protocol.ParseFrame(raw)
	if err != nil {
		s.observe(op, resultFor(err), start, len(frame), len(raw))
		s.logError("invalid response frame", "op", op, "len", len(raw), "error", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.observe(op, resultOK, start, len(frame), len(raw))
	s.logDebug("response",
		"op", op,
		"pid1", fmt.Sprintf("0x%02X", resp.PID1),
		"pid2", fmt.Sprintf("0x%02X", resp.PID2),
		"len", len(resp.Payload),
		"elapsed", time.Since(start),
	)
	return resp, nil
}

// dataResponse rejects an acknowledge frame received where a data response
// was expected. Device rejections come back as *protocol.AckError.
func dataResponse(op string, resp *protocol.Frame) error {
	if !resp.IsAck() {
		return nil
	}
	if err := resp.AckErr(op); err != nil {
		return err
	}
	return fmt.Errorf("%s: %w", op, protocol.ErrUnexpectedResponse)
}

func resultFor(err error) string {
	switch {
	case err == nil:
		return resultOK
	case IsTransient(err):
		return resultTimeout
	case IsStructural(err):
		return resultCorrupt
	default:
		return resultError
	}
}

func (s *Session) observe(op, result string, start time.Time, written, read int) {
	if s.config.Metrics != nil {
		s.config.Metrics.ObserveRequest(op, result, time.Since(start), written, read)
	}
}

func (s *Session) observeDecodeError(op string, err error) {
	s.logError("decode failed", "op", op, "error", err)
	if s.config.Metrics != nil {
		s.config.Metrics.ObserveDecodeError(op)
	}
}

// logDebug logs a debug message if a logger is configured.
func (s *Session) logDebug(msg string, keysAndValues ...interface{}) {
	if s.config.Logger != nil {
		s.config.Logger.Debugw(msg, keysAndValues...)
	}
}

// logInfo logs an info message if a logger is configured.
func (s *Session) logInfo(msg string, keysAndValues ...interface{}) {
	if s.config.Logger != nil {
		s.config.Logger.Infow(msg, keysAndValues...)
	}
}

// logError logs an error message if a logger is configured.
func (s *Session) logError(msg string, keysAndValues ...interface{}) {
	if s.config.Logger != nil {
		s.config.Logger.Errorw(msg, keysAndValues...)
	}
}
