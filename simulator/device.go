package simulator

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/moffa90/go-mca8000d/mca"
	"github.com/moffa90/go-mca8000d/protocol"
)

// ErrClosed is returned by a closed Device.
var ErrClosed = errors.New("simulator closed")

// Device simulates an MCA8000D behind the mca.Transport interface.
// It validates request frames and generates proper responses.
type Device struct {
	mu sync.Mutex

	now       func() time.Time
	latency   time.Duration
	countRate float64

	firmware byte
	build    byte
	fpga     byte
	serial   int64

	config   protocol.ConfigMap
	channels int

	// Acquisition state. realTime is the time accumulated before started.
	enabled    bool
	started    time.Time
	realTime   time.Duration
	preset     time.Duration
	presetDone bool

	pending     [][]byte
	requests    []protocol.Frame
	corruptNext bool
	dropNext    bool
	resets      int
	closed      bool
}

// Option configures a Device.
type Option func(*Device)

// WithClock sets the time source that drives acquisition. See ManualClock.
func WithClock(now func() time.Time) Option {
	return func(d *Device) {
		d.now = now
	}
}

// WithLatency delays every read by latency. A latency above the read timeout
// makes the read time out.
func WithLatency(latency time.Duration) Option {
	return func(d *Device) {
		d.latency = latency
	}
}

// WithCountRate sets the total input count rate in counts per second.
func WithCountRate(rate float64) Option {
	return func(d *Device) {
		d.countRate = rate
	}
}

// WithSerialNumber sets the reported serial number; protocol.NoSerialNumber
// reports none.
func WithSerialNumber(serial int64) Option {
	return func(d *Device) {
		d.serial = serial
	}
}

// WithFirmware sets the reported firmware version byte and build number.
func WithFirmware(firmware, build byte) Option {
	return func(d *Device) {
		d.firmware = firmware
		d.build = build
	}
}

// New creates a simulated device with factory configuration.
func New(opts ...Option) *Device {
	d := &Device{
		now:       time.Now,
		countRate: 5000,
		firmware:  0x68,
		build:     3,
		fpga:      0x62,
		serial:    123456,
		channels:  1024,
		config:    defaultConfig(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func defaultConfig() protocol.ConfigMap {
	return protocol.ConfigMap{
		"PURE": "ON",
		"MCAS": "NORM",
		"MCAC": "1024",
		"SOFF": "OFF",
		"GAIA": "3",
		"PDMD": "NORM",
		"THSL": "1.001",
		"TLLD": "OFF",
		"GATE": "OFF",
		"AUO1": "ICR",
		"PRER": protocol.PresetOff,
		"PREL": protocol.PresetOff,
		"PREC": protocol.PresetOff,
		"PRCL": "1",
		"PRCH": "8191",
		"SCOE": "RI",
		"SCOT": "50",
		"SCOG": "1",
		"MCSL": "1",
		"MCSH": "8191",
		"MCST": "0",
		"AUO2": "ICR",
		"GPED": "RI",
		"GPIN": "AUX1",
		"GPME": "ON",
		"GPGA": "ON",
		"GPMC": "ON",
		"MCAE": "OFF",
	}
}

// Write accepts one request frame and queues the device's response.
func (d *Device) Write(endpoint int, data []byte, timeout time.Duration) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return 0, ErrClosed
	}

	d.pending = append(d.pending, d.handle(data))
	return len(data), nil
}

// Read returns the oldest queued response. With nothing queued the read times
// out, like a device that never answered.
func (d *Device) Read(endpoint int, maxLen int, timeout time.Duration) ([]byte, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, ErrClosed
	}
	latency := d.latency
	d.mu.Unlock()

	if latency > 0 {
		if latency > timeout {
			time.Sleep(timeout)
			return nil, mca.ErrTransportTimeout
		}
		time.Sleep(latency)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.pending) == 0 {
		return nil, mca.ErrTransportTimeout
	}
	resp := d.pending[0]
	d.pending = d.pending[1:]

	if d.dropNext {
		d.dropNext = false
		return nil, mca.ErrTransportTimeout
	}
	if d.corruptNext {
		d.corruptNext = false
		resp[len(resp)-1] ^= 0x01
	}
	if len(resp) > maxLen {
		resp = resp[:maxLen]
	}
	return resp, nil
}

// Reset drops queued responses, like a USB port reset.
func (d *Device) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}
	d.pending = nil
	d.resets++
	return nil
}

// Close releases the device. Later calls fail with ErrClosed.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closed = true
	return nil
}

// CorruptNextResponse flips a checksum bit in the next response read.
func (d *Device) CorruptNextResponse() {
	d.mu.Lock()
	d.corruptNext = true
	d.mu.Unlock()
}

// DropNextResponse discards the next response, so its read times out.
func (d *Device) DropNextResponse() {
	d.mu.Lock()
	d.dropNext = true
	d.mu.Unlock()
}

// Requests returns every valid request frame received so far.
func (d *Device) Requests() []protocol.Frame {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]protocol.Frame, len(d.requests))
	copy(out, d.requests)
	return out
}

// Resets returns how many times Reset was called.
func (d *Device) Resets() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resets
}

// Closed reports whether Close was called.
func (d *Device) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Config returns a copy of the current configuration.
func (d *Device) Config() protocol.ConfigMap {
	d.mu.Lock()
	defer d.mu.Unlock()

	cfg := make(protocol.ConfigMap, len(d.config))
	for k, v := range d.config {
		cfg[k] = v
	}
	return cfg
}

// handle decodes a request and renders the response frame.
func (d *Device) handle(data []byte) []byte {
	if len(data) >= 2 && (data[0] != protocol.Sync1 || data[1] != protocol.Sync2) {
		return ack(protocol.AckSyncError)
	}
	req, err := protocol.ParseFrame(data)
	switch {
	case errors.Is(err, protocol.ErrChecksumMismatch):
		return ack(protocol.AckChecksumError)
	case err != nil:
		return ack(protocol.AckLengthError)
	}

	// ParseFrame aliases data
	req.Payload = append([]byte(nil), req.Payload...)
	d.requests = append(d.requests, *req)
	d.advance()

	switch {
	case req.PID1 == protocol.PIDStatus1 && req.PID2 == protocol.PIDStatus2:
		return frame(protocol.RespStatus1, protocol.RespStatus2, d.status().Encode())
	case req.PID1 == protocol.PIDSpectrum1:
		return d.handleSpectrum(req.PID2)
	case req.PID1 == protocol.PIDConfig1 && req.PID2 == protocol.PIDConfigText:
		return ack(d.applyConfig(string(req.Payload)))
	case req.PID1 == protocol.PIDConfig1 && req.PID2 == protocol.PIDConfigReadback:
		return frame(protocol.RespConfig1, protocol.RespConfigReadback, []byte(d.readback(string(req.Payload))))
	case req.PID1 == protocol.PIDControl1 && req.PID2 == protocol.PIDEnableMCA:
		d.setEnabled(true)
		return ack(protocol.AckOK)
	case req.PID1 == protocol.PIDControl1 && req.PID2 == protocol.PIDDisableMCA:
		d.setEnabled(false)
		return ack(protocol.AckOK)
	default:
		return ack(protocol.AckPIDError)
	}
}

func (d *Device) handleSpectrum(pid2 byte) []byte {
	if pid2 < 1 || pid2 > 4 {
		return ack(protocol.AckPIDError)
	}
	includeStatus := pid2 >= 3
	clearAfter := (pid2-1)%2 == 1

	code, err := protocol.SizeCode(d.channels, includeStatus)
	if err != nil {
		return ack(protocol.AckBadParameter)
	}

	payload := d.spectrum().Encode()
	if includeStatus {
		payload = append(payload, d.status().Encode()...)
	}
	if clearAfter {
		d.clear()
	}
	return frame(protocol.RespSpectrum1, code, payload)
}

// applyConfig applies a text command. A command with any bad entry is
// rejected as a whole.
func (d *Device) applyConfig(cmd string) protocol.AckCode {
	entries := protocol.ParseConfigResponse(cmd)
	for k, v := range entries {
		if !protocol.IsKnownParameter(k) {
			return protocol.AckBadParameter
		}
		if err := d.validate(k, v); err != nil {
			return protocol.AckBadParameter
		}
	}

	if _, ok := entries["RESC"]; ok {
		d.config = defaultConfig()
		d.channels = 1024
		d.preset = 0
		d.setEnabled(false)
		delete(entries, "RESC")
	}
	for k, v := range entries {
		switch k {
		case "MCAC":
			d.channels, _ = strconv.Atoi(v)
		case "PRER":
			d.preset = parsePreset(v)
			d.presetDone = false
		case "MCAE":
			d.setEnabled(strings.EqualFold(v, "ON"))
			continue
		}
		d.config[k] = strings.ToUpper(v)
	}
	return protocol.AckOK
}

func (d *Device) validate(key, value string) error {
	switch key {
	case "MCAC":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		if _, err := protocol.SizeCode(n, false); err != nil {
			return err
		}
	case "PRER", "PREL", "PREC":
		if strings.EqualFold(value, protocol.PresetOff) {
			return nil
		}
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		if f < 0 {
			return fmt.Errorf("negative preset %q", value)
		}
	case "MCAE", "PURE", "GPME", "GPGA", "GPMC":
		if !strings.EqualFold(value, "ON") && !strings.EqualFold(value, "OFF") {
			return fmt.Errorf("%s must be ON or OFF", key)
		}
	}
	return nil
}

func parsePreset(v string) time.Duration {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return time.Duration(f * float64(time.Second))
}

// readback answers a "<code>=?;" query with the current values.
func (d *Device) readback(query string) string {
	var sb strings.Builder
	for _, token := range strings.Split(query, ";") {
		code, _, ok := strings.Cut(token, "=")
		if !ok {
			continue
		}
		v, known := d.config[code]
		if !known {
			continue
		}
		sb.WriteString(code + "=" + v + ";")
	}
	return sb.String()
}

// advance moves the acquisition forward to the current clock time and
// stops it once the preset real time is reached.
func (d *Device) advance() {
	if !d.enabled {
		return
	}
	now := d.now()
	d.realTime += now.Sub(d.started)
	d.started = now

	if d.preset > 0 && d.realTime >= d.preset {
		d.realTime = d.preset
		d.presetDone = true
		d.enabled = false
		d.config["MCAE"] = "OFF"
	}
}

func (d *Device) setEnabled(on bool) {
	if on == d.enabled {
		return
	}
	if on && d.presetDone {
		// A reached preset holds the MCA off until cleared
		return
	}
	d.enabled = on
	d.started = d.now()
	d.config["MCAE"] = map[bool]string{true: "ON", false: "OFF"}[on]
}

func (d *Device) clear() {
	d.realTime = 0
	d.presetDone = false
	d.started = d.now()
}

func (d *Device) status() *protocol.Status {
	seconds := d.realTime.Seconds()
	fast := d.countRate * seconds
	return &protocol.Status{
		FastCount:          uint32(fast),
		SlowCount:          uint32(fast * 0.9),
		AccumulationTime:   uint32(d.realTime.Milliseconds()),
		RealTime:           uint32(d.realTime.Milliseconds()),
		LiveTime:           uint32(float64(d.realTime.Milliseconds()) * 0.98),
		Firmware:           d.firmware,
		FPGA:               d.fpga,
		Build:              d.build,
		DeviceID:           protocol.DeviceMCA8000D,
		SerialNumber:       d.serial,
		PresetRealTimeDone: d.presetDone,
		MCAEnabled:         d.enabled,
		DP5Configured:      true,
		FPGAAutoClock:      true,
	}
}

// spectrum renders the counts accumulated so far: a flat background plus
// one Gaussian peak at 35% of full scale.
func (d *Device) spectrum() protocol.Spectrum {
	n := d.channels
	seconds := d.realTime.Seconds()
	center := 0.35 * float64(n)
	sigma := float64(n) / 100

	weights := make([]float64, n)
	var sum float64
	for i := range weights {
		x := (float64(i) - center) / sigma
		weights[i] = 0.2 + math.Exp(-x*x/2)
		sum += weights[i]
	}

	s := make(protocol.Spectrum, n)
	for i, w := range weights {
		counts := d.countRate * seconds * 0.9 * w / sum
		if counts > protocol.MaxChannelValue {
			counts = protocol.MaxChannelValue
		}
		s[i] = uint32(counts)
	}
	return s
}

func frame(pid1, pid2 byte, payload []byte) []byte {
	f, err := protocol.BuildFrame(pid1, pid2, payload)
	if err != nil {
		return ack(protocol.AckLengthError)
	}
	return f
}

func ack(code protocol.AckCode) []byte {
	f, _ := protocol.BuildFrame(protocol.RespAck, byte(code), nil)
	return f
}
