package mca

import (
	"time"

	"go.uber.org/zap"

	"github.com/moffa90/go-mca8000d/metrics"
	"github.com/moffa90/go-mca8000d/protocol"
)

// Config holds the session configuration.
type Config struct {
	// ProgressCallback is called during Acquire (optional)
	ProgressCallback ProgressCallback

	// Logger is used for logging operations (optional)
	Logger Logger

	// Metrics records request outcomes and status gauges (optional)
	Metrics *metrics.DeviceMetrics

	// Timeout bounds each write and each read
	Timeout time.Duration

	// OutEndpoint is the endpoint requests are written to
	OutEndpoint int

	// InEndpoint is the endpoint responses are read from
	InEndpoint int

	// ReadBufferSize is the maximum response size requested from the transport
	ReadBufferSize int

	// PollInterval is the status polling period used by Acquire
	PollInterval time.Duration
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		Logger:         zap.NewNop().Sugar(),
		Timeout:        DefaultTimeout,
		OutEndpoint:    OutEndpoint,
		InEndpoint:     InEndpoint,
		ReadBufferSize: DefaultReadBufferSize,
		PollInterval:   time.Second,
	}
}

// Option is a functional option for configuring the Session.
type Option func(*Config)

// WithProgressCallback sets a callback function to track acquisition progress.
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithLogger sets a logger for session operations.
//
// Example:
//
//	sess := mca.New(transport, mca.WithLogger(logger.Sugar()))
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithZapLogger sets a zap logger for session operations.
func WithZapLogger(logger *zap.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger.Named("mca").Sugar()
		}
	}
}

// WithMetrics records every round trip in m.
func WithMetrics(m *metrics.DeviceMetrics) Option {
	return func(c *Config) {
		c.Metrics = m
	}
}

// WithTimeout sets the write and read timeout.
//
// Example:
//
//	sess := mca.New(transport, mca.WithTimeout(time.Second))
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.Timeout = timeout
		}
	}
}

// WithEndpoints sets the OUT and IN endpoint addresses.
func WithEndpoints(out, in int) Option {
	return func(c *Config) {
		c.OutEndpoint = out
		c.InEndpoint = in
	}
}

// WithReadBufferSize sets the maximum response size.
func WithReadBufferSize(size int) Option {
	return func(c *Config) {
		if size >= protocol.MinFrameSize {
			c.ReadBufferSize = size
		}
	}
}

// WithPollInterval sets how often Acquire polls the device status.
func WithPollInterval(interval time.Duration) Option {
	return func(c *Config) {
		if interval > 0 {
			c.PollInterval = interval
		}
	}
}
