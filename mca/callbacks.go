package mca

import (
	"time"

	"github.com/moffa90/go-mca8000d/protocol"
)

// Acquisition phases reported through ProgressCallback.
const (
	PhaseStopping   = "stopping"
	PhaseClearing   = "clearing"
	PhasePresetting = "presetting"
	PhaseAcquiring  = "acquiring"
	PhaseReading    = "reading"
	PhaseComplete   = "complete"
)

// Progress contains information about a running acquisition.
// Passed to ProgressCallback during Acquire.
type Progress struct {
	// Phase is one of the Phase* constants
	Phase string

	// RealTime is the device real time reported by the last status
	RealTime time.Duration

	// Preset is the requested acquisition time
	Preset time.Duration

	// Percentage is RealTime relative to Preset (0.0 to 100.0)
	Percentage float64

	// Status is the last status read, nil before the first poll
	Status *protocol.Status
}

// ProgressCallback is called during Acquire to report progress.
// Implementations should return quickly; the device is polled from the same goroutine.
//
// Example:
//
//	sess := mca.New(transport,
//	    mca.WithProgressCallback(func(p mca.Progress) {
//	        fmt.Printf("[%s] %.1f%% %v\n", p.Phase, p.Percentage, p.RealTime)
//	    }),
//	)
type ProgressCallback func(Progress)

// Logger is an optional structured logging interface.
// *zap.SugaredLogger satisfies it.
//
//	sess := mca.New(transport, mca.WithLogger(zapLogger.Sugar()))
type Logger interface {
	// Debugw logs a debug message with optional key-value pairs
	Debugw(msg string, keysAndValues ...interface{})

	// Infow logs an info message with optional key-value pairs
	Infow(msg string, keysAndValues ...interface{})

	// Errorw logs an error message with optional key-value pairs
	Errorw(msg string, keysAndValues ...interface{})
}
