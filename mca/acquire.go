package mca

import (
	"context"
	"fmt"
	"time"

	"github.com/moffa90/go-mca8000d/protocol"
)

// Acquire runs a complete timed acquisition:
//  1. Stop acquisition if it is running
//  2. Clear the spectrum
//  3. Set the preset real time
//  4. Enable acquisition and poll status until the preset is reached
//  5. Disable acquisition and read the spectrum with status, clearing it
//  6. Turn the preset off again
//
// Cancelling ctx stops polling; acquisition is then disabled before returning.
//
// Example:
//
//	spectrum, status, err := sess.Acquire(ctx, 20)
func (s *Session) Acquire(ctx context.Context, seconds int) (protocol.Spectrum, *protocol.Status, error) {
	if seconds <= 0 {
		return nil, nil, fmt.Errorf("acquire: %w: preset must be positive, got %d", protocol.ErrInvalidArgument, seconds)
	}
	preset := time.Duration(seconds) * time.Second

	// Phase 1: Stop a running acquisition
	s.reportProgress(Progress{Phase: PhaseStopping, Preset: preset})

	running, err := s.IsRunning(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("acquire: %w", err)
	}
	if running {
		s.logInfo("acquisition running, stopping")
		ack, err := s.DisableAcquisition(ctx)
		if err := checkAck(OpDisable, ack, err); err != nil {
			return nil, nil, fmt.Errorf("acquire: %w", err)
		}
	}

	// Phase 2: Clear
	s.reportProgress(Progress{Phase: PhaseClearing, Preset: preset})
	if err := s.Clear(ctx); err != nil {
		return nil, nil, fmt.Errorf("acquire: clear: %w", err)
	}

	// Phase 3: Preset
	s.reportProgress(Progress{Phase: PhasePresetting, Preset: preset})
	ack, err := s.SetPresetTime(ctx, seconds)
	if err := checkAck(OpPresetTime, ack, err); err != nil {
		return nil, nil, fmt.Errorf("acquire: %w", err)
	}

	// Phase 4: Acquire
	ack, err = s.EnableAcquisition(ctx)
	if err := checkAck(OpEnable, ack, err); err != nil {
		return nil, nil, fmt.Errorf("acquire: %w", err)
	}
	s.logInfo("acquisition started", "preset", preset)

	if err := s.waitForPreset(ctx, preset); err != nil {
		// Leave the device stopped with the preset off even when polling was cancelled
		stopCtx := context.WithoutCancel(ctx)
		if _, stopErr := s.DisableAcquisition(stopCtx); stopErr != nil {
			s.logError("stop after failed acquisition", "error", stopErr)
		}
		ack, presetErr := s.SetPresetTime(stopCtx, 0)
		if presetErr := checkAck(OpPresetTime, ack, presetErr); presetErr != nil {
			s.logError("preset reset after failed acquisition", "error", presetErr)
		}
		return nil, nil, fmt.Errorf("acquire: %w", err)
	}

	// Phase 5: Read out
	s.reportProgress(Progress{Phase: PhaseReading, Preset: preset, RealTime: preset, Percentage: 100})
	ack, err = s.DisableAcquisition(ctx)
	if err := checkAck(OpDisable, ack, err); err != nil {
		return nil, nil, fmt.Errorf("acquire: %w", err)
	}

	spectrum, status, err := s.RequestSpectrum(ctx, true, true)
	if err != nil {
		return nil, nil, fmt.Errorf("acquire: %w", err)
	}

	// Phase 6: Turn the preset off
	ack, err = s.SetPresetTime(ctx, 0)
	if err := checkAck(OpPresetTime, ack, err); err != nil {
		return nil, nil, fmt.Errorf("acquire: %w", err)
	}

	s.reportProgress(Progress{
		Phase:      PhaseComplete,
		RealTime:   status.RealTimeDuration(),
		Preset:     preset,
		Percentage: 100,
		Status:     status,
	})
	s.logInfo("acquisition complete",
		"real_time", status.RealTimeDuration(),
		"channels", len(spectrum),
		"total", spectrum.Total(),
	)

	return spectrum, status, nil
}

// waitForPreset polls status until the device reports the preset reached.
func (s *Session) waitForPreset(ctx context.Context, preset time.Duration) error {
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		status, err := s.RequestStatus(ctx)
		if err != nil {
			return err
		}

		elapsed := status.RealTimeDuration()
		percentage := 100 * float64(elapsed) / float64(preset)
		if percentage > 100 {
			percentage = 100
		}
		s.reportProgress(Progress{
			Phase:      PhaseAcquiring,
			RealTime:   elapsed,
			Preset:     preset,
			Percentage: percentage,
			Status:     status,
		})

		if elapsed >= preset || status.PresetRealTimeDone || !status.MCAEnabled {
			return nil
		}
	}
}

// checkAck turns a transport error or a non-OK acknowledge into an error.
func checkAck(op string, resp *protocol.Frame, err error) error {
	if err != nil {
		return err
	}
	return resp.AckErr(op)
}

// reportProgress calls the progress callback if configured.
func (s *Session) reportProgress(progress Progress) {
	if s.config.ProgressCallback != nil {
		s.config.ProgressCallback(progress)
	}
}
