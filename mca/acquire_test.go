package mca_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-mca8000d/mca"
	"github.com/moffa90/go-mca8000d/protocol"
	"github.com/moffa90/go-mca8000d/simulator"
)

func TestAcquire(t *testing.T) {
	clock := simulator.NewManualClock(time.Unix(0, 0))
	dev := simulator.New(simulator.WithClock(clock.Now))

	var mu sync.Mutex
	var phases []string
	sess := mca.New(dev,
		mca.WithPollInterval(time.Millisecond),
		mca.WithProgressCallback(func(p mca.Progress) {
			mu.Lock()
			defer mu.Unlock()
			if len(phases) == 0 || phases[len(phases)-1] != p.Phase {
				phases = append(phases, p.Phase)
			}
			if p.Phase == mca.PhasePresetting || p.Phase == mca.PhaseAcquiring {
				// One simulated second per poll
				clock.Advance(time.Second)
			}
		}),
	)
	defer sess.Close()

	spectrum, status, err := sess.Acquire(context.Background(), 3)
	require.NoError(t, err)

	assert.Len(t, spectrum, 1024)
	assert.NotZero(t, spectrum.Total())
	require.NotNil(t, status)
	assert.Equal(t, uint32(3000), status.RealTime)
	assert.True(t, status.PresetRealTimeDone)

	assert.Equal(t, []string{
		mca.PhaseStopping,
		mca.PhaseClearing,
		mca.PhasePresetting,
		mca.PhaseAcquiring,
		mca.PhaseReading,
		mca.PhaseComplete,
	}, phases)

	// Preset is turned off again and the device is left stopped
	assert.Equal(t, protocol.PresetOff, dev.Config()["PRER"])
	running, err := sess.IsRunning(context.Background())
	require.NoError(t, err)
	assert.False(t, running)
}

func TestAcquireStopsRunningAcquisition(t *testing.T) {
	clock := simulator.NewManualClock(time.Unix(0, 0))
	dev := simulator.New(simulator.WithClock(clock.Now))
	sess := mca.New(dev,
		mca.WithPollInterval(time.Millisecond),
		mca.WithProgressCallback(func(p mca.Progress) {
			if p.Phase == mca.PhaseAcquiring {
				clock.Advance(time.Second)
			}
		}),
	)

	_, err := sess.EnableAcquisition(context.Background())
	require.NoError(t, err)
	clock.Advance(time.Minute)

	_, status, err := sess.Acquire(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, uint32(2000), status.RealTime)

	var disables int
	for _, req := range dev.Requests() {
		if req.PID1 == protocol.PIDControl1 && req.PID2 == protocol.PIDDisableMCA {
			disables++
		}
	}
	assert.Equal(t, 2, disables)
}

func TestAcquireRejectsNonPositivePreset(t *testing.T) {
	dev := simulator.New()
	sess := mca.New(dev)

	for _, seconds := range []int{0, -5} {
		_, _, err := sess.Acquire(context.Background(), seconds)
		assert.ErrorIs(t, err, protocol.ErrInvalidArgument)
	}
	assert.Empty(t, dev.Requests())
}

func TestAcquireCancelled(t *testing.T) {
	dev := simulator.New()
	ctx, cancel := context.WithCancel(context.Background())

	sess := mca.New(dev,
		mca.WithPollInterval(time.Millisecond),
		mca.WithProgressCallback(func(p mca.Progress) {
			if p.Phase == mca.PhaseAcquiring {
				cancel()
			}
		}),
	)

	_, _, err := sess.Acquire(ctx, 3600)
	assert.ErrorIs(t, err, context.Canceled)

	running, err := sess.IsRunning(context.Background())
	require.NoError(t, err)
	assert.False(t, running)
	assert.Equal(t, protocol.PresetOff, dev.Config()["PRER"])
}

func TestAcquirePollFailureRestoresPreset(t *testing.T) {
	dev := simulator.New()

	var once sync.Once
	sess := mca.New(dev,
		mca.WithPollInterval(time.Millisecond),
		mca.WithProgressCallback(func(p mca.Progress) {
			if p.Phase == mca.PhaseAcquiring {
				once.Do(dev.DropNextResponse)
			}
		}),
	)

	_, _, err := sess.Acquire(context.Background(), 3600)
	require.Error(t, err)
	assert.True(t, mca.IsTransient(err))

	assert.Equal(t, protocol.PresetOff, dev.Config()["PRER"])
	running, err := sess.IsRunning(context.Background())
	require.NoError(t, err)
	assert.False(t, running)
}

func TestAcquireTimeout(t *testing.T) {
	dev := simulator.New()
	sess := mca.New(dev)

	dev.DropNextResponse()
	_, _, err := sess.Acquire(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, mca.IsTransient(err))
}

func TestSessionOverSimulator(t *testing.T) {
	dev := simulator.New(simulator.WithSerialNumber(2024))
	sess := mca.New(dev)
	ctx := context.Background()

	status, err := sess.RequestStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2024), status.SerialNumber)

	cfg, err := sess.RequestHWConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1024", cfg["MCAC"])

	ack, err := sess.LoadConfig(ctx, protocol.ConfigMap{"MCAC": "2048", "GAIA": "7"})
	require.NoError(t, err)
	require.NoError(t, ack.AckErr(mca.OpLoadConfig))

	spectrum, _, err := sess.RequestSpectrum(ctx, false, false)
	require.NoError(t, err)
	assert.Len(t, spectrum, 2048)

	ack, err = sess.SendConfig(ctx, "NOPE=1;")
	require.NoError(t, err)
	assert.ErrorContains(t, ack.AckErr(mca.OpSendConfig), "bad parameter")

	dev.CorruptNextResponse()
	_, err = sess.RequestStatus(ctx)
	assert.ErrorIs(t, err, protocol.ErrChecksumMismatch)

	// The session recovers on the next request
	_, err = sess.RequestStatus(ctx)
	require.NoError(t, err)

	require.NoError(t, sess.Close())
	assert.Equal(t, 1, dev.Resets())
	assert.True(t, dev.Closed())
}
