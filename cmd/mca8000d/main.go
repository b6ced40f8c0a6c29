// Command mca8000d controls an Amptek MCA8000D multichannel analyzer.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/moffa90/go-mca8000d/internal/config"
	"github.com/moffa90/go-mca8000d/internal/logging"
	"github.com/moffa90/go-mca8000d/mca"
	"github.com/moffa90/go-mca8000d/metrics"
	"github.com/moffa90/go-mca8000d/simulator"
	"github.com/moffa90/go-mca8000d/transport/serial"
	"github.com/moffa90/go-mca8000d/transport/usb"
)

var version = "dev"

// app holds state shared by all subcommands.
type app struct {
	configPath string
	transport  string

	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.DeviceMetrics
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "mca8000d",
		Short:         "Control an Amptek MCA8000D multichannel analyzer",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (default ./mca8000d.yaml)")
	root.PersistentFlags().StringVarP(&a.transport, "transport", "t", "", "device transport: usb, serial or sim")

	root.AddCommand(
		a.statusCmd(),
		a.configCmd(),
		a.startCmd(),
		a.stopCmd(),
		a.clearCmd(),
		a.presetCmd(),
		a.spectrumCmd(),
		a.acquireCmd(),
		a.serveCmd(),
	)
	return root
}

func (a *app) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.transport != "" {
		cfg.Device.Transport = a.transport
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	a.cfg = cfg
	a.logger = logger
	return nil
}

// openSession opens the configured transport and wraps it in a session.
func (a *app) openSession(opts ...mca.Option) (*mca.Session, error) {
	dev := a.cfg.Device

	var t mca.Transport
	switch dev.Transport {
	case config.TransportUSB:
		ut, err := usb.Open(usb.WithIDs(dev.VendorID, dev.ProductID))
		if err != nil {
			return nil, err
		}
		t = ut
	case config.TransportSerial:
		st, err := serial.Open(dev.Serial.Port, dev.Serial.Baud)
		if err != nil {
			return nil, err
		}
		t = st
	case config.TransportSim:
		t = simulator.New()
	default:
		return nil, fmt.Errorf("unknown transport %q", dev.Transport)
	}

	a.logger.Debug("device opened", zap.String("transport", dev.Transport))

	base := []mca.Option{
		mca.WithZapLogger(a.logger),
		mca.WithTimeout(dev.Timeout),
		mca.WithEndpoints(dev.OutEndpoint, dev.InEndpoint),
		mca.WithReadBufferSize(dev.ReadBufferSize),
		mca.WithPollInterval(a.cfg.Acquisition.PollInterval),
	}
	if a.metrics != nil {
		base = append(base, mca.WithMetrics(a.metrics))
	}
	return mca.New(t, append(base, opts...)...), nil
}

// withSession runs fn on a freshly opened session and closes it afterwards.
func (a *app) withSession(fn func(sess *mca.Session) error, opts ...mca.Option) error {
	sess, err := a.openSession(opts...)
	if err != nil {
		return err
	}
	runErr := fn(sess)
	if err := sess.Close(); err != nil {
		a.logger.Warn("close session", zap.Error(err))
	}
	return runErr
}
