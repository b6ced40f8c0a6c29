package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/moffa90/go-mca8000d/mca"
	"github.com/moffa90/go-mca8000d/mcafile"
	"github.com/moffa90/go-mca8000d/protocol"
)

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the device status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(func(sess *mca.Session) error {
				status, err := sess.RequestStatus(cmd.Context())
				if err != nil {
					return err
				}
				printStatus(cmd.OutOrStdout(), status)
				return nil
			})
		},
	}
}

func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read or change the device configuration",
	}

	var output string
	get := &cobra.Command{
		Use:   "get",
		Short: "Read back the device configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(func(sess *mca.Session) error {
				cfg, err := sess.RequestHWConfig(cmd.Context())
				if err != nil {
					return err
				}
				if output != "" {
					return mcafile.WriteConfig(output, cfg)
				}
				for _, line := range cfg.Describe() {
					fmt.Fprintln(cmd.OutOrStdout(), line)
				}
				return nil
			})
		},
	}
	get.Flags().StringVarP(&output, "output", "o", "", "write the configuration to a file")

	load := &cobra.Command{
		Use:   "load <file>",
		Short: "Send a configuration file to the device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := mcafile.ParseConfig(args[0])
			if err != nil {
				return err
			}
			return a.sendConfig(cmd, cfg)
		},
	}

	set := &cobra.Command{
		Use:   "set KEY=VALUE...",
		Short: "Send configuration commands to the device",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := mcafile.ParseConfigReader(strings.NewReader(strings.Join(args, ";")))
			if err != nil {
				return err
			}
			return a.sendConfig(cmd, cfg)
		},
	}

	cmd.AddCommand(get, load, set)
	return cmd
}

func (a *app) sendConfig(cmd *cobra.Command, cfg protocol.ConfigMap) error {
	return a.withSession(func(sess *mca.Session) error {
		ack, err := sess.LoadConfig(cmd.Context(), cfg)
		if err := checkAck(mca.OpLoadConfig, ack, err); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "sent %d parameters\n", len(cfg))
		return nil
	})
}

func (a *app) startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Enable acquisition",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(func(sess *mca.Session) error {
				ack, err := sess.EnableAcquisition(cmd.Context())
				return checkAck(mca.OpEnable, ack, err)
			})
		},
	}
}

func (a *app) stopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Disable acquisition",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(func(sess *mca.Session) error {
				ack, err := sess.DisableAcquisition(cmd.Context())
				return checkAck(mca.OpDisable, ack, err)
			})
		},
	}
}

func (a *app) clearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear the spectrum and counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(func(sess *mca.Session) error {
				return sess.Clear(cmd.Context())
			})
		},
	}
}

func (a *app) presetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preset <seconds>",
		Short: "Set the preset real time; 0 turns it off",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seconds, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid seconds %q: %w", args[0], err)
			}
			return a.withSession(func(sess *mca.Session) error {
				ack, err := sess.SetPresetTime(cmd.Context(), seconds)
				return checkAck(mca.OpPresetTime, ack, err)
			})
		},
	}
}

func (a *app) spectrumCmd() *cobra.Command {
	var (
		withStatus bool
		clearAfter bool
		output     string
	)
	cmd := &cobra.Command{
		Use:   "spectrum",
		Short: "Read the spectrum",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(func(sess *mca.Session) error {
				spectrum, status, err := sess.RequestSpectrum(cmd.Context(), withStatus, clearAfter)
				if err != nil {
					return err
				}
				if status != nil {
					printStatus(cmd.ErrOrStderr(), status)
				}
				return writeSpectrum(cmd.OutOrStdout(), output, spectrum)
			})
		},
	}
	cmd.Flags().BoolVarP(&withStatus, "status", "s", false, "also read and print the status block")
	cmd.Flags().BoolVar(&clearAfter, "clear", false, "clear the spectrum after reading")
	cmd.Flags().StringVarP(&output, "output", "o", "", "spectrum file (default stdout)")
	return cmd
}

func (a *app) acquireCmd() *cobra.Command {
	var (
		seconds int
		output  string
	)
	cmd := &cobra.Command{
		Use:   "acquire",
		Short: "Run a timed acquisition and save the spectrum",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			progress := mca.WithProgressCallback(func(p mca.Progress) {
				if p.Phase == mca.PhaseAcquiring {
					fmt.Fprintf(cmd.ErrOrStderr(), "\r[%-10s] %5.1f%% %v / %v", p.Phase, p.Percentage, p.RealTime, p.Preset)
					return
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "\n[%-10s]", p.Phase)
			})

			return a.withSession(func(sess *mca.Session) error {
				spectrum, status, err := sess.Acquire(cmd.Context(), seconds)
				fmt.Fprintln(cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				printStatus(cmd.ErrOrStderr(), status)
				return writeSpectrum(cmd.OutOrStdout(), output, spectrum)
			}, progress)
		},
	}
	cmd.Flags().IntVar(&seconds, "seconds", 10, "preset real time in seconds")
	cmd.Flags().StringVarP(&output, "output", "o", "", "spectrum file (default stdout)")
	return cmd
}

func checkAck(op string, ack *protocol.Frame, err error) error {
	if err != nil {
		return err
	}
	return ack.AckErr(op)
}

func writeSpectrum(stdout io.Writer, path string, spectrum protocol.Spectrum) error {
	if path == "" {
		return mcafile.WriteSpectrumTo(stdout, spectrum)
	}
	return mcafile.WriteSpectrum(path, spectrum)
}

func printStatus(w io.Writer, s *protocol.Status) {
	fmt.Fprintf(w, "Device Type:     %s\n", s.DeviceID)
	if s.HasSerialNumber() {
		fmt.Fprintf(w, "Serial Number:   %d\n", s.SerialNumber)
	} else {
		fmt.Fprintln(w, "Serial Number:   none")
	}
	fmt.Fprintf(w, "Firmware:        %s\n", s.FirmwareVersion())
	fmt.Fprintf(w, "FPGA:            %s\n", s.FPGAVersion())
	fmt.Fprintf(w, "Fast Count:      %d\n", s.FastCount)
	fmt.Fprintf(w, "Slow Count:      %d\n", s.SlowCount)
	fmt.Fprintf(w, "GP Count:        %d\n", s.GPCounter)
	fmt.Fprintf(w, "Accumulation:    %v\n", s.AccumulationDuration())
	fmt.Fprintf(w, "Real Time:       %v\n", s.RealTimeDuration())
	if s.DMCALiveTime {
		fmt.Fprintf(w, "Live Time:       %v\n", s.LiveTimeDuration())
	}
	fmt.Fprintf(w, "MCA Enabled:     %t\n", s.MCAEnabled)
	fmt.Fprintf(w, "Preset RT Done:  %t\n", s.PresetRealTimeDone)
	if s.PC5Present {
		fmt.Fprintf(w, "PC5 HV Positive: %t\n", s.PC5HVPositive)
	}
}
