package main

import (
	"errors"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/moffa90/go-mca8000d/metrics"
	"github.com/moffa90/go-mca8000d/server"
)

func (a *app) serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the device over an HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			httpCfg := a.cfg.HTTP
			if addr != "" {
				httpCfg.Addr = addr
			}

			srvCfg := server.Config{
				RateLimit: httpCfg.RateLimit,
				Burst:     httpCfg.Burst,
				Version:   version,
			}
			if a.cfg.Metrics.Enable {
				reg := metrics.NewRegistry()
				a.metrics = metrics.NewDeviceMetrics(reg)
				srvCfg.MetricsPath = a.cfg.Metrics.Path
				srvCfg.MetricsHandler = metrics.Handler(reg)
			}

			sess, err := a.openSession()
			if err != nil {
				return err
			}
			defer func() {
				if err := sess.Close(); err != nil {
					a.logger.Warn("close session", zap.Error(err))
				}
			}()

			srv := server.New(sess, a.logger, srvCfg)
			err = srv.ListenAndServe(cmd.Context(), &http.Server{
				Addr:         httpCfg.Addr,
				ReadTimeout:  httpCfg.ReadTimeout,
				WriteTimeout: httpCfg.WriteTimeout,
			})
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides http.addr)")
	return cmd
}
