// Package server exposes an MCA8000D session over HTTP.
package server

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/moffa90/go-mca8000d/protocol"
)

// Instrument is the device API served over HTTP. *mca.Session implements it.
type Instrument interface {
	RequestStatus(ctx context.Context) (*protocol.Status, error)
	RequestHWConfig(ctx context.Context) (protocol.ConfigMap, error)
	LoadConfig(ctx context.Context, cfg protocol.ConfigMap) (*protocol.Frame, error)
	SetPresetTime(ctx context.Context, seconds int) (*protocol.Frame, error)
	EnableAcquisition(ctx context.Context) (*protocol.Frame, error)
	DisableAcquisition(ctx context.Context) (*protocol.Frame, error)
	RequestSpectrum(ctx context.Context, includeStatus, clear bool) (protocol.Spectrum, *protocol.Status, error)
}

// Config tunes the HTTP API.
type Config struct {
	// RateLimit is the sustained device requests per second; zero disables limiting
	RateLimit float64

	// Burst is the number of device requests allowed at once
	Burst int

	// MetricsPath serves MetricsHandler when both are set
	MetricsPath    string
	MetricsHandler http.Handler

	// Version is reported by GET /version
	Version string
}

// Server routes HTTP requests to an Instrument.
type Server struct {
	inst    Instrument
	logger  *zap.Logger
	limiter *rate.Limiter
	version string
	router  *mux.Router
}

// New builds the router.
//
// Routes:
//
//	GET  /status                device status
//	GET  /config                configuration readback
//	POST /config                load a configuration (JSON object of commands)
//	PUT  /preset                set the preset real time {"seconds": N}
//	POST /acquisition/start     enable acquisition
//	POST /acquisition/stop      disable acquisition
//	GET  /spectrum              spectrum as JSON (?status=1&clear=1)
//	GET  /spectrum.txt          spectrum file, one count per line
//	GET  /version               server version
func New(inst Instrument, logger *zap.Logger, cfg Config) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		inst:    inst,
		logger:  logger.Named("http"),
		version: cfg.Version,
		router:  mux.NewRouter(),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	s.router.Use(s.requestID, s.logRequests)
	s.router.HandleFunc("/version", s.getVersion).Methods(http.MethodGet)
	if cfg.MetricsHandler != nil && cfg.MetricsPath != "" {
		s.router.Handle(cfg.MetricsPath, cfg.MetricsHandler).Methods(http.MethodGet)
	}

	dev := s.router.NewRoute().Subrouter()
	dev.Use(s.rateLimit)
	dev.HandleFunc("/status", s.getStatus).Methods(http.MethodGet)
	dev.HandleFunc("/config", s.getConfig).Methods(http.MethodGet)
	dev.HandleFunc("/config", s.postConfig).Methods(http.MethodPost)
	dev.HandleFunc("/preset", s.putPreset).Methods(http.MethodPut)
	dev.HandleFunc("/acquisition/start", s.startAcquisition).Methods(http.MethodPost)
	dev.HandleFunc("/acquisition/stop", s.stopAcquisition).Methods(http.MethodPost)
	dev.HandleFunc("/spectrum", s.getSpectrum).Methods(http.MethodGet)
	dev.HandleFunc("/spectrum.txt", s.getSpectrumText).Methods(http.MethodGet)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, srv *http.Server) error {
	srv.Handler = s
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
