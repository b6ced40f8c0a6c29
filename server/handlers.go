package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/moffa90/go-mca8000d/mca"
	"github.com/moffa90/go-mca8000d/mcafile"
	"github.com/moffa90/go-mca8000d/protocol"
)

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

type ackResponse struct {
	Ack string `json:"ack"`
}

type statusResponse struct {
	*protocol.Status
	DeviceType      string `json:"deviceType"`
	FirmwareVersion string `json:"firmwareVersion"`
	FPGAVersion     string `json:"fpgaVersion"`
}

type spectrumResponse struct {
	Channels int             `json:"channels"`
	Total    uint64          `json:"total"`
	Counts   []uint32        `json:"counts"`
	Status   *statusResponse `json:"status,omitempty"`
}

type presetRequest struct {
	Seconds *int `json:"seconds"`
}

func newStatusResponse(s *protocol.Status) *statusResponse {
	if s == nil {
		return nil
	}
	return &statusResponse{
		Status:          s,
		DeviceType:      s.DeviceID.String(),
		FirmwareVersion: s.FirmwareVersion(),
		FPGAVersion:     s.FPGAVersion(),
	}
}

func (s *Server) getVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]string{"version": s.version})
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.inst.RequestStatus(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, newStatusResponse(status))
}

func (s *Server) getConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.inst.RequestHWConfig(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, cfg)
}

func (s *Server) postConfig(w http.ResponseWriter, r *http.Request) {
	var cfg protocol.ConfigMap
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", protocol.ErrInvalidArgument, err))
		return
	}

	ack, err := s.inst.LoadConfig(r.Context(), cfg)
	s.writeAck(w, r, mca.OpLoadConfig, ack, err)
}

func (s *Server) putPreset(w http.ResponseWriter, r *http.Request) {
	var req presetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", protocol.ErrInvalidArgument, err))
		return
	}
	if req.Seconds == nil {
		s.writeError(w, r, fmt.Errorf("%w: seconds is required", protocol.ErrInvalidArgument))
		return
	}

	ack, err := s.inst.SetPresetTime(r.Context(), *req.Seconds)
	s.writeAck(w, r, mca.OpPresetTime, ack, err)
}

func (s *Server) startAcquisition(w http.ResponseWriter, r *http.Request) {
	ack, err := s.inst.EnableAcquisition(r.Context())
	s.writeAck(w, r, mca.OpEnable, ack, err)
}

func (s *Server) stopAcquisition(w http.ResponseWriter, r *http.Request) {
	ack, err := s.inst.DisableAcquisition(r.Context())
	s.writeAck(w, r, mca.OpDisable, ack, err)
}

func (s *Server) getSpectrum(w http.ResponseWriter, r *http.Request) {
	spectrum, status, ok := s.readSpectrum(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, r, http.StatusOK, spectrumResponse{
		Channels: len(spectrum),
		Total:    spectrum.Total(),
		Counts:   spectrum,
		Status:   newStatusResponse(status),
	})
}

func (s *Server) getSpectrumText(w http.ResponseWriter, r *http.Request) {
	spectrum, _, ok := s.readSpectrum(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=UTF-8")
	w.Header().Set("Content-Disposition", `attachment; filename="spectrum.dat"`)
	if err := mcafile.WriteSpectrumTo(w, spectrum); err != nil {
		s.logger.Error("write spectrum", zap.Error(err))
	}
}

// readSpectrum reads the spectrum using the status and clear query flags.
func (s *Server) readSpectrum(w http.ResponseWriter, r *http.Request) (protocol.Spectrum, *protocol.Status, bool) {
	includeStatus, err := queryBool(r, "status")
	if err != nil {
		s.writeError(w, r, err)
		return nil, nil, false
	}
	clear, err := queryBool(r, "clear")
	if err != nil {
		s.writeError(w, r, err)
		return nil, nil, false
	}

	spectrum, status, err := s.inst.RequestSpectrum(r.Context(), includeStatus, clear)
	if err != nil {
		s.writeError(w, r, err)
		return nil, nil, false
	}
	return spectrum, status, true
}

func queryBool(r *http.Request, key string) (bool, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s=%q", protocol.ErrInvalidArgument, key, v)
	}
	return b, nil
}

// writeAck reports a command outcome. A non-OK acknowledge is a 422.
func (s *Server) writeAck(w http.ResponseWriter, r *http.Request, op string, ack *protocol.Frame, err error) {
	if err == nil {
		err = ack.AckErr(op)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, ackResponse{Ack: ack.AckCode().String()})
}

// statusCode maps a device error to an HTTP status.
func statusCode(err error) int {
	switch {
	case errors.Is(err, protocol.ErrInvalidArgument):
		return http.StatusBadRequest
	case protocol.IsAckError(err):
		return http.StatusUnprocessableEntity
	case mca.IsTransient(err):
		return http.StatusGatewayTimeout
	case mca.IsStructural(err):
		return http.StatusBadGateway
	case errors.Is(err, mca.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusCode(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("device request failed",
			zap.String("path", r.URL.Path),
			zap.Int("status", code),
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.Error(err),
		)
	}
	s.writeJSON(w, r, code, errorResponse{Error: err.Error(), RequestID: requestIDFrom(r.Context())})
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", zap.String("path", r.URL.Path), zap.Error(err))
	}
}
