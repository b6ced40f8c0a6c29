// Package metrics exposes Prometheus metrics for MCA8000D sessions.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/moffa90/go-mca8000d/protocol"
)

// NewRegistry creates a Prometheus registry with the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler returns the metrics HTTP handler for reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// DeviceMetrics are the metrics recorded by a session. A nil *DeviceMetrics
// records nothing.
type DeviceMetrics struct {
	RequestsTotal    *prometheus.CounterVec   // labels: op, result=ok|timeout|corrupt|error
	RequestDuration  *prometheus.HistogramVec // labels: op
	DecodeErrors     *prometheus.CounterVec   // labels: op
	BytesWritten     prometheus.Counter
	BytesRead        prometheus.Counter
	Acquiring        prometheus.Gauge
	RealTimeSeconds  prometheus.Gauge
	LiveTimeSeconds  prometheus.Gauge
	FastCount        prometheus.Gauge
	SlowCount        prometheus.Gauge
	SpectrumCounts   prometheus.Gauge
	SpectrumChannels prometheus.Gauge
}

// NewDeviceMetrics registers and returns the device metrics.
func NewDeviceMetrics(reg prometheus.Registerer) *DeviceMetrics {
	m := &DeviceMetrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mca_requests_total",
			Help: "Device request/response round trips.",
		}, []string{"op", "result"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mca_request_duration_seconds",
			Help:    "Device round trip latency.",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"op"}),
		DecodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mca_decode_errors_total",
			Help: "Responses whose payload could not be decoded.",
		}, []string{"op"}),
		BytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mca_bytes_written_total",
			Help: "Total frame bytes written to the device.",
		}),
		BytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mca_bytes_read_total",
			Help: "Total frame bytes read from the device.",
		}),
		Acquiring: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mca_acquiring",
			Help: "1 while MCA acquisition is enabled, per the last status.",
		}),
		RealTimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mca_real_time_seconds",
			Help: "Acquisition real time from the last status.",
		}),
		LiveTimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mca_live_time_seconds",
			Help: "Acquisition live time from the last status, 0 when not reported.",
		}),
		FastCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mca_fast_count",
			Help: "Fast channel count from the last status.",
		}),
		SlowCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mca_slow_count",
			Help: "Slow channel count from the last status.",
		}),
		SpectrumCounts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mca_spectrum_counts",
			Help: "Sum of all channel counts in the last spectrum.",
		}),
		SpectrumChannels: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mca_spectrum_channels",
			Help: "Channel count of the last spectrum.",
		}),
	}
	reg.MustRegister(m.RequestsTotal, m.RequestDuration, m.DecodeErrors, m.BytesWritten, m.BytesRead,
		m.Acquiring, m.RealTimeSeconds, m.LiveTimeSeconds, m.FastCount, m.SlowCount,
		m.SpectrumCounts, m.SpectrumChannels)
	return m
}

// ObserveRequest records one round trip.
func (m *DeviceMetrics) ObserveRequest(op, result string, d time.Duration, written, read int) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(op, result).Inc()
	m.RequestDuration.WithLabelValues(op).Observe(d.Seconds())
	m.BytesWritten.Add(float64(written))
	m.BytesRead.Add(float64(read))
}

// ObserveDecodeError records a payload that failed to decode.
func (m *DeviceMetrics) ObserveDecodeError(op string) {
	if m == nil {
		return
	}
	m.DecodeErrors.WithLabelValues(op).Inc()
}

// ObserveStatus updates the status gauges.
func (m *DeviceMetrics) ObserveStatus(s *protocol.Status) {
	if m == nil || s == nil {
		return
	}
	acquiring := 0.0
	if s.MCAEnabled {
		acquiring = 1
	}
	m.Acquiring.Set(acquiring)
	m.RealTimeSeconds.Set(s.RealTimeDuration().Seconds())
	m.LiveTimeSeconds.Set(s.LiveTimeDuration().Seconds())
	m.FastCount.Set(float64(s.FastCount))
	m.SlowCount.Set(float64(s.SlowCount))
}

// ObserveSpectrum updates the spectrum gauges.
func (m *DeviceMetrics) ObserveSpectrum(s protocol.Spectrum) {
	if m == nil {
		return
	}
	m.SpectrumCounts.Set(float64(s.Total()))
	m.SpectrumChannels.Set(float64(len(s)))
}
