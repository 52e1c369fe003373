package monitor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"time"

	iface "FaceStabilityServer/interface"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

// Metrics groups the analyzer's collectors. A nil *Metrics is valid and
// records nothing, so components can be built without monitoring.
type Metrics struct {
	Registry *prometheus.Registry

	Frames            prometheus.Counter
	DetectionFailures prometheus.Counter
	Classified        *prometheus.CounterVec
	Skipped           *prometheus.CounterVec
	RecordFailures    prometheus.Counter
	Inference         prometheus.Histogram
	Dropped           prometheus.Counter
	GRPCTotal         prometheus.Counter

	memUsage prometheus.Gauge
	cpuUsage prometheus.Gauge
	pid      *process.Process
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Frames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "frames_analyzed_total",
			Help: "Total number of frames submitted for analysis",
		}),
		DetectionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "detection_failures_total",
			Help: "Total number of frames whose face detection failed",
		}),
		Classified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "faces_classified_total",
			Help: "Total number of classified faces by label",
		}, []string{"label"}),
		Skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "faces_skipped_total",
			Help: "Total number of faces skipped before classification",
		}, []string{"reason"}),
		RecordFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "record_write_failures_total",
			Help: "Total number of classification records that could not be persisted",
		}),
		Inference: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "inference_duration_seconds",
			Help:    "Stability model inference latency",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "frames_dropped_total",
			Help: "Total number of camera frames dropped while an analysis was in flight",
		}),
		GRPCTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "grpc_requests_total",
			Help: "Total number of gRPC requests processed",
		}),
		memUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "memory_usage_Megabytes",
			Help: "Memory usage in Megabytes",
		}),
		cpuUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cpu_usage_percent",
			Help: "CPU usage in percent",
		}),
	}
	m.Registry.MustRegister(m.Frames, m.DetectionFailures, m.Classified, m.Skipped,
		m.RecordFailures, m.Inference, m.Dropped, m.GRPCTotal, m.memUsage, m.cpuUsage)
	return m
}

func (m *Metrics) FrameAnalyzed() {
	if m != nil {
		m.Frames.Inc()
	}
}

func (m *Metrics) DetectionFailed() {
	if m != nil {
		m.DetectionFailures.Inc()
	}
}

func (m *Metrics) FaceClassified(label iface.Label) {
	if m != nil {
		m.Classified.WithLabelValues(string(label)).Inc()
	}
}

func (m *Metrics) FaceSkipped(reason string) {
	if m != nil {
		m.Skipped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) RecordFailed() {
	if m != nil {
		m.RecordFailures.Inc()
	}
}

func (m *Metrics) ObserveInference(d time.Duration) {
	if m != nil {
		m.Inference.Observe(d.Seconds())
	}
}

func (m *Metrics) FrameDropped() {
	if m != nil {
		m.Dropped.Inc()
	}
}

func (m *Metrics) GRPCRequest() {
	if m != nil {
		m.GRPCTotal.Inc()
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// CheckProcessInfo refreshes the memory and CPU gauges of this process.
func (m *Metrics) CheckProcessInfo() {
	if m.pid == nil {
		p, err := process.NewProcess(int32(os.Getpid()))
		if err != nil {
			return
		}
		m.pid = p
	}
	if memInfo, err := m.pid.MemoryInfo(); err == nil {
		m.memUsage.Set(float64(memInfo.RSS / 1024 / 1024))
	}
	if cpuPercent, err := m.pid.CPUPercent(); err == nil {
		m.cpuUsage.Set(math.Round(cpuPercent*100) / 100)
	}
}

// StartMon serves /metrics on port and samples process usage until ctx is
// done.
func StartMon(port int, ctx context.Context, m *Metrics, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Prometheus server ListenAndServe error", zap.Error(err))
		}
	}()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
checkPcs:
	for {
		select {
		case <-ctx.Done():
			break checkPcs
		case <-ticker.C:
			m.CheckProcessInfo()
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Prometheus server Shutdown error", zap.Error(err))
	}
}
