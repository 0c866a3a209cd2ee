package monitor

import (
	iface "ColorDetServer/interface"
	"ColorDetServer/logger"
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

var (
	memUsage = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "memory_usage_Megabytes",
		Help: "Memory usage in Megabytes",
	})
	cpuUsage = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cpu_usage_percent",
		Help: "CPU usage in percent",
	})
	FramesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "frames_processed_total",
		Help: "Total number of frames run through the detection pipeline",
	})
	DetectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "detections_total",
		Help: "Total number of frames in which a target was selected",
	})
	FrameSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "frame_processing_seconds",
		Help:    "Time spent preprocessing and selecting per frame",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
	})
	LastDetectionArea = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "last_detection_area",
		Help: "Contour area of the most recent detection, 0 when nothing was selected",
	})
	APIRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "api_requests_total",
		Help: "Total number of HTTP API requests processed",
	}, []string{"route"})
)

// ObserveFrame records one processed frame.
func ObserveFrame(elapsed time.Duration, det *iface.Detection) {
	FramesTotal.Inc()
	FrameSeconds.Observe(elapsed.Seconds())
	if det == nil {
		LastDetectionArea.Set(0)
		return
	}
	DetectionsTotal.Inc()
	LastDetectionArea.Set(det.Area)
}

func newRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(memUsage, cpuUsage, FramesTotal, DetectionsTotal, FrameSeconds, LastDetectionArea, APIRequestsTotal)
	return registry
}

// Handler serves all collectors of this package on a fresh registry.
func Handler() http.Handler {
	registry := newRegistry()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}

// CheckProcessInfo samples RSS and CPU usage of proc into the gauges.
func CheckProcessInfo(proc *process.Process) {
	memInfo, err := proc.MemoryInfo()
	if err == nil {
		memUsage.Set(float64(memInfo.RSS / 1024 / 1024))
	}
	cpuPercent, err := proc.CPUPercent()
	if err == nil {
		cpuUsage.Set(math.Round(cpuPercent*100) / 100)
	}
}

// StartMon serves /metrics on port and samples process stats every 500ms
// until ctx is cancelled.
func StartMon(ctx context.Context, port int) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logger.Log().Error("cannot inspect own process", zap.Error(err))
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log().Error("Prometheus server ListenAndServe error", zap.Error(err))
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
			CheckProcessInfo(proc)
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log().Error("Prometheus server Shutdown error", zap.Error(err))
	}
}
