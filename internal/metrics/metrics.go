package metrics

import (
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registry = prometheus.NewRegistry()

	discovered = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "procwarden",
		Name:      "descendants_discovered_total",
		Help:      "Total number of processes discovered in supervised trees.",
	})

	orphaned = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "procwarden",
		Name:      "descendants_orphaned_total",
		Help:      "Total number of supervised processes observed after being reparented outside their tree.",
	})

	reaped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "procwarden",
		Name:      "reaped_total",
		Help:      "Terminal outcomes recorded per kind (exited, signaled, unknown).",
	}, []string{"outcome"})

	signals = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "procwarden",
		Name:      "signals_sent_total",
		Help:      "Signals delivered to supervised process groups.",
	}, []string{"signal"})

	gaps = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "procwarden",
		Name:      "detection_gaps_total",
		Help:      "Processes whose parent could not be read before they disappeared.",
	})

	tracked = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "procwarden",
		Name:      "tracked_processes",
		Help:      "Supervised processes that have not reached a terminal state.",
	})

	scanDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "procwarden",
		Name:      "scan_duration_seconds",
		Help:      "Latency of process table scans in seconds.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
	})

	buildInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "procwarden",
		Name:      "build_info",
		Help:      "Build metadata for the running procwarden binary.",
	}, []string{"go_version", "vcs", "vcs_revision", "vcs_time", "vcs_modified"})

	buildInfoOnce sync.Once
)

func init() {
	registry.MustRegister(discovered, orphaned, reaped, signals, gaps, tracked, scanDuration, buildInfo)
}

// Registry returns the Prometheus registry containing all procwarden metrics.
func Registry() *prometheus.Registry {
	return registry
}

// AddDiscovered counts newly discovered processes.
func AddDiscovered(n int) {
	if n <= 0 {
		return
	}
	discovered.Add(float64(n))
}

// IncOrphaned counts a process transitioning to the orphaned state.
func IncOrphaned() {
	orphaned.Inc()
}

// IncReaped counts a recorded terminal outcome.
func IncReaped(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	reaped.WithLabelValues(outcome).Inc()
}

// IncSignal counts a signal sent to a supervised group.
func IncSignal(signal string) {
	signals.WithLabelValues(signal).Inc()
}

// IncDetectionGap counts a best-effort classification miss.
func IncDetectionGap() {
	gaps.Inc()
}

// SetTracked publishes the number of live supervised processes.
func SetTracked(n int) {
	tracked.Set(float64(n))
}

// ObserveScan records the latency of a process table scan.
func ObserveScan(d time.Duration) {
	scanDuration.Observe(d.Seconds())
}

// EmitBuildInfo publishes build metadata about the running binary.
func EmitBuildInfo() {
	buildInfoOnce.Do(func() {
		labels := prometheus.Labels{
			"go_version":   runtime.Version(),
			"vcs":          "",
			"vcs_revision": "",
			"vcs_time":     "",
			"vcs_modified": "",
		}
		if info, ok := debug.ReadBuildInfo(); ok {
			if info.GoVersion != "" {
				labels["go_version"] = info.GoVersion
			}
			for _, setting := range info.Settings {
				switch setting.Key {
				case "vcs":
					labels["vcs"] = setting.Value
				case "vcs.revision":
					labels["vcs_revision"] = setting.Value
				case "vcs.time":
					labels["vcs_time"] = setting.Value
				case "vcs.modified":
					labels["vcs_modified"] = setting.Value
				}
			}
		}
		buildInfo.With(labels).Set(1)
	})
}
