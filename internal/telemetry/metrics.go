package telemetry

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTP ambient metrics, shared by both binaries.

var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "artstore",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "path", "status"},
)

// Storage Element domain metrics.

var UploadsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "artstore",
		Subsystem: "se",
		Name:      "uploads_total",
		Help:      "Total number of upload attempts by outcome.",
	},
	[]string{"outcome"},
)

var DownloadsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "artstore",
		Subsystem: "se",
		Name:      "downloads_total",
		Help:      "Total number of download attempts by outcome.",
	},
	[]string{"outcome"},
)

var WALTransitionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "artstore",
		Subsystem: "se",
		Name:      "wal_transitions_total",
		Help:      "Total number of WAL status transitions.",
	},
	[]string{"operation_type", "status"},
)

var CacheRebuildDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "artstore",
		Subsystem: "se",
		Name:      "cache_rebuild_duration_seconds",
		Help:      "Duration of cache rebuild operations.",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900},
	},
	[]string{"kind"},
)

var CapacityFreeBytes = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "artstore",
		Subsystem: "se",
		Name:      "capacity_free_bytes",
		Help:      "Free storage capacity in bytes, as last measured.",
	},
)

var CapacityStatus = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "artstore",
		Subsystem: "se",
		Name:      "capacity_status",
		Help:      "1 if the SE is currently reporting the given capacity_status, else 0.",
	},
	[]string{"status"},
)

var RegistryPublishCircuitOpen = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "artstore",
		Subsystem: "se",
		Name:      "registry_publish_circuit_open",
		Help:      "1 if the health reporter's registry-publish circuit breaker is open.",
	},
)

// Admin domain metrics.

var TokensIssuedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "artstore",
		Subsystem: "admin",
		Name:      "tokens_issued_total",
		Help:      "Total number of JWTs issued, by principal type.",
	},
	[]string{"type"},
)

var TokenValidationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "artstore",
		Subsystem: "admin",
		Name:      "token_validations_total",
		Help:      "Total number of JWT validations, by outcome.",
	},
	[]string{"outcome"},
)

var KeyRotationsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "artstore",
		Subsystem: "admin",
		Name:      "key_rotations_total",
		Help:      "Total number of completed JWT signing key rotations.",
	},
)

var GCActionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "artstore",
		Subsystem: "admin",
		Name:      "gc_actions_total",
		Help:      "Total number of garbage collection actions by strategy and outcome.",
	},
	[]string{"strategy", "outcome"},
)

// SEMetrics returns the Storage Element metric collectors for registration.
func SEMetrics() []prometheus.Collector {
	return []prometheus.Collector{
		HTTPRequestDuration,
		UploadsTotal,
		DownloadsTotal,
		WALTransitionsTotal,
		CacheRebuildDuration,
		CapacityFreeBytes,
		CapacityStatus,
		RegistryPublishCircuitOpen,
	}
}

// AdminMetrics returns the Admin metric collectors for registration.
func AdminMetrics() []prometheus.Collector {
	return []prometheus.Collector{
		HTTPRequestDuration,
		TokensIssuedTotal,
		TokenValidationsTotal,
		KeyRotationsTotal,
		GCActionsTotal,
	}
}

// ObserveHTTP records a completed HTTP request's duration.
func ObserveHTTP(method, path string, status int, start time.Time) {
	HTTPRequestDuration.WithLabelValues(method, path, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
}
