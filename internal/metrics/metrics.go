package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pdftools"

var (
	toolReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_requests_total",
			Help:      "Total tool requests by tool and result (ok, invalid, rejected, error)",
		},
		[]string{"tool", "result"},
	)

	toolLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_request_duration_seconds",
			Help:      "Duration of tool requests by tool",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"tool"},
	)

	toolBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_bytes_total",
			Help:      "Bytes received and produced by tool and direction (in, out)",
		},
		[]string{"tool", "direction"},
	)

	inflight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "inflight_operations",
			Help:      "Operations currently holding a limiter slot, by tool",
		},
		[]string{"tool"},
	)

	limiterRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "limiter_rejections_total",
			Help:      "Requests turned away by reason (busy, rate)",
		},
		[]string{"reason"},
	)

	resultsStored = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_stored_total",
			Help:      "Results stored for later download by backend",
		},
		[]string{"backend"},
	)
)

var once sync.Once

// Init registers collectors. It is safe to call more than once.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(toolReqs, toolLatency, toolBytes, inflight, limiterRejections, resultsStored)
	})
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func ObserveTool(tool, result string, dur time.Duration) {
	toolReqs.WithLabelValues(tool, result).Inc()
	toolLatency.WithLabelValues(tool).Observe(dur.Seconds())
}

func AddBytes(tool string, in, out int) {
	if in > 0 {
		toolBytes.WithLabelValues(tool, "in").Add(float64(in))
	}
	if out > 0 {
		toolBytes.WithLabelValues(tool, "out").Add(float64(out))
	}
}

func IncInflight(tool string) { inflight.WithLabelValues(tool).Inc() }
func DecInflight(tool string) { inflight.WithLabelValues(tool).Dec() }

func IncRejected(reason string) { limiterRejections.WithLabelValues(reason).Inc() }

func IncStored(backend string) { resultsStored.WithLabelValues(backend).Inc() }
