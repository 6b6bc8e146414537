// Package metrics exposes Prometheus collectors for publisher runs.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every collector in this package.
var Registry = prometheus.NewRegistry()

var (
	runsTotal                  *prometheus.CounterVec
	stageDurationSeconds       *prometheus.HistogramVec
	services                   prometheus.Gauge
	downloadBytes              prometheus.Gauge
	changeNumber               prometheus.Gauge
	lastSuccessTimestamp       prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		factory := promauto.With(Registry)

		runsTotal = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "servicetags_runs_total",
				Help: "Total number of update runs, labeled by status.",
			},
			[]string{"status"},
		)

		stageDurationSeconds = factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "servicetags_stage_duration_seconds",
				Help:    "Time spent reaching each run stage.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"stage"},
		)

		services = factory.NewGauge(prometheus.GaugeOpts{
			Name: "servicetags_services",
			Help: "Number of per-service range files written by the last successful run.",
		})

		downloadBytes = factory.NewGauge(prometheus.GaugeOpts{
			Name: "servicetags_download_bytes",
			Help: "Size of the last downloaded dataset.",
		})

		changeNumber = factory.NewGauge(prometheus.GaugeOpts{
			Name: "servicetags_change_number",
			Help: "Change number of the last published dataset.",
		})

		lastSuccessTimestamp = factory.NewGauge(prometheus.GaugeOpts{
			Name: "servicetags_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run.",
		})

		httpRequestsTotal = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "servicetags_http_requests_total",
				Help: "Total number of preview server requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "servicetags_http_request_duration_seconds",
				Help:    "Histogram of preview server latencies, labeled by method and route.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"method", "route"},
		)
	})
}

// RegisterRuntimeCollectors adds Go runtime and process collectors for long-lived processes.
func RegisterRuntimeCollectors() {
	_ = Registry.Register(collectors.NewGoCollector())
	_ = Registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

// WriteTextfile writes the registry in the text exposition format, for the node_exporter
// textfile collector.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}

// ObserveStage records how long a run took to reach stage.
func ObserveStage(stage string, duration time.Duration) {
	stageDurationSeconds.WithLabelValues(stage).Observe(duration.Seconds())
}

// ObserveRun increments the run counter for status ("success" or "failure").
func ObserveRun(status string) {
	runsTotal.WithLabelValues(status).Inc()
}

// ObserveSuccess records the results of a successful run.
func ObserveSuccess(serviceCount int, bytes int64, change int64, at time.Time) {
	services.Set(float64(serviceCount))
	downloadBytes.Set(float64(bytes))
	changeNumber.Set(float64(change))
	lastSuccessTimestamp.Set(float64(at.Unix()))
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
