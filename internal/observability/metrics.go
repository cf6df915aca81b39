package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the station.
type Metrics struct {
	StationRunning prometheus.Gauge

	// Wi-Fi metrics.
	ConnectAttempts *prometheus.CounterVec // labels: outcome={connected,timeout,driver_error}
	WifiConnected   prometheus.Gauge

	// Weather metrics.
	WeatherFetches       *prometheus.CounterVec // labels: outcome={success,offline,network,status,decode}
	WeatherFetchDuration prometheus.Histogram
	LastObservation      prometheus.Gauge

	// Time sync metrics.
	TimeSyncs      *prometheus.CounterVec // labels: outcome={success,error,skipped}
	TimeSyncOffset prometheus.Gauge

	// Scheduler and sink metrics.
	TaskRuns   *prometheus.CounterVec // labels: task, outcome={success,error}
	SinkErrors *prometheus.CounterVec // labels: sink
}

// NewMetrics creates and registers all station metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.StationRunning,
		m.ConnectAttempts,
		m.WifiConnected,
		m.WeatherFetches,
		m.WeatherFetchDuration,
		m.LastObservation,
		m.TimeSyncs,
		m.TimeSyncOffset,
		m.TaskRuns,
		m.SinkErrors,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		StationRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "weather_station",
			Name:      "running",
			Help:      "1 while the task loop is active, 0 when shut down.",
		}),
		ConnectAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_station",
			Name:      "wifi_connect_attempts_total",
			Help:      "Wi-Fi join attempts by outcome.",
		}, []string{"outcome"}),
		WifiConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "weather_station",
			Name:      "wifi_connected",
			Help:      "1 when the station holds a Wi-Fi connection, 0 otherwise.",
		}),
		WeatherFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_station",
			Name:      "weather_fetches_total",
			Help:      "Weather refreshes by outcome.",
		}, []string{"outcome"}),
		WeatherFetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "weather_station",
			Name:      "weather_fetch_duration_seconds",
			Help:      "OpenWeatherMap request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		LastObservation: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "weather_station",
			Name:      "last_complete_observation_timestamp_seconds",
			Help:      "Unix time of the last complete weather record.",
		}),
		TimeSyncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_station",
			Name:      "time_syncs_total",
			Help:      "Network time synchronizations by outcome.",
		}, []string{"outcome"}),
		TimeSyncOffset: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "weather_station",
			Name:      "time_sync_local_offset_seconds",
			Help:      "Local civil time offset from UTC applied at the last sync.",
		}),
		TaskRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_station",
			Name:      "task_runs_total",
			Help:      "Periodic task executions by task and outcome.",
		}, []string{"task", "outcome"}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weather_station",
			Name:      "sink_errors_total",
			Help:      "Observation publish failures by sink.",
		}, []string{"sink"}),
	}
}
