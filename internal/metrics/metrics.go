package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parla_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "parla_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	QuotaDenialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parla_quota_denials_total",
			Help: "Total number of admission denials, by metered resource.",
		},
		[]string{"resource"},
	)

	MinutesRecordedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "parla_minutes_recorded_total",
			Help: "Total conversation minutes committed to the ledger.",
		},
	)

	TTSCallsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "parla_tts_calls_total",
			Help: "Total premium TTS calls committed to the ledger.",
		},
	)

	ProviderFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parla_provider_failures_total",
			Help: "Total downstream provider failures, by provider.",
		},
		[]string{"provider"},
	)

	RecordingFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "parla_recording_failures_total",
			Help: "Total ledger writes that failed after response delivery.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		QuotaDenialsTotal,
		MinutesRecordedTotal,
		TTSCallsTotal,
		ProviderFailuresTotal,
		RecordingFailuresTotal,
	)
}
