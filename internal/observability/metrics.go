package observability

import "github.com/prometheus/client_golang/prometheus"

// JobBuckets covers queue wait plus generation time, from 250ms to 10 minutes.
var JobBuckets = []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600}

var (
	// HTTPRequestsTotal counts HTTP requests by method, status class and route.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "runrelay_http_requests_total",
			Help: "HTTP requests",
		},
		[]string{"method", "status", "route"},
	)

	// HTTPRequestDuration records HTTP request duration in seconds.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "runrelay_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: JobBuckets,
		},
		[]string{"method", "route"},
	)

	// StreamsActive tracks relays currently writing to a client.
	StreamsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "runrelay_streams_active",
			Help: "Active relays",
		},
	)

	// JobsSubmittedTotal counts backend submissions by outcome (ok, error).
	JobsSubmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "runrelay_jobs_submitted_total",
			Help: "Backend job submissions",
		},
		[]string{"model", "outcome"},
	)

	// JobPollsTotal counts polls by observed result (a job status or an error kind).
	JobPollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "runrelay_job_polls_total",
			Help: "Backend job polls",
		},
		[]string{"model", "result"},
	)

	// JobsFinishedTotal counts relays by final status (COMPLETED, FAILED, ABANDONED).
	JobsFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "runrelay_jobs_finished_total",
			Help: "Finished relays",
		},
		[]string{"model", "status"},
	)

	// JobDuration records time from submission to the end of the relay.
	JobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "runrelay_job_duration_seconds",
			Help:    "Job duration",
			Buckets: JobBuckets,
		},
		[]string{"model", "status"},
	)

	// EventsTotal counts published lifecycle events.
	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "runrelay_events_total",
			Help: "Published job events",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		StreamsActive,
		JobsSubmittedTotal,
		JobPollsTotal,
		JobsFinishedTotal,
		JobDuration,
		EventsTotal,
	)
}
