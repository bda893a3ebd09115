package daemon

import (
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	berthmetrics "github.com/berth-deploy/berth/pkg/metrics"
)

var (
	// Most deployments spend the bulk of their time in the image
	// build; failures are typically quick.
	jobDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: "berth",
		Subsystem: "daemon",
		Name:      "job_duration_seconds",
		Help:      "Duration of deployment job execution, in seconds.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 900, 1200},
	}, []string{berthmetrics.LabelSuccess})

	// Jobs wait for some small multiple of job execution times.
	queueDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: "berth",
		Subsystem: "daemon",
		Name:      "queue_duration_seconds",
		Help:      "Duration of time spent in the job queue before execution, in seconds.",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 15, 20, 30, 45, 60, 120},
	}, []string{})

	queueLength = prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
		Namespace: "berth",
		Subsystem: "daemon",
		Name:      "queue_length_count",
		Help:      "Count of deployment jobs waiting in the queue to be run.",
	}, []string{})

	staleReclaimed = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Namespace: "berth",
		Subsystem: "daemon",
		Name:      "stale_deployments_reclaimed_total",
		Help:      "Count of stalled in-flight deployments marked failed by the sweep.",
	}, []string{})
)
