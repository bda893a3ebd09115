package deploy

import (
	"fmt"
	"time"

	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	berthmetrics "github.com/berth-deploy/berth/pkg/metrics"
)

var (
	pipelineDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: "berth",
		Subsystem: "deploy",
		Name:      "pipeline_duration_seconds",
		Help:      "Duration of the whole deployment pipeline, in seconds.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
	}, []string{berthmetrics.LabelSuccess, berthmetrics.LabelStrategy})
	stageDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: "berth",
		Subsystem: "deploy",
		Name:      "pipeline_stage_duration_seconds",
		Help:      "Duration in seconds of each stage of the deployment pipeline.",
		Buckets:   stdprometheus.DefBuckets,
	}, []string{berthmetrics.LabelStage})
	rollbackCount = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Namespace: "berth",
		Subsystem: "deploy",
		Name:      "rollback_total",
		Help:      "Count of rollbacks performed after failed health checks.",
	}, []string{berthmetrics.LabelService})
)

func NewStageTimer(stage string) *metrics.Timer {
	return metrics.NewTimer(stageDuration.With(berthmetrics.LabelStage, stage))
}

func ObservePipeline(start time.Time, success bool, strategy string) {
	pipelineDuration.With(
		berthmetrics.LabelSuccess, fmt.Sprint(success),
		berthmetrics.LabelStrategy, strategy,
	).Observe(time.Since(start).Seconds())
}
