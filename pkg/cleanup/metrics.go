package cleanup

import (
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	berthmetrics "github.com/berth-deploy/berth/pkg/metrics"
)

var deletedDeployments = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
	Namespace: "berth",
	Subsystem: "cleanup",
	Name:      "deleted_deployments_total",
	Help:      "Count of deployment records deleted by retention cleanup.",
}, []string{berthmetrics.LabelService})
