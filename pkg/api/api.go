// Package api defines the interface a berth daemon must satisfy to
// adequately serve a connecting berthctl.
package api

import (
	"context"

	"github.com/berth-deploy/berth/pkg/cleanup"
	"github.com/berth-deploy/berth/pkg/deploy"
	"github.com/berth-deploy/berth/pkg/event"
)

// DeployRequest asks for a deployment of one service outside the
// rule engine.
type DeployRequest struct {
	ServiceID   string             `json:"serviceId"`
	Environment deploy.Environment `json:"environment,omitempty"`
	RequestedBy string             `json:"requestedBy,omitempty"`
}

type Server interface {
	Ping(ctx context.Context) error
	Version(ctx context.Context) (string, error)

	// NotifyEvent feeds a source-control event through rule matching;
	// the returned deployments are already queued.
	NotifyEvent(ctx context.Context, ev event.Event) ([]deploy.Deployment, error)

	Deploy(ctx context.Context, req DeployRequest) (deploy.Deployment, error)
	DeploymentStatus(ctx context.Context, id string) (deploy.Deployment, error)
	ListDeployments(ctx context.Context, serviceID string) ([]deploy.Deployment, error)
	ListServices(ctx context.Context) ([]deploy.Service, error)

	CleanupService(ctx context.Context, serviceID string) (cleanup.Result, error)
	PreviewCleanup(ctx context.Context, serviceID string) (cleanup.Preview, error)
	CleanupAll(ctx context.Context) ([]cleanup.Result, error)
}
