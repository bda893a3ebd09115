package daemon

import (
	"context"

	"github.com/berth-deploy/berth/pkg/api"
	"github.com/berth-deploy/berth/pkg/cleanup"
	"github.com/berth-deploy/berth/pkg/deploy"
	bertherr "github.com/berth-deploy/berth/pkg/errors"
	"github.com/berth-deploy/berth/pkg/event"
)

// The daemon is the server side of the berth API.
var _ api.Server = &Daemon{}

func (d *Daemon) Ping(context.Context) error {
	return nil
}

func (d *Daemon) Version(context.Context) (string, error) {
	return d.VersionString, nil
}

func (d *Daemon) NotifyEvent(ctx context.Context, ev event.Event) ([]deploy.Deployment, error) {
	return d.HandleEvent(ctx, ev)
}

func (d *Daemon) Deploy(ctx context.Context, req api.DeployRequest) (deploy.Deployment, error) {
	return d.Submit(ctx, req.ServiceID, req.Environment, req.RequestedBy)
}

func (d *Daemon) DeploymentStatus(ctx context.Context, id string) (deploy.Deployment, error) {
	dep, ok, err := d.Store.DeploymentByID(ctx, id)
	if err != nil {
		return deploy.Deployment{}, err
	}
	if !ok {
		return deploy.Deployment{}, bertherr.DeploymentNotFound(id)
	}
	return dep, nil
}

func (d *Daemon) ListDeployments(ctx context.Context, serviceID string) ([]deploy.Deployment, error) {
	return d.Store.DeploymentsForService(ctx, serviceID)
}

func (d *Daemon) ListServices(ctx context.Context) ([]deploy.Service, error) {
	return d.Store.Services(ctx)
}

func (d *Daemon) CleanupService(ctx context.Context, serviceID string) (cleanup.Result, error) {
	return d.Cleaner.CleanupOldDeployments(ctx, serviceID)
}

func (d *Daemon) PreviewCleanup(ctx context.Context, serviceID string) (cleanup.Preview, error) {
	return d.Cleaner.PreviewCleanup(ctx, serviceID)
}

func (d *Daemon) CleanupAll(ctx context.Context) ([]cleanup.Result, error) {
	return d.Cleaner.CleanupAllServices(ctx), nil
}
