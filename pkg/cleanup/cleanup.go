// Package cleanup applies per-service retention policies to bound
// the number of retained deployment records and their artifacts.
package cleanup

import (
	"context"
	"fmt"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"

	"github.com/berth-deploy/berth/pkg/container"
	"github.com/berth-deploy/berth/pkg/deploy"
	berthmetrics "github.com/berth-deploy/berth/pkg/metrics"
)

// Store is what the cleaner needs from persistence. Deployments come
// back ordered newest-first by creation time.
type Store interface {
	ServiceByID(ctx context.Context, id string) (deploy.Service, bool, error)
	Services(ctx context.Context) ([]deploy.Service, error)
	DeploymentsForService(ctx context.Context, serviceID string) ([]deploy.Deployment, error)
	DeleteDeployment(ctx context.Context, id string) error
}

// Result of one cleanup pass over one service.
type Result struct {
	ServiceID          string   `json:"serviceId"`
	DeletedCount       int      `json:"deletedCount"`
	KeptCount          int      `json:"keptCount"`
	DeletedDeployments []string `json:"deletedDeployments,omitempty"`
	Message            string   `json:"message"`
}

// Preview is the dry-run counterpart of Result: identical selection
// logic, no mutation.
type Preview struct {
	ServiceID           string   `json:"serviceId"`
	WillDelete          int      `json:"willDelete"`
	WillKeep            int      `json:"willKeep"`
	DeploymentsToDelete []string `json:"deploymentsToDelete,omitempty"`
	DeploymentsToKeep   []string `json:"deploymentsToKeep,omitempty"`
}

// Cleaner tears down deployment records and artifacts that fall
// outside a service's retention window.
type Cleaner struct {
	Store   Store
	Runtime container.Runtime
	Logger  log.Logger
}

func NewCleaner(store Store, runtime container.Runtime, logger log.Logger) *Cleaner {
	return &Cleaner{Store: store, Runtime: runtime, Logger: logger}
}

// partition splits a service's deployments into kept and candidates.
// The retention policy is read here, at cleanup time, so a policy
// change takes effect on the very next pass.
func (c *Cleaner) partition(ctx context.Context, serviceID string) (svc deploy.Service, kept, candidates []deploy.Deployment, err error) {
	svc, ok, err := c.Store.ServiceByID(ctx, serviceID)
	if err != nil {
		return deploy.Service{}, nil, nil, err
	}
	if !ok {
		return deploy.Service{}, nil, nil, fmt.Errorf("service %s not found", serviceID)
	}

	deployments, err := c.Store.DeploymentsForService(ctx, serviceID)
	if err != nil {
		return deploy.Service{}, nil, nil, err
	}

	max := svc.Retention.MaxSuccessfulDeployments
	if max < 0 {
		max = 0
	}
	if len(deployments) <= max {
		return svc, deployments, nil, nil
	}
	// newest-first ordering: the first max are kept unconditionally
	return svc, deployments[:max], deployments[max:], nil
}

// CleanupOldDeployments applies the service's retention policy. A
// failure tearing down one deployment's artifacts is logged and does
// not abort cleanup of the remaining candidates; row deletion
// happens after the teardown attempt.
func (c *Cleaner) CleanupOldDeployments(ctx context.Context, serviceID string) (Result, error) {
	svc, kept, candidates, err := c.partition(ctx, serviceID)
	if err != nil {
		return Result{ServiceID: serviceID}, err
	}
	logger := log.With(c.Logger, "service", serviceID)

	result := Result{ServiceID: serviceID, KeptCount: len(kept)}
	if len(candidates) == 0 {
		result.Message = "nothing to clean up"
		return result, nil
	}

	for _, d := range candidates {
		if !svc.Retention.KeepArtifacts {
			c.teardownArtifacts(ctx, logger, d)
		}
		if err := c.Store.DeleteDeployment(ctx, d.ID); err != nil {
			logger.Log("warn", "deleting deployment record", "deployment", d.ID, "err", err)
			continue
		}
		result.DeletedCount++
		result.DeletedDeployments = append(result.DeletedDeployments, d.ID)
		deletedDeployments.With(berthmetrics.LabelService, serviceID).Add(1)
	}
	result.Message = fmt.Sprintf("deleted %d deployments, kept %d", result.DeletedCount, result.KeptCount)
	return result, nil
}

// PreviewCleanup runs the same selection with no mutation.
func (c *Cleaner) PreviewCleanup(ctx context.Context, serviceID string) (Preview, error) {
	_, kept, candidates, err := c.partition(ctx, serviceID)
	if err != nil {
		return Preview{ServiceID: serviceID}, err
	}
	preview := Preview{
		ServiceID:  serviceID,
		WillDelete: len(candidates),
		WillKeep:   len(kept),
	}
	for _, d := range kept {
		preview.DeploymentsToKeep = append(preview.DeploymentsToKeep, d.ID)
	}
	for _, d := range candidates {
		preview.DeploymentsToDelete = append(preview.DeploymentsToDelete, d.ID)
	}
	return preview, nil
}

// CleanupAllServices iterates every service and isolates failures:
// one service's error becomes a zero-deleted result with an
// explanatory message rather than aborting the batch.
func (c *Cleaner) CleanupAllServices(ctx context.Context) []Result {
	services, err := c.Store.Services(ctx)
	if err != nil {
		c.Logger.Log("err", errors.Wrap(err, "listing services for cleanup"))
		return nil
	}
	var results []Result
	for _, svc := range services {
		result, err := c.CleanupOldDeployments(ctx, svc.ID)
		if err != nil {
			result = Result{
				ServiceID: svc.ID,
				Message:   fmt.Sprintf("cleanup failed: %s", err),
			}
		}
		results = append(results, result)
	}
	return results
}

// teardownArtifacts removes the deployment's container, then its
// image, best-effort. An already-removed artifact is a no-op at the
// runtime, so re-running after a partial failure converges.
func (c *Cleaner) teardownArtifacts(ctx context.Context, logger log.Logger, d deploy.Deployment) {
	if d.ContainerName != "" {
		if err := c.Runtime.RemoveContainer(ctx, d.ContainerName); err != nil {
			logger.Log("warn", "removing container", "deployment", d.ID, "container", d.ContainerName, "err", err)
		}
	}
	if d.ContainerImage != "" {
		if err := c.Runtime.RemoveImage(ctx, d.ContainerImage); err != nil {
			logger.Log("warn", "removing image", "deployment", d.ID, "image", d.ContainerImage, "err", err)
		}
	}
}
