// Package daemon ties the engines together: inbound repository
// events go through rule matching, matched rules become queued
// deployment jobs, and background timers drive retention cleanup and
// reclamation of deployments orphaned by a crashed pipeline.
package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"

	"github.com/berth-deploy/berth/pkg/cleanup"
	"github.com/berth-deploy/berth/pkg/deploy"
	"github.com/berth-deploy/berth/pkg/event"
	"github.com/berth-deploy/berth/pkg/job"
	"github.com/berth-deploy/berth/pkg/provider"
	"github.com/berth-deploy/berth/pkg/rules"
	"github.com/berth-deploy/berth/pkg/store"
)

// Store is the slice of persistence the daemon needs.
type Store interface {
	CreateDeployment(ctx context.Context, d deploy.Deployment) (deploy.Deployment, error)
	DeploymentByID(ctx context.Context, id string) (deploy.Deployment, bool, error)
	DeploymentsForService(ctx context.Context, serviceID string) ([]deploy.Deployment, error)
	SetDeploymentOutcome(ctx context.Context, id string, result deploy.Result) error
	StaleInFlight(ctx context.Context, cutoff time.Time) ([]deploy.Deployment, error)
	MarkFailed(ctx context.Context, id, reason string) error
	Services(ctx context.Context) ([]deploy.Service, error)
	ServiceByID(ctx context.Context, id string) (deploy.Service, bool, error)
}

type Daemon struct {
	Store        Store
	Matcher      *rules.Matcher
	Orchestrator *deploy.Orchestrator
	Cleaner      *cleanup.Cleaner
	Jobs         *job.Queue
	Logger       log.Logger

	// VersionString is reported by the version API.
	VersionString string

	LoopVars
}

// HandleEvent runs an inbound repository event through the rule
// engine and enqueues one deployment job per match. A skip-action
// match produces no deployment and suppresses every lower-priority
// match for the same service. The returned deployments are the
// created records, already in queued state.
func (d *Daemon) HandleEvent(ctx context.Context, ev event.Event) ([]deploy.Deployment, error) {
	matches, err := d.Matcher.FindMatches(ctx, ev)
	if err != nil {
		return nil, errors.Wrap(err, "matching rules")
	}

	// Matches arrive in descending rule priority, so a skip match
	// shadows every lower-priority match for the same service.
	skipped := map[string]bool{}
	var created []deploy.Deployment
	for _, m := range matches {
		if m.Config.Action == rules.ActionSkip {
			skipped[m.Service.ID] = true
			d.Logger.Log("event", ev.Type, "repo", ev.RepoFullName, "rule", m.Rule.ID, "action", "skip")
			continue
		}
		if skipped[m.Service.ID] {
			d.Logger.Log("event", ev.Type, "rule", m.Rule.ID, "service", m.Service.ID, "shadowed-by", "skip")
			continue
		}
		dep, err := d.enqueueMatch(ctx, ev, m)
		if err != nil {
			// one bad match must not block the rest of the batch
			d.Logger.Log("event", ev.Type, "rule", m.Rule.ID, "err", err)
			continue
		}
		created = append(created, dep)
	}
	return created, nil
}

func (d *Daemon) enqueueMatch(ctx context.Context, ev event.Event, m rules.Match) (deploy.Deployment, error) {
	env := deploy.Environment(m.Config.Environment)
	if env == "" {
		env = deploy.EnvProduction
	}
	if m.Config.Action == rules.ActionPreview {
		env = deploy.EnvPreview
	}
	dep := deploy.Deployment{
		ServiceID: m.Service.ID,
		Env:       env,
		Trigger: provider.Trigger{
			Type:        string(ev.Type),
			Repository:  ev.RepoFullName,
			Branch:      m.Config.Branch,
			Commit:      ev.After,
			Environment: string(env),
		},
	}
	return d.enqueue(ctx, dep, m.Service)
}

// Submit creates and enqueues a deployment outside the rule engine,
// the path the deploy API takes.
func (d *Daemon) Submit(ctx context.Context, serviceID string, env deploy.Environment, requestedBy string) (deploy.Deployment, error) {
	svc, ok, err := d.Store.ServiceByID(ctx, serviceID)
	if err != nil {
		return deploy.Deployment{}, err
	}
	if !ok {
		return deploy.Deployment{}, fmt.Errorf("service %s not found", serviceID)
	}
	if env == "" {
		env = deploy.EnvProduction
	}
	dep := deploy.Deployment{
		ServiceID: svc.ID,
		Env:       env,
		Trigger: provider.Trigger{
			Type:        "manual",
			Environment: string(env),
			RequestedBy: requestedBy,
		},
	}
	return d.enqueue(ctx, dep, svc)
}

func (d *Daemon) enqueue(ctx context.Context, dep deploy.Deployment, svc deploy.Service) (deploy.Deployment, error) {
	created, err := d.Store.CreateDeployment(ctx, dep)
	if err != nil {
		return deploy.Deployment{}, errors.Wrap(err, "creating deployment record")
	}
	if err := d.Orchestrator.Recorder.UpdateStatus(ctx, created.ID, deploy.StatusQueued); err != nil {
		d.Logger.Log("deployment", created.ID, "err", err)
	}
	created.Status = deploy.StatusQueued

	j := &job.Job{
		ID:           job.ID(store.NewID()),
		DeploymentID: created.ID,
		ServiceID:    svc.ID,
		ServiceName:  svc.Name,
		Environment:  created.Env,
		Do:           d.deployFunc(created, svc),
	}
	d.Jobs.Enqueue(j)
	queueLength.Set(float64(d.Jobs.Len()))
	return created, nil
}

func (d *Daemon) deployFunc(dep deploy.Deployment, svc deploy.Service) job.Func {
	return func(logger log.Logger) (deploy.Result, error) {
		ctx := context.Background()
		result := d.Orchestrator.Execute(ctx, &dep, svc)
		if err := d.Store.SetDeploymentOutcome(ctx, dep.ID, result); err != nil {
			logger.Log("deployment", dep.ID, "err", err)
		}
		if result.Status == deploy.StatusFailed {
			return result, fmt.Errorf("deployment failed: %s", result.Error)
		}
		return result, nil
	}
}

// runAutoCleanup applies retention to every service that opted in.
func (d *Daemon) runAutoCleanup(ctx context.Context, logger log.Logger) {
	services, err := d.Store.Services(ctx)
	if err != nil {
		logger.Log("cleanup", "auto", "err", err)
		return
	}
	for _, svc := range services {
		if !svc.Retention.AutoCleanup {
			continue
		}
		result, err := d.Cleaner.CleanupOldDeployments(ctx, svc.ID)
		if err != nil {
			logger.Log("cleanup", "auto", "service", svc.ID, "err", err)
			continue
		}
		if result.DeletedCount > 0 {
			logger.Log("cleanup", "auto", "service", svc.ID, "deleted", result.DeletedCount, "kept", result.KeptCount)
		}
	}
}

// reclaimStale marks deployments failed whose phase has not advanced
// within the threshold and whose status never reached a terminal
// state. These are pipelines whose process died without reporting.
func (d *Daemon) reclaimStale(ctx context.Context, logger log.Logger) {
	cutoff := time.Now().Add(-d.StaleThreshold)
	stale, err := d.Store.StaleInFlight(ctx, cutoff)
	if err != nil {
		logger.Log("sweep", "stale", "err", err)
		return
	}
	for _, dep := range stale {
		reason := fmt.Sprintf("deployment stalled in phase %s; reclaimed by daemon", dep.Phase)
		if err := d.Store.MarkFailed(ctx, dep.ID, reason); err != nil {
			logger.Log("sweep", "stale", "deployment", dep.ID, "err", err)
			continue
		}
		staleReclaimed.Add(1)
		logger.Log("sweep", "stale", "deployment", dep.ID, "phase", dep.Phase, "service", dep.ServiceID)
	}
}
