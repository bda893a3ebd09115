package deploy

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"

	"github.com/berth-deploy/berth/pkg/builder"
	"github.com/berth-deploy/berth/pkg/container"
	bertherr "github.com/berth-deploy/berth/pkg/errors"
	berthmetrics "github.com/berth-deploy/berth/pkg/metrics"
	"github.com/berth-deploy/berth/pkg/provider"
)

// DefaultBuildTimeout bounds the build step when the service does
// not set its own. Health checks have their own caller-supplied
// budget; nothing else in the pipeline is given a global deadline.
const DefaultBuildTimeout = 15 * time.Minute

// Recorder persists status and phase transitions as the pipeline
// advances, so a crashed orchestrator process can be identified by a
// stale phase timestamp and reclaimed by the reconciliation sweep.
type Recorder interface {
	UpdateStatus(ctx context.Context, id string, status Status) error
	UpdatePhase(ctx context.Context, id string, phase Phase, progress int, meta map[string]string) error
}

// NopRecorder drops transitions; used by tests and one-shot runs.
type NopRecorder struct{}

func (NopRecorder) UpdateStatus(context.Context, string, Status) error {
	return nil
}
func (NopRecorder) UpdatePhase(context.Context, string, Phase, int, map[string]string) error {
	return nil
}

// RoutingRuntime is the resolved runtime context the routing
// reconciler renders a service's routing template with.
type RoutingRuntime struct {
	ServiceName   string
	ContainerName string
	Port          int
	Domain        string
	Project       string
	URL           string
}

// RoutingUpdater publishes reverse-proxy routing for a service.
// Failures are reported but never fail the deployment; routing is
// independently retryable.
type RoutingUpdater interface {
	UpdateRouting(ctx context.Context, serviceID string, rt RoutingRuntime) error
}

// Orchestrator coordinates the deployment pipeline: validate, fetch,
// build, run, health-check, route. It owns the deployment's phase
// state machine. One Execute call runs one pipeline; a single
// Orchestrator may run many concurrently, each with its own
// disposable workspace.
type Orchestrator struct {
	Providers *provider.Registry
	Builders  *builder.Registry
	Runtime   container.Runtime
	Health    HealthChecker
	Router    RoutingUpdater
	Recorder  Recorder
	Logger    log.Logger

	BuildTimeout time.Duration
}

func NewOrchestrator(providers *provider.Registry, builders *builder.Registry, runtime container.Runtime, logger log.Logger) *Orchestrator {
	return &Orchestrator{
		Providers:    providers,
		Builders:     builders,
		Runtime:      runtime,
		Health:       NewHTTPHealthCheck(),
		Recorder:     NopRecorder{},
		Logger:       logger,
		BuildTimeout: DefaultBuildTimeout,
	}
}

// Execute runs the pipeline for one deployment. It never lets a
// panic or error escape its own boundary: callers always receive a
// Result, which makes it safe to drive from a queue worker.
func (o *Orchestrator) Execute(ctx context.Context, d *Deployment, svc Service) (result Result) {
	start := time.Now()
	logger := log.With(o.Logger, "deployment", d.ID, "service", svc.Name)

	defer func() {
		if r := recover(); r != nil {
			result = o.fail(ctx, d, logger, fmt.Errorf("pipeline panic: %v", r))
		}
		result.Duration = time.Since(start)
		ObservePipeline(start, result.Status == StatusSuccess, svc.Builder)
	}()

	// Step 1: resolve the source provider.
	prov, err := o.Providers.Lookup(svc.Provider)
	if err != nil {
		return o.fail(ctx, d, logger, err)
	}

	// Step 2: validate provider configuration, reporting every
	// violation at once.
	if v := prov.ValidateConfig(svc.ProviderConfig); !v.Valid {
		return o.fail(ctx, d, logger, bertherr.InvalidConfiguration(v.Errors))
	}

	// Step 3: a content-addressed cache hit is a no-op success, not
	// a failure.
	skip, err := prov.ShouldSkipDeployment(ctx, svc.ProviderConfig, d.Trigger)
	if err != nil {
		return o.fail(ctx, d, logger, errors.Wrap(err, "checking skip eligibility"))
	}
	if skip.ShouldSkip {
		logger.Log("skipped", "true", "reason", skip.Reason)
		o.phase(ctx, d, PhaseActive, d.PhaseProgress, nil)
		o.status(ctx, d, StatusSuccess)
		return Result{Status: StatusSuccess, SkipReason: skip.Reason}
	}

	// Step 4: fetch source into a scoped, disposable workspace. The
	// workspace is released on every exit path from here on.
	o.status(ctx, d, StatusBuilding)
	o.phase(ctx, d, PhasePullingSource, 0, nil)
	src, err := prov.FetchSource(ctx, svc.ProviderConfig, d.Trigger)
	if err != nil {
		return o.fail(ctx, d, logger, errors.Wrap(err, "fetching source"))
	}
	defer func() {
		if cerr := src.Cleanup(); cerr != nil {
			logger.Log("warn", "releasing source workspace", "err", cerr)
		}
	}()

	// Step 5: build, falling back to a degraded plain containerised
	// build when the named strategy is unavailable.
	buildResult, err := o.build(ctx, d, svc, src, logger)
	if err != nil {
		return o.fail(ctx, d, logger, err)
	}

	// Step 6: the built artifact is running; derive its identity.
	o.status(ctx, d, StatusDeploying)
	now := time.Now()
	d.DeployStartedAt = &now
	o.phase(ctx, d, PhaseCopyingFiles, d.PhaseProgress, buildResult.Metadata)
	o.phase(ctx, d, PhaseCreatingSymlinks, d.PhaseProgress, nil)

	if len(buildResult.Containers) > 0 {
		d.ContainerName = buildResult.Containers[0].Name
		d.ContainerImage = buildResult.Containers[0].Image
	}
	d.URL = deriveURL(buildResult, d.ContainerName)
	result = Result{
		Status:         StatusSuccess,
		ContainerName:  d.ContainerName,
		ContainerImage: d.ContainerImage,
		URL:            d.URL,
	}

	// Step 7: health check, only if the service configures one.
	if svc.HealthCheckPath != "" {
		o.phase(ctx, d, PhaseHealthCheck, d.PhaseProgress, nil)
		timer := NewStageTimer("health_check")
		err := o.Health.Probe(ctx, d.URL, svc.HealthCheckPath, svc.HealthCheckTimeout, svc.HealthCheckRetries)
		timer.ObserveDuration()
		if err != nil {
			attempts := svc.HealthCheckRetries
			if attempts < 1 {
				attempts = 1
			}
			if svc.RollbackOnHealthFailure {
				logger.Log("health", "failed", "rollback", "true", "err", err)
				if rbErr := o.Rollback(ctx, svc.ID, containerIDs(buildResult)); rbErr != nil {
					logger.Log("warn", "rollback incomplete", "err", rbErr)
				}
				failed := o.fail(ctx, d, logger, bertherr.HealthCheckFailed(d.URL, attempts))
				failed.RolledBack = true
				return failed
			}
			// Deployed but unhealthy: the deployment stands, the
			// condition is reported.
			logger.Log("health", "failed", "rollback", "false", "err", err)
			result.Unhealthy = true
		}
	}

	// Step 8: routing is best-effort; a failure is attached to the
	// result, never merged into its status.
	if o.Router != nil {
		o.phase(ctx, d, PhaseUpdatingRoutes, d.PhaseProgress, nil)
		rt := RoutingRuntime{
			ServiceName:   svc.Name,
			ContainerName: d.ContainerName,
			Port:          firstPort(buildResult, svc.Port),
			Domain:        domainOf(buildResult, svc),
			Project:       svc.ProjectID,
			URL:           d.URL,
		}
		if err := o.Router.UpdateRouting(ctx, svc.ID, rt); err != nil {
			logger.Log("warn", "routing update failed; deployment unaffected", "err", err)
			result.RoutingError = err.Error()
		}
	}

	done := time.Now()
	d.DeployCompletedAt = &done
	o.phase(ctx, d, PhaseActive, d.PhaseProgress, nil)
	o.status(ctx, d, StatusSuccess)
	logger.Log("deployed", "true", "container", d.ContainerName, "url", d.URL)
	return result
}

// build dispatches to the named strategy, bounded by the service's
// build timeout. An unavailable strategy other than the raw
// container build degrades to a plain containerised build with a
// generated minimal image definition.
func (o *Orchestrator) build(ctx context.Context, d *Deployment, svc Service, src *provider.Source, logger log.Logger) (builder.Result, error) {
	input := builder.Input{
		ServiceID:   svc.ID,
		ServiceName: svc.Name,
		Environment: string(d.Env),
		SourcePath:  src.LocalPath,
		Port:        svc.Port,
		ImageTag:    imageTag(d),
		Config:      svc.BuilderConfig,
	}

	b, err := o.Builders.Lookup(svc.Builder)
	if err != nil {
		if svc.Builder == builder.StrategyContainer {
			return builder.Result{}, err
		}
		logger.Log("warn", "build strategy unavailable, using containerised fallback", "strategy", svc.Builder)
		b, err = o.Builders.Lookup(builder.StrategyContainer)
		if err != nil {
			return builder.Result{}, err
		}
		input.Config = fallbackConfig(svc)
	}

	timeout := svc.BuildTimeout
	if timeout <= 0 {
		timeout = o.BuildTimeout
	}
	buildCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	now := time.Now()
	d.BuildStartedAt = &now
	o.phase(ctx, d, PhaseBuilding, 0, nil)
	timer := NewStageTimer("build")
	res, err := b.Deploy(buildCtx, input)
	timer.ObserveDuration()
	completed := time.Now()
	d.BuildCompletedAt = &completed

	if err != nil {
		return builder.Result{}, bertherr.BuildFailed(err.Error())
	}
	if res.Status != builder.StatusSuccess {
		return builder.Result{}, bertherr.BuildFailed(res.Message)
	}
	return res, nil
}

// Rollback stops and removes the in-flight deployment's containers.
// It does not resurrect a prior deployment; that is a caller-level
// decision. Removal of an already-gone container is a no-op, so
// re-running a partial rollback converges.
func (o *Orchestrator) Rollback(ctx context.Context, serviceID string, ids []string) error {
	rollbackCount.With(berthmetrics.LabelService, serviceID).Add(1)
	var firstErr error
	for _, id := range ids {
		if err := o.Runtime.StopContainer(ctx, id); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "stopping container %s", id)
		}
		if err := o.Runtime.RemoveContainer(ctx, id); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "removing container %s", id)
		}
	}
	return firstErr
}

func (o *Orchestrator) fail(ctx context.Context, d *Deployment, logger log.Logger, err error) Result {
	logger.Log("failed", "true", "err", err)
	d.Error = err.Error()
	o.phase(ctx, d, PhaseFailed, d.PhaseProgress, map[string]string{"error": err.Error()})
	o.status(ctx, d, StatusFailed)
	return Result{Status: StatusFailed, Error: err.Error()}
}

// phase advances the in-memory record and persists it. Persistence
// failure must not kill the pipeline; it is logged and the pipeline
// carries on.
func (o *Orchestrator) phase(ctx context.Context, d *Deployment, phase Phase, progress int, meta map[string]string) {
	d.Phase = phase
	d.PhaseProgress = progress
	if meta != nil {
		d.PhaseMeta = meta
	}
	d.PhaseUpdatedAt = time.Now()
	if err := o.Recorder.UpdatePhase(ctx, d.ID, phase, progress, meta); err != nil {
		o.Logger.Log("warn", "persisting phase", "deployment", d.ID, "phase", phase, "err", err)
	}
}

func (o *Orchestrator) status(ctx context.Context, d *Deployment, status Status) {
	d.Status = status
	if err := o.Recorder.UpdateStatus(ctx, d.ID, status); err != nil {
		o.Logger.Log("warn", "persisting status", "deployment", d.ID, "status", status, "err", err)
	}
}

func deriveURL(res builder.Result, containerName string) string {
	switch {
	case res.HealthCheckURL != "":
		return res.HealthCheckURL
	case res.Domain != "":
		return "https://" + res.Domain
	default:
		// No health-check URL or domain was produced; the container
		// name itself is the only address we have.
		return containerName
	}
}

func containerIDs(res builder.Result) []string {
	if len(res.ContainerIDs) > 0 {
		return res.ContainerIDs
	}
	var ids []string
	for _, c := range res.Containers {
		ids = append(ids, c.ID)
	}
	return ids
}

func firstPort(res builder.Result, fallback int) int {
	for _, c := range res.Containers {
		if c.Port != 0 {
			return c.Port
		}
	}
	return fallback
}

func domainOf(res builder.Result, svc Service) string {
	if res.Domain != "" {
		return res.Domain
	}
	return svc.Domain
}

func imageTag(d *Deployment) string {
	if d.Trigger.Commit != "" {
		commit := d.Trigger.Commit
		if len(commit) > 12 {
			commit = commit[:12]
		}
		return commit
	}
	return fmt.Sprintf("deploy-%d", d.CreatedAt.Unix())
}

// fallbackConfig is the generated minimal image definition the
// degraded build path uses in place of the unavailable strategy's
// own configuration.
func fallbackConfig(svc Service) map[string]interface{} {
	port := svc.Port
	if port == 0 {
		port = 8080
	}
	return map[string]interface{}{
		"generated":  true,
		"dockerfile": fmt.Sprintf("FROM nginx:alpine\nCOPY . /usr/share/nginx/html\nEXPOSE %d\n", port),
	}
}
