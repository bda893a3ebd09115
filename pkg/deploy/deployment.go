// Package deploy holds the deployment data model and the
// orchestrator that turns a trigger into a running, routed, healthy
// service.
package deploy

import (
	"time"

	"github.com/berth-deploy/berth/pkg/provider"
)

// Status is the externally reported state of a deployment. It is
// monotonic except for the explicit cancellation and rollback
// transitions.
type Status string

const (
	StatusPending   Status = "pending"
	StatusQueued    Status = "queued"
	StatusBuilding  Status = "building"
	StatusDeploying Status = "deploying"
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether a deployment record is immutable (bar
// retention bookkeeping).
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusCancelled
}

// Phase is the fine-grained pipeline position, persisted after every
// step so a crashed orchestrator can be told apart from a slow one.
// It is for crash recovery, not external status reporting.
type Phase string

const (
	PhaseQueued           Phase = "queued"
	PhasePullingSource    Phase = "pulling_source"
	PhaseBuilding         Phase = "building"
	PhaseCopyingFiles     Phase = "copying_files"
	PhaseCreatingSymlinks Phase = "creating_symlinks"
	PhaseUpdatingRoutes   Phase = "updating_routes"
	PhaseHealthCheck      Phase = "health_check"
	PhaseActive           Phase = "active"
	PhaseFailed           Phase = "failed"
)

// Terminal reports whether the phase can no longer advance.
func (p Phase) Terminal() bool {
	return p == PhaseActive || p == PhaseFailed
}

// Environment a deployment targets.
type Environment string

const (
	EnvProduction  Environment = "production"
	EnvStaging     Environment = "staging"
	EnvPreview     Environment = "preview"
	EnvDevelopment Environment = "development"
)

// Deployment is one attempt to bring a service to a running state
// for an environment. Once Status is terminal the record is mutated
// only by retention bookkeeping.
type Deployment struct {
	ID        string      `json:"id"`
	ServiceID string      `json:"serviceId"`
	Status    Status      `json:"status"`
	Env       Environment `json:"environment"`

	// Trigger doubles as the source descriptor: repository, branch
	// and commit, or an upload reference.
	Trigger provider.Trigger `json:"trigger"`

	CreatedAt         time.Time  `json:"createdAt"`
	BuildStartedAt    *time.Time `json:"buildStartedAt,omitempty"`
	BuildCompletedAt  *time.Time `json:"buildCompletedAt,omitempty"`
	DeployStartedAt   *time.Time `json:"deployStartedAt,omitempty"`
	DeployCompletedAt *time.Time `json:"deployCompletedAt,omitempty"`

	ContainerName  string `json:"containerName,omitempty"`
	ContainerImage string `json:"containerImage,omitempty"`
	URL            string `json:"url,omitempty"`
	Error          string `json:"error,omitempty"`

	Phase          Phase             `json:"phase"`
	PhaseProgress  int               `json:"phaseProgress"`
	PhaseMeta      map[string]string `json:"phaseMeta,omitempty"`
	PhaseUpdatedAt time.Time         `json:"phaseUpdatedAt"`
}

// RetentionPolicy bounds how many successful deployment records and
// artifacts are kept per service. It is read at cleanup time, never
// cached; a change takes effect on the next cleanup pass.
type RetentionPolicy struct {
	MaxSuccessfulDeployments int  `json:"maxSuccessfulDeployments" yaml:"maxSuccessfulDeployments"`
	KeepArtifacts            bool `json:"keepArtifacts" yaml:"keepArtifacts"`
	AutoCleanup              bool `json:"autoCleanup" yaml:"autoCleanup"`
}

// ResourceLimits for a service's containers.
type ResourceLimits struct {
	CPUs     float64 `json:"cpus,omitempty" yaml:"cpus"`
	MemoryMB int     `json:"memoryMb,omitempty" yaml:"memoryMb"`
}

// Service is a deployable unit.
type Service struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	ProjectID string `json:"projectId" yaml:"projectId"`

	Provider       string                 `json:"provider" yaml:"provider"`
	Builder        string                 `json:"builder" yaml:"builder"`
	ProviderConfig provider.Config        `json:"providerConfig,omitempty" yaml:"providerConfig"`
	BuilderConfig  map[string]interface{} `json:"builderConfig,omitempty" yaml:"builderConfig"`

	Port   int    `json:"port,omitempty" yaml:"port"`
	Domain string `json:"domain,omitempty" yaml:"domain"`

	HealthCheckPath         string        `json:"healthCheckPath,omitempty" yaml:"healthCheckPath"`
	HealthCheckTimeout      time.Duration `json:"healthCheckTimeout,omitempty" yaml:"healthCheckTimeout"`
	HealthCheckRetries      int           `json:"healthCheckRetries,omitempty" yaml:"healthCheckRetries"`
	RollbackOnHealthFailure bool          `json:"rollbackOnHealthFailure,omitempty" yaml:"rollbackOnHealthFailure"`

	// BuildTimeout bounds the build step; zero means the daemon
	// default applies. Only the health check has caller-supplied
	// retries; the build gets a single bounded attempt.
	BuildTimeout time.Duration `json:"buildTimeout,omitempty" yaml:"buildTimeout"`

	Limits    ResourceLimits  `json:"limits,omitempty" yaml:"limits"`
	Retention RetentionPolicy `json:"retention" yaml:"retention"`
}

// Project groups services and scopes deployment rules.
type Project struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}
