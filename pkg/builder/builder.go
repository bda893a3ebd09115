// Package builder defines the contract a build strategy must
// satisfy, and the name-keyed registry the orchestrator dispatches
// builds through. Concrete strategies (dockerfile, buildpack,
// static, compose) live elsewhere.
package builder

import (
	"context"
	"sort"
	"sync"

	bertherr "github.com/berth-deploy/berth/pkg/errors"
)

// Well-known strategy names. StrategyContainer is the plain
// containerised build every other strategy can degrade to.
const (
	StrategyContainer  = "container"
	StrategyDockerfile = "dockerfile"
	StrategyBuildpack  = "buildpack"
	StrategyStatic     = "static"
	StrategyCompose    = "compose"
)

// Status of a build.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Container identifies one container started by a build strategy.
type Container struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image"`
	Port  int    `json:"port,omitempty"`
}

// Input is everything a strategy needs to turn a source tree into a
// running artifact.
type Input struct {
	ServiceID   string
	ServiceName string
	Environment string
	SourcePath  string
	Port        int
	ImageTag    string
	// Config is the builder-specific portion of the service
	// configuration, opaque to the orchestrator.
	Config map[string]interface{}
}

// Result is what a strategy reports back. A failed status carries the
// strategy's own diagnostic in Message; the orchestrator surfaces it
// verbatim.
type Result struct {
	Status         Status            `json:"status"`
	ContainerIDs   []string          `json:"containerIds,omitempty"`
	Containers     []Container       `json:"containers,omitempty"`
	HealthCheckURL string            `json:"healthCheckUrl,omitempty"`
	Domain         string            `json:"domain,omitempty"`
	Message        string            `json:"message,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Builder turns a fetched source tree into a runnable artifact.
type Builder interface {
	Deploy(ctx context.Context, input Input) (Result, error)
}

// Registry is a name-keyed set of build strategies, constructed once
// at process start. An unregistered name is a first-class error.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

func NewRegistry() *Registry {
	return &Registry{builders: map[string]Builder{}}
}

func (r *Registry) Register(name string, b Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[name] = b
}

func (r *Registry) Lookup(name string) (Builder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.builders[name]
	if !ok {
		return nil, bertherr.StrategyNotFound(name)
	}
	return b, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
