// Package provider defines the contract a source provider must
// satisfy, and the name-keyed registry the orchestrator looks
// providers up in. Concrete providers (git hosting, static uploads)
// live elsewhere; the orchestrator only depends on this interface.
package provider

import (
	"context"
	"sort"
	"sync"

	bertherr "github.com/berth-deploy/berth/pkg/errors"
)

// Config is the provider-specific portion of a service's
// configuration, opaque to the orchestrator.
type Config map[string]interface{}

// Trigger describes what initiated a deployment attempt: either an
// inbound source-control event or a manual request.
type Trigger struct {
	Type string `json:"type"` // "manual" or "event"
	// Source coordinates. For repository sources:
	Repository string `json:"repository,omitempty"`
	Branch     string `json:"branch,omitempty"`
	Commit     string `json:"commit,omitempty"`
	// For uploaded archives and static content:
	UploadRef string `json:"uploadRef,omitempty"`

	Environment string `json:"environment,omitempty"`
	RequestedBy string `json:"requestedBy,omitempty"`
}

// ValidationResult lists every violation found, not just the first.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// SkipResult reports that no new build is needed for this trigger
// (content/commit cache hit), with a human-readable reason.
type SkipResult struct {
	ShouldSkip bool
	Reason     string
}

// Source is a fetched source tree in a scoped, disposable workspace.
// Callers must call Cleanup exactly once on every exit path.
type Source struct {
	SourceID  string
	LocalPath string
	Metadata  map[string]string

	cleanup func() error
}

// NewSource wires the workspace release function into the source
// handle. A nil cleanup is tolerated and makes Cleanup a no-op.
func NewSource(id, localPath string, metadata map[string]string, cleanup func() error) *Source {
	return &Source{SourceID: id, LocalPath: localPath, Metadata: metadata, cleanup: cleanup}
}

// Cleanup releases the workspace. Safe to call more than once; only
// the first call does the release.
func (s *Source) Cleanup() error {
	if s.cleanup == nil {
		return nil
	}
	fn := s.cleanup
	s.cleanup = nil
	return fn()
}

// Provider fetches source trees for deployments.
type Provider interface {
	// ValidateConfig checks the provider-specific configuration and
	// reports all violations at once.
	ValidateConfig(cfg Config) ValidationResult
	// ShouldSkipDeployment reports whether this exact trigger is a
	// cache hit needing no new build.
	ShouldSkipDeployment(ctx context.Context, cfg Config, trigger Trigger) (SkipResult, error)
	// FetchSource materialises the source tree into a disposable
	// workspace.
	FetchSource(ctx context.Context, cfg Config, trigger Trigger) (*Source, error)
}

// Registry is a name-keyed set of providers, constructed once at
// process start and passed to whoever needs lookups. An unregistered
// name is a first-class error, not a crash.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: map[string]Provider{}}
}

func (r *Registry) Register(name string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
}

func (r *Registry) Lookup(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, bertherr.ProviderNotFound(name)
	}
	return p, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
