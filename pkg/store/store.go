// Package store is the logical persistence layer: deployment rows,
// service and project records, deployment rules and repository
// configurations. The in-memory implementation here backs tests and
// single-process daemons; the interfaces the engines consume are
// defined next to the engines themselves, and Mem satisfies all of
// them.
package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/berth-deploy/berth/pkg/deploy"
	"github.com/berth-deploy/berth/pkg/event"
	"github.com/berth-deploy/berth/pkg/rules"
)

// NewID returns a random identifier for new records.
func NewID() string {
	buf := make([]byte, 8)
	rand.Read(buf)
	return hex.EncodeToString(buf)
}

// Mem is a mutex-guarded in-memory store.
type Mem struct {
	mu sync.RWMutex

	deployments map[string]*deploy.Deployment
	services    map[string]deploy.Service
	projects    map[string]deploy.Project
	rules       map[string]rules.Rule
	repoConfigs map[string]rules.RepoConfig
	routing     map[string]string
}

func NewMem() *Mem {
	return &Mem{
		deployments: map[string]*deploy.Deployment{},
		services:    map[string]deploy.Service{},
		projects:    map[string]deploy.Project{},
		rules:       map[string]rules.Rule{},
		repoConfigs: map[string]rules.RepoConfig{},
		routing:     map[string]string{},
	}
}

// --- deployments

func (m *Mem) CreateDeployment(_ context.Context, d deploy.Deployment) (deploy.Deployment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.ID == "" {
		d.ID = NewID()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	if d.Status == "" {
		d.Status = deploy.StatusPending
	}
	if d.Phase == "" {
		d.Phase = deploy.PhaseQueued
	}
	d.PhaseUpdatedAt = time.Now()
	copy := d
	m.deployments[d.ID] = &copy
	return d, nil
}

func (m *Mem) DeploymentByID(_ context.Context, id string) (deploy.Deployment, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.deployments[id]
	if !ok {
		return deploy.Deployment{}, false, nil
	}
	return *d, true, nil
}

// DeploymentsForService returns the service's deployments ordered
// newest-first by creation time, the order the retention engine
// expects.
func (m *Mem) DeploymentsForService(_ context.Context, serviceID string) ([]deploy.Deployment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []deploy.Deployment
	for _, d := range m.deployments {
		if d.ServiceID == serviceID {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Mem) DeleteDeployment(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.deployments, id)
	return nil
}

// UpdateStatus persists a status transition. A record whose status
// is already terminal is immutable; only retention bookkeeping
// (deletion) may touch it afterwards.
func (m *Mem) UpdateStatus(_ context.Context, id string, status deploy.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deployments[id]
	if !ok {
		return fmt.Errorf("deployment %s not found", id)
	}
	if d.Status.Terminal() {
		return fmt.Errorf("deployment %s is %s and immutable", id, d.Status)
	}
	d.Status = status
	return nil
}

func (m *Mem) UpdatePhase(_ context.Context, id string, phase deploy.Phase, progress int, meta map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deployments[id]
	if !ok {
		return fmt.Errorf("deployment %s not found", id)
	}
	d.Phase = phase
	d.PhaseProgress = progress
	if meta != nil {
		d.PhaseMeta = meta
	}
	d.PhaseUpdatedAt = time.Now()
	return nil
}

// SetDeploymentOutcome records the pipeline's derived identifiers on
// the deployment row.
func (m *Mem) SetDeploymentOutcome(_ context.Context, id string, result deploy.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deployments[id]
	if !ok {
		return fmt.Errorf("deployment %s not found", id)
	}
	d.ContainerName = result.ContainerName
	d.ContainerImage = result.ContainerImage
	d.URL = result.URL
	d.Error = result.Error
	return nil
}

// StaleInFlight returns deployments whose phase is non-terminal and
// whose phase timestamp is older than the cutoff: the signature of
// an orchestrator process that died mid-pipeline.
func (m *Mem) StaleInFlight(_ context.Context, cutoff time.Time) ([]deploy.Deployment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []deploy.Deployment
	for _, d := range m.deployments {
		if !d.Phase.Terminal() && !d.Status.Terminal() && d.PhaseUpdatedAt.Before(cutoff) {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].PhaseUpdatedAt.Before(out[j].PhaseUpdatedAt)
	})
	return out, nil
}

// MarkFailed force-fails a reclaimed deployment. Unlike
// UpdateStatus it also records the reason; it still refuses to touch
// a terminal record.
func (m *Mem) MarkFailed(_ context.Context, id, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deployments[id]
	if !ok {
		return fmt.Errorf("deployment %s not found", id)
	}
	if d.Status.Terminal() {
		return fmt.Errorf("deployment %s is %s and immutable", id, d.Status)
	}
	d.Status = deploy.StatusFailed
	d.Phase = deploy.PhaseFailed
	d.Error = reason
	d.PhaseUpdatedAt = time.Now()
	return nil
}

// --- services and projects

func (m *Mem) UpsertService(_ context.Context, svc deploy.Service) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services[svc.ID] = svc
	return nil
}

func (m *Mem) ServiceByID(_ context.Context, id string) (deploy.Service, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	svc, ok := m.services[id]
	return svc, ok, nil
}

func (m *Mem) ServiceByName(_ context.Context, projectID, name string) (deploy.Service, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, svc := range m.sortedServices() {
		if svc.ProjectID == projectID && svc.Name == name {
			return svc, true, nil
		}
	}
	return deploy.Service{}, false, nil
}

func (m *Mem) Services(_ context.Context) ([]deploy.Service, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortedServices(), nil
}

func (m *Mem) ServicesForProject(_ context.Context, projectID string) ([]deploy.Service, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []deploy.Service
	for _, svc := range m.sortedServices() {
		if svc.ProjectID == projectID {
			out = append(out, svc)
		}
	}
	return out, nil
}

// sortedServices keeps listings deterministic; callers hold the lock.
func (m *Mem) sortedServices() []deploy.Service {
	out := make([]deploy.Service, 0, len(m.services))
	for _, svc := range m.services {
		out = append(out, svc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Mem) UpsertProject(_ context.Context, p deploy.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[p.ID] = p
	return nil
}

// --- rules and repository configurations

func (m *Mem) UpsertRule(_ context.Context, r rules.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[r.ID] = r
	return nil
}

func (m *Mem) RulesForProject(_ context.Context, projectID string, eventType event.Type) ([]rules.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []rules.Rule
	for _, r := range m.rules {
		if r.ProjectID == projectID && r.EventType == eventType {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Mem) UpsertRepoConfig(_ context.Context, cfg rules.RepoConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.repoConfigs[cfg.ID] = cfg
	return nil
}

func (m *Mem) RepoConfigByRepoID(_ context.Context, repoID string) (rules.RepoConfig, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, cfg := range m.repoConfigs {
		if cfg.RepoID == repoID {
			return cfg, true, nil
		}
	}
	return rules.RepoConfig{}, false, nil
}

func (m *Mem) RepoConfigByFullName(_ context.Context, fullName string) (rules.RepoConfig, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, cfg := range m.repoConfigs {
		if cfg.RepoFullName == fullName {
			return cfg, true, nil
		}
	}
	return rules.RepoConfig{}, false, nil
}

// --- routing templates

func (m *Mem) SetRoutingTemplate(_ context.Context, serviceID, tmpl string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routing[serviceID] = tmpl
	return nil
}

func (m *Mem) RoutingTemplate(_ context.Context, serviceID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.routing[serviceID], nil
}
