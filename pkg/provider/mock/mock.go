package mock

import (
	"context"

	"github.com/berth-deploy/berth/pkg/provider"
)

// Provider lets tests script each contract method independently. A
// nil function field falls back to a permissive default.
type Provider struct {
	ValidateConfigFn       func(cfg provider.Config) provider.ValidationResult
	ShouldSkipDeploymentFn func(ctx context.Context, cfg provider.Config, trigger provider.Trigger) (provider.SkipResult, error)
	FetchSourceFn          func(ctx context.Context, cfg provider.Config, trigger provider.Trigger) (*provider.Source, error)
}

func (m *Provider) ValidateConfig(cfg provider.Config) provider.ValidationResult {
	if m.ValidateConfigFn == nil {
		return provider.ValidationResult{Valid: true}
	}
	return m.ValidateConfigFn(cfg)
}

func (m *Provider) ShouldSkipDeployment(ctx context.Context, cfg provider.Config, trigger provider.Trigger) (provider.SkipResult, error) {
	if m.ShouldSkipDeploymentFn == nil {
		return provider.SkipResult{}, nil
	}
	return m.ShouldSkipDeploymentFn(ctx, cfg, trigger)
}

func (m *Provider) FetchSource(ctx context.Context, cfg provider.Config, trigger provider.Trigger) (*provider.Source, error) {
	if m.FetchSourceFn == nil {
		return provider.NewSource("mock", "/tmp/mock-source", nil, nil), nil
	}
	return m.FetchSourceFn(ctx, cfg, trigger)
}

var _ provider.Provider = &Provider{}
