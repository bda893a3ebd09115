package config

import (
	"context"

	"github.com/pkg/errors"

	"github.com/berth-deploy/berth/pkg/deploy"
	"github.com/berth-deploy/berth/pkg/rules"
)

// Seeder is the slice of the store the declarative resources are
// loaded into on daemon start; satisfied by store.Mem.
type Seeder interface {
	UpsertProject(ctx context.Context, p deploy.Project) error
	UpsertService(ctx context.Context, svc deploy.Service) error
	UpsertRule(ctx context.Context, r rules.Rule) error
	UpsertRepoConfig(ctx context.Context, rc rules.RepoConfig) error
	SetRoutingTemplate(ctx context.Context, serviceID, tmpl string) error
}

// Seed loads the config's declarative resources into the store.
// Seeding is an upsert, so restarting with the same file converges.
func (c Config) Seed(ctx context.Context, s Seeder) error {
	for _, p := range c.Projects {
		if err := s.UpsertProject(ctx, p); err != nil {
			return errors.Wrapf(err, "seeding project %s", p.ID)
		}
	}
	for _, svc := range c.Services {
		if err := s.UpsertService(ctx, svc); err != nil {
			return errors.Wrapf(err, "seeding service %s", svc.ID)
		}
	}
	for _, r := range c.Rules {
		if err := s.UpsertRule(ctx, r); err != nil {
			return errors.Wrapf(err, "seeding rule %s", r.ID)
		}
	}
	for _, rc := range c.Repos {
		if err := s.UpsertRepoConfig(ctx, rc); err != nil {
			return errors.Wrapf(err, "seeding repo config %s", rc.ID)
		}
	}
	for serviceID, tmpl := range c.RoutingTemplates {
		if err := s.SetRoutingTemplate(ctx, serviceID, tmpl); err != nil {
			return errors.Wrapf(err, "seeding routing template for %s", serviceID)
		}
	}
	return nil
}
