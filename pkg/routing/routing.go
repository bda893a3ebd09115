// Package routing renders a service's routing-configuration template
// with the resolved runtime context and publishes it to the reverse
// proxy's configuration store. Publishing is idempotent: re-writing
// the same rendered configuration is a no-op, so a failed update can
// simply be retried.
package routing

import (
	"context"
	"fmt"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"

	"github.com/berth-deploy/berth/pkg/deploy"
	"github.com/berth-deploy/berth/pkg/template"
)

// TemplateStore hands out the per-service routing template, with its
// variable markers still unresolved.
type TemplateStore interface {
	RoutingTemplate(ctx context.Context, serviceID string) (string, error)
}

// ConfigWriter persists a rendered proxy configuration keyed by
// service id.
type ConfigWriter interface {
	WriteConfig(ctx context.Context, serviceID, rendered string) error
}

// Reconciler turns a resolved runtime context into a concrete proxy
// configuration.
type Reconciler struct {
	Templates TemplateStore
	Writer    ConfigWriter
	Logger    log.Logger
}

func NewReconciler(templates TemplateStore, writer ConfigWriter, logger log.Logger) *Reconciler {
	return &Reconciler{Templates: templates, Writer: writer, Logger: logger}
}

// UpdateRouting implements the orchestrator's routing contract: load
// the template, resolve it against the runtime context, persist the
// result. Every unresolved reference is reported, not just the
// first.
func (r *Reconciler) UpdateRouting(ctx context.Context, serviceID string, rt deploy.RoutingRuntime) error {
	tmpl, err := r.Templates.RoutingTemplate(ctx, serviceID)
	if err != nil {
		return errors.Wrapf(err, "loading routing template for %s", serviceID)
	}
	if tmpl == "" {
		r.Logger.Log("service", serviceID, "routing", "no template configured")
		return nil
	}

	resolved := template.Resolve(tmpl, ContextFor(rt))
	if !resolved.Success {
		msgs := make([]string, len(resolved.Errors))
		for i, e := range resolved.Errors {
			msgs[i] = e.Message
		}
		return fmt.Errorf("rendering routing template for %s: %v", serviceID, msgs)
	}

	if err := r.Writer.WriteConfig(ctx, serviceID, resolved.Resolved); err != nil {
		return errors.Wrapf(err, "writing routing config for %s", serviceID)
	}
	r.Logger.Log("service", serviceID, "routing", "updated", "domain", rt.Domain)
	return nil
}

// ContextFor maps the runtime values onto the template namespace the
// routing templates are written against.
func ContextFor(rt deploy.RoutingRuntime) template.Context {
	return template.Context{
		template.RefServices: {
			rt.ServiceName: map[string]interface{}{
				"container": map[string]interface{}{
					"name": rt.ContainerName,
					"port": rt.Port,
				},
				"domain": rt.Domain,
				"url":    rt.URL,
			},
		},
		template.RefProjects: {
			rt.Project: map[string]interface{}{
				"name": rt.Project,
			},
		},
		template.RefEnv: {},
	}
}

var _ deploy.RoutingUpdater = &Reconciler{}
