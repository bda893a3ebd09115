package rules

import (
	"context"
	"sort"

	"github.com/go-kit/kit/log"

	"github.com/berth-deploy/berth/pkg/deploy"
	"github.com/berth-deploy/berth/pkg/event"
)

// Store is what the matcher needs from persistence.
type Store interface {
	RepoConfigByRepoID(ctx context.Context, repoID string) (RepoConfig, bool, error)
	RepoConfigByFullName(ctx context.Context, fullName string) (RepoConfig, bool, error)
	RulesForProject(ctx context.Context, projectID string, eventType event.Type) ([]Rule, error)
	ServiceByID(ctx context.Context, id string) (deploy.Service, bool, error)
	ServiceByName(ctx context.Context, projectID, name string) (deploy.Service, bool, error)
	ServicesForProject(ctx context.Context, projectID string) ([]deploy.Service, error)
}

// Matcher resolves which rules apply to an inbound event and
// produces one match per satisfied rule. A bad rule never blocks the
// rest of the batch.
type Matcher struct {
	Store      Store
	Conditions *ConditionRegistry
	Logger     log.Logger
}

func NewMatcher(store Store, conditions *ConditionRegistry, logger log.Logger) *Matcher {
	return &Matcher{Store: store, Conditions: conditions, Logger: logger}
}

// FindMatches evaluates every rule scoped to the event's repository.
// A repository with no configuration yields no matches, not an
// error. Matches come back in descending rule priority.
func (m *Matcher) FindMatches(ctx context.Context, ev event.Event) ([]Match, error) {
	cfg, ok, err := m.repoConfig(ctx, ev)
	if err != nil {
		return nil, err
	}
	if !ok {
		m.Logger.Log("repo", ev.RepoFullName, "matches", 0, "reason", "no repository configuration")
		return nil, nil
	}

	rules, err := m.Store.RulesForProject(ctx, cfg.ProjectID, ev.Type)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Priority > rules[j].Priority
	})

	changed := ev.ChangedFiles()

	var matches []Match
	for _, rule := range rules {
		match, ok := m.evaluate(ctx, cfg, rule, ev, changed)
		if ok {
			matches = append(matches, match)
		}
	}
	return matches, nil
}

func (m *Matcher) repoConfig(ctx context.Context, ev event.Event) (RepoConfig, bool, error) {
	if ev.RepoID != "" {
		cfg, ok, err := m.Store.RepoConfigByRepoID(ctx, ev.RepoID)
		if err != nil || ok {
			return cfg, ok, err
		}
	}
	return m.Store.RepoConfigByFullName(ctx, ev.RepoFullName)
}

// evaluate applies conditions (d)-(g) for one candidate rule. Any
// failure is isolated to this rule.
func (m *Matcher) evaluate(ctx context.Context, cfg RepoConfig, rule Rule, ev event.Event, changed []string) (Match, bool) {
	logger := log.With(m.Logger, "rule", rule.ID)

	if rule.EventType != "" && rule.EventType != ev.Type {
		return Match{}, false
	}
	if !m.baseConditions(rule, ev) {
		return Match{}, false
	}
	if !pathsSatisfied(rule, changed) {
		return Match{}, false
	}

	if rule.CustomCondition != "" {
		cond, err := m.Conditions.Lookup(rule.CustomCondition)
		if err != nil {
			// An unresolvable condition must never silently pass.
			logger.Log("warn", "skipping rule", "err", err)
			return Match{}, false
		}
		ok, err := cond(ev, rule)
		if err != nil {
			logger.Log("warn", "custom condition errored, skipping rule", "condition", rule.CustomCondition, "err", err)
			return Match{}, false
		}
		if !ok {
			return Match{}, false
		}
	}

	svc, err := m.resolveService(ctx, cfg, rule)
	if err != nil {
		logger.Log("warn", "resolving service, skipping rule", "err", err)
		return Match{}, false
	}

	return Match{
		Service:      svc,
		Rule:         rule,
		Config:       composeConfig(cfg, rule, ev),
		ChangedFiles: changed,
	}, true
}

func (m *Matcher) baseConditions(rule Rule, ev event.Event) bool {
	switch ev.Type {
	case event.TypePush:
		if rule.BranchPattern != "" && !NewPattern(rule.BranchPattern).Matches(ev.Branch) {
			return false
		}
	case event.TypeTag:
		if rule.TagPattern != "" && !NewPattern(rule.TagPattern).Matches(ev.Tag) {
			return false
		}
	case event.TypePullRequest:
		pr := ev.PullRequest
		if pr == nil {
			return false
		}
		if len(rule.PRActions) > 0 && !containsString(rule.PRActions, pr.Action) {
			return false
		}
		for _, want := range rule.PRLabels {
			if !containsString(pr.Labels, want) {
				return false
			}
		}
		if rule.PRTargetPattern != "" && !NewPattern(rule.PRTargetPattern).Matches(pr.TargetBranch) {
			return false
		}
		if rule.BranchPattern != "" && !NewPattern(rule.BranchPattern).Matches(pr.SourceBranch) {
			return false
		}
	}
	return true
}

// resolveService walks the resolution chain: explicit id, explicit
// name scoped to the project, first service in the project, then a
// synthesized placeholder so a rule with no resolvable service still
// produces a debuggable match rather than being silently dropped.
func (m *Matcher) resolveService(ctx context.Context, cfg RepoConfig, rule Rule) (deploy.Service, error) {
	if rule.ServiceID != "" {
		svc, ok, err := m.Store.ServiceByID(ctx, rule.ServiceID)
		if err != nil {
			return deploy.Service{}, err
		}
		if ok {
			return svc, nil
		}
	}
	if rule.ServiceName != "" {
		svc, ok, err := m.Store.ServiceByName(ctx, cfg.ProjectID, rule.ServiceName)
		if err != nil {
			return deploy.Service{}, err
		}
		if ok {
			return svc, nil
		}
	}
	services, err := m.Store.ServicesForProject(ctx, cfg.ProjectID)
	if err != nil {
		return deploy.Service{}, err
	}
	if len(services) > 0 {
		return services[0], nil
	}
	return deploy.Service{
		ID:        "placeholder:" + cfg.ProjectID,
		Name:      "placeholder",
		ProjectID: cfg.ProjectID,
	}, nil
}

// pathsSatisfied applies the opt-in path conditions: a rule with
// path patterns and zero matching changed files does not match; a
// rule without path patterns matches regardless of files changed.
func pathsSatisfied(rule Rule, changed []string) bool {
	if len(rule.PathPatterns) == 0 {
		return true
	}
	var candidates []string
	for _, file := range changed {
		if matchesAny(rule.ExcludePaths, file) {
			continue
		}
		candidates = append(candidates, file)
	}
	if rule.RequireAllPaths {
		for _, pattern := range rule.PathPatterns {
			p := NewPattern(pattern)
			found := false
			for _, file := range candidates {
				if p.Matches(file) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	}
	for _, file := range candidates {
		if matchesAny(rule.PathPatterns, file) {
			return true
		}
	}
	return false
}

func matchesAny(patterns []string, value string) bool {
	for _, pattern := range patterns {
		if NewPattern(pattern).Matches(value) {
			return true
		}
	}
	return false
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

// composeConfig merges the repository configuration's defaults with
// rule-level overrides, rule values taking precedence.
func composeConfig(cfg RepoConfig, rule Rule, ev event.Event) DeploymentConfig {
	out := DeploymentConfig{
		Branch:      cfg.DefaultBranch,
		Environment: cfg.DefaultEnvironment,
		Strategy:    cfg.DefaultStrategy,
		Action:      rule.Action,
	}
	if out.Branch == "" {
		out.Branch = ev.Branch
	}
	if rule.BranchOverride != "" {
		out.Branch = rule.BranchOverride
	}
	if rule.EnvironmentOverride != "" {
		out.Environment = rule.EnvironmentOverride
	}
	if rule.StrategyOverride != "" {
		out.Strategy = rule.StrategyOverride
	}
	if out.Action == "" {
		out.Action = ActionDeploy
	}
	return out
}
