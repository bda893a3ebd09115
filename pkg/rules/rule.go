// Package rules decides whether and how an inbound source-control
// event should produce deployments, by evaluating declarative
// per-project deployment rules.
package rules

import (
	"github.com/berth-deploy/berth/pkg/deploy"
	"github.com/berth-deploy/berth/pkg/event"
)

// Action a matching rule results in.
type Action string

const (
	ActionDeploy  Action = "deploy"
	ActionPreview Action = "preview"
	ActionSkip    Action = "skip"
)

// Rule is a declarative trigger condition scoped to a project.
// Rules are evaluated in descending Priority order; every rule whose
// conditions are fully satisfied produces an independent match.
type Rule struct {
	ID        string `json:"id" yaml:"id"`
	ProjectID string `json:"projectId" yaml:"projectId"`
	Name      string `json:"name" yaml:"name"`

	EventType event.Type `json:"eventType" yaml:"eventType"`

	// Branch/tag patterns use the glob:/semver:/regexp: prefixes;
	// empty means match regardless.
	BranchPattern string `json:"branchPattern,omitempty" yaml:"branchPattern"`
	TagPattern    string `json:"tagPattern,omitempty" yaml:"tagPattern"`

	// Pull-request conditions, only consulted for pull_request events.
	PRActions       []string `json:"prActions,omitempty" yaml:"prActions"`
	PRLabels        []string `json:"prLabels,omitempty" yaml:"prLabels"`
	PRTargetPattern string   `json:"prTargetPattern,omitempty" yaml:"prTargetPattern"`

	// Path conditions are opt-in: absent patterns match regardless of
	// which files changed. RequireAllPaths toggles all-or-any.
	PathPatterns    []string `json:"pathPatterns,omitempty" yaml:"pathPatterns"`
	ExcludePaths    []string `json:"excludePaths,omitempty" yaml:"excludePaths"`
	RequireAllPaths bool     `json:"requireAllPaths,omitempty" yaml:"requireAllPaths"`

	// CustomCondition names an externally registered predicate; an
	// unknown name skips the rule with a warning, never passes.
	CustomCondition string `json:"customCondition,omitempty" yaml:"customCondition"`

	Action   Action `json:"action" yaml:"action"`
	Priority int    `json:"priority" yaml:"priority"`

	// Per-rule overrides of the repository configuration's defaults.
	ServiceID           string `json:"serviceId,omitempty" yaml:"serviceId"`
	ServiceName         string `json:"serviceName,omitempty" yaml:"serviceName"`
	BranchOverride      string `json:"branchOverride,omitempty" yaml:"branchOverride"`
	EnvironmentOverride string `json:"environmentOverride,omitempty" yaml:"environmentOverride"`
	StrategyOverride    string `json:"strategyOverride,omitempty" yaml:"strategyOverride"`
}

// RepoConfig links a source repository to a project and carries the
// deployment defaults that rule-level overrides are merged onto.
type RepoConfig struct {
	ID           string `json:"id" yaml:"id"`
	RepoID       string `json:"repoId,omitempty" yaml:"repoId"`
	RepoFullName string `json:"repoFullName" yaml:"repoFullName"`
	ProjectID    string `json:"projectId" yaml:"projectId"`

	DefaultBranch      string `json:"defaultBranch,omitempty" yaml:"defaultBranch"`
	DefaultEnvironment string `json:"defaultEnvironment,omitempty" yaml:"defaultEnvironment"`
	DefaultStrategy    string `json:"defaultStrategy,omitempty" yaml:"defaultStrategy"`
}

// DeploymentConfig is the composed configuration a match carries:
// the repository defaults with rule-level values taking precedence.
type DeploymentConfig struct {
	Branch      string `json:"branch"`
	Environment string `json:"environment"`
	Strategy    string `json:"strategy"`
	Action      Action `json:"action"`
}

// Match is one rule satisfied by one event, with the service it
// resolves to. More than one service may legitimately need deploying
// from the same event; callers sequence or parallelise the matches.
type Match struct {
	Service      deploy.Service   `json:"service"`
	Rule         Rule             `json:"rule"`
	Config       DeploymentConfig `json:"config"`
	ChangedFiles []string         `json:"changedFiles,omitempty"`
}
