package rules

import (
	"context"
	"errors"
	"testing"

	"github.com/go-kit/kit/log"
	"github.com/stretchr/testify/assert"

	"github.com/berth-deploy/berth/pkg/deploy"
	"github.com/berth-deploy/berth/pkg/event"
)

type stubStore struct {
	configs  []RepoConfig
	rules    []Rule
	services []deploy.Service
}

func (s *stubStore) RepoConfigByRepoID(_ context.Context, repoID string) (RepoConfig, bool, error) {
	for _, c := range s.configs {
		if c.RepoID == repoID {
			return c, true, nil
		}
	}
	return RepoConfig{}, false, nil
}

func (s *stubStore) RepoConfigByFullName(_ context.Context, fullName string) (RepoConfig, bool, error) {
	for _, c := range s.configs {
		if c.RepoFullName == fullName {
			return c, true, nil
		}
	}
	return RepoConfig{}, false, nil
}

func (s *stubStore) RulesForProject(_ context.Context, projectID string, eventType event.Type) ([]Rule, error) {
	var out []Rule
	for _, r := range s.rules {
		if r.ProjectID == projectID && r.EventType == eventType {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *stubStore) ServiceByID(_ context.Context, id string) (deploy.Service, bool, error) {
	for _, svc := range s.services {
		if svc.ID == id {
			return svc, true, nil
		}
	}
	return deploy.Service{}, false, nil
}

func (s *stubStore) ServiceByName(_ context.Context, projectID, name string) (deploy.Service, bool, error) {
	for _, svc := range s.services {
		if svc.ProjectID == projectID && svc.Name == name {
			return svc, true, nil
		}
	}
	return deploy.Service{}, false, nil
}

func (s *stubStore) ServicesForProject(_ context.Context, projectID string) ([]deploy.Service, error) {
	var out []deploy.Service
	for _, svc := range s.services {
		if svc.ProjectID == projectID {
			out = append(out, svc)
		}
	}
	return out, nil
}

func pushEvent(branch string, files ...string) event.Event {
	return event.Event{
		Type:         event.TypePush,
		RepoID:       "repo-1",
		RepoFullName: "org/shop",
		Branch:       branch,
		Commits:      []event.Commit{{Revision: "abc123", Modified: files}},
	}
}

func newTestMatcher(store *stubStore) *Matcher {
	return NewMatcher(store, NewConditionRegistry(), log.NewNopLogger())
}

func baseStore() *stubStore {
	return &stubStore{
		configs: []RepoConfig{{
			ID:                 "cfg-1",
			RepoID:             "repo-1",
			RepoFullName:       "org/shop",
			ProjectID:          "proj-1",
			DefaultEnvironment: "production",
			DefaultStrategy:    "dockerfile",
		}},
		services: []deploy.Service{
			{ID: "svc-1", Name: "api", ProjectID: "proj-1"},
			{ID: "svc-2", Name: "worker", ProjectID: "proj-1"},
		},
	}
}

func TestFindMatchesNoRepoConfig(t *testing.T) {
	m := newTestMatcher(&stubStore{})
	matches, err := m.FindMatches(context.Background(), pushEvent("main", "src/a.go"))
	assert.NoError(t, err)
	assert.Empty(t, matches)
}

func TestFindMatchesFallsBackToFullName(t *testing.T) {
	store := baseStore()
	store.configs[0].RepoID = "different-id"
	store.rules = []Rule{{ID: "r1", ProjectID: "proj-1", EventType: event.TypePush}}

	m := newTestMatcher(store)
	matches, err := m.FindMatches(context.Background(), pushEvent("main"))
	assert.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestPathPatternsAreOptIn(t *testing.T) {
	store := baseStore()
	store.rules = []Rule{
		{ID: "paths", ProjectID: "proj-1", EventType: event.TypePush, PathPatterns: []string{"src/**"}},
		{ID: "no-paths", ProjectID: "proj-1", EventType: event.TypePush},
	}
	m := newTestMatcher(store)

	// an event touching only docs must not satisfy the src/** rule,
	// but must satisfy the rule without path patterns
	matches, err := m.FindMatches(context.Background(), pushEvent("main", "docs/readme.md"))
	assert.NoError(t, err)
	if assert.Len(t, matches, 1) {
		assert.Equal(t, "no-paths", matches[0].Rule.ID)
	}
}

func TestPathPatternsWithMatchingFile(t *testing.T) {
	store := baseStore()
	store.rules = []Rule{
		{ID: "paths", ProjectID: "proj-1", EventType: event.TypePush, PathPatterns: []string{"src/**"}},
	}
	m := newTestMatcher(store)
	matches, err := m.FindMatches(context.Background(), pushEvent("main", "src/server/main.go"))
	assert.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestPathPatternsExcludeAndRequireAll(t *testing.T) {
	store := baseStore()
	store.rules = []Rule{{
		ID: "strict", ProjectID: "proj-1", EventType: event.TypePush,
		PathPatterns:    []string{"src/**", "migrations/**"},
		ExcludePaths:    []string{"src/testdata/**"},
		RequireAllPaths: true,
	}}
	m := newTestMatcher(store)

	// both pattern groups touched
	matches, _ := m.FindMatches(context.Background(), pushEvent("main", "src/a.go", "migrations/001.sql"))
	assert.Len(t, matches, 1)

	// only one of the two
	matches, _ = m.FindMatches(context.Background(), pushEvent("main", "src/a.go"))
	assert.Empty(t, matches)

	// excluded file does not count towards src/**
	matches, _ = m.FindMatches(context.Background(), pushEvent("main", "src/testdata/fixture.go", "migrations/001.sql"))
	assert.Empty(t, matches)
}

func TestBranchPattern(t *testing.T) {
	store := baseStore()
	store.rules = []Rule{{
		ID: "main-only", ProjectID: "proj-1", EventType: event.TypePush, BranchPattern: "glob:main",
	}}
	m := newTestMatcher(store)

	matches, _ := m.FindMatches(context.Background(), pushEvent("main"))
	assert.Len(t, matches, 1)
	matches, _ = m.FindMatches(context.Background(), pushEvent("feature/x"))
	assert.Empty(t, matches)
}

func TestUnknownCustomConditionSkipsRule(t *testing.T) {
	store := baseStore()
	store.rules = []Rule{{
		ID: "guarded", ProjectID: "proj-1", EventType: event.TypePush, CustomCondition: "never-registered",
	}}
	m := newTestMatcher(store)
	matches, err := m.FindMatches(context.Background(), pushEvent("main"))
	assert.NoError(t, err)
	assert.Empty(t, matches, "an unresolvable custom condition must never pass")
}

func TestCustomConditionEvaluated(t *testing.T) {
	store := baseStore()
	store.rules = []Rule{{
		ID: "guarded", ProjectID: "proj-1", EventType: event.TypePush, CustomCondition: "weekday",
	}}
	conditions := NewConditionRegistry()
	allow := false
	conditions.Register("weekday", func(ev event.Event, rule Rule) (bool, error) {
		return allow, nil
	})
	m := NewMatcher(store, conditions, log.NewNopLogger())

	matches, _ := m.FindMatches(context.Background(), pushEvent("main"))
	assert.Empty(t, matches)

	allow = true
	matches, _ = m.FindMatches(context.Background(), pushEvent("main"))
	assert.Len(t, matches, 1)
}

func TestCustomConditionErrorSkipsOnlyThatRule(t *testing.T) {
	store := baseStore()
	store.rules = []Rule{
		{ID: "bad", ProjectID: "proj-1", EventType: event.TypePush, CustomCondition: "explodes", Priority: 10},
		{ID: "good", ProjectID: "proj-1", EventType: event.TypePush, Priority: 5},
	}
	conditions := NewConditionRegistry()
	conditions.Register("explodes", func(ev event.Event, rule Rule) (bool, error) {
		return false, errors.New("backend down")
	})
	m := NewMatcher(store, conditions, log.NewNopLogger())

	matches, err := m.FindMatches(context.Background(), pushEvent("main"))
	assert.NoError(t, err)
	if assert.Len(t, matches, 1) {
		assert.Equal(t, "good", matches[0].Rule.ID)
	}
}

func TestServiceResolutionChain(t *testing.T) {
	store := baseStore()
	store.rules = []Rule{
		{ID: "by-id", ProjectID: "proj-1", EventType: event.TypePush, ServiceID: "svc-2", Priority: 30},
		{ID: "by-name", ProjectID: "proj-1", EventType: event.TypePush, ServiceName: "worker", Priority: 20},
		{ID: "first", ProjectID: "proj-1", EventType: event.TypePush, Priority: 10},
	}
	m := newTestMatcher(store)
	matches, err := m.FindMatches(context.Background(), pushEvent("main"))
	assert.NoError(t, err)
	if assert.Len(t, matches, 3) {
		assert.Equal(t, "svc-2", matches[0].Service.ID)
		assert.Equal(t, "svc-2", matches[1].Service.ID)
		assert.Equal(t, "svc-1", matches[2].Service.ID)
	}
}

func TestPlaceholderServiceForEmptyProject(t *testing.T) {
	store := baseStore()
	store.services = nil
	store.rules = []Rule{{ID: "r1", ProjectID: "proj-1", EventType: event.TypePush}}
	m := newTestMatcher(store)

	matches, err := m.FindMatches(context.Background(), pushEvent("main"))
	assert.NoError(t, err)
	if assert.Len(t, matches, 1) {
		assert.Equal(t, "placeholder:proj-1", matches[0].Service.ID)
	}
}

func TestMatchesOrderedByPriorityAndNotDeduplicated(t *testing.T) {
	store := baseStore()
	store.rules = []Rule{
		{ID: "low", ProjectID: "proj-1", EventType: event.TypePush, Priority: 1},
		{ID: "high", ProjectID: "proj-1", EventType: event.TypePush, Priority: 100},
	}
	m := newTestMatcher(store)
	matches, _ := m.FindMatches(context.Background(), pushEvent("main"))
	if assert.Len(t, matches, 2) {
		assert.Equal(t, "high", matches[0].Rule.ID)
		assert.Equal(t, "low", matches[1].Rule.ID)
	}
}

func TestRuleOverridesWinOverDefaults(t *testing.T) {
	store := baseStore()
	store.rules = []Rule{{
		ID: "preview", ProjectID: "proj-1", EventType: event.TypePush,
		Action:              ActionPreview,
		EnvironmentOverride: "preview",
		StrategyOverride:    "static",
	}}
	m := newTestMatcher(store)
	matches, _ := m.FindMatches(context.Background(), pushEvent("main"))
	if assert.Len(t, matches, 1) {
		cfg := matches[0].Config
		assert.Equal(t, "preview", cfg.Environment)
		assert.Equal(t, "static", cfg.Strategy)
		assert.Equal(t, ActionPreview, cfg.Action)
		assert.Equal(t, "main", cfg.Branch) // falls through to the event branch
	}
}

func TestPullRequestConditions(t *testing.T) {
	store := baseStore()
	store.rules = []Rule{{
		ID: "pr", ProjectID: "proj-1", EventType: event.TypePullRequest,
		PRActions:       []string{"opened", "synchronize"},
		PRLabels:        []string{"deploy"},
		PRTargetPattern: "glob:main",
	}}
	m := newTestMatcher(store)

	ev := event.Event{
		Type:         event.TypePullRequest,
		RepoID:       "repo-1",
		RepoFullName: "org/shop",
		PullRequest: &event.PullRequest{
			Number: 7, Action: "opened", Labels: []string{"deploy", "frontend"},
			SourceBranch: "feature/x", TargetBranch: "main",
		},
	}
	matches, _ := m.FindMatches(context.Background(), ev)
	assert.Len(t, matches, 1)

	ev.PullRequest.Labels = []string{"frontend"}
	matches, _ = m.FindMatches(context.Background(), ev)
	assert.Empty(t, matches)

	ev.PullRequest.Labels = []string{"deploy"}
	ev.PullRequest.Action = "closed"
	matches, _ = m.FindMatches(context.Background(), ev)
	assert.Empty(t, matches)
}

func TestTagPattern(t *testing.T) {
	store := baseStore()
	store.rules = []Rule{{
		ID: "releases", ProjectID: "proj-1", EventType: event.TypeTag, TagPattern: "semver:>=1.0.0",
	}}
	m := newTestMatcher(store)

	ev := event.Event{Type: event.TypeTag, RepoID: "repo-1", RepoFullName: "org/shop", Tag: "v1.2.0"}
	matches, _ := m.FindMatches(context.Background(), ev)
	assert.Len(t, matches, 1)

	ev.Tag = "v0.9.0"
	matches, _ = m.FindMatches(context.Background(), ev)
	assert.Empty(t, matches)
}
