package daemon

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/stretchr/testify/assert"

	"github.com/berth-deploy/berth/pkg/builder"
	buildermock "github.com/berth-deploy/berth/pkg/builder/mock"
	"github.com/berth-deploy/berth/pkg/cleanup"
	containermock "github.com/berth-deploy/berth/pkg/container/mock"
	"github.com/berth-deploy/berth/pkg/deploy"
	"github.com/berth-deploy/berth/pkg/event"
	"github.com/berth-deploy/berth/pkg/job"
	"github.com/berth-deploy/berth/pkg/provider"
	providermock "github.com/berth-deploy/berth/pkg/provider/mock"
	"github.com/berth-deploy/berth/pkg/rules"
	"github.com/berth-deploy/berth/pkg/store"
)

type fixture struct {
	daemon *Daemon
	mem    *store.Mem
	stop   chan struct{}
	wg     sync.WaitGroup
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := store.NewMem()
	ctx := context.Background()

	mem.UpsertProject(ctx, deploy.Project{ID: "p1", Name: "shop"})
	mem.UpsertService(ctx, deploy.Service{
		ID:        "svc-1",
		Name:      "api",
		ProjectID: "p1",
		Provider:  "git",
		Builder:   builder.StrategyContainer,
		Port:      8080,
	})
	mem.UpsertRepoConfig(ctx, rules.RepoConfig{
		ID:            "rc1",
		RepoFullName:  "acme/shop",
		ProjectID:     "p1",
		DefaultBranch: "main",
	})
	mem.UpsertRule(ctx, rules.Rule{
		ID:            "r1",
		ProjectID:     "p1",
		EventType:     event.TypePush,
		BranchPattern: "glob:main",
		Action:        rules.ActionDeploy,
		ServiceID:     "svc-1",
	})

	providers := provider.NewRegistry()
	providers.Register("git", &providermock.Provider{})
	builders := builder.NewRegistry()
	builders.Register(builder.StrategyContainer, &buildermock.Builder{})

	runtime := &containermock.Runtime{}
	orch := deploy.NewOrchestrator(providers, builders, runtime, log.NewNopLogger())
	orch.Recorder = mem

	f := &fixture{mem: mem, stop: make(chan struct{})}
	f.daemon = &Daemon{
		Store:        mem,
		Matcher:      rules.NewMatcher(mem, rules.NewConditionRegistry(), log.NewNopLogger()),
		Orchestrator: orch,
		Cleaner:      cleanup.NewCleaner(mem, runtime, log.NewNopLogger()),
		Jobs:         job.NewQueue(f.stop, &f.wg),
		Logger:       log.NewNopLogger(),
		LoopVars: LoopVars{
			CleanupInterval: time.Hour,
			SweepInterval:   time.Hour,
			StaleThreshold:  time.Hour,
		},
	}
	t.Cleanup(func() {
		close(f.stop)
		f.wg.Wait()
	})
	return f
}

func pushEvent() event.Event {
	return event.Event{
		Type:         event.TypePush,
		RepoFullName: "acme/shop",
		Branch:       "main",
		After:        "abc123",
	}
}

// runNext dequeues and executes one job, the way the loop would.
func (f *fixture) runNext(t *testing.T) deploy.Result {
	t.Helper()
	select {
	case j := <-f.daemon.Jobs.Ready():
		result, _ := j.Do(log.NewNopLogger())
		return result
	case <-time.After(time.Second):
		t.Fatal("no job became ready")
		return deploy.Result{}
	}
}

func TestHandleEventEnqueuesAndRunsDeployment(t *testing.T) {
	f := newFixture(t)

	created, err := f.daemon.HandleEvent(context.Background(), pushEvent())
	assert.NoError(t, err)
	if !assert.Len(t, created, 1) {
		return
	}
	assert.Equal(t, deploy.StatusQueued, created[0].Status)
	assert.Equal(t, "svc-1", created[0].ServiceID)
	assert.Equal(t, "abc123", created[0].Trigger.Commit)

	result := f.runNext(t)
	assert.Equal(t, deploy.StatusSuccess, result.Status)

	got, ok, _ := f.mem.DeploymentByID(context.Background(), created[0].ID)
	assert.True(t, ok)
	assert.Equal(t, deploy.StatusSuccess, got.Status)
	assert.Equal(t, deploy.PhaseActive, got.Phase)
}

func TestHandleEventNonMatchingBranch(t *testing.T) {
	f := newFixture(t)
	ev := pushEvent()
	ev.Branch = "feature/x"

	created, err := f.daemon.HandleEvent(context.Background(), ev)
	assert.NoError(t, err)
	assert.Empty(t, created)
	assert.Zero(t, f.daemon.Jobs.Len())
}

func TestHandleEventSkipShadowsLowerPriorityDeploy(t *testing.T) {
	f := newFixture(t)
	// the skip rule outranks the deploy rule, and both match
	f.mem.UpsertRule(context.Background(), rules.Rule{
		ID:        "r0",
		ProjectID: "p1",
		EventType: event.TypePush,
		Action:    rules.ActionSkip,
		Priority:  10,
		ServiceID: "svc-1",
	})

	created, err := f.daemon.HandleEvent(context.Background(), pushEvent())
	assert.NoError(t, err)
	assert.Empty(t, created)
	assert.Zero(t, f.daemon.Jobs.Len())
}

func TestHandleEventLowerPrioritySkipDoesNotShadow(t *testing.T) {
	f := newFixture(t)
	// the deploy rule outranks the skip rule; skip only wins downward
	f.mem.UpsertRule(context.Background(), rules.Rule{
		ID:        "r2",
		ProjectID: "p1",
		EventType: event.TypePush,
		Action:    rules.ActionSkip,
		Priority:  -10,
		ServiceID: "svc-1",
	})

	created, err := f.daemon.HandleEvent(context.Background(), pushEvent())
	assert.NoError(t, err)
	assert.Len(t, created, 1)
}

func TestSubmitManualDeployment(t *testing.T) {
	f := newFixture(t)

	dep, err := f.daemon.Submit(context.Background(), "svc-1", deploy.EnvStaging, "ops@acme")
	assert.NoError(t, err)
	assert.Equal(t, deploy.StatusQueued, dep.Status)
	assert.Equal(t, deploy.EnvStaging, dep.Env)
	assert.Equal(t, "manual", dep.Trigger.Type)
	assert.Equal(t, "ops@acme", dep.Trigger.RequestedBy)

	result := f.runNext(t)
	assert.Equal(t, deploy.StatusSuccess, result.Status)
}

func TestSubmitUnknownService(t *testing.T) {
	f := newFixture(t)
	_, err := f.daemon.Submit(context.Background(), "nope", deploy.EnvProduction, "")
	assert.Error(t, err)
}

func TestPreviewActionTargetsPreviewEnvironment(t *testing.T) {
	f := newFixture(t)
	f.mem.UpsertRule(context.Background(), rules.Rule{
		ID:        "rpr",
		ProjectID: "p1",
		EventType: event.TypePullRequest,
		Action:    rules.ActionPreview,
		ServiceID: "svc-1",
	})

	created, err := f.daemon.HandleEvent(context.Background(), event.Event{
		Type:         event.TypePullRequest,
		RepoFullName: "acme/shop",
		PullRequest:  &event.PullRequest{Number: 7, Action: "opened"},
	})
	assert.NoError(t, err)
	if assert.Len(t, created, 1) {
		assert.Equal(t, deploy.EnvPreview, created[0].Env)
	}
}

func TestReclaimStaleFailsOrphanedDeployments(t *testing.T) {
	f := newFixture(t)
	dep, _ := f.mem.CreateDeployment(context.Background(), deploy.Deployment{ServiceID: "svc-1"})

	// a negative threshold makes every in-flight deployment stale
	f.daemon.StaleThreshold = -time.Hour
	f.daemon.reclaimStale(context.Background(), log.NewNopLogger())

	got, ok, _ := f.mem.DeploymentByID(context.Background(), dep.ID)
	assert.True(t, ok)
	assert.Equal(t, deploy.StatusFailed, got.Status)
	assert.Equal(t, deploy.PhaseFailed, got.Phase)
	assert.Contains(t, got.Error, "reclaimed")
}

func TestAutoCleanupHonoursOptIn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mem.UpsertService(ctx, deploy.Service{
		ID:        "svc-2",
		Name:      "worker",
		ProjectID: "p1",
		Retention: deploy.RetentionPolicy{MaxSuccessfulDeployments: 1, KeepArtifacts: true, AutoCleanup: true},
	})
	for i := 0; i < 3; i++ {
		d, _ := f.mem.CreateDeployment(ctx, deploy.Deployment{ServiceID: "svc-2"})
		f.mem.UpdateStatus(ctx, d.ID, deploy.StatusSuccess)
		// svc-1 has no retention configured and must be left alone
		d1, _ := f.mem.CreateDeployment(ctx, deploy.Deployment{ServiceID: "svc-1"})
		f.mem.UpdateStatus(ctx, d1.ID, deploy.StatusSuccess)
	}

	f.daemon.runAutoCleanup(ctx, log.NewNopLogger())

	kept, _ := f.mem.DeploymentsForService(ctx, "svc-2")
	assert.Len(t, kept, 1)
	untouched, _ := f.mem.DeploymentsForService(ctx, "svc-1")
	assert.Len(t, untouched, 3)
}
