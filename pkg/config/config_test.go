package config

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/berth-deploy/berth/pkg/event"
	"github.com/berth-deploy/berth/pkg/rules"
	"github.com/berth-deploy/berth/pkg/store"
)

const sampleConfig = `berthConfigVersion: v1
listen: ":8099"
routingDir: /tmp/berth-routing
cleanupInterval: 30m
staleThreshold: 10m
projects:
  - id: p1
    name: shop
services:
  - id: svc-1
    name: api
    projectId: p1
    provider: git
    builder: container
    port: 8080
    retention:
      maxSuccessfulDeployments: 5
      autoCleanup: true
repos:
  - id: rc1
    repoFullName: acme/shop
    projectId: p1
    defaultBranch: main
rules:
  - id: r1
    projectId: p1
    eventType: push
    branchPattern: "glob:main"
    action: deploy
    serviceId: svc-1
routingTemplates:
  svc-1: "server ${services.api.domain} {}"
`

func ruleWith(id, serviceID string) rules.Rule {
	return rules.Rule{ID: id, ProjectID: "p1", EventType: event.TypePush, ServiceID: serviceID}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir, err := ioutil.TempDir("", "berth-config")
	assert.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	path := filepath.Join(dir, ConfigName)
	assert.NoError(t, ioutil.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadAppliesDefaultsAndOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	assert.NoError(t, err)

	assert.Equal(t, ":8099", cfg.Listen)
	assert.Equal(t, 30*time.Minute, cfg.CleanupInterval.Duration)
	assert.Equal(t, 10*time.Minute, cfg.StaleThreshold.Duration)
	// untouched values keep their defaults
	assert.Equal(t, 5*time.Minute, cfg.SweepInterval.Duration)
	assert.Equal(t, "fmt", cfg.LogFormat)

	if assert.Len(t, cfg.Services, 1) {
		assert.Equal(t, 5, cfg.Services[0].Retention.MaxSuccessfulDeployments)
		assert.True(t, cfg.Services[0].Retention.AutoCleanup)
	}
}

func TestLoadRejectsWrongVersion(t *testing.T) {
	_, err := Load(writeConfig(t, "berthConfigVersion: v0\n"))
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "unsupported config version")
	}
}

func TestValidateCatchesDanglingReferences(t *testing.T) {
	cfg := Defaults()
	cfg.Rules = append(cfg.Rules, ruleWith("r1", "ghost"))
	err := cfg.Validate()
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "unknown service")
	}
}

func TestSeedPopulatesStore(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	assert.NoError(t, err)

	mem := store.NewMem()
	ctx := context.Background()
	assert.NoError(t, cfg.Seed(ctx, mem))

	svc, ok, _ := mem.ServiceByID(ctx, "svc-1")
	assert.True(t, ok)
	assert.Equal(t, "api", svc.Name)

	rs, _ := mem.RulesForProject(ctx, "p1", event.TypePush)
	assert.Len(t, rs, 1)

	rc, ok, _ := mem.RepoConfigByFullName(ctx, "acme/shop")
	assert.True(t, ok)
	assert.Equal(t, "main", rc.DefaultBranch)

	tmpl, _ := mem.RoutingTemplate(ctx, "svc-1")
	assert.Contains(t, tmpl, "services.api.domain")
}
