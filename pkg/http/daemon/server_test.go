package daemon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/berth-deploy/berth/pkg/api"
	"github.com/berth-deploy/berth/pkg/cleanup"
	"github.com/berth-deploy/berth/pkg/deploy"
	bertherr "github.com/berth-deploy/berth/pkg/errors"
	"github.com/berth-deploy/berth/pkg/event"
	transport "github.com/berth-deploy/berth/pkg/http"
	"github.com/berth-deploy/berth/pkg/http/client"
)

// stubServer scripts the api.Server side of a client-server
// round trip.
type stubServer struct {
	deployments map[string]deploy.Deployment
	lastDeploy  api.DeployRequest
	lastEvent   event.Event
	lastCleanup string
}

func (s *stubServer) Ping(context.Context) error { return nil }

func (s *stubServer) Version(context.Context) (string, error) { return "test-version", nil }

func (s *stubServer) NotifyEvent(_ context.Context, ev event.Event) ([]deploy.Deployment, error) {
	s.lastEvent = ev
	return []deploy.Deployment{{ID: "d1", Status: deploy.StatusQueued}}, nil
}

func (s *stubServer) Deploy(_ context.Context, req api.DeployRequest) (deploy.Deployment, error) {
	s.lastDeploy = req
	return deploy.Deployment{ID: "d2", ServiceID: req.ServiceID, Status: deploy.StatusQueued}, nil
}

func (s *stubServer) DeploymentStatus(_ context.Context, id string) (deploy.Deployment, error) {
	dep, ok := s.deployments[id]
	if !ok {
		return deploy.Deployment{}, bertherr.DeploymentNotFound(id)
	}
	return dep, nil
}

func (s *stubServer) ListDeployments(_ context.Context, serviceID string) ([]deploy.Deployment, error) {
	var out []deploy.Deployment
	for _, d := range s.deployments {
		if d.ServiceID == serviceID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *stubServer) ListServices(context.Context) ([]deploy.Service, error) {
	return []deploy.Service{{ID: "svc-1", Name: "api"}}, nil
}

func (s *stubServer) CleanupService(_ context.Context, serviceID string) (cleanup.Result, error) {
	s.lastCleanup = serviceID
	return cleanup.Result{ServiceID: serviceID, DeletedCount: 2}, nil
}

func (s *stubServer) PreviewCleanup(_ context.Context, serviceID string) (cleanup.Preview, error) {
	return cleanup.Preview{ServiceID: serviceID, WillDelete: 2, WillKeep: 3}, nil
}

func (s *stubServer) CleanupAll(context.Context) ([]cleanup.Result, error) {
	return []cleanup.Result{{ServiceID: "svc-1"}}, nil
}

func newTestClient(t *testing.T, stub *stubServer) (*client.Client, func()) {
	t.Helper()
	ts := httptest.NewServer(NewHandler(stub, NewRouter()))
	c := client.New(http.DefaultClient, transport.NewAPIRouter(), ts.URL, "")
	return c, ts.Close
}

func TestPingAndVersion(t *testing.T) {
	c, done := newTestClient(t, &stubServer{})
	defer done()

	assert.NoError(t, c.Ping(context.Background()))
	v, err := c.Version(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "test-version", v)
}

func TestNotifyRoundTrip(t *testing.T) {
	stub := &stubServer{}
	c, done := newTestClient(t, stub)
	defer done()

	created, err := c.NotifyEvent(context.Background(), event.Event{
		Type:         event.TypePush,
		RepoFullName: "acme/shop",
		Branch:       "main",
	})
	assert.NoError(t, err)
	assert.Len(t, created, 1)
	assert.Equal(t, "acme/shop", stub.lastEvent.RepoFullName)
}

func TestDeployRoundTrip(t *testing.T) {
	stub := &stubServer{}
	c, done := newTestClient(t, stub)
	defer done()

	dep, err := c.Deploy(context.Background(), api.DeployRequest{
		ServiceID:   "svc-1",
		Environment: deploy.EnvStaging,
		RequestedBy: "ops@acme",
	})
	assert.NoError(t, err)
	assert.Equal(t, "svc-1", dep.ServiceID)
	assert.Equal(t, deploy.EnvStaging, stub.lastDeploy.Environment)
}

func TestDeploymentStatusNotFound(t *testing.T) {
	c, done := newTestClient(t, &stubServer{})
	defer done()

	_, err := c.DeploymentStatus(context.Background(), "ghost")
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "ghost")
	}
}

func TestCleanupRoutes(t *testing.T) {
	stub := &stubServer{}
	c, done := newTestClient(t, stub)
	defer done()

	result, err := c.CleanupService(context.Background(), "svc-1")
	assert.NoError(t, err)
	assert.Equal(t, 2, result.DeletedCount)
	assert.Equal(t, "svc-1", stub.lastCleanup)

	preview, err := c.PreviewCleanup(context.Background(), "svc-1")
	assert.NoError(t, err)
	assert.Equal(t, 2, preview.WillDelete)
	assert.Equal(t, 3, preview.WillKeep)

	all, err := c.CleanupAll(context.Background())
	assert.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestUnknownRouteIsAPINotFound(t *testing.T) {
	ts := httptest.NewServer(NewHandler(&stubServer{}, NewRouter()))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v0/nope")
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
