package routing

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-kit/kit/log"
	"github.com/stretchr/testify/assert"

	"github.com/berth-deploy/berth/pkg/deploy"
)

type stubTemplates struct {
	templates map[string]string
}

func (s *stubTemplates) RoutingTemplate(_ context.Context, serviceID string) (string, error) {
	return s.templates[serviceID], nil
}

type recordingWriter struct {
	writes map[string]string
	count  int
}

func (w *recordingWriter) WriteConfig(_ context.Context, serviceID, rendered string) error {
	if w.writes == nil {
		w.writes = map[string]string{}
	}
	w.writes[serviceID] = rendered
	w.count++
	return nil
}

const proxyTemplate = `server ${services.api.domain} {
  proxy ${services.api.container.name}:${services.api.container.port}
}`

func runtimeValues() deploy.RoutingRuntime {
	return deploy.RoutingRuntime{
		ServiceName:   "api",
		ContainerName: "api-1",
		Port:          8080,
		Domain:        "api.example.com",
		Project:       "shop",
		URL:           "https://api.example.com",
	}
}

func TestUpdateRoutingRendersTemplate(t *testing.T) {
	templates := &stubTemplates{templates: map[string]string{"svc-1": proxyTemplate}}
	writer := &recordingWriter{}
	r := NewReconciler(templates, writer, log.NewNopLogger())

	err := r.UpdateRouting(context.Background(), "svc-1", runtimeValues())
	assert.NoError(t, err)
	assert.Equal(t, "server api.example.com {\n  proxy api-1:8080\n}", writer.writes["svc-1"])
}

func TestUpdateRoutingNoTemplateIsNoop(t *testing.T) {
	writer := &recordingWriter{}
	r := NewReconciler(&stubTemplates{}, writer, log.NewNopLogger())

	err := r.UpdateRouting(context.Background(), "svc-1", runtimeValues())
	assert.NoError(t, err)
	assert.Zero(t, writer.count)
}

func TestUpdateRoutingReportsAllUnresolved(t *testing.T) {
	templates := &stubTemplates{templates: map[string]string{
		"svc-1": "${services.api.nope} ${env.ALSO_NOPE}",
	}}
	r := NewReconciler(templates, &recordingWriter{}, log.NewNopLogger())

	err := r.UpdateRouting(context.Background(), "svc-1", runtimeValues())
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "services.api.nope")
		assert.Contains(t, err.Error(), "env.ALSO_NOPE")
	}
}

func TestFileConfigWriterIdempotent(t *testing.T) {
	dir, err := ioutil.TempDir("", "routing-test")
	assert.NoError(t, err)
	defer os.RemoveAll(dir)

	w := &FileConfigWriter{Root: dir}
	assert.NoError(t, w.WriteConfig(context.Background(), "svc-1", "config v1"))

	path := filepath.Join(dir, "svc-1.conf")
	content, err := ioutil.ReadFile(path)
	assert.NoError(t, err)
	assert.Equal(t, "config v1", string(content))
	info1, _ := os.Stat(path)

	// identical rewrite leaves the file untouched
	assert.NoError(t, w.WriteConfig(context.Background(), "svc-1", "config v1"))
	info2, _ := os.Stat(path)
	assert.Equal(t, info1.ModTime(), info2.ModTime())

	// changed content replaces it
	assert.NoError(t, w.WriteConfig(context.Background(), "svc-1", "config v2"))
	content, _ = ioutil.ReadFile(path)
	assert.Equal(t, "config v2", string(content))
}
