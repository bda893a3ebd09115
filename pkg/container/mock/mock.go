package mock

import (
	"context"
	"sync"

	"github.com/berth-deploy/berth/pkg/container"
)

// Runtime records lifecycle calls for assertions and lets tests
// inject failures per operation.
type Runtime struct {
	mu sync.Mutex

	StopErr   error
	RemoveErr error
	ImageErr  error

	Stopped       []string
	Removed       []string
	RemovedImages []string
}

func (m *Runtime) StopContainer(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Stopped = append(m.Stopped, id)
	return m.StopErr
}

func (m *Runtime) RemoveContainer(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Removed = append(m.Removed, id)
	return m.RemoveErr
}

func (m *Runtime) RemoveImage(ctx context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RemovedImages = append(m.RemovedImages, ref)
	return m.ImageErr
}

var _ container.Runtime = &Runtime{}
