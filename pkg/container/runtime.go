// Package container is the narrow lifecycle contract the platform
// drives a container runtime through. The platform does not
// implement a runtime; it stops, removes and probes containers that
// build strategies started.
package container

import "context"

// Runtime is the subset of container-engine operations the
// orchestrator, rollback and cleanup need. Removal of an
// already-removed container or image is a no-op, not an error, so
// re-running a partially failed teardown converges.
type Runtime interface {
	StopContainer(ctx context.Context, id string) error
	RemoveContainer(ctx context.Context, id string) error
	RemoveImage(ctx context.Context, ref string) error
}
