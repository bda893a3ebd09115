package container

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"
)

// DockerRuntime drives a local container engine through its CLI, the
// same way the daemon would be operated by hand. The binary defaults
// to "docker" but anything CLI-compatible (podman) works.
type DockerRuntime struct {
	Binary string
	Logger log.Logger
}

func NewDockerRuntime(logger log.Logger) *DockerRuntime {
	return &DockerRuntime{Binary: "docker", Logger: logger}
}

func (d *DockerRuntime) StopContainer(ctx context.Context, id string) error {
	return d.run(ctx, "stop", id)
}

func (d *DockerRuntime) RemoveContainer(ctx context.Context, id string) error {
	return d.run(ctx, "rm", "-f", id)
}

func (d *DockerRuntime) RemoveImage(ctx context.Context, ref string) error {
	return d.run(ctx, "rmi", ref)
}

func (d *DockerRuntime) run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, d.Binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	begin := args[0]
	err := cmd.Run()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		// Removing something that is already gone converges to the
		// state we wanted; treat it as done.
		if strings.Contains(msg, "No such container") || strings.Contains(msg, "No such image") {
			return nil
		}
		if d.Logger != nil {
			d.Logger.Log("cmd", d.Binary+" "+begin, "err", err, "stderr", msg)
		}
		return errors.Wrapf(err, "%s %s: %s", d.Binary, strings.Join(args, " "), msg)
	}
	return nil
}

var _ Runtime = &DockerRuntime{}
