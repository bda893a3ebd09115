// Package docker is the containerised build strategy: it builds an
// image from the fetched source with the docker CLI and runs one
// container from it. It backs both the explicit "container" strategy
// and the degraded fallback path, which hands it a generated image
// definition instead of one from the repository.
package docker

import (
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"

	"github.com/berth-deploy/berth/pkg/builder"
)

// generatedDockerfile is the file name used when the image definition
// comes from configuration rather than the repository.
const generatedDockerfile = "Dockerfile.berth"

type Builder struct {
	Logger log.Logger
	// Network, when set, attaches every container to this docker
	// network so the reverse proxy can reach it by name.
	Network string
}

func New(logger log.Logger) *Builder {
	return &Builder{Logger: logger}
}

func (b *Builder) Deploy(ctx context.Context, input builder.Input) (builder.Result, error) {
	image := ImageName(input)
	name := ContainerName(input)

	buildArgs := []string{"build", "-t", image}
	if dockerfile, ok := input.Config["dockerfile"].(string); ok && dockerfile != "" {
		path := filepath.Join(input.SourcePath, generatedDockerfile)
		if err := ioutil.WriteFile(path, []byte(dockerfile), 0644); err != nil {
			return builder.Result{}, errors.Wrap(err, "writing image definition")
		}
		buildArgs = append(buildArgs, "-f", path)
	}
	buildArgs = append(buildArgs, input.SourcePath)

	if out, err := b.docker(ctx, buildArgs...); err != nil {
		return builder.Result{Status: builder.StatusFailed, Message: out}, nil
	}

	// Replacing a container of the same name makes redeploys converge.
	b.docker(ctx, "rm", "-f", name)

	runArgs := []string{"run", "-d", "--name", name,
		"--label", "berth.service=" + input.ServiceID,
		"--label", "berth.environment=" + input.Environment,
	}
	if b.Network != "" {
		runArgs = append(runArgs, "--network", b.Network)
	}
	if input.Port > 0 {
		runArgs = append(runArgs, "--publish", fmt.Sprintf("%d", input.Port))
	}
	runArgs = append(runArgs, image)

	out, err := b.docker(ctx, runArgs...)
	if err != nil {
		return builder.Result{Status: builder.StatusFailed, Message: out}, nil
	}
	containerID := strings.TrimSpace(out)

	b.Logger.Log("built", image, "container", name, "id", containerID)
	return builder.Result{
		Status:       builder.StatusSuccess,
		ContainerIDs: []string{containerID},
		Containers: []builder.Container{{
			ID:    containerID,
			Name:  name,
			Image: image,
			Port:  input.Port,
		}},
	}, nil
}

// ImageName is stable for a service and tag, so rebuilding the same
// commit overwrites rather than accumulates.
func ImageName(input builder.Input) string {
	return fmt.Sprintf("berth/%s:%s", input.ServiceName, input.ImageTag)
}

// ContainerName embeds the tag so each deployment's container is
// individually addressable by the retention engine.
func ContainerName(input builder.Input) string {
	return fmt.Sprintf("%s-%s-%s", input.ServiceName, input.Environment, input.ImageTag)
}

// docker runs the CLI, returning combined output for diagnostics.
// The strategy reports build problems in the Result so the pipeline
// can surface the tool's own message verbatim.
func (b *Builder) docker(ctx context.Context, args ...string) (string, error) {
	c := exec.CommandContext(ctx, "docker", args...)
	out := &bytes.Buffer{}
	c.Stdout = out
	c.Stderr = out
	err := c.Run()
	return out.String(), err
}

var _ builder.Builder = &Builder{}
