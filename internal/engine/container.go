// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"bytes"
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pdiddy/nbforge/internal/notebook"
	"github.com/pdiddy/nbforge/pkg/types"
)

const (
	binDocker = "docker"
	binPodman = "podman"

	// DefaultImage is the image used when neither the flag nor the config
	// names one. It executes the notebook it receives on stdin and writes
	// the executed document to stdout.
	DefaultImage = "jupyter/minimal-notebook"
)

// containerRuntime wraps one container binary. Docker and podman share the
// same logic; they differ in binary name and the image existence check.
type containerRuntime struct {
	bin           string
	imageCheckCmd []string
	exec          executor
}

func (r *containerRuntime) available() bool {
	if _, err := r.exec.LookPath(r.bin); err != nil {
		return false
	}
	return r.exec.RunSilent(r.bin, "info") == nil
}

func (r *containerRuntime) imageExists(image string) error {
	args := make([]string, 0, len(r.imageCheckCmd)+1)
	args = append(args, r.imageCheckCmd...)
	args = append(args, image)

	if err := r.exec.RunSilent(r.bin, args...); err != nil {
		return fmt.Errorf("image %s not found in %s: %w", image, r.bin, err)
	}
	return nil
}

func newDockerRuntime(exec executor) *containerRuntime {
	return &containerRuntime{bin: binDocker, imageCheckCmd: []string{"image", "inspect"}, exec: exec}
}

func newPodmanRuntime(exec executor) *containerRuntime {
	return &containerRuntime{bin: binPodman, imageCheckCmd: []string{"image", "exists"}, exec: exec}
}

// detectRuntime tries docker first, falls back to podman.
func detectRuntime(exec executor) (*containerRuntime, error) {
	docker := newDockerRuntime(exec)
	if docker.available() {
		return docker, nil
	}

	podman := newPodmanRuntime(exec)
	if podman.available() {
		return podman, nil
	}

	return nil, fmt.Errorf(
		"no container runtime available: neither %s nor %s found or operational",
		binDocker, binPodman,
	)
}

// Container executes notebooks by piping them through a container image
// whose entrypoint reads a notebook on stdin and writes the executed
// document to stdout.
type Container struct {
	runtime *containerRuntime
	image   string
	logger  *zap.Logger
}

// NewContainer detects a container runtime (docker, then podman) and builds
// the engine around it.
func NewContainer(image string, logger *zap.Logger) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	rt, err := detectRuntime(defaultExec)
	if err != nil {
		return nil, err
	}
	if image == "" {
		image = DefaultImage
	}
	return &Container{runtime: rt, image: image, logger: logger}, nil
}

func (c *Container) Name() types.EngineName { return types.EngineContainer }

func (c *Container) Execute(ctx context.Context, nb *notebook.Notebook, opts Options) (*notebook.Notebook, error) {
	image := opts.Image
	if image == "" {
		image = c.image
	}
	if err := c.runtime.imageExists(image); err != nil {
		return nil, err
	}

	data, err := nb.Bytes()
	if err != nil {
		return nil, err
	}

	c.logger.Debug("executing notebook",
		zap.String("engine", string(types.EngineContainer)),
		zap.String("runtime", c.runtime.bin),
		zap.String("image", image))

	args := []string{"run", "--rm", "-i", image}
	var stdout, stderr bytes.Buffer
	runErr := c.runtime.exec.RunPiped(ctx, opts.Cwd, c.runtime.bin, args, bytes.NewReader(data), &stdout, &stderr)
	if runErr != nil {
		runErr = processError(fmt.Sprintf("%s container %s", c.runtime.bin, image), runErr, stderr.String())
	}

	executed, parseErr := notebook.Parse(stdout.Bytes())
	if parseErr != nil {
		if runErr != nil {
			return nil, runErr
		}
		return nil, fmt.Errorf("container output: %w", parseErr)
	}
	return executed, runErr
}
