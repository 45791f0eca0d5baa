// Package docker wraps the few Docker Engine calls that cannot go through
// compose: volume existence checks and the one-shot privileged helper
// container used to fix cache permissions.
package docker

import (
	"context"
	"io"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// API is the subset of client.APIClient used here.
type API interface {
	VolumeInspect(ctx context.Context, volumeID string) (volume.Volume, error)
	ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	Close() error
}

var _ API = (*client.Client)(nil)

// NewClient connects to the engine configured by the DOCKER_* environment.
func NewClient() (*client.Client, error) {
	c, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, errors.Wrap(err, "create docker client")
	}
	return c, nil
}

type Engine struct {
	api API
}

func New(api API) *Engine {
	return &Engine{api: api}
}

func (e *Engine) Close() error {
	return e.api.Close()
}

// VolumeExists reports whether a named volume exists. Only a not-found
// answer counts as absent; any other failure is returned.
func (e *Engine) VolumeExists(ctx context.Context, name string) (bool, error) {
	if name == "" {
		return false, errors.New("empty volume name")
	}
	_, err := e.api.VolumeInspect(ctx, name)
	if err == nil {
		return true, nil
	}
	if cerrdefs.IsNotFound(err) {
		return false, nil
	}
	return false, errors.Wrapf(err, "inspect volume %s", name)
}

type HelperSpec struct {
	Image  string
	Volume string
	Target string
	Cmd    []string
}

// RunPrivilegedHelper runs Cmd in a throwaway privileged container with
// Volume mounted at Target, waits for it and removes it. The image is pulled
// only when the engine does not have it.
func (e *Engine) RunPrivilegedHelper(ctx context.Context, spec HelperSpec) error {
	if spec.Image == "" || spec.Volume == "" || len(spec.Cmd) == 0 {
		return errors.New("helper needs image, volume and command")
	}
	if spec.Target == "" {
		spec.Target = "/cache"
	}

	cfg := &container.Config{
		Image: spec.Image,
		Cmd:   spec.Cmd,
	}
	hostCfg := &container.HostConfig{
		Privileged: true,
		Mounts: []mount.Mount{{
			Type:   mount.TypeVolume,
			Source: spec.Volume,
			Target: spec.Target,
		}},
	}

	created, err := e.api.ContainerCreate(ctx, cfg, hostCfg, nil, nil, "")
	if err != nil && cerrdefs.IsNotFound(err) {
		if pullErr := e.pull(ctx, spec.Image); pullErr != nil {
			return pullErr
		}
		created, err = e.api.ContainerCreate(ctx, cfg, hostCfg, nil, nil, "")
	}
	if err != nil {
		return errors.Wrap(err, "create helper container")
	}
	defer func() {
		// Removal must happen even when ctx was canceled mid-run.
		if rmErr := e.api.ContainerRemove(context.WithoutCancel(ctx), created.ID, container.RemoveOptions{Force: true}); rmErr != nil {
			log.Warn().Err(rmErr).Str("container", created.ID).Msg("failed to remove helper container")
		}
	}()

	if err := e.api.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return errors.Wrap(err, "start helper container")
	}

	statusCh, errCh := e.api.ContainerWait(ctx, created.ID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			return errors.Wrap(err, "wait helper container")
		}
	case st := <-statusCh:
		if st.Error != nil && st.Error.Message != "" {
			return errors.Errorf("helper container: %s", st.Error.Message)
		}
		if st.StatusCode != 0 {
			return errors.Errorf("helper container exited with %d", st.StatusCode)
		}
	}
	log.Debug().Str("volume", spec.Volume).Strs("cmd", spec.Cmd).Msg("helper container finished")
	return nil
}

func (e *Engine) pull(ctx context.Context, ref string) error {
	log.Info().Str("image", ref).Msg("pulling helper image")
	rc, err := e.api.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return errors.Wrapf(err, "pull %s", ref)
	}
	defer func() { _ = rc.Close() }()
	// The pull only completes once the progress stream is drained.
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return errors.Wrapf(err, "pull %s", ref)
	}
	return nil
}
