// Package docker implements the batchq.Environment contract against a
// Docker daemon: a job's command runs inside a container. Unlike the
// local backend, this one supports both progress reporting and
// cancellation, because containers carry the job name as a label and
// can be listed and stopped by it.
//
// The container list plays the role the queue listing plays for a
// cluster: a job is in progress while a container labeled with its name
// is in a non-terminal state. Unlike the cluster backend there is no
// cached snapshot; the daemon is local, so every query asks it live.
package docker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hpckit/batchq"
	"github.com/hpckit/batchq/backoff"
	"github.com/hpckit/batchq/hook"
	"github.com/hpckit/batchq/middleware"
)

// Labels attached to every container this environment creates.
const (
	labelManagedBy = "managed-by"
	labelJobName   = "batchq.job.name"
	managedByValue = "batchq"
)

// Environment runs jobs in containers on a Docker daemon.
type Environment struct {
	client apiClient
	image  string
	logger *slog.Logger
	mw     middleware.Middleware
	ext    *hook.Registry

	stopTimeout int
}

// Option configures an Environment.
type Option func(*Environment) error

// New creates a Docker environment that runs every job in the given
// image. The Docker client is configured from the environment
// (DOCKER_HOST and friends) unless WithClient overrides it.
func New(img string, opts ...Option) (*Environment, error) {
	if img == "" {
		return nil, fmt.Errorf("docker: image must not be empty")
	}
	e := &Environment{
		image:       img,
		logger:      slog.Default(),
		stopTimeout: 10,
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	if e.client == nil {
		c, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
		if err != nil {
			return nil, fmt.Errorf("docker: create client: %w", err)
		}
		e.client = c
	}
	if e.ext == nil {
		e.ext = hook.NewRegistry(e.logger)
	}
	return e, nil
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Environment) error {
		e.logger = l
		return nil
	}
}

// WithClient replaces the Docker API client. Tests use this to run the
// full submission path against a fake daemon.
func WithClient(c apiClient) Option {
	return func(e *Environment) error {
		if c == nil {
			return fmt.Errorf("docker: client must not be nil")
		}
		e.client = c
		return nil
	}
}

// WithMiddleware installs submission middleware, outermost first.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(e *Environment) error {
		e.mw = middleware.Chain(mws...)
		return nil
	}
}

// WithExtensions sets the lifecycle extension registry.
func WithExtensions(r *hook.Registry) Option {
	return func(e *Environment) error {
		e.ext = r
		return nil
	}
}

// WithStopTimeout sets how many seconds a cancelled container gets to
// exit before it is killed.
func WithStopTimeout(seconds int) Option {
	return func(e *Environment) error {
		e.stopTimeout = seconds
		return nil
	}
}

// Run submits the job through the shared submission state machine and
// returns once the container has started. It does not wait for the
// container to exit; use Watch or Wait for that.
func (e *Environment) Run(ctx context.Context, j batchq.Job, opts ...batchq.RunOption) error {
	ro := batchq.NewRunOptions(opts...)

	submit := func(ctx context.Context) error {
		return batchq.Submit(ctx, j, ro, batchq.Hooks{
			InProgress:  e.jobInProgress,
			Cancel:      e.cancelJob,
			Materialize: e.ensureImage,
			Launch:      e.launch,
		})
	}

	start := time.Now()
	var err error
	if e.mw != nil {
		err = e.mw(ctx, j, ro, submit)
	} else {
		err = submit(ctx)
	}
	if err != nil {
		if batchq.IsRejection(err) {
			e.ext.EmitJobRejected(ctx, j, err)
		}
		return err
	}

	e.ext.EmitJobSubmitted(ctx, j, time.Since(start))
	return nil
}

// Info lists the containers this environment manages and classifies
// them by state: running containers map to Running, created or
// restarting ones to Pending, everything else to Unknown. This is a
// live query of the daemon, not a cache.
func (e *Environment) Info(ctx context.Context) (batchq.Info, error) {
	containers, err := e.managedContainers(ctx, "")
	if err != nil {
		return batchq.Info{}, err
	}

	var info batchq.Info
	for _, c := range containers {
		name := c.Labels[labelJobName]
		if name == "" {
			continue
		}
		switch c.State {
		case "running":
			info.Running = append(info.Running, name)
		case "created", "restarting":
			info.Pending = append(info.Pending, name)
		default:
			info.Unknown = append(info.Unknown, name)
		}
	}
	return info, nil
}

// InProgress reports whether a container for the named job is in a
// non-terminal state.
func (e *Environment) InProgress(ctx context.Context, name string) (bool, error) {
	containers, err := e.managedContainers(ctx, name)
	if err != nil {
		return false, err
	}
	for _, c := range containers {
		switch c.State {
		case "running", "created", "restarting":
			return true, nil
		}
	}
	return false, nil
}

// Cancel stops and removes every container for the named job. Like the
// cluster backend it is fire and forget with respect to the job itself:
// a job with no containers is not an error.
func (e *Environment) Cancel(ctx context.Context, name string) error {
	containers, err := e.managedContainers(ctx, name)
	if err != nil {
		return err
	}
	for _, c := range containers {
		timeout := e.stopTimeout
		if err := e.client.ContainerStop(ctx, c.ID, container.StopOptions{Timeout: &timeout}); err != nil {
			return fmt.Errorf("docker: stop container %s: %w", c.ID, err)
		}
		if err := e.client.ContainerRemove(ctx, c.ID, container.RemoveOptions{Force: true}); err != nil {
			return fmt.Errorf("docker: remove container %s: %w", c.ID, err)
		}
		e.logger.Info("container cancelled",
			slog.String("job_name", name),
			slog.String("container_id", c.ID),
		)
	}
	e.ext.EmitJobCancelled(ctx, name)
	return nil
}

// Watch blocks until the named job's container exits, streaming its
// demuxed output to w (pass nil to discard). A non-zero exit surfaces
// as a batchq.CommandError carrying the code.
func (e *Environment) Watch(ctx context.Context, name string, w io.Writer) error {
	containers, err := e.managedContainers(ctx, name)
	if err != nil {
		return err
	}
	if len(containers) == 0 {
		return fmt.Errorf("docker: no container found for job %q", name)
	}
	id := containers[0].ID
	if w == nil {
		w = io.Discard
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logs, err := e.client.ContainerLogs(ctx, id, container.LogsOptions{
			ShowStdout: true,
			ShowStderr: true,
			Follow:     true,
		})
		if err != nil {
			return fmt.Errorf("docker: container logs: %w", err)
		}
		defer logs.Close()
		// Drain even when the caller discards, so the daemon does not
		// buffer indefinitely.
		_, err = stdcopy.StdCopy(w, w, logs)
		if err != nil && ctx.Err() == nil {
			return fmt.Errorf("docker: read logs: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		statusCh, errCh := e.client.ContainerWait(ctx, id, container.WaitConditionNotRunning)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return fmt.Errorf("docker: wait for container: %w", err)
		case status := <-statusCh:
			if status.StatusCode != 0 {
				return &batchq.CommandError{
					Cmd:      "docker run " + e.image,
					ExitCode: int(status.StatusCode),
				}
			}
			return nil
		}
	})

	return g.Wait()
}

// Wait blocks until the named job has no container in a non-terminal
// state, polling with the given strategy (nil means the default).
func (e *Environment) Wait(ctx context.Context, name string, strategy backoff.Strategy) error {
	if strategy == nil {
		strategy = backoff.DefaultStrategy()
	}
	for poll := 1; ; poll++ {
		inProgress, err := e.InProgress(ctx, name)
		if err != nil {
			return err
		}
		if !inProgress {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(strategy.Delay(poll)):
		}
	}
}

func (e *Environment) jobInProgress(ctx context.Context, j batchq.Job) (bool, error) {
	return e.InProgress(ctx, j.Name())
}

func (e *Environment) cancelJob(ctx context.Context, j batchq.Job) error {
	return e.Cancel(ctx, j.Name())
}

// ensureImage pulls the configured image if the daemon does not have
// it. Like the cluster backend's batch script, presence is a cache:
// an image already present is never re-pulled, even if the registry
// has a newer one under the same tag.
func (e *Environment) ensureImage(ctx context.Context, _ batchq.Job, _ *batchq.RunOptions) error {
	existing, err := e.client.ImageList(ctx, image.ListOptions{
		Filters: filters.NewArgs(filters.Arg("reference", e.image)),
	})
	if err != nil {
		return fmt.Errorf("docker: list images: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	e.logger.Info("pulling image", slog.String("image", e.image))
	reader, err := e.client.ImagePull(ctx, e.image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("docker: pull image %s: %w", e.image, err)
	}
	defer reader.Close()
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("docker: pull image %s: %w", e.image, err)
	}
	return nil
}

func (e *Environment) launch(ctx context.Context, j batchq.Job, _ *batchq.RunOptions) error {
	argv := strings.Fields(j.Command())
	if len(argv) == 0 {
		return fmt.Errorf("docker: job command is empty")
	}

	containerName := fmt.Sprintf("batchq-%s-%s", j.Name(), uuid.NewString()[:8])
	resp, err := e.client.ContainerCreate(ctx,
		&container.Config{
			Image: e.image,
			Cmd:   argv,
			Labels: map[string]string{
				labelManagedBy: managedByValue,
				labelJobName:   j.Name(),
			},
		},
		&container.HostConfig{},
		nil, nil, containerName,
	)
	if err != nil {
		return fmt.Errorf("docker: create container: %w", err)
	}

	if err := e.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return fmt.Errorf("docker: start container: %w", err)
	}

	e.logger.Info("container started",
		slog.String("job_name", j.Name()),
		slog.String("container_id", resp.ID),
	)
	return nil
}

// managedContainers lists this environment's containers, optionally
// narrowed to one job name. All states are included.
func (e *Environment) managedContainers(ctx context.Context, name string) ([]container.Summary, error) {
	args := filters.NewArgs(filters.Arg("label", labelManagedBy+"="+managedByValue))
	if name != "" {
		args.Add("label", labelJobName+"="+name)
	}
	containers, err := e.client.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: args,
	})
	if err != nil {
		return nil, fmt.Errorf("docker: list containers: %w", err)
	}
	return containers, nil
}
