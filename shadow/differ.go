package shadow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/google/uuid"

	"github.com/peterldowns/pgdrift/logging"
)

// DefaultMigraImage is the image used by [DockerDiffer].
const DefaultMigraImage = "djrobstep/migra"

// Differ compares two databases and returns the statements that would turn
// the schema of from into the schema of to.
type Differ interface {
	Diff(ctx context.Context, from, to, schema string) (string, error)
}

func migraArgs(from, to, schema string) []string {
	return []string{"--unsafe", "--schema", schema, from, to}
}

// interpretExit applies migra's exit code convention: 0 means the schemas
// match, 2 means differences were printed, anything else is a failure.
func interpretExit(code int, output string) (string, error) {
	switch code {
	case 0:
		return output, nil
	case 2:
		if strings.TrimSpace(output) == "" {
			return "", &DiffToolError{
				ExitCode: code,
				Err:      errors.New("reported differences but printed nothing"),
			}
		}
		return output, nil
	default:
		return "", &DiffToolError{ExitCode: code, Output: output}
	}
}

// ExecDiffer runs a locally installed migra binary.
type ExecDiffer struct {
	Path   string   // defaults to "migra", looked up in $PATH
	Args   []string // placed before migra's own arguments
	Env    []string // appended to the current environment
	Logger logging.Logger
}

func (d ExecDiffer) Diff(ctx context.Context, from, to, schema string) (string, error) {
	path := d.Path
	if path == "" {
		path = "migra"
	}
	args := append(slices.Clone(d.Args), migraArgs(from, to, schema)...)
	cmd := exec.CommandContext(ctx, path, args...)
	if len(d.Env) > 0 {
		cmd.Env = append(os.Environ(), d.Env...)
	}
	logging.Emit(ctx, d.Logger, logging.LevelDebug, "running diff tool",
		logging.Field{Key: "path", Value: path},
		logging.Field{Key: "schema", Value: schema},
	)
	out, err := cmd.CombinedOutput()
	code := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return "", &DiffToolError{ExitCode: -1, Output: string(out), Err: err}
		}
		code = exitErr.ExitCode()
	}
	return interpretExit(code, string(out))
}

// DockerDiffer runs migra in a throwaway container on the host network, so
// that 127.0.0.1 URLs reach the same servers they would from the host. The
// container is always removed.
type DockerDiffer struct {
	Image  string // defaults to [DefaultMigraImage]
	Logger logging.Logger

	client dockerAPI
}

// NewDockerDiffer connects to the Docker daemon described by the environment.
func NewDockerDiffer(image string) (*DockerDiffer, error) {
	cli, err := newDockerClient()
	if err != nil {
		return nil, err
	}
	return &DockerDiffer{Image: image, client: cli}, nil
}

// Close releases the Docker client.
func (d *DockerDiffer) Close() error {
	return d.client.Close()
}

func (d *DockerDiffer) Diff(ctx context.Context, from, to, schema string) (string, error) {
	ref := d.Image
	if ref == "" {
		ref = DefaultMigraImage
	}
	if err := ensureImage(ctx, d.client, ref); err != nil {
		return "", &DiffToolError{ExitCode: -1, Err: err}
	}
	runID := uuid.NewString()
	resp, err := d.client.ContainerCreate(ctx,
		&container.Config{
			Image:      ref,
			Entrypoint: []string{"migra"},
			Cmd:        migraArgs(from, to, schema),
			Labels: map[string]string{
				labelRun:  runID,
				labelRole: "diff",
			},
		},
		&container.HostConfig{NetworkMode: "host"},
		nil, nil, "pgdrift-diff-"+runID,
	)
	if err != nil {
		return "", &DiffToolError{ExitCode: -1, Err: fmt.Errorf("create container: %w", err)}
	}
	defer func() {
		removeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := d.client.ContainerRemove(removeCtx, resp.ID, container.RemoveOptions{Force: true}); err != nil {
			logging.Emit(ctx, d.Logger, logging.LevelWarning, "failed to remove diff container",
				logging.Field{Key: "container_id", Value: resp.ID},
				logging.Field{Key: "hint", Value: "docker rm -f " + resp.ID},
				logging.Field{Key: "error", Value: err},
			)
		}
	}()

	if err := d.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return "", &DiffToolError{ExitCode: -1, Err: fmt.Errorf("start container: %w", err)}
	}
	statusCh, errCh := d.client.ContainerWait(ctx, resp.ID, container.WaitConditionNotRunning)
	var code int
	select {
	case err := <-errCh:
		if err != nil {
			return "", &DiffToolError{ExitCode: -1, Err: fmt.Errorf("wait for container: %w", err)}
		}
	case status := <-statusCh:
		code = int(status.StatusCode)
	case <-ctx.Done():
		return "", &DiffToolError{ExitCode: -1, Err: ctx.Err()}
	}

	logs, err := d.client.ContainerLogs(ctx, resp.ID, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return "", &DiffToolError{ExitCode: code, Err: fmt.Errorf("read container logs: %w", err)}
	}
	defer logs.Close()
	var out bytes.Buffer
	if _, err := stdcopy.StdCopy(&out, &out, logs); err != nil {
		return "", &DiffToolError{ExitCode: code, Err: fmt.Errorf("read container logs: %w", err)}
	}
	return interpretExit(code, out.String())
}
