package shadow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/peterldowns/pgdrift/logging"
)

const (
	// DefaultPostgresImage is the image used for Docker shadow instances.
	DefaultPostgresImage = "postgres:16-alpine"
	// DefaultPort is the fixed local port that shadow instances listen on.
	DefaultPort = 54320

	postgresPort nat.Port = "5432/tcp"

	labelRun  = "pgdrift.run"
	labelRole = "pgdrift.role"
)

// dockerAPI is the subset of the Docker client used by this package.
// *client.Client satisfies it.
type dockerAPI interface {
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	ImageInspectWithRaw(ctx context.Context, imageID string) (image.InspectResponse, []byte, error)
	ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)
	Close() error
}

func newDockerClient() (dockerAPI, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return cli, nil
}

// ensureImage pulls ref if it is not available locally.
func ensureImage(ctx context.Context, cli dockerAPI, ref string) error {
	if _, _, err := cli.ImageInspectWithRaw(ctx, ref); err == nil {
		return nil
	}
	reader, err := cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull %s: %w", ref, err)
	}
	defer reader.Close()
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("pull %s: %w", ref, err)
	}
	return nil
}

// DockerConfig configures a [DockerProvisioner].
type DockerConfig struct {
	Image    string // defaults to [DefaultPostgresImage]
	Port     int    // host port bound on 127.0.0.1, defaults to [DefaultPort]
	User     string // defaults to "postgres"
	Password string // defaults to "password"
	Database string // defaults to "postgres"
}

func (c DockerConfig) withDefaults() DockerConfig {
	if c.Image == "" {
		c.Image = DefaultPostgresImage
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.User == "" {
		c.User = "postgres"
	}
	if c.Password == "" {
		c.Password = "password"
	}
	if c.Database == "" {
		c.Database = "postgres"
	}
	return c
}

// connectionURL returns the URL of a Postgres server listening on
// 127.0.0.1:port.
func connectionURL(user, password string, port int, database string) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, password),
		Host:     net.JoinHostPort("127.0.0.1", strconv.Itoa(port)),
		Path:     "/" + database,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// DockerProvisioner runs each shadow database as a Postgres container bound to
// a fixed port on 127.0.0.1.
type DockerProvisioner struct {
	Config DockerConfig
	Logger logging.Logger
	// Probe checks that the server accepts connections once the container
	// reports healthy. Defaults to [PingPostgres].
	Probe func(ctx context.Context, url string) error

	client dockerAPI
}

// NewDockerProvisioner connects to the Docker daemon described by the
// environment (DOCKER_HOST and friends).
func NewDockerProvisioner(config DockerConfig) (*DockerProvisioner, error) {
	cli, err := newDockerClient()
	if err != nil {
		return nil, err
	}
	return &DockerProvisioner{Config: config.withDefaults(), client: cli}, nil
}

// Close releases the Docker client.
func (p *DockerProvisioner) Close() error {
	return p.client.Close()
}

func (p *DockerProvisioner) Provision(ctx context.Context) (Instance, error) {
	cfg := p.Config.withDefaults()
	if err := ensureImage(ctx, p.client, cfg.Image); err != nil {
		return Instance{}, err
	}
	runID := uuid.NewString()
	name := "pgdrift-shadow-" + runID
	containerConfig := &container.Config{
		Image: cfg.Image,
		Env: []string{
			"POSTGRES_USER=" + cfg.User,
			"POSTGRES_PASSWORD=" + cfg.Password,
			"POSTGRES_DB=" + cfg.Database,
		},
		ExposedPorts: nat.PortSet{postgresPort: struct{}{}},
		Labels: map[string]string{
			labelRun:  runID,
			labelRole: "shadow",
		},
		Healthcheck: &container.HealthConfig{
			Test:     []string{"CMD-SHELL", fmt.Sprintf("pg_isready -U %s -d %s", cfg.User, cfg.Database)},
			Interval: 500 * time.Millisecond,
			Timeout:  2 * time.Second,
			Retries:  20,
		},
	}
	hostConfig := &container.HostConfig{
		PortBindings: nat.PortMap{
			postgresPort: []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: strconv.Itoa(cfg.Port)}},
		},
	}
	resp, err := p.client.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, name)
	if err != nil {
		return Instance{}, fmt.Errorf("create container: %w", err)
	}
	instance := Instance{
		ID:         resp.ID,
		URL:        connectionURL(cfg.User, cfg.Password, cfg.Port, cfg.Database),
		RemoveHint: "docker rm -f -v " + resp.ID,
	}
	logging.Emit(ctx, p.Logger, logging.LevelInfo, "created shadow container",
		logging.Field{Key: "container_id", Value: resp.ID},
		logging.Field{Key: "container_name", Value: name},
		logging.Field{Key: "image", Value: cfg.Image},
		logging.Field{Key: "port", Value: cfg.Port},
	)
	if err := p.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return instance, fmt.Errorf("start container: %w", err)
	}
	return instance, nil
}

func (p *DockerProvisioner) Healthy(ctx context.Context, instance Instance) error {
	resp, err := p.client.ContainerInspect(ctx, instance.ID)
	if err != nil {
		return fmt.Errorf("inspect container: %w", err)
	}
	if resp.ContainerJSONBase == nil || resp.State == nil {
		return errors.New("container state unavailable")
	}
	state := resp.State
	switch state.Status {
	case container.StateExited, container.StateDead:
		return fmt.Errorf("%w: container %s is %s (exit code %d)", ErrInstanceGone, instance.ID, state.Status, state.ExitCode)
	}
	if state.Health != nil && state.Health.Status != container.Healthy {
		return fmt.Errorf("container health is %q", state.Health.Status)
	}
	probe := p.Probe
	if probe == nil {
		probe = PingPostgres
	}
	return probe(ctx, instance.URL)
}

func (p *DockerProvisioner) Destroy(ctx context.Context, instance Instance) error {
	return p.client.ContainerRemove(ctx, instance.ID, container.RemoveOptions{
		Force:         true,
		RemoveVolumes: true,
	})
}
