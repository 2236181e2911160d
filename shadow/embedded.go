package shadow

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/google/uuid"

	"github.com/peterldowns/pgdrift/logging"
)

// EmbeddedConfig configures an [EmbeddedProvisioner].
type EmbeddedConfig struct {
	Port     int    // defaults to [DefaultPort]
	User     string // defaults to "postgres"
	Password string // defaults to "password"
	Database string // defaults to "postgres"
	// Output receives the server's log. Defaults to io.Discard.
	Output io.Writer
}

// embeddedServer is satisfied by *embeddedpostgres.EmbeddedPostgres.
type embeddedServer interface {
	Start() error
	Stop() error
}

// EmbeddedProvisioner runs each shadow database as a Postgres server process
// downloaded and managed by embedded-postgres, for machines without Docker.
// The server's files live in a temporary directory that Destroy removes.
type EmbeddedProvisioner struct {
	Config EmbeddedConfig
	Logger logging.Logger
	// Probe checks that a started server accepts connections. Defaults to
	// [PingPostgres].
	Probe func(ctx context.Context, url string) error

	newServer func(embeddedpostgres.Config) embeddedServer

	mu      sync.Mutex
	servers map[string]*embeddedInstance
}

type embeddedInstance struct {
	server  embeddedServer
	dir     string
	started bool
}

// NewEmbeddedProvisioner returns an [EmbeddedProvisioner] for config.
func NewEmbeddedProvisioner(config EmbeddedConfig) *EmbeddedProvisioner {
	return &EmbeddedProvisioner{Config: config}
}

func (p *EmbeddedProvisioner) config() EmbeddedConfig {
	c := p.Config
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
	if c.Output == nil {
		c.Output = io.Discard
	}
	return c
}

func (p *EmbeddedProvisioner) Provision(ctx context.Context) (Instance, error) {
	cfg := p.config()
	dir, err := os.MkdirTemp("", "pgdrift-shadow-")
	if err != nil {
		return Instance{}, fmt.Errorf("create runtime directory: %w", err)
	}
	pgConfig := embeddedpostgres.DefaultConfig().
		Port(uint32(cfg.Port)). //nolint:gosec // ports fit in uint32
		Username(cfg.User).
		Password(cfg.Password).
		Database(cfg.Database).
		RuntimePath(dir).
		Logger(cfg.Output)
	newServer := p.newServer
	if newServer == nil {
		newServer = func(c embeddedpostgres.Config) embeddedServer {
			return embeddedpostgres.NewDatabase(c)
		}
	}
	state := &embeddedInstance{server: newServer(pgConfig), dir: dir}
	instance := Instance{
		ID:         "embedded-" + uuid.NewString(),
		URL:        connectionURL(cfg.User, cfg.Password, cfg.Port, cfg.Database),
		RemoveHint: "rm -rf " + dir,
	}
	p.mu.Lock()
	if p.servers == nil {
		p.servers = make(map[string]*embeddedInstance)
	}
	p.servers[instance.ID] = state
	p.mu.Unlock()

	logging.Emit(ctx, p.Logger, logging.LevelInfo, "starting embedded shadow database",
		logging.Field{Key: "instance_id", Value: instance.ID},
		logging.Field{Key: "runtime_path", Value: dir},
		logging.Field{Key: "port", Value: cfg.Port},
	)
	// Start blocks until the server is up or its own start timeout passes.
	if err := state.server.Start(); err != nil {
		return instance, fmt.Errorf("start embedded postgres: %w", err)
	}
	p.mu.Lock()
	state.started = true
	p.mu.Unlock()
	return instance, nil
}

func (p *EmbeddedProvisioner) Healthy(ctx context.Context, instance Instance) error {
	p.mu.Lock()
	state, ok := p.servers[instance.ID]
	started := ok && state.started
	p.mu.Unlock()
	if !started {
		return fmt.Errorf("%w: embedded server %s is not running", ErrInstanceGone, instance.ID)
	}
	probe := p.Probe
	if probe == nil {
		probe = PingPostgres
	}
	return probe(ctx, instance.URL)
}

func (p *EmbeddedProvisioner) Destroy(_ context.Context, instance Instance) error {
	p.mu.Lock()
	state, ok := p.servers[instance.ID]
	delete(p.servers, instance.ID)
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown embedded instance %s", instance.ID)
	}
	if state.started {
		if err := state.server.Stop(); err != nil {
			return fmt.Errorf("stop embedded postgres: %w", err)
		}
	}
	if err := os.RemoveAll(state.dir); err != nil {
		return fmt.Errorf("remove runtime directory: %w", err)
	}
	return nil
}
