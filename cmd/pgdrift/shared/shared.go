package shared

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/peterldowns/pgdrift"
	"github.com/peterldowns/pgdrift/shadow"
)

type Flags struct {
	LogFormat  *string // see logger.go
	Database   *string // see root.go
	Driver     *string // see root.go
	Migrations *string // see root.go
	TableName  *string // see root.go
	ConfigFile *string // see root.go
	Strict     *bool   // see root.go
	Lock       *bool   // see migrate.go
}

type Config struct {
	Database   string       `yaml:"database"`
	Driver     string       `yaml:"driver"`
	Migrations string       `yaml:"migrations"`
	LogFormat  LogFormat    `yaml:"log_format"`
	TableName  string       `yaml:"table_name"`
	Strict     bool         `yaml:"strict"`
	Lock       bool         `yaml:"lock"`
	Shadow     ShadowConfig `yaml:"shadow"`
	Diff       DiffConfig   `yaml:"diff"`
}

// ShadowConfig configures the disposable database that `pgdrift diff`
// migrates and compares against the target.
type ShadowConfig struct {
	Provisioner  string        `yaml:"provisioner"` // "docker" or "embedded"
	Image        string        `yaml:"image"`
	Port         int           `yaml:"port"`
	User         string        `yaml:"user"`
	Password     string        `yaml:"password"`
	Database     string        `yaml:"database"`
	PollInterval time.Duration `yaml:"poll_interval"`
	PollAttempts int           `yaml:"poll_attempts"`
	Schema       string        `yaml:"schema"`
}

// DiffConfig selects how migra is run.
type DiffConfig struct {
	Tool  string `yaml:"tool"` // "exec" or "docker"
	Path  string `yaml:"path"`
	Image string `yaml:"image"`
}

const (
	ProvisionerDocker   = "docker"
	ProvisionerEmbedded = "embedded"
	DiffToolExec        = "exec"
	DiffToolDocker      = "docker"
)

type StateT struct {
	Flags  Flags
	Config Config
}

var State StateT //nolint:gochecknoglobals

func (state *StateT) Parse() {
	cf := state.Configfile()
	if !cf.IsSet() {
		return
	}
	file, err := os.Open(cf.Value())
	if err != nil {
		panic(fmt.Errorf("open config: %w", err))
	}
	defer file.Close()

	contents, err := io.ReadAll(file)
	if err != nil {
		panic(fmt.Errorf("read config: %w", err))
	}
	if err := yaml.Unmarshal(contents, &state.Config); err != nil {
		panic(fmt.Errorf("parse config: %w", err))
	}
}

func (state StateT) Configfile() Variable[string] {
	return NewVariable(
		"config-file",
		*state.Flags.ConfigFile,
		os.Getenv("PGDRIFT_CONFIGFILE"),
		CheckPath(".pgdrift.yaml"), // in cwd
		RepoPath(".pgdrift.yaml"),  // in repo root
		"",                         // default to missing
	)
}

func (state StateT) Database() Variable[string] {
	return NewVariable(
		"database",
		*state.Flags.Database,
		os.Getenv("PGDRIFT_DATABASE"),
		state.Config.Database,
		"", // default to missing
	)
}

func (state StateT) Driver() Variable[string] {
	return NewVariable(
		"driver",
		*state.Flags.Driver,
		os.Getenv("PGDRIFT_DRIVER"),
		state.Config.Driver,
		DriverPgx, // default
	)
}

func (state StateT) LogFormat() Variable[LogFormat] {
	return NewVariable(
		"log-format",
		LogFormat(*state.Flags.LogFormat),
		LogFormat(os.Getenv("PGDRIFT_LOG_FORMAT")),
		state.Config.LogFormat,
		LogFormatText, // default
	)
}

func (state StateT) Migrations() Variable[string] {
	return NewVariable(
		"migrations",
		*state.Flags.Migrations,
		os.Getenv("PGDRIFT_MIGRATIONS"),
		state.Config.Migrations,
		"", // default to missing
	)
}

func (state StateT) TableName() Variable[string] {
	return NewVariable(
		"table-name",
		*state.Flags.TableName,
		os.Getenv("PGDRIFT_TABLENAME"),
		state.Config.TableName,
		pgdrift.DefaultTableName, // default
	)
}

func (state StateT) Strict() Variable[bool] {
	return NewVariable(
		"strict",
		*state.Flags.Strict,
		envBool("PGDRIFT_STRICT"),
		state.Config.Strict,
	)
}

func (state StateT) Lock() Variable[bool] {
	flag := false
	if state.Flags.Lock != nil {
		flag = *state.Flags.Lock
	}
	return NewVariable(
		"lock",
		flag,
		envBool("PGDRIFT_LOCK"),
		state.Config.Lock,
	)
}

func (state StateT) ShadowProvisioner() Variable[string] {
	return NewVariable(
		"shadow-provisioner",
		os.Getenv("PGDRIFT_SHADOW_PROVISIONER"),
		state.Config.Shadow.Provisioner,
		ProvisionerDocker, // default
	)
}

func (state StateT) ShadowPort() Variable[int] {
	return NewVariable(
		"shadow-port",
		envInt("PGDRIFT_SHADOW_PORT"),
		state.Config.Shadow.Port,
		shadow.DefaultPort, // default
	)
}

func (state StateT) ShadowImage() Variable[string] {
	return NewVariable(
		"shadow-image",
		os.Getenv("PGDRIFT_SHADOW_IMAGE"),
		state.Config.Shadow.Image,
		shadow.DefaultPostgresImage, // default
	)
}

func (state StateT) PollInterval() Variable[time.Duration] {
	return NewVariable(
		"poll-interval",
		envDuration("PGDRIFT_SHADOW_POLL_INTERVAL"),
		state.Config.Shadow.PollInterval,
		shadow.DefaultPollInterval, // default
	)
}

func (state StateT) PollAttempts() Variable[int] {
	return NewVariable(
		"poll-attempts",
		envInt("PGDRIFT_SHADOW_POLL_ATTEMPTS"),
		state.Config.Shadow.PollAttempts,
		shadow.DefaultPollAttempts, // default
	)
}

func (state StateT) Schema() Variable[string] {
	return NewVariable(
		"schema",
		os.Getenv("PGDRIFT_SHADOW_SCHEMA"),
		state.Config.Shadow.Schema,
		shadow.DefaultSchema, // default
	)
}

func (state StateT) DiffTool() Variable[string] {
	return NewVariable(
		"diff-tool",
		os.Getenv("PGDRIFT_DIFF_TOOL"),
		state.Config.Diff.Tool,
		DiffToolExec, // default
	)
}

func (state StateT) DiffPath() Variable[string] {
	return NewVariable(
		"diff-path",
		os.Getenv("PGDRIFT_DIFF_PATH"),
		state.Config.Diff.Path,
		"migra", // default
	)
}

func (state StateT) DiffImage() Variable[string] {
	return NewVariable(
		"diff-image",
		os.Getenv("PGDRIFT_DIFF_IMAGE"),
		state.Config.Diff.Image,
		shadow.DefaultMigraImage, // default
	)
}

// Logger writes to stderr so that command output, like the schema diff
// printed by `pgdrift diff`, can be redirected on its own.
func (state StateT) Logger() (*log.Logger, LogAdapter) {
	var logger *log.Logger
	format := state.LogFormat().Value()
	switch format {
	case LogFormatText:
		logger = log.NewWithOptions(os.Stderr, log.Options{Formatter: log.TextFormatter})
	case LogFormatJSON:
		logger = log.NewWithOptions(os.Stderr, log.Options{Formatter: log.JSONFormatter})
	default:
		panic(fmt.Errorf("unknown log format: %s", format))
	}
	return logger, LogAdapter{logger}
}

func RepoPath(p string) string {
	root, err := exec.Command("git", "rev-parse", "--show-toplevel").Output()
	if err != nil {
		return ""
	}
	rootConfig := path.Join(strings.TrimSpace(string(root)), p)
	return CheckPath(rootConfig)
}

func CheckPath(p string) string {
	p, err := filepath.Abs(p)
	if err != nil {
		return ""
	}
	if _, err := os.Stat(p); err != nil {
		return ""
	}
	return p
}
