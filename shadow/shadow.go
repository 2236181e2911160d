// Package shadow computes schema drift: it provisions a disposable "shadow"
// Postgres database, applies every migration to it, and asks an external diff
// tool for the statements that would turn the shadow schema into the schema of
// a live target database. The shadow instance is always torn down.
package shadow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-multierror"

	"github.com/peterldowns/pgdrift"
	"github.com/peterldowns/pgdrift/logging"
)

const (
	DefaultPollInterval   = time.Second
	DefaultPollAttempts   = 20
	DefaultCleanupTimeout = 30 * time.Second
	DefaultSchema         = "public"
)

// Config holds the tunables of a run. Zero values are replaced with defaults.
type Config struct {
	// PollInterval is the time between health checks. Defaults to
	// [DefaultPollInterval].
	PollInterval time.Duration
	// PollAttempts is the maximum number of health checks. Defaults to
	// [DefaultPollAttempts].
	PollAttempts int
	// CleanupTimeout bounds the time spent destroying the instance. Defaults to
	// [DefaultCleanupTimeout].
	CleanupTimeout time.Duration
	// Schema is the schema passed to the diff tool. Defaults to
	// [DefaultSchema].
	Schema string
	// BaselinePath, if set, is a SQL file applied to the shadow database before
	// any migrations.
	BaselinePath string
	// TableName is the migrations table used in the shadow database. Defaults
	// to [pgdrift.DefaultTableName].
	TableName string
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.PollAttempts <= 0 {
		c.PollAttempts = DefaultPollAttempts
	}
	if c.CleanupTimeout <= 0 {
		c.CleanupTimeout = DefaultCleanupTimeout
	}
	if c.Schema == "" {
		c.Schema = DefaultSchema
	}
	if c.TableName == "" {
		c.TableName = pgdrift.DefaultTableName
	}
	return c
}

// Session describes the shadow instance used by a run.
type Session struct {
	InstanceID string
	Endpoint   string
	Health     HealthState
}

// Result is the outcome of [Orchestrator.Run].
type Result struct {
	// Diff is the raw output of the diff tool. It is empty when the schemas
	// match.
	Diff string
	// Session describes the shadow instance, if one was created.
	Session Session
	// CleanupErr is set if the shadow instance could not be destroyed. It does
	// not make the run fail.
	CleanupErr *CleanupError
}

// Orchestrator runs one shadow diff at a time.
type Orchestrator struct {
	Provisioner Provisioner
	Differ      Differ
	Config      Config
	Logger      logging.Logger
	// Observer, if set, is called on every state transition.
	Observer Observer
	// Open connects to the shadow database. Defaults to [OpenPostgres].
	Open func(ctx context.Context, url string) (*sql.DB, error)
	// Dialect is the dialect of the shadow database. Defaults to
	// [pgdrift.Postgres].
	Dialect pgdrift.Dialect
}

// Run reads the baseline file, if any, then provisions a shadow instance,
// waits for it to become healthy, optionally seeds it with the baseline,
// applies migrations, and diffs it against target. The returned error is the first failure of the run; the instance is
// destroyed in every case, with a fresh context so that a cancelled ctx still
// cleans up.
func (o *Orchestrator) Run(ctx context.Context, target string, migrations []pgdrift.Migration) (result Result, final error) {
	if o.Provisioner == nil || o.Differ == nil {
		return result, errors.New("shadow: orchestrator needs a provisioner and a differ")
	}
	cfg := o.Config.withDefaults()
	r := &run{orchestrator: o, state: StateInit}
	var instance Instance
	var session Session

	defer func() {
		if final != nil {
			o.error(ctx, final, "shadow diff failed", logging.Field{Key: "state", Value: r.state.String()})
			r.to(StateFailed)
		}
		r.to(StateCleanup)
		if instance.ID != "" {
			result.CleanupErr = o.destroy(cfg, instance)
		}
		result.Session = session
		r.to(StateTerminal)
	}()

	var baseline []byte
	if cfg.BaselinePath != "" {
		data, err := os.ReadFile(cfg.BaselinePath)
		if err != nil {
			return result, fmt.Errorf("read baseline: %w", err)
		}
		baseline = data
	}

	r.to(StateProvisioning)
	instance, err := o.Provisioner.Provision(ctx)
	session.InstanceID = instance.ID
	session.Endpoint = instance.URL
	if err != nil {
		return result, fmt.Errorf("provision shadow database: %w", err)
	}
	o.info(ctx, "provisioned shadow database", logging.Field{Key: "instance_id", Value: instance.ID})

	r.to(StateWaitingHealthy)
	if err := o.waitHealthy(ctx, cfg, instance); err != nil {
		var timeout *ProvisioningTimeoutError
		if errors.As(err, &timeout) {
			session.Health = HealthTimedOut
			r.to(StateTimedOut)
		}
		return result, err
	}
	session.Health = HealthHealthy
	r.to(StateHealthy)

	open := o.Open
	if open == nil {
		open = OpenPostgres
	}
	db, err := open(ctx, instance.URL)
	if err != nil {
		return result, fmt.Errorf("open shadow database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			final = multierror.Append(final, fmt.Errorf("close shadow database: %w", err)).ErrorOrNil()
		}
	}()

	if cfg.BaselinePath != "" {
		r.to(StateSeeding)
		if err := o.seed(ctx, db, cfg.BaselinePath, baseline); err != nil {
			return result, err
		}
	}

	r.to(StateMigrating)
	migrator := pgdrift.NewMigrator(migrations)
	migrator.Logger = o.Logger
	migrator.TableName = cfg.TableName
	if o.Dialect != nil {
		migrator.Dialect = o.Dialect
	}
	applied, err := migrator.Migrate(ctx, db)
	if err != nil {
		return result, fmt.Errorf("migrate shadow database: %w", err)
	}
	o.info(ctx, "migrated shadow database", logging.Field{Key: "count", Value: len(applied)})

	r.to(StateDiffing)
	diff, err := o.Differ.Diff(ctx, instance.URL, target, cfg.Schema)
	if err != nil {
		return result, err
	}
	result.Diff = diff
	r.to(StateDone)
	return result, nil
}

// waitHealthy polls the instance at a constant interval for a bounded number
// of attempts.
func (o *Orchestrator) waitHealthy(ctx context.Context, cfg Config, instance Instance) error {
	attempts := 0
	probe := func() error {
		attempts++
		err := o.Provisioner.Healthy(ctx, instance)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrInstanceGone) {
			return backoff.Permanent(err)
		}
		o.debug(ctx, "shadow database not healthy yet",
			logging.Field{Key: "attempt", Value: attempts},
			logging.Field{Key: "error", Value: err},
		)
		return err
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(cfg.PollInterval), uint64(cfg.PollAttempts-1)), //nolint:gosec // attempts > 0
		ctx,
	)
	err := backoff.Retry(probe, policy)
	switch {
	case err == nil:
		o.info(ctx, "shadow database is healthy", logging.Field{Key: "attempts", Value: attempts})
		return nil
	case errors.Is(err, ErrInstanceGone):
		return err
	case ctx.Err() != nil:
		return fmt.Errorf("wait for shadow database: %w", ctx.Err())
	default:
		return &ProvisioningTimeoutError{
			InstanceID: instance.ID,
			Attempts:   attempts,
			Interval:   cfg.PollInterval,
			Err:        err,
		}
	}
}

func (o *Orchestrator) seed(ctx context.Context, db *sql.DB, path string, data []byte) error {
	o.info(ctx, "applying baseline", logging.Field{Key: "path", Value: path})
	if _, err := db.ExecContext(ctx, string(data)); err != nil {
		return fmt.Errorf("apply baseline %s: %w", path, err)
	}
	return nil
}

func (o *Orchestrator) destroy(cfg Config, instance Instance) *CleanupError {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.CleanupTimeout)
	defer cancel()
	if err := o.Provisioner.Destroy(ctx, instance); err != nil {
		cerr := &CleanupError{InstanceID: instance.ID, Hint: instance.RemoveHint, Err: err}
		o.warn(ctx, "failed to destroy shadow database",
			logging.Field{Key: "instance_id", Value: instance.ID},
			logging.Field{Key: "hint", Value: instance.RemoveHint},
			logging.Field{Key: "error", Value: err},
		)
		return cerr
	}
	o.info(ctx, "destroyed shadow database", logging.Field{Key: "instance_id", Value: instance.ID})
	return nil
}

type run struct {
	orchestrator *Orchestrator
	state        State
}

func (r *run) to(next State) {
	from := r.state
	r.state = next
	r.orchestrator.debug(context.Background(), "state transition",
		logging.Field{Key: "from", Value: from.String()},
		logging.Field{Key: "to", Value: next.String()},
	)
	if r.orchestrator.Observer != nil {
		r.orchestrator.Observer(from, next)
	}
}

func (o *Orchestrator) info(ctx context.Context, msg string, fields ...logging.Field) {
	if hl, ok := o.Logger.(logging.Helper); ok {
		hl.Helper()
	}
	logging.Emit(ctx, o.Logger, logging.LevelInfo, msg, fields...)
}

func (o *Orchestrator) debug(ctx context.Context, msg string, fields ...logging.Field) {
	if hl, ok := o.Logger.(logging.Helper); ok {
		hl.Helper()
	}
	logging.Emit(ctx, o.Logger, logging.LevelDebug, msg, fields...)
}

func (o *Orchestrator) warn(ctx context.Context, msg string, fields ...logging.Field) {
	if hl, ok := o.Logger.(logging.Helper); ok {
		hl.Helper()
	}
	logging.Emit(ctx, o.Logger, logging.LevelWarning, msg, fields...)
}

func (o *Orchestrator) error(ctx context.Context, err error, msg string, fields ...logging.Field) {
	if hl, ok := o.Logger.(logging.Helper); ok {
		hl.Helper()
	}
	logging.EmitError(ctx, o.Logger, err, msg, fields...)
}
