package shadow

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for database/sql
)

// Instance is a running shadow database.
type Instance struct {
	// ID identifies the instance to its provisioner. An empty ID means nothing
	// was created.
	ID string
	// URL is the connection string for the instance.
	URL string
	// RemoveHint is a command a human can run to remove the instance if
	// automatic cleanup fails.
	RemoveHint string
}

// Provisioner creates, checks, and destroys shadow databases.
type Provisioner interface {
	// Provision creates and starts a new instance. If it fails after the
	// instance was created, it should return the instance with its ID set so
	// that it is still destroyed.
	Provision(ctx context.Context) (Instance, error)
	// Healthy returns nil once the instance accepts connections. Returning an
	// error wrapping [ErrInstanceGone] stops any further checks.
	Healthy(ctx context.Context, instance Instance) error
	// Destroy removes the instance and everything it stored.
	Destroy(ctx context.Context, instance Instance) error
}

// PingPostgres connects to url and pings the server.
func PingPostgres(ctx context.Context, url string) error {
	conn, err := pgx.Connect(ctx, url)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	return conn.Ping(ctx)
}

// OpenPostgres opens url with the pgx database/sql driver.
func OpenPostgres(_ context.Context, url string) (*sql.DB, error) {
	return sql.Open("pgx", url)
}
