package container

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v4"

	"github.com/pgbranch/pgbranch/internal/pgerr"
)

// readinessCap bounds the total wait for a container to accept connections
// and answer a trivial query.
const readinessCap = 30 * time.Second

// WaitReady polls a TCP connect + SELECT 1 with bounded exponential
// backoff. On timeout
// it returns a ReadinessTimeout error carrying the last probe failure.
func WaitReady(ctx context.Context, host string, port int, user, password, database string) error {
	ctx, cancel := context.WithTimeout(ctx, readinessCap)
	defer cancel()

	b := backoff.WithContext(backoff.NewExponentialBackOff(backoff.WithInitialInterval(200*time.Millisecond)), ctx)

	var lastErr error
	probe := func() error {
		url := fmt.Sprintf("postgresql://%s:%s@%s:%d/%s?connect_timeout=2", user, password, host, port, database)
		conn, err := pgx.Connect(ctx, url)
		if err != nil {
			lastErr = err
			return err
		}
		defer conn.Close(ctx)
		var one int
		if err := conn.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
			lastErr = err
			return err
		}
		return nil
	}

	if err := backoff.Retry(probe, b); err != nil {
		return pgerr.New(pgerr.ReadinessTimeout, pgerr.Context{Phase: "container-ready"}, lastErr, "postgres did not become ready within %s", readinessCap)
	}
	return nil
}
