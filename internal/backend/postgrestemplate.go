package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"

	"github.com/pgbranch/pgbranch/internal/pgerr"
	"github.com/pgbranch/pgbranch/internal/statestore"
)

// Conn is the subset of *pgx.Conn the PostgresTemplate backend depends on,
// narrowed to an interface so tests can substitute a fake server instead of
// a real PostgreSQL instance.
type Conn interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Close(ctx context.Context) error
}

// ConnectFunc opens a maintenance connection to dsn. Defaults to
// pgx.Connect; overridable in tests.
type ConnectFunc func(ctx context.Context, dsn string) (Conn, error)

func defaultConnect(ctx context.Context, dsn string) (Conn, error) {
	return pgx.Connect(ctx, dsn)
}

// PostgresTemplate implements branching via server-side
// CREATE DATABASE ... WITH TEMPLATE against a single always-on server.
type PostgresTemplate struct {
	Host, User, Password string
	Port                 int
	Connect              ConnectFunc // nil means pgx.Connect
	// GraceWindow bounds how long Create retries pg_terminate_backend
	// before failing with TemplateBusy.
	GraceWindow time.Duration
}

func (p *PostgresTemplate) Kind() string { return "postgres_template" }

func (p *PostgresTemplate) connect(ctx context.Context, database string) (Conn, error) {
	fn := p.Connect
	if fn == nil {
		fn = defaultConnect
	}
	dsn := fmt.Sprintf("postgresql://%s:%s@%s:%d/%s?connect_timeout=5", p.User, p.Password, p.Host, p.Port, database)
	conn, err := fn(ctx, dsn)
	if err != nil {
		return nil, pgerr.New(pgerr.BackendUnavailable, pgerr.Context{Phase: "postgrestemplate-connect"}, err, "connect to %s:%d/%s", p.Host, p.Port, database)
	}
	return conn, nil
}

func (p *PostgresTemplate) graceWindow() time.Duration {
	if p.GraceWindow > 0 {
		return p.GraceWindow
	}
	return 3 * time.Second
}

// terminateIdleSessions repeatedly issues pg_terminate_backend against every
// connection to database other than this one, within the configured grace
// window, returning TemplateBusy if connections remain at the end of it.
func (p *PostgresTemplate) terminateIdleSessions(ctx context.Context, conn Conn, database string) error {
	deadline := time.Now().Add(p.graceWindow())
	for {
		if _, err := conn.Exec(ctx,
			`SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = $1 AND pid <> pg_backend_pid()`,
			database); err != nil {
			return pgerr.New(pgerr.BackendUnavailable, pgerr.Context{Phase: "postgrestemplate-terminate"}, err, "terminate backends on %s", database)
		}

		var remaining int
		row := conn.QueryRow(ctx, `SELECT count(*) FROM pg_stat_activity WHERE datname = $1 AND pid <> pg_backend_pid()`, database)
		if err := row.Scan(&remaining); err != nil {
			return pgerr.New(pgerr.BackendUnavailable, pgerr.Context{Phase: "postgrestemplate-terminate"}, err, "count active sessions on %s", database)
		}
		if remaining == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return pgerr.New(pgerr.TemplateBusy, pgerr.Context{Phase: "postgrestemplate-terminate"}, nil,
				"%s still has %d active session(s) after grace window", database, remaining)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func (p *PostgresTemplate) Create(ctx context.Context, pc ProjectContext, name, parent string) (statestore.Branch, error) {
	dbName, err := deriveName(pc, name)
	if err != nil {
		return statestore.Branch{}, err
	}

	if len(pc.ExistingBranches) == 0 {
		return p.createRoot(ctx, name, dbName)
	}

	if parent == "" {
		root, ok := pc.RootBranch()
		if !ok {
			return statestore.Branch{}, errParentMissing("<root>")
		}
		parent = root.Name
	}
	parentBranch, ok := pc.ExistingBranches[parent]
	if !ok {
		return statestore.Branch{}, errParentMissing(parent)
	}

	conn, err := p.connect(ctx, "postgres")
	if err != nil {
		return statestore.Branch{}, err
	}
	defer conn.Close(ctx)

	if err := p.terminateIdleSessions(ctx, conn, parentBranch.DBName); err != nil {
		return statestore.Branch{}, err
	}

	stmt := fmt.Sprintf(`CREATE DATABASE %q WITH TEMPLATE %q OWNER %q`, dbName, parentBranch.DBName, p.User)
	if _, err := conn.Exec(ctx, stmt); err != nil {
		return statestore.Branch{}, pgerr.New(pgerr.BackendUnavailable, pgerr.Context{Phase: "postgrestemplate-create"}, err, "create database %s from template %s", dbName, parentBranch.DBName)
	}

	return statestore.Branch{
		Name: name, DBName: dbName, Parent: parent, Handle: dbName,
		Host: p.Host, Port: p.Port, Status: statestore.StatusRunning, CreatedAt: time.Now().UTC(),
	}, nil
}

func (p *PostgresTemplate) createRoot(ctx context.Context, name, dbName string) (statestore.Branch, error) {
	conn, err := p.connect(ctx, "postgres")
	if err != nil {
		return statestore.Branch{}, err
	}
	defer conn.Close(ctx)

	var exists int
	row := conn.QueryRow(ctx, `SELECT count(*) FROM pg_database WHERE datname = $1`, dbName)
	if err := row.Scan(&exists); err != nil {
		return statestore.Branch{}, pgerr.New(pgerr.BackendUnavailable, pgerr.Context{Phase: "postgrestemplate-create-root"}, err, "check for existing database %s", dbName)
	}
	if exists == 0 {
		stmt := fmt.Sprintf(`CREATE DATABASE %q OWNER %q`, dbName, p.User)
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return statestore.Branch{}, pgerr.New(pgerr.BackendUnavailable, pgerr.Context{Phase: "postgrestemplate-create-root"}, err, "create root database %s", dbName)
		}
	}

	return statestore.Branch{
		Name: name, DBName: dbName, Handle: dbName,
		Host: p.Host, Port: p.Port, Status: statestore.StatusRunning, CreatedAt: time.Now().UTC(),
	}, nil
}

func (p *PostgresTemplate) Delete(ctx context.Context, pc ProjectContext, branch statestore.Branch) error {
	conn, err := p.connect(ctx, "postgres")
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	if err := p.terminateIdleSessions(ctx, conn, branch.DBName); err != nil {
		return err
	}
	stmt := fmt.Sprintf(`DROP DATABASE IF EXISTS %q`, branch.DBName)
	if _, err := conn.Exec(ctx, stmt); err != nil {
		return pgerr.New(pgerr.BackendUnavailable, pgerr.Context{Phase: "postgrestemplate-delete"}, err, "drop database %s", branch.DBName)
	}
	return nil
}

func (p *PostgresTemplate) List(ctx context.Context, pc ProjectContext) ([]statestore.Branch, error) {
	out := make([]statestore.Branch, 0, len(pc.ExistingBranches))
	for _, b := range pc.ExistingBranches {
		out = append(out, b)
	}
	return out, nil
}

// Start is unsupported: a template-mode database has no separate server
// process to start.
func (p *PostgresTemplate) Start(ctx context.Context, pc ProjectContext, branch statestore.Branch) (statestore.Branch, error) {
	return branch, pgerr.New(pgerr.BackendUnavailable, pgerr.Context{Phase: "postgrestemplate-start", Branch: branch.Name}, nil, "start is unsupported for the postgres_template backend")
}

// Stop is unsupported for the same reason as Start.
func (p *PostgresTemplate) Stop(ctx context.Context, pc ProjectContext, branch statestore.Branch) (statestore.Branch, error) {
	return branch, pgerr.New(pgerr.BackendUnavailable, pgerr.Context{Phase: "postgrestemplate-stop", Branch: branch.Name}, nil, "stop is unsupported for the postgres_template backend")
}

// Reset drops and recreates branch from its parent.
func (p *PostgresTemplate) Reset(ctx context.Context, pc ProjectContext, branch statestore.Branch) (statestore.Branch, error) {
	parent, ok := pc.ExistingBranches[branch.Parent]
	if !ok {
		return branch, errParentMissing(branch.Parent)
	}

	conn, err := p.connect(ctx, "postgres")
	if err != nil {
		return branch, err
	}
	defer conn.Close(ctx)

	if err := p.terminateIdleSessions(ctx, conn, branch.DBName); err != nil {
		return branch, err
	}
	if _, err := conn.Exec(ctx, fmt.Sprintf(`DROP DATABASE IF EXISTS %q`, branch.DBName)); err != nil {
		return branch, pgerr.New(pgerr.BackendUnavailable, pgerr.Context{Phase: "postgrestemplate-reset"}, err, "drop database %s", branch.DBName)
	}
	if err := p.terminateIdleSessions(ctx, conn, parent.DBName); err != nil {
		return branch, err
	}
	stmt := fmt.Sprintf(`CREATE DATABASE %q WITH TEMPLATE %q OWNER %q`, branch.DBName, parent.DBName, p.User)
	if _, err := conn.Exec(ctx, stmt); err != nil {
		return branch, pgerr.New(pgerr.BackendUnavailable, pgerr.Context{Phase: "postgrestemplate-reset"}, err, "recreate database %s from template %s", branch.DBName, parent.DBName)
	}

	branch.Status = statestore.StatusRunning
	return branch, nil
}

func (p *PostgresTemplate) Connection(ctx context.Context, pc ProjectContext, branch statestore.Branch) (ConnectionInfo, error) {
	return ConnectionInfo{
		Host: p.Host, Port: p.Port, Database: branch.DBName,
		User: p.User, Password: p.Password,
	}, nil
}

func (p *PostgresTemplate) Health(ctx context.Context, pc ProjectContext) ([]Issue, error) {
	conn, err := p.connect(ctx, "postgres")
	if err != nil {
		return nil, err
	}
	defer conn.Close(ctx)

	var issues []Issue
	for _, b := range pc.ExistingBranches {
		var exists int
		row := conn.QueryRow(ctx, `SELECT count(*) FROM pg_database WHERE datname = $1`, b.DBName)
		if err := row.Scan(&exists); err != nil {
			issues = append(issues, Issue{Message: fmt.Sprintf("branch %s: could not query pg_database: %v", b.Name, err)})
			continue
		}
		if exists == 0 {
			issues = append(issues, Issue{Message: fmt.Sprintf("branch %s: database %s does not exist on server", b.Name, b.DBName)})
		}
	}
	return issues, nil
}

func (p *PostgresTemplate) Destroy(ctx context.Context, pc ProjectContext) error {
	for _, b := range pc.ExistingBranches {
		if err := p.Delete(ctx, pc, b); err != nil {
			return err
		}
	}
	return nil
}
