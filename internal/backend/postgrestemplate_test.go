package backend

import (
	"context"
	"strings"
	"testing"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgbranch/pgbranch/internal/pgerr"
	"github.com/pgbranch/pgbranch/internal/statestore"
)

// fakeRow implements pgx.Row over a single pre-set scalar.
type fakeRow struct {
	val int
	err error
}

func (r fakeRow) Scan(dest ...interface{}) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*int)) = r.val
	return nil
}

// fakeConn is an in-memory Conn fake: it tracks executed statements and
// answers QueryRow for the two queries PostgresTemplate actually issues.
type fakeConn struct {
	execs     []string
	databases map[string]bool
	sessions  map[string]int // remaining active sessions per database, drained by terminate
	closed    bool
	// stuck names databases whose sessions survive terminate.
	stuck map[string]bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{databases: map[string]bool{"postgres": true}, sessions: map[string]int{}}
}

func (c *fakeConn) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	c.execs = append(c.execs, sql)
	switch {
	case strings.HasPrefix(sql, "CREATE DATABASE"):
		// naive parse: CREATE DATABASE "name" [WITH TEMPLATE "parent"] OWNER "user"
		name := args0Quoted(sql, 1)
		c.databases[name] = true
	case strings.HasPrefix(sql, "DROP DATABASE"):
		name := args0Quoted(sql, 1)
		delete(c.databases, name)
	case strings.HasPrefix(sql, "SELECT pg_terminate_backend"):
		if len(args) == 1 && !c.stuck[args[0].(string)] {
			c.sessions[args[0].(string)] = 0
		}
	}
	return pgconn.CommandTag("OK"), nil
}

// args0Quoted extracts the nth double-quoted token from sql (1-indexed).
func args0Quoted(sql string, n int) string {
	parts := strings.Split(sql, `"`)
	idx := 2*n - 1
	if idx >= len(parts) {
		return ""
	}
	return parts[idx]
}

func (c *fakeConn) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	switch {
	case strings.Contains(sql, "pg_stat_activity"):
		db := args[0].(string)
		return fakeRow{val: c.sessions[db]}
	case strings.Contains(sql, "pg_database"):
		db := args[0].(string)
		if c.databases[db] {
			return fakeRow{val: 1}
		}
		return fakeRow{val: 0}
	}
	return fakeRow{val: 0}
}

func (c *fakeConn) Close(ctx context.Context) error {
	c.closed = true
	return nil
}

func newTestTemplate(fc *fakeConn) *PostgresTemplate {
	return &PostgresTemplate{
		Host: "127.0.0.1", Port: 5432, User: "postgres", Password: "postgres",
		Connect: func(ctx context.Context, dsn string) (Conn, error) { return fc, nil },
	}
}

func TestPostgresTemplateCreateRoot(t *testing.T) {
	fc := newFakeConn()
	p := newTestTemplate(fc)
	pc := ProjectContext{ExistingBranches: map[string]statestore.Branch{}}

	branch, err := p.Create(context.Background(), pc, "main", "")
	require.NoError(t, err)
	assert.Equal(t, "main", branch.DBName)
	assert.True(t, fc.databases["main"])
}

func TestPostgresTemplateCreateChildFromTemplate(t *testing.T) {
	fc := newFakeConn()
	fc.databases["main"] = true
	p := newTestTemplate(fc)
	pc := ProjectContext{ExistingBranches: map[string]statestore.Branch{
		"main": {Name: "main", DBName: "main"},
	}}

	branch, err := p.Create(context.Background(), pc, "feature", "main")
	require.NoError(t, err)
	assert.Equal(t, "main", branch.Parent)
	assert.True(t, fc.databases["feature"])
	found := false
	for _, e := range fc.execs {
		if strings.Contains(e, `WITH TEMPLATE "main"`) {
			found = true
		}
	}
	assert.True(t, found, "expected a CREATE DATABASE ... WITH TEMPLATE statement")
}

func TestPostgresTemplateCreateTemplateBusy(t *testing.T) {
	fc := newFakeConn()
	fc.databases["main"] = true
	fc.sessions["main"] = 1
	fc.stuck = map[string]bool{"main": true} // never drains
	p := newTestTemplate(fc)
	p.GraceWindow = 1 // effectively instant timeout for the test
	pc := ProjectContext{ExistingBranches: map[string]statestore.Branch{
		"main": {Name: "main", DBName: "main"},
	}}

	_, err := p.Create(context.Background(), pc, "feature", "main")
	require.Error(t, err)
	pe, ok := pgerr.As(err)
	require.True(t, ok)
	assert.Equal(t, pgerr.TemplateBusy, pe.Kind)
}

func TestPostgresTemplateDelete(t *testing.T) {
	fc := newFakeConn()
	fc.databases["feature"] = true
	p := newTestTemplate(fc)
	pc := ProjectContext{}

	err := p.Delete(context.Background(), pc, statestore.Branch{Name: "feature", DBName: "feature"})
	require.NoError(t, err)
	assert.False(t, fc.databases["feature"])
}

func TestPostgresTemplateStartStopUnsupported(t *testing.T) {
	fc := newFakeConn()
	p := newTestTemplate(fc)
	pc := ProjectContext{}
	branch := statestore.Branch{Name: "main", DBName: "main"}

	_, err := p.Start(context.Background(), pc, branch)
	require.Error(t, err)
	pe, ok := pgerr.As(err)
	require.True(t, ok)
	assert.Equal(t, pgerr.BackendUnavailable, pe.Kind)

	_, err = p.Stop(context.Background(), pc, branch)
	require.Error(t, err)
}

func TestPostgresTemplateResetDropsAndRecreates(t *testing.T) {
	fc := newFakeConn()
	fc.databases["main"] = true
	fc.databases["feature"] = true
	p := newTestTemplate(fc)
	pc := ProjectContext{ExistingBranches: map[string]statestore.Branch{
		"main": {Name: "main", DBName: "main"},
	}}
	branch := statestore.Branch{Name: "feature", DBName: "feature", Parent: "main"}

	reset, err := p.Reset(context.Background(), pc, branch)
	require.NoError(t, err)
	assert.Equal(t, statestore.StatusRunning, reset.Status)
	assert.True(t, fc.databases["feature"])
}

func TestPostgresTemplateHealthFlagsMissingDatabase(t *testing.T) {
	fc := newFakeConn()
	p := newTestTemplate(fc)
	pc := ProjectContext{ExistingBranches: map[string]statestore.Branch{
		"main": {Name: "main", DBName: "main"},
	}}

	issues, err := p.Health(context.Background(), pc)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0].Message, "main")
}
