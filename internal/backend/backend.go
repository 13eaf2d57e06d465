// Package backend defines the polymorphic branch-operation interface and
// its variants: Local (Docker + CoW storage), PostgresTemplate (server-side
// CREATE DATABASE ... WITH TEMPLATE), and the remote Neon/DBLab/Xata APIs.
package backend

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pgbranch/pgbranch/internal/naming"
	"github.com/pgbranch/pgbranch/internal/statestore"
)

// ConnectionInfo is what `connection <branch>` renders in uri/env/json form.
type ConnectionInfo struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// URI renders the standard postgresql:// connection string for c.
func (c ConnectionInfo) URI() string {
	return fmt.Sprintf("postgresql://%s:%s@%s:%d/%s", c.User, c.Password, c.Host, c.Port, c.Database)
}

// MarshalJSON includes the derived connection_string field alongside the
// discrete host/port/database/user/password fields.
func (c ConnectionInfo) MarshalJSON() ([]byte, error) {
	type alias struct {
		Host             string `json:"host"`
		Port             int    `json:"port"`
		Database         string `json:"database"`
		User             string `json:"user"`
		Password         string `json:"password"`
		ConnectionString string `json:"connection_string"`
	}
	return json.Marshal(alias{
		Host:             c.Host,
		Port:             c.Port,
		Database:         c.Database,
		User:             c.User,
		Password:         c.Password,
		ConnectionString: c.URI(),
	})
}

// Issue is one problem surfaced by Health.
type Issue struct {
	Message string
}

// ProjectContext carries whatever a backend needs to act without being a
// mutator of the State Store itself: the Lifecycle Engine reads state,
// passes a snapshot in, and persists whatever the backend returns.
type ProjectContext struct {
	ProjectRoot      string
	DataRoot         string
	PortRangeStart   int
	Image            string
	NamingStrategy   naming.Strategy
	Prefix, Suffix   string
	ExistingBranches map[string]statestore.Branch
}

// UsedPorts collects the ports already claimed within the project, so Local
// branch creation never reallocates one.
func (p ProjectContext) UsedPorts() map[int]bool {
	used := make(map[int]bool, len(p.ExistingBranches))
	for _, b := range p.ExistingBranches {
		if b.Port != 0 {
			used[b.Port] = true
		}
	}
	return used
}

// RootBranch returns the project's root branch (no parent), if any.
func (p ProjectContext) RootBranch() (statestore.Branch, bool) {
	for _, b := range p.ExistingBranches {
		if b.IsRoot() {
			return b, true
		}
	}
	return statestore.Branch{}, false
}

// Backend is the polymorphic branch operation set every variant
// implements.
type Backend interface {
	Kind() string
	Create(ctx context.Context, pc ProjectContext, name, parent string) (statestore.Branch, error)
	Delete(ctx context.Context, pc ProjectContext, branch statestore.Branch) error
	List(ctx context.Context, pc ProjectContext) ([]statestore.Branch, error)
	Start(ctx context.Context, pc ProjectContext, branch statestore.Branch) (statestore.Branch, error)
	Stop(ctx context.Context, pc ProjectContext, branch statestore.Branch) (statestore.Branch, error)
	Reset(ctx context.Context, pc ProjectContext, branch statestore.Branch) (statestore.Branch, error)
	Connection(ctx context.Context, pc ProjectContext, branch statestore.Branch) (ConnectionInfo, error)
	Health(ctx context.Context, pc ProjectContext) ([]Issue, error)
	// Destroy tears down every backend resource for the project, including
	// the root branch.
	Destroy(ctx context.Context, pc ProjectContext) error
}

// deriveName applies the project's naming strategy to a Git branch name,
// then checks for collisions within ExistingBranches.
func deriveName(pc ProjectContext, branchName string) (string, error) {
	dbName, err := naming.Derive(pc.NamingStrategy, pc.Prefix, pc.Suffix, branchName)
	if err != nil {
		return "", err
	}
	for _, b := range pc.ExistingBranches {
		if b.DBName == dbName {
			return "", errNameCollision(dbName)
		}
	}
	return dbName, nil
}
