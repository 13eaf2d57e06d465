// Package statestore implements the authoritative per-project persisted
// view of branches: a single YAML file per user, keyed by canonicalised
// project root, written atomically and locked around every mutation.
package statestore

import "time"

// Status is a branch's lifecycle status.
type Status string

const (
	StatusCreating  Status = "Creating"
	StatusRunning   Status = "Running"
	StatusStopped   Status = "Stopped"
	StatusErrored   Status = "Errored"
	StatusDestroyed Status = "Destroyed"
	StatusDeleting  Status = "Deleting"
)

// Branch is one persisted branch entry.
type Branch struct {
	Name      string    `yaml:"name"`
	DBName    string    `yaml:"db_name"`
	Parent    string    `yaml:"parent"` // empty only for the root branch
	Handle    string    `yaml:"handle"` // container id, remote branch id, or template db name
	Host      string    `yaml:"host,omitempty"`
	Port      int       `yaml:"port,omitempty"`
	Status    Status    `yaml:"status"`
	CreatedAt time.Time `yaml:"created_at"`
}

// IsRoot reports whether this branch has no parent.
func (b Branch) IsRoot() bool { return b.Parent == "" }

// ProjectState is the per-project record: backend settings snapshot,
// detected CoW strategy, branch table, and current checked-out branch.
type ProjectState struct {
	BackendKind      string            `yaml:"backend_kind"`
	DetectedStrategy string            `yaml:"detected_strategy,omitempty"`
	ZFSDataset       string            `yaml:"zfs_dataset,omitempty"`
	DockerImage      string            `yaml:"docker_image,omitempty"`
	DataRoot         string            `yaml:"data_root,omitempty"`
	PortRangeStart   int               `yaml:"port_range_start,omitempty"`
	CurrentBranch    string            `yaml:"current_branch,omitempty"`
	Branches         map[string]Branch `yaml:"branches"`
}

// CurrentSchemaVersion is bumped whenever the on-disk shape changes
// incompatibly. Unknown versions fail closed with StateIncompatible.
const CurrentSchemaVersion = 1

// Store is the root document persisted to local_state.yml.
type Store struct {
	Version  int                     `yaml:"version"`
	Projects map[string]ProjectState `yaml:"projects"`
}

// Project returns the state for root, creating an empty entry if absent.
func (s *Store) Project(root string) ProjectState {
	if s.Projects == nil {
		return ProjectState{Branches: map[string]Branch{}}
	}
	p, ok := s.Projects[root]
	if !ok {
		return ProjectState{Branches: map[string]Branch{}}
	}
	if p.Branches == nil {
		p.Branches = map[string]Branch{}
	}
	return p
}

// SetProject replaces the state for root.
func (s *Store) SetProject(root string, p ProjectState) {
	if s.Projects == nil {
		s.Projects = map[string]ProjectState{}
	}
	s.Projects[root] = p
}
