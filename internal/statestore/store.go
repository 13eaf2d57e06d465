package statestore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/pgbranch/pgbranch/internal/pgerr"
)

// Load reads the state file at path. A missing file is treated as empty
// state.
func Load(fsys afero.Fs, path string) (*Store, error) {
	exists, err := afero.Exists(fsys, path)
	if err != nil {
		return nil, pgerr.New(pgerr.IoError, pgerr.Context{Phase: "state-load"}, err, "stat state file")
	}
	if !exists {
		return &Store{Version: CurrentSchemaVersion, Projects: map[string]ProjectState{}}, nil
	}
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, pgerr.New(pgerr.IoError, pgerr.Context{Phase: "state-load"}, err, "read state file")
	}
	var s Store
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, pgerr.New(pgerr.StateIncompatible, pgerr.Context{Phase: "state-load"}, err, "state file is not valid YAML")
	}
	if s.Version == 0 {
		s.Version = CurrentSchemaVersion
	}
	if s.Version != CurrentSchemaVersion {
		return nil, pgerr.New(pgerr.StateIncompatible, pgerr.Context{Phase: "state-load"}, nil,
			"state file schema version %d is incompatible with this binary (expects %d)", s.Version, CurrentSchemaVersion)
	}
	if s.Projects == nil {
		s.Projects = map[string]ProjectState{}
	}
	return &s, nil
}

// Save writes the state file atomically: write to a temp sibling, fsync,
// rename over the destination.
func Save(fsys afero.Fs, path string, s *Store) error {
	s.Version = CurrentSchemaVersion
	data, err := yaml.Marshal(s)
	if err != nil {
		return pgerr.New(pgerr.IoError, pgerr.Context{Phase: "state-save"}, err, "marshal state")
	}
	dir := filepath.Dir(path)
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return pgerr.New(pgerr.IoError, pgerr.Context{Phase: "state-save"}, err, "mkdir %s", dir)
	}
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(path), uuid.NewString()))
	f, err := fsys.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return pgerr.New(pgerr.IoError, pgerr.Context{Phase: "state-save"}, err, "create temp state file")
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		_ = fsys.Remove(tmp)
		return pgerr.New(pgerr.IoError, pgerr.Context{Phase: "state-save"}, err, "write temp state file")
	}
	if syncer, ok := f.(interface{ Sync() error }); ok {
		if err := syncer.Sync(); err != nil {
			f.Close()
			_ = fsys.Remove(tmp)
			return pgerr.New(pgerr.IoError, pgerr.Context{Phase: "state-save"}, err, "fsync temp state file")
		}
	}
	if err := f.Close(); err != nil {
		_ = fsys.Remove(tmp)
		return pgerr.New(pgerr.IoError, pgerr.Context{Phase: "state-save"}, err, "close temp state file")
	}
	if err := fsys.Rename(tmp, path); err != nil {
		_ = fsys.Remove(tmp)
		return pgerr.New(pgerr.IoError, pgerr.Context{Phase: "state-save"}, err, "rename temp state file into place")
	}
	return nil
}

// CanonicalRoot canonicalises a project root path for use as a Projects map
// key, resolving symlinks so the same repo checked out via different paths
// maps to the same entry.
func CanonicalRoot(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// Tolerate not-yet-existing paths (e.g. dry runs against MemMapFs).
		return abs, nil
	}
	return resolved, nil
}
