// Package diagnostics implements the read-only traversal commands --
// doctor, status, and config-show -- over the Config Resolver, State
// Store, and Backend.
package diagnostics

import (
	"context"
	"strings"

	"github.com/spf13/afero"

	"github.com/pgbranch/pgbranch/internal/backend"
	"github.com/pgbranch/pgbranch/internal/config"
	"github.com/pgbranch/pgbranch/internal/statestore"
)

// Engine is the subset of *lifecycle.Engine diagnostics depends on.
type Engine interface {
	List(ctx context.Context) ([]statestore.Branch, error)
	Reconcile(ctx context.Context) ([]backend.Issue, error)
	PurgeStuck(ctx context.Context) ([]string, error)
}

// Finding is one doctor-reported inconsistency, plus whether --fix knows
// how to repair it.
type Finding struct {
	Message string
	Fixable bool
}

// DoctorReport is what `doctor` prints: every detected inconsistency, and,
// if --fix was passed, what got repaired.
type DoctorReport struct {
	Findings []Finding
	Fixed    []string
}

// Doctor enumerates inconsistencies via Reconcile without attempting any
// repair; with fix=true it also purges branches stuck in
// Creating/Deleting.
func Doctor(ctx context.Context, eng Engine, fix bool) (DoctorReport, error) {
	issues, err := eng.Reconcile(ctx)
	if err != nil {
		return DoctorReport{}, err
	}

	var report DoctorReport
	for _, iss := range issues {
		report.Findings = append(report.Findings, Finding{Message: iss.Message, Fixable: isStuckMessage(iss.Message)})
	}

	if fix {
		purged, err := eng.PurgeStuck(ctx)
		if err != nil {
			return report, err
		}
		report.Fixed = purged
	}
	return report, nil
}

func isStuckMessage(msg string) bool {
	return strings.Contains(msg, "stuck in Creating") || strings.Contains(msg, "stuck in Deleting")
}

// StatusReport is `status`'s read-only snapshot of a project.
type StatusReport struct {
	CurrentBranch string
	Branches      []statestore.Branch
}

// Status lists every persisted branch, marking which one is current.
func Status(ctx context.Context, eng Engine, statePath, projectRoot string, fsys afero.Fs) (StatusReport, error) {
	branches, err := eng.List(ctx)
	if err != nil {
		return StatusReport{}, err
	}
	store, err := statestore.Load(fsys, statePath)
	if err != nil {
		return StatusReport{}, err
	}
	ps := store.Project(projectRoot)
	return StatusReport{CurrentBranch: ps.CurrentBranch, Branches: branches}, nil
}

// ConfigShow resolves the effective config and its per-key provenance, for
// `config -v`.
func ConfigShow(fsys afero.Fs, projectRoot string) (config.EffectiveConfig, []config.SourceEntry, error) {
	return config.Resolve(fsys, projectRoot)
}
