package config

import (
	"path/filepath"
	"regexp"
)

// KillSwitches is the immutable, once-per-invocation policy value computed
// from the effective config and the current Git branch. It is computed
// once and passed explicitly, never read from ambient globals.
type KillSwitches struct {
	fired  bool
	reason string
}

// Fired reports whether any kill-switch short-circuits the Event
// Dispatcher, and why.
func (k KillSwitches) Fired() (bool, string) {
	return k.fired, k.reason
}

// EvaluateKillSwitches computes the policy cluster: any one of these
// short-circuits the Event Dispatcher.
func EvaluateKillSwitches(cfg EffectiveConfig, currentBranch string, currentBranchDisabledEnv bool) KillSwitches {
	if cfg.Git.Disabled {
		return KillSwitches{fired: true, reason: "disabled"}
	}
	for _, pattern := range append(append([]string{}, cfg.Git.DisabledBranches...), cfg.Git.ExcludeBranches...) {
		if ok, _ := filepath.Match(pattern, currentBranch); ok {
			return KillSwitches{fired: true, reason: "branch " + currentBranch + " matches exclude pattern " + pattern}
		}
	}
	if currentBranchDisabledEnv {
		return KillSwitches{fired: true, reason: "current_branch_disabled"}
	}
	if cfg.Git.AutoCreateBranchFilter != "" {
		re, err := regexp.Compile(cfg.Git.AutoCreateBranchFilter)
		if err == nil && !re.MatchString(currentBranch) {
			return KillSwitches{fired: true, reason: "branch " + currentBranch + " does not match auto_create_branch_filter"}
		}
	}
	return KillSwitches{}
}
