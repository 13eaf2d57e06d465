package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKillSwitchDisabled(t *testing.T) {
	cfg := EffectiveConfig{Git: GitPolicy{Disabled: true}}
	ks := EvaluateKillSwitches(cfg, "feature/x", false)
	fired, _ := ks.Fired()
	assert.True(t, fired)
}

func TestKillSwitchExcludeBranchGlob(t *testing.T) {
	cfg := EffectiveConfig{Git: GitPolicy{ExcludeBranches: []string{"release/*"}}}
	ks := EvaluateKillSwitches(cfg, "release/1.0", false)
	fired, reason := ks.Fired()
	assert.True(t, fired)
	assert.Contains(t, reason, "release/*")
}

func TestKillSwitchCurrentBranchDisabledEnv(t *testing.T) {
	cfg := EffectiveConfig{}
	ks := EvaluateKillSwitches(cfg, "main", true)
	fired, _ := ks.Fired()
	assert.True(t, fired)
}

func TestKillSwitchFilterBlocksNonMatch(t *testing.T) {
	cfg := EffectiveConfig{Git: GitPolicy{AutoCreateBranchFilter: "^feature/.*"}}
	ks := EvaluateKillSwitches(cfg, "bugfix/x", false)
	fired, _ := ks.Fired()
	assert.True(t, fired)
}

func TestKillSwitchFilterAllowsMatch(t *testing.T) {
	cfg := EffectiveConfig{Git: GitPolicy{AutoCreateBranchFilter: "^feature/.*"}}
	ks := EvaluateKillSwitches(cfg, "feature/x", false)
	fired, _ := ks.Fired()
	assert.False(t, fired)
}

func TestKillSwitchNoneFired(t *testing.T) {
	cfg := EffectiveConfig{}
	ks := EvaluateKillSwitches(cfg, "main", false)
	fired, _ := ks.Fired()
	assert.False(t, fired)
}
