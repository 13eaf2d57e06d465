package config

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/pgbranch/pgbranch/internal/pgerr"
)

const (
	CommittedFileName = ".pgbranch.yml"
	LocalFileName     = ".pgbranch.local.yml"
)

// Resolve deep-merges env > local file > committed file > defaults and
// returns the EffectiveConfig plus a provenance trail for config-show -v.
func Resolve(fsys afero.Fs, projectRoot string) (EffectiveConfig, []SourceEntry, error) {
	var sources []SourceEntry
	merged := Defaults()
	sources = append(sources,
		SourceEntry{Key: "git.main_branch", Value: merged.Git.MainBranch, Layer: LayerDefault},
		SourceEntry{Key: "behavior.operation_deadline_seconds", Value: strconv.Itoa(merged.Behavior.OperationDeadlineSeconds), Layer: LayerDefault},
		SourceEntry{Key: "backend.kind", Value: merged.Backend.Kind, Layer: LayerDefault},
		SourceEntry{Key: "backend.image", Value: merged.Backend.Image, Layer: LayerDefault},
		SourceEntry{Key: "backend.port_range_start", Value: strconv.Itoa(merged.Backend.PortRangeStart), Layer: LayerDefault},
		SourceEntry{Key: "naming.strategy", Value: string(merged.Naming.Strategy), Layer: LayerDefault},
	)

	committed, err := loadFile(fsys, filepath.Join(projectRoot, CommittedFileName))
	if err != nil {
		return EffectiveConfig{}, nil, err
	}
	mergeInto(&merged, committed, LayerCommitted, &sources)

	local, err := loadFile(fsys, filepath.Join(projectRoot, LocalFileName))
	if err != nil {
		return EffectiveConfig{}, nil, err
	}
	mergeInto(&merged, local, LayerLocal, &sources)

	env := loadEnv()
	mergeInto(&merged, env, LayerEnv, &sources)

	effective := EffectiveConfig(merged)
	if err := validateEffective(effective); err != nil {
		return EffectiveConfig{}, nil, err
	}
	return effective, sources, nil
}

func loadFile(fsys afero.Fs, path string) (FileConfig, error) {
	exists, err := afero.Exists(fsys, path)
	if err != nil {
		return FileConfig{}, pgerr.New(pgerr.IoError, pgerr.Context{Phase: "config-load"}, err, "stat %s", path)
	}
	if !exists {
		return FileConfig{}, nil
	}
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return FileConfig{}, pgerr.New(pgerr.IoError, pgerr.Context{Phase: "config-load"}, err, "read %s", path)
	}
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return FileConfig{}, pgerr.New(pgerr.ConfigInvalid, pgerr.Context{Phase: "config-parse"}, err, "parse %s", path)
	}
	return fc, nil
}

// loadEnv reads the fixed PGBRANCH_* environment toggles into overlay
// shape.
func loadEnv() FileConfig {
	v := viper.New()
	v.SetEnvPrefix("PGBRANCH")
	v.AutomaticEnv()

	var overlay FileConfig
	if v.GetBool("DISABLED") {
		overlay.Git.Disabled = true
	}
	if v.GetBool("AUTO_CREATE") {
		overlay.Git.AutoCreateOnBranch = true
	}
	if v.GetBool("AUTO_SWITCH") {
		overlay.Git.AutoSwitchOnBranch = true
	}
	if filter := v.GetString("BRANCH_FILTER_REGEX"); filter != "" {
		overlay.Git.AutoCreateBranchFilter = filter
	}
	if raw := v.GetString("DISABLED_BRANCHES"); raw != "" {
		overlay.Git.DisabledBranches = strings.Split(raw, ",")
	}
	if host := v.GetString("DATABASE_HOST"); host != "" {
		overlay.Backend.Host = host
	}
	if port := v.GetString("DATABASE_PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil {
			overlay.Backend.Port = n
		}
	}
	if user := v.GetString("DATABASE_USER"); user != "" {
		overlay.Backend.User = user
	}
	if pass := v.GetString("DATABASE_PASSWORD"); pass != "" {
		overlay.Backend.Password = pass
	}
	if prefix := v.GetString("DATABASE_PREFIX"); prefix != "" {
		overlay.Naming.Prefix = prefix
	}
	return overlay
}

// CurrentBranchDisabled reports the PGBRANCH_CURRENT_BRANCH_DISABLED toggle,
// read separately from loadEnv because it gates a specific branch rather
// than mutating the merged config.
func CurrentBranchDisabled() bool {
	v := viper.New()
	v.SetEnvPrefix("PGBRANCH")
	v.AutomaticEnv()
	return v.GetBool("CURRENT_BRANCH_DISABLED")
}

// StrictHooks reports PGBRANCH_STRICT_HOOKS.
func StrictHooks() bool {
	v := viper.New()
	v.SetEnvPrefix("PGBRANCH")
	v.AutomaticEnv()
	return v.GetBool("STRICT_HOOKS")
}

// SkipHooks reports PGBRANCH_SKIP_HOOKS.
func SkipHooks() bool {
	v := viper.New()
	v.SetEnvPrefix("PGBRANCH")
	v.AutomaticEnv()
	return v.GetBool("SKIP_HOOKS")
}

// DedupSources collapses a provenance trail down to the last entry per key,
// i.e. whichever layer actually won the merge for that key.
func DedupSources(sources []SourceEntry) []SourceEntry {
	index := map[string]int{}
	var out []SourceEntry
	for _, s := range sources {
		if i, ok := index[s.Key]; ok {
			out[i] = s
			continue
		}
		index[s.Key] = len(out)
		out = append(out, s)
	}
	return out
}

var validate = validator.New()

func validateEffective(cfg EffectiveConfig) error {
	switch cfg.Naming.Strategy {
	case "prefix", "suffix", "replace":
	default:
		return pgerr.New(pgerr.ConfigInvalid, pgerr.Context{Phase: "config-validate"}, nil, "naming.strategy must be one of prefix|suffix|replace, got %q", cfg.Naming.Strategy)
	}
	if cfg.Backend.PortRangeStart < 0 || cfg.Backend.PortRangeStart > 65535 {
		return pgerr.New(pgerr.ConfigInvalid, pgerr.Context{Phase: "config-validate"}, nil, "backend.port_range_start out of range: %d", cfg.Backend.PortRangeStart)
	}
	switch cfg.Backend.Kind {
	case "local", "postgres_template", "neon", "dblab", "xata":
	default:
		return pgerr.New(pgerr.ConfigInvalid, pgerr.Context{Phase: "config-validate"}, nil, "backend.kind unrecognised: %q", cfg.Backend.Kind)
	}
	if cfg.Git.AutoCreateBranchFilter != "" {
		if _, err := regexp.Compile(cfg.Git.AutoCreateBranchFilter); err != nil {
			return pgerr.New(pgerr.ConfigInvalid, pgerr.Context{Phase: "config-validate"}, err, "git.auto_create_branch_filter is not a valid regexp")
		}
	}
	if err := validate.Struct(cfg); err != nil {
		return pgerr.New(pgerr.ConfigInvalid, pgerr.Context{Phase: "config-validate"}, err, "effective config failed validation")
	}
	return nil
}
