// Package config resolves a project's effective configuration by
// deep-merging environment overrides, the local (gitignored) file, the
// committed file, and built-in defaults, in that precedence order.
package config

import "github.com/pgbranch/pgbranch/internal/naming"

// GitPolicy controls how Git events drive the Event Dispatcher.
type GitPolicy struct {
	Disabled               bool     `yaml:"disabled"`
	DisabledBranches       []string `yaml:"disabled_branches"`
	ExcludeBranches        []string `yaml:"exclude_branches"`
	AutoCreateOnBranch     bool     `yaml:"auto_create_on_branch"`
	AutoSwitchOnBranch     bool     `yaml:"auto_switch_on_branch"`
	AutoCreateBranchFilter string   `yaml:"auto_create_branch_filter"`
	MainBranch             string   `yaml:"main_branch"`
}

// NamingConfig configures the derived database name of a branch.
type NamingConfig struct {
	Strategy naming.Strategy `yaml:"strategy"`
	Prefix   string          `yaml:"prefix"`
	Suffix   string          `yaml:"suffix"`
}

// BackendConfig holds settings for whichever backend Kind is selected.
type BackendConfig struct {
	Kind string `yaml:"kind"`

	// Local backend.
	Image          string `yaml:"image"`
	DataRoot       string `yaml:"data_root"`
	PortRangeStart int    `yaml:"port_range_start"`

	// PostgresTemplate backend.
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`

	// Remote backends (Neon, DBLab, Xata).
	APIKey   string `yaml:"api_key"`
	Project  string `yaml:"project"`
	Endpoint string `yaml:"endpoint"`
}

// CommandSpec is a structured post-command item.
type CommandSpec struct {
	Command         string            `yaml:"command"`
	WorkingDir      string            `yaml:"working_dir"`
	Condition       string            `yaml:"condition"`
	ContinueOnError bool              `yaml:"continue_on_error"`
	Environment     map[string]string `yaml:"environment"`
}

// ReplaceSpec is a file-edit post-command item.
type ReplaceSpec struct {
	File            string `yaml:"file"`
	Pattern         string `yaml:"pattern"`
	Replacement     string `yaml:"replacement"`
	CreateIfMissing bool   `yaml:"create_if_missing"`
}

// PostCommandItem is one queue entry. Exactly one of Raw, Command, or
// Replace is populated; yaml unmarshalling distinguishes raw strings from
// mapping nodes via UnmarshalYAML.
type PostCommandItem struct {
	Raw     string
	Command *CommandSpec
	Replace *ReplaceSpec
}

// Behavior groups the non-Git, non-backend knobs: timeouts, post-commands.
type Behavior struct {
	OperationDeadlineSeconds int               `yaml:"operation_deadline_seconds"`
	PostCommands             []PostCommandItem `yaml:"post_commands"`
	RunPostCommandsOnRoot    bool              `yaml:"run_post_commands_on_root"`
}

// FileConfig is the shape of .pgbranch.yml / .pgbranch.local.yml.
type FileConfig struct {
	Git      GitPolicy     `yaml:"git"`
	Behavior Behavior      `yaml:"behavior"`
	Backend  BackendConfig `yaml:"backend"`
	Naming   NamingConfig  `yaml:"naming"`
}

// EffectiveConfig is the fully merged, validated configuration used by the
// rest of pgbranch. It has the same shape as FileConfig; the distinction is
// that it is always complete (defaults applied) and provenance-tracked.
type EffectiveConfig struct {
	Git      GitPolicy     `validate:"-"`
	Behavior Behavior      `validate:"-"`
	Backend  BackendConfig `validate:"-"`
	Naming   NamingConfig  `validate:"-"`
}

// Layer identifies which tier of the merge supplied a given effective key,
// for `config-show -v`.
type Layer string

const (
	LayerDefault   Layer = "default"
	LayerCommitted Layer = "committed"
	LayerLocal     Layer = "local"
	LayerEnv       Layer = "env"
)

// SourceEntry records one effective key and the layer that supplied it.
type SourceEntry struct {
	Key   string
	Value string
	Layer Layer
}
