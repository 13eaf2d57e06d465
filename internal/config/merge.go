package config

import "strconv"

// mergeInto applies overlay on top of base: scalars override when the overlay's field is non-zero, lists
// replace (never concatenate) when non-nil, and maps merge key-wise. Each
// field that changes records a SourceEntry tagged with layer.
func mergeInto(base *FileConfig, overlay FileConfig, layer Layer, sources *[]SourceEntry) {
	record := func(key, value string) {
		*sources = append(*sources, SourceEntry{Key: key, Value: value, Layer: layer})
	}

	if overlay.Git.Disabled {
		base.Git.Disabled = true
		record("git.disabled", "true")
	}
	if overlay.Git.DisabledBranches != nil {
		base.Git.DisabledBranches = overlay.Git.DisabledBranches
		record("git.disabled_branches", joinList(overlay.Git.DisabledBranches))
	}
	if overlay.Git.ExcludeBranches != nil {
		base.Git.ExcludeBranches = overlay.Git.ExcludeBranches
		record("git.exclude_branches", joinList(overlay.Git.ExcludeBranches))
	}
	if overlay.Git.AutoCreateOnBranch {
		base.Git.AutoCreateOnBranch = true
		record("git.auto_create_on_branch", "true")
	}
	if overlay.Git.AutoSwitchOnBranch {
		base.Git.AutoSwitchOnBranch = true
		record("git.auto_switch_on_branch", "true")
	}
	if overlay.Git.AutoCreateBranchFilter != "" {
		base.Git.AutoCreateBranchFilter = overlay.Git.AutoCreateBranchFilter
		record("git.auto_create_branch_filter", overlay.Git.AutoCreateBranchFilter)
	}
	if overlay.Git.MainBranch != "" {
		base.Git.MainBranch = overlay.Git.MainBranch
		record("git.main_branch", overlay.Git.MainBranch)
	}

	if overlay.Behavior.OperationDeadlineSeconds != 0 {
		base.Behavior.OperationDeadlineSeconds = overlay.Behavior.OperationDeadlineSeconds
		record("behavior.operation_deadline_seconds", strconv.Itoa(overlay.Behavior.OperationDeadlineSeconds))
	}
	if overlay.Behavior.PostCommands != nil {
		base.Behavior.PostCommands = overlay.Behavior.PostCommands
		record("behavior.post_commands", strconv.Itoa(len(overlay.Behavior.PostCommands))+" item(s)")
	}
	if overlay.Behavior.RunPostCommandsOnRoot {
		base.Behavior.RunPostCommandsOnRoot = true
		record("behavior.run_post_commands_on_root", "true")
	}

	if overlay.Backend.Kind != "" {
		base.Backend.Kind = overlay.Backend.Kind
		record("backend.kind", overlay.Backend.Kind)
	}
	if overlay.Backend.Image != "" {
		base.Backend.Image = overlay.Backend.Image
		record("backend.image", overlay.Backend.Image)
	}
	if overlay.Backend.DataRoot != "" {
		base.Backend.DataRoot = overlay.Backend.DataRoot
		record("backend.data_root", overlay.Backend.DataRoot)
	}
	if overlay.Backend.PortRangeStart != 0 {
		base.Backend.PortRangeStart = overlay.Backend.PortRangeStart
		record("backend.port_range_start", strconv.Itoa(overlay.Backend.PortRangeStart))
	}
	if overlay.Backend.Host != "" {
		base.Backend.Host = overlay.Backend.Host
		record("backend.host", overlay.Backend.Host)
	}
	if overlay.Backend.Port != 0 {
		base.Backend.Port = overlay.Backend.Port
		record("backend.port", strconv.Itoa(overlay.Backend.Port))
	}
	if overlay.Backend.User != "" {
		base.Backend.User = overlay.Backend.User
		record("backend.user", overlay.Backend.User)
	}
	if overlay.Backend.Password != "" {
		base.Backend.Password = overlay.Backend.Password
		record("backend.password", "***")
	}
	if overlay.Backend.APIKey != "" {
		base.Backend.APIKey = overlay.Backend.APIKey
		record("backend.api_key", "***")
	}
	if overlay.Backend.Project != "" {
		base.Backend.Project = overlay.Backend.Project
		record("backend.project", overlay.Backend.Project)
	}
	if overlay.Backend.Endpoint != "" {
		base.Backend.Endpoint = overlay.Backend.Endpoint
		record("backend.endpoint", overlay.Backend.Endpoint)
	}

	if overlay.Naming.Strategy != "" {
		base.Naming.Strategy = overlay.Naming.Strategy
		record("naming.strategy", string(overlay.Naming.Strategy))
	}
	if overlay.Naming.Prefix != "" {
		base.Naming.Prefix = overlay.Naming.Prefix
		record("naming.prefix", overlay.Naming.Prefix)
	}
	if overlay.Naming.Suffix != "" {
		base.Naming.Suffix = overlay.Naming.Suffix
		record("naming.suffix", overlay.Naming.Suffix)
	}
}

func joinList(items []string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += ","
		}
		out += s
	}
	return out
}
