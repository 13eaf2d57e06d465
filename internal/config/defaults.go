package config

import "github.com/pgbranch/pgbranch/internal/naming"

// Defaults returns the built-in configuration, the lowest-precedence layer
// of the merge.
func Defaults() FileConfig {
	return FileConfig{
		Git: GitPolicy{
			MainBranch: "main",
		},
		Behavior: Behavior{
			OperationDeadlineSeconds: 120,
		},
		Backend: BackendConfig{
			Kind:           "local",
			Image:          "postgres:15",
			PortRangeStart: 55432,
		},
		Naming: NamingConfig{
			Strategy: naming.Replace,
		},
	}
}
