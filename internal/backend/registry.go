package backend

import "fmt"

// Backend kind strings, matching EffectiveConfig.Backend.Kind and the
// --backend flag on `init`.
const (
	KindLocal            = "local"
	KindPostgresTemplate = "postgres_template"
	KindNeon             = "neon"
	KindDBLab            = "dblab"
	KindXata             = "xata"
)

// Factory builds the configured backend. It takes no arguments: each
// factory closes over whatever its backend needs (Docker client, server
// connection details, or a remote client).
type Factory func() (Backend, error)

// Registry maps a configured backend kind to a constructor. Callers
// populate it with closures that already close over the resolved config
// (Docker client, server DSN, or remote API credentials).
type Registry map[string]Factory

// Build resolves kind to a Backend, or an error naming the unknown kind.
func (r Registry) Build(kind string) (Backend, error) {
	factory, ok := r[kind]
	if !ok {
		return nil, fmt.Errorf("unknown backend kind %q", kind)
	}
	return factory()
}
