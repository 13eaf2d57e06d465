package backend

// NewNeon builds the Backend wrapping Neon's branch-create/branch-delete
// API. client is typically a Neon-specific adapter over
// their REST API; tests substitute a fake RemoteClient.
func NewNeon(client RemoteClient, user string) Backend {
	return &genericRemote{kind: "neon", client: client, user: user}
}
