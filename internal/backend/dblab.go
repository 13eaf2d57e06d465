package backend

// NewDBLab builds the Backend wrapping DBLab Engine's thin-clone API.
// client is typically a DBLab-specific adapter over their
// REST API; tests substitute a fake RemoteClient.
func NewDBLab(client RemoteClient, user string) Backend {
	return &genericRemote{kind: "dblab", client: client, user: user}
}
