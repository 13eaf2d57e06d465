package backend

// NewXata builds the Backend wrapping Xata's branch API. client is
// typically a Xata-specific adapter over their REST API; tests
// substitute a fake RemoteClient.
func NewXata(client RemoteClient, user string) Backend {
	return &genericRemote{kind: "xata", client: client, user: user}
}
