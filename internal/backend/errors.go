package backend

import "github.com/pgbranch/pgbranch/internal/pgerr"

func errNameCollision(dbName string) error {
	return pgerr.New(pgerr.NameCollision, pgerr.Context{Phase: "backend-create"}, nil, "derived database name %q is already in use", dbName)
}

func errParentMissing(parent string) error {
	return pgerr.New(pgerr.ParentMissing, pgerr.Context{Phase: "backend-create"}, nil, "parent branch %q does not exist", parent)
}
