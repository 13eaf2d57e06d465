package main

import (
	"github.com/pgbranch/pgbranch/cmd"
)

func main() {
	cmd.Execute()
}
