package container

import (
	"fmt"
	"net"
)

// SelectPort iterates from start, probing a TCP bind on localhost, and
// returns the first free port, skipping ones already in use.
// used reports ports already claimed by other branches in this project so
// two branches created in the same invocation don't race each other for
// the same still-unbound port.
func SelectPort(start int, used map[int]bool) (int, error) {
	for port := start; port < start+1000; port++ {
		if used[port] {
			continue
		}
		ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err != nil {
			continue
		}
		ln.Close()
		return port, nil
	}
	return 0, fmt.Errorf("no free port found in range starting at %d", start)
}
