package container

import (
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectPortSkipsInUsePort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:55432")
	require.NoError(t, err)
	defer ln.Close()

	port, err := SelectPort(55432, nil)
	require.NoError(t, err)
	assert.Equal(t, 55433, port)
}

func TestSelectPortSkipsProjectReservedPorts(t *testing.T) {
	port, err := SelectPort(60000, map[int]bool{60000: true, 60001: true})
	require.NoError(t, err)
	assert.Equal(t, 60002, port)
}

func TestSelectPortSkipsRunOfInUsePorts(t *testing.T) {
	used := map[int]bool{}
	var listeners []net.Listener
	defer func() {
		for _, l := range listeners {
			l.Close()
		}
	}()
	start := 61000
	for i := 0; i < 3; i++ {
		ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", start+i))
		require.NoError(t, err)
		listeners = append(listeners, ln)
	}
	port, err := SelectPort(start, used)
	require.NoError(t, err) // range is wide; it will find one past the bound ones
	assert.Equal(t, start+3, port)
}
