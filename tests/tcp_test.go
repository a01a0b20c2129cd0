package tests

import (
	"fmt"
	"testing"

	"github.com/phayes/freeport"
	"github.com/stretchr/testify/require"

	"github.com/dnr/segstore/common/client"
	"github.com/dnr/segstore/daemon"
)

// The daemon normally serves on a unix socket; tcp is for remote use and
// lets these tests exercise the other dial path.
func TestTcpListener(t *testing.T) {
	r := require.New(t)

	port, err := freeport.GetFreePort()
	r.NoError(err)
	addr := fmt.Sprintf("127.0.0.1:%d", port)

	srv, err := daemon.Start(daemon.Config{ListenAddr: addr})
	r.NoError(err)
	t.Cleanup(srv.Stop)
	r.Equal(addr, srv.Addr())

	tb := &testBase{t: t, srv: srv, cli: client.New(addr)}
	tb.create(daemon.CreateReq{Name: "d0", Kind: "cache", Quantum: 128, Qset: 4})
	tb.write("d0", 0, []byte("over tcp"))
	r.Equal([]byte("over tcp"), tb.read("d0", 0, 8))
}
