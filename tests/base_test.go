package tests

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dnr/segstore/common/client"
	"github.com/dnr/segstore/daemon"
)

type testBase struct {
	t   *testing.T
	srv *daemon.Server
	cli *client.Client
}

func newTestBase(t *testing.T) *testBase {
	sock := filepath.Join(t.TempDir(), daemon.Socket)
	srv, err := daemon.Start(daemon.Config{SocketPath: sock})
	require.NoError(t, err)
	t.Cleanup(srv.Stop)
	return &testBase{
		t:   t,
		srv: srv,
		cli: client.New(sock),
	}
}

func (tb *testBase) call(path string, req, res any) error {
	return tb.cli.Call(context.Background(), path, req, res)
}

func (tb *testBase) mustCall(path string, req, res any) {
	require.NoError(tb.t, tb.call(path, req, res))
}

func (tb *testBase) create(req daemon.CreateReq) daemon.DeviceInfo {
	var info daemon.DeviceInfo
	tb.mustCall(daemon.CreatePath, &req, &info)
	return info
}

func (tb *testBase) write(name string, off int64, data []byte) daemon.WriteResp {
	var res daemon.WriteResp
	tb.mustCall(daemon.WritePath, &daemon.WriteReq{Name: name, Offset: off, Data: data}, &res)
	return res
}

func (tb *testBase) read(name string, off, length int64) []byte {
	var res daemon.ReadResp
	tb.mustCall(daemon.ReadPath, &daemon.ReadReq{Name: name, Offset: off, Length: length}, &res)
	return res.Data
}

func (tb *testBase) trim(name string) error {
	return tb.call(daemon.TrimPath, &daemon.TrimReq{Name: name}, nil)
}

func (tb *testBase) stats(name string) daemon.StatsResp {
	var res daemon.StatsResp
	tb.mustCall(daemon.StatsPath, &daemon.StatsReq{Name: name}, &res)
	return res
}

func (tb *testBase) mapDev(name string) int64 {
	var res daemon.MapResp
	tb.mustCall(daemon.MapPath, &daemon.MapReq{Name: name}, &res)
	return res.MappingId
}

func (tb *testBase) unmap(name string, id int64) {
	tb.mustCall(daemon.UnmapPath, &daemon.UnmapReq{Name: name, MappingId: id}, nil)
}

func (tb *testBase) fault(name string, id, off int64) (daemon.FaultResp, error) {
	var res daemon.FaultResp
	err := tb.call(daemon.FaultPath, &daemon.FaultReq{Name: name, MappingId: id, Offset: off}, &res)
	return res, err
}
