package meta

import (
	"testing"
	"time"

	"github.com/ValentinKolb/sKV/lib/errcode"
	"github.com/ValentinKolb/sKV/rpc/common"
	"github.com/ValentinKolb/sKV/rpc/serializer"
	"github.com/ValentinKolb/sKV/rpc/transport/local"
	"github.com/go-zookeeper/zk"
	"github.com/goccy/go-yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type answer struct {
	partitionCount int32
	appID          int32
	err            error
}

func query(t *testing.T, r IMetaResolver, app string, timeout time.Duration) answer {
	t.Helper()
	done := make(chan answer, 1)
	r.QueryPartitionCount(app, timeout, func(partitionCount, appID int32, err error) {
		done <- answer{partitionCount, appID, err}
	})
	select {
	case a := <-done:
		return a
	case <-time.After(5 * time.Second):
		t.Fatal("callback was not invoked")
		return answer{}
	}
}

func TestStaticResolver(t *testing.T) {
	a := query(t, NewStaticResolver(10, 3), "temp", time.Second)
	require.NoError(t, a.err)
	assert.Equal(t, int32(10), a.partitionCount)
	assert.Equal(t, int32(3), a.appID)

	a = query(t, NewStaticResolver(0, 3), "temp", time.Second)
	assert.Equal(t, errcode.TransportObjectNotFound, errcode.TransportStatusOf(a.err))
	assert.Equal(t, int32(-1), a.partitionCount)
}

// --------------------------------------------------------------------------
// RPC resolver
// --------------------------------------------------------------------------

func startMetaServer(t *testing.T, endpoint string, tables map[string]common.TableConfig) func() {
	s := serializer.NewBinarySerializer()
	server := local.NewLocalServerTransport()
	server.RegisterHandler(func(_ uint64, req []byte) []byte {
		var msg common.Message
		if err := s.Deserialize(req, &msg); err != nil {
			t.Errorf("invalid request: %v", err)
			return nil
		}

		resp := common.NewErrorResponse(errcode.TransportObjectNotFound, "no such table")
		if table, ok := tables[msg.AppName]; ok && msg.MsgType == common.MsgTQueryConfig {
			resp = common.NewQueryConfigResponse(table.AppID, table.PartitionCount)
		}

		data, err := s.Serialize(*resp)
		require.NoError(t, err)
		return data
	})
	go func() { _ = server.Listen(common.ServerConfig{Endpoint: endpoint}) }()
	require.True(t, local.WaitListening(endpoint, time.Second))
	return func() { _ = server.Close() }
}

func TestRPCResolver(t *testing.T) {
	stop := startMetaServer(t, "meta-rpc", map[string]common.TableConfig{
		"temp": {Name: "temp", AppID: 2, PartitionCount: 8},
	})
	defer stop()

	client := local.NewLocalClientTransport()
	require.NoError(t, client.Connect(common.ClientConfig{
		Transport: common.ClientTransportConfig{Endpoints: []string{"meta-rpc"}},
	}))

	r := NewRPCResolver(client, serializer.NewBinarySerializer(), true)
	defer r.Close()

	a := query(t, r, "temp", time.Second)
	require.NoError(t, a.err)
	assert.Equal(t, int32(8), a.partitionCount)
	assert.Equal(t, int32(2), a.appID)

	a = query(t, r, "missing", time.Second)
	require.Error(t, a.err)
	assert.Equal(t, errcode.TransportObjectNotFound, errcode.TransportStatusOf(a.err))
	assert.Equal(t, int32(-1), a.partitionCount)
}

func TestRPCResolverTransportFailure(t *testing.T) {
	client := local.NewLocalClientTransport()
	require.NoError(t, client.Connect(common.ClientConfig{
		Transport: common.ClientTransportConfig{Endpoints: []string{"meta-nobody"}},
	}))

	r := NewRPCResolver(client, serializer.NewBinarySerializer(), true)
	defer r.Close()

	a := query(t, r, "temp", time.Second)
	assert.Equal(t, errcode.TransportNetworkFailure, errcode.TransportStatusOf(a.err))
}

// --------------------------------------------------------------------------
// ZooKeeper resolver
// --------------------------------------------------------------------------

type fakeZK struct {
	nodes map[string][]byte
	delay time.Duration
}

func (f *fakeZK) Get(p string) ([]byte, *zk.Stat, error) {
	time.Sleep(f.delay)
	data, ok := f.nodes[p]
	if !ok {
		return nil, nil, zk.ErrNoNode
	}
	return data, &zk.Stat{}, nil
}

func (f *fakeZK) Close() {}

func TestZKResolver(t *testing.T) {
	data, err := yaml.Marshal(common.TableConfig{Name: "temp", AppID: 4, PartitionCount: 16})
	require.NoError(t, err)

	conn := &fakeZK{nodes: map[string][]byte{
		DefaultZKRoot + "/temp":   data,
		DefaultZKRoot + "/broken": []byte("partition_count: many"),
		DefaultZKRoot + "/empty":  []byte("name: empty\npartition_count: 0\n"),
	}}
	r := newZKResolver(conn, "")

	a := query(t, r, "temp", time.Second)
	require.NoError(t, a.err)
	assert.Equal(t, int32(16), a.partitionCount)
	assert.Equal(t, int32(4), a.appID)

	a = query(t, r, "missing", time.Second)
	assert.Equal(t, errcode.TransportObjectNotFound, errcode.TransportStatusOf(a.err))

	a = query(t, r, "broken", time.Second)
	assert.Equal(t, errcode.TransportInvalidState, errcode.TransportStatusOf(a.err))

	a = query(t, r, "empty", time.Second)
	assert.Equal(t, errcode.TransportInvalidState, errcode.TransportStatusOf(a.err))
}

func TestZKResolverTimeout(t *testing.T) {
	r := newZKResolver(&fakeZK{delay: 200 * time.Millisecond}, "/custom")

	a := query(t, r, "temp", 10*time.Millisecond)
	assert.Equal(t, errcode.TransportTimeout, errcode.TransportStatusOf(a.err))
	assert.Equal(t, int32(-1), a.appID)
}

func TestTablePath(t *testing.T) {
	assert.Equal(t, "/skv/tables/temp", tablePath(DefaultZKRoot, "temp"))
	assert.Equal(t, "/custom/temp", tablePath("/custom/", "temp"))
}
