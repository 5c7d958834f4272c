package server

import (
	"fmt"
	"testing"
	"time"

	"github.com/ValentinKolb/sKV/lib/errcode"
	"github.com/ValentinKolb/sKV/lib/key"
	"github.com/ValentinKolb/sKV/lib/store"
	"github.com/ValentinKolb/sKV/lib/store/memstore"
	"github.com/ValentinKolb/sKV/rpc/common"
	"github.com/ValentinKolb/sKV/rpc/serializer"
	"github.com/ValentinKolb/sKV/rpc/transport/local"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *RPCServer {
	t.Helper()
	s := NewRPCServer(common.ServerConfig{
		Tables: []common.TableConfig{
			{Name: "temp", AppID: 3, PartitionCount: 4},
			{Name: "other", AppID: 4, PartitionCount: 1},
		},
		NodeID:   "node-test",
		Endpoint: t.Name(),
	}, local.NewLocalServerTransport(), serializer.NewBinarySerializer(), nil)
	require.NoError(t, s.init())
	return s
}

// roundTrip sends msg through the handler of s
func roundTrip(t *testing.T, s *RPCServer, partitionHash uint64, msg *common.Message) common.Message {
	t.Helper()
	req, err := s.serializer.Serialize(*msg)
	require.NoError(t, err)

	var resp common.Message
	require.NoError(t, s.serializer.Deserialize(s.handle(partitionHash, req), &resp))
	return resp
}

func mustKey(t *testing.T, hashKey, sortKey string) []byte {
	k, err := key.Encode([]byte(hashKey), []byte(sortKey))
	require.NoError(t, err)
	return k
}

func TestServerUnknownTable(t *testing.T) {
	s := newTestServer(t)

	resp := roundTrip(t, s, 0, common.NewGetRequest("missing", mustKey(t, "h", "s")))
	assert.Equal(t, common.MsgTError, resp.MsgType)
	assert.Equal(t, int32(errcode.TransportObjectNotFound), resp.Error)

	resp = roundTrip(t, s, 0, common.NewQueryConfigRequest("missing"))
	assert.Equal(t, common.MsgTError, resp.MsgType)
	assert.Equal(t, int32(errcode.TransportObjectNotFound), resp.Error)
}

func TestServerUnknownMessageType(t *testing.T) {
	s := newTestServer(t)

	resp := roundTrip(t, s, 0, &common.Message{MsgType: common.MsgTUnknown, AppName: "temp"})
	assert.Equal(t, common.MsgTError, resp.MsgType)
	assert.Equal(t, int32(errcode.TransportHandlerNotFound), resp.Error)
}

func TestServerInvalidRequest(t *testing.T) {
	s := newTestServer(t)

	var resp common.Message
	require.NoError(t, s.serializer.Deserialize(s.handle(0, []byte{0xff}), &resp))
	assert.Equal(t, common.MsgTError, resp.MsgType)
	assert.Equal(t, int32(errcode.TransportUnclassified), resp.Error)
}

func TestServerQueryConfig(t *testing.T) {
	s := newTestServer(t)

	resp := roundTrip(t, s, 0, common.NewQueryConfigRequest("temp"))
	require.Equal(t, common.MsgTQueryConfig, resp.MsgType)
	assert.Equal(t, int32(4), resp.PartitionCount)
	assert.Equal(t, int32(3), resp.AppID)
}

func TestServerRoutingAndEnvelope(t *testing.T) {
	s := newTestServer(t)
	k := mustKey(t, "user1", "age")
	hash := key.PartitionHash(k)

	resp := roundTrip(t, s, hash, common.NewPutRequest("temp", k, []byte("30"), 0))
	require.Equal(t, common.MsgTPut, resp.MsgType)
	assert.Equal(t, int32(0), resp.Error)
	assert.Equal(t, int32(3), resp.AppID)
	assert.Equal(t, int32(hash%4), resp.PartitionIndex)
	assert.Equal(t, int64(1), resp.Decree)
	assert.Equal(t, "node-test", resp.Server)

	resp = roundTrip(t, s, hash, common.NewGetRequest("temp", k))
	assert.Equal(t, []byte("30"), resp.Value)
	assert.Equal(t, int64(-1), resp.Decree)

	// a different partition does not see the record
	resp = roundTrip(t, s, hash+1, common.NewGetRequest("temp", k))
	assert.Equal(t, int32(store.StatusNotFound), resp.Error)

	// tables are independent
	resp = roundTrip(t, s, hash, common.NewGetRequest("other", k))
	assert.Equal(t, int32(store.StatusNotFound), resp.Error)
	assert.Equal(t, int32(4), resp.AppID)
	assert.Equal(t, int32(0), resp.PartitionIndex)
}

func TestServerMultiOperations(t *testing.T) {
	s := newTestServer(t)
	hashKey := []byte("group")
	hash := key.HashKeyHash(hashKey)

	resp := roundTrip(t, s, hash, common.NewMultiPutRequest("temp", hashKey, []common.KeyValue{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
		{Key: []byte("c"), Value: []byte("3")},
	}, 0))
	require.Equal(t, int32(0), resp.Error)

	resp = roundTrip(t, s, hash, common.NewSortKeyCountRequest("temp", hashKey))
	assert.Equal(t, int64(3), resp.Count)

	resp = roundTrip(t, s, hash, common.NewMultiGetRequest("temp", hashKey, nil, 2, 0, false))
	assert.Equal(t, int32(store.StatusIncomplete), resp.Error)
	assert.Len(t, resp.Kvs, 2)

	resp = roundTrip(t, s, hash, common.NewMultiRemoveRequest("temp", hashKey, [][]byte{[]byte("a"), []byte("x")}))
	assert.Equal(t, int32(0), resp.Error)
	assert.Equal(t, int64(1), resp.Count)
	assert.Positive(t, resp.Decree)

	resp = roundTrip(t, s, hash, common.NewTTLRequest("temp", mustKey(t, "group", "b")))
	assert.Equal(t, int32(-1), resp.TTLSeconds)
}

func TestServerScanContexts(t *testing.T) {
	s := newTestServer(t)
	hashKey := []byte("scan")
	hash := key.HashKeyHash(hashKey)

	var kvs []common.KeyValue
	for i := 0; i < 5; i++ {
		kvs = append(kvs, common.KeyValue{Key: []byte(fmt.Sprintf("k%d", i)), Value: []byte("v")})
	}
	roundTrip(t, s, hash, common.NewMultiPutRequest("temp", hashKey, kvs, 0))

	start := mustKey(t, "scan", "")
	stop, err := key.EncodeSuccessor(hashKey)
	require.NoError(t, err)

	resp := roundTrip(t, s, hash, common.NewGetScannerRequest("temp", start, stop, true, false, 2, false, nil))
	require.Equal(t, common.MsgTGetScanner, resp.MsgType)
	require.Len(t, resp.Kvs, 2)
	require.NotEqual(t, common.ScanContextCompleted, resp.ContextID)
	assert.Equal(t, int32(hash%4), resp.PartitionIndex)
	assert.Equal(t, 1, s.scans.size())

	var seen []string
	for _, kv := range resp.Kvs {
		_, sortKey, _ := key.Decode(kv.Key)
		seen = append(seen, string(sortKey))
	}

	contextID := resp.ContextID
	for contextID != common.ScanContextCompleted {
		resp = roundTrip(t, s, hash, common.NewScanRequest("temp", contextID))
		require.Equal(t, int32(0), resp.Error)
		for _, kv := range resp.Kvs {
			_, sortKey, _ := key.Decode(kv.Key)
			seen = append(seen, string(sortKey))
		}
		contextID = resp.ContextID
	}

	assert.Equal(t, []string{"k0", "k1", "k2", "k3", "k4"}, seen)
	assert.Equal(t, 0, s.scans.size())
}

func TestServerClearAndUnknownScanner(t *testing.T) {
	s := newTestServer(t)
	hashKey := []byte("scan")
	hash := key.HashKeyHash(hashKey)
	roundTrip(t, s, hash, common.NewMultiPutRequest("temp", hashKey, []common.KeyValue{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
	}, 0))

	resp := roundTrip(t, s, hash, common.NewGetScannerRequest("temp", nil, nil, true, false, 1, true, nil))
	require.NotEqual(t, common.ScanContextCompleted, resp.ContextID)
	assert.Nil(t, resp.Kvs[0].Value)

	// a context is bound to its table
	other := roundTrip(t, s, hash, common.NewScanRequest("other", resp.ContextID))
	assert.Equal(t, int32(store.StatusNotFound), other.Error)

	cleared := roundTrip(t, s, hash, common.NewClearScannerRequest("temp", resp.ContextID))
	assert.Equal(t, common.MsgTClearScanner, cleared.MsgType)
	assert.Equal(t, 0, s.scans.size())

	resp = roundTrip(t, s, hash, common.NewScanRequest("temp", resp.ContextID))
	assert.Equal(t, int32(store.StatusNotFound), resp.Error)
	assert.Equal(t, common.ScanContextCompleted, resp.ContextID)
}

func TestScanRegistryExpire(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	r := newScanRegistry(func() time.Time { return now })
	p := &partition{store: newFilledStore(t, 3)}

	resp := r.start(&common.Message{AppName: "temp", StartInclusive: true, BatchSize: 1}, p)
	require.NotEqual(t, common.ScanContextCompleted, resp.ContextID)
	assert.Equal(t, 0, r.expire())

	now = now.Add(scanContextTTL + time.Second)
	assert.Equal(t, 1, r.expire())
	assert.Equal(t, 0, r.size())
}

func TestServerServeOverLocalTransport(t *testing.T) {
	s := NewRPCServer(common.ServerConfig{
		Tables:   []common.TableConfig{{Name: "temp", AppID: 1, PartitionCount: 2}},
		NodeID:   "node-serve",
		Endpoint: "server-serve",
	}, local.NewLocalServerTransport(), serializer.NewBinarySerializer(), nil)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve() }()
	require.True(t, local.WaitListening("server-serve", time.Second))

	client := local.NewLocalClientTransport()
	require.NoError(t, client.Connect(common.ClientConfig{
		Transport: common.ClientTransportConfig{Endpoints: []string{"server-serve"}},
	}))

	req, err := s.serializer.Serialize(*common.NewQueryConfigRequest("temp"))
	require.NoError(t, err)

	done := make(chan []byte, 1)
	client.SendAsync(0, req, time.Second, func(resp []byte, err error) {
		assert.NoError(t, err)
		done <- resp
	})

	var resp common.Message
	require.NoError(t, s.serializer.Deserialize(<-done, &resp))
	assert.Equal(t, int32(2), resp.PartitionCount)

	require.NoError(t, client.Close())
	require.NoError(t, s.Close())
	require.NoError(t, <-errCh)
}

func TestServerInvalidTables(t *testing.T) {
	for name, tables := range map[string][]common.TableConfig{
		"no name":          {{PartitionCount: 1}},
		"no partitions":    {{Name: "temp"}},
		"duplicate tables": {{Name: "temp", PartitionCount: 1}, {Name: "temp", PartitionCount: 2}},
	} {
		t.Run(name, func(t *testing.T) {
			s := NewRPCServer(common.ServerConfig{Tables: tables}, local.NewLocalServerTransport(), serializer.NewBinarySerializer(), nil)
			assert.Error(t, s.Serve())
		})
	}
}

func newFilledStore(t *testing.T, n int) store.IStore {
	s := memstore.NewMemStore()
	for i := 0; i < n; i++ {
		_, status := s.Put(mustKey(t, "h", fmt.Sprintf("%d", i)), []byte("v"), 0)
		require.Equal(t, store.StatusOK, status)
	}
	return s
}
