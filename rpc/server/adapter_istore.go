package server

import (
	"fmt"

	"github.com/ValentinKolb/sKV/lib/errcode"
	"github.com/ValentinKolb/sKV/lib/store"
	"github.com/ValentinKolb/sKV/rpc/common"
)

// NewIStoreServerAdapter creates the adapter for all point and multi operations
func NewIStoreServerAdapter() IRPCServerAdapter {
	return &iStoreServerAdapterImpl{}
}

type iStoreServerAdapterImpl struct{}

func (adapter *iStoreServerAdapterImpl) Handle(req *common.Message, s store.IStore) *common.Message {
	// Check for nil store
	if s == nil {
		return common.NewErrorResponse(errcode.TransportInvalidState, "handler: store is nil")
	}

	// Handle different message types
	switch req.MsgType {
	case common.MsgTPut:
		decree, status := s.Put(req.Key, req.Value, req.ExpireTsSeconds)
		return common.NewWriteResponse(req.MsgType, int32(status), decree)
	case common.MsgTMultiPut:
		decree, status := s.MultiPut(req.HashKey, toStoreKVs(req.Kvs), req.ExpireTsSeconds)
		return common.NewWriteResponse(req.MsgType, int32(status), decree)
	case common.MsgTGet:
		value, status := s.Get(req.Key)
		return common.NewGetResponse(int32(status), value)
	case common.MsgTMultiGet:
		kvs, status := s.MultiGet(req.HashKey, req.SortKeys, req.MaxKvCount, req.MaxKvSize, req.NoValue)
		return common.NewMultiGetResponse(int32(status), fromStoreKVs(kvs))
	case common.MsgTRemove:
		decree, status := s.Remove(req.Key)
		return common.NewWriteResponse(req.MsgType, int32(status), decree)
	case common.MsgTMultiRemove:
		count, decree, status := s.MultiRemove(req.HashKey, req.SortKeys)
		return common.NewMultiRemoveResponse(int32(status), count, decree)
	case common.MsgTSortKeyCount:
		count, status := s.SortKeyCount(req.HashKey)
		return common.NewSortKeyCountResponse(int32(status), count)
	case common.MsgTTTL:
		ttl, status := s.TTL(req.Key)
		return common.NewTTLResponse(int32(status), ttl)
	default:
		return common.NewErrorResponse(errcode.TransportHandlerNotFound,
			fmt.Sprintf("RPC IStoreAdapter - Unsupported message type: %s", req.MsgType),
		)
	}
}

func toStoreKVs(kvs []common.KeyValue) []store.KeyValue {
	if kvs == nil {
		return nil
	}
	out := make([]store.KeyValue, len(kvs))
	for i, kv := range kvs {
		out[i] = store.KeyValue{Key: kv.Key, Value: kv.Value}
	}
	return out
}

func fromStoreKVs(kvs []store.KeyValue) []common.KeyValue {
	if kvs == nil {
		return nil
	}
	out := make([]common.KeyValue, len(kvs))
	for i, kv := range kvs {
		out[i] = common.KeyValue{Key: kv.Key, Value: kv.Value}
	}
	return out
}
