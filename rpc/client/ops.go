package client

import (
	"fmt"

	"github.com/ValentinKolb/sKV/lib/errcode"
	"github.com/ValentinKolb/sKV/lib/key"
	"github.com/ValentinKolb/sKV/rpc/common"
)

// --------------------------------------------------------------------------
// Interface Methods (docu see client.IClient)
// --------------------------------------------------------------------------

func (c *rpcClient) Set(hashKey, sortKey, value []byte, ttlSeconds int32) (Info, error) {
	return waitInfo(func(callback InfoCallback) {
		c.SetAsync(hashKey, sortKey, value, ttlSeconds, callback)
	})
}

func (c *rpcClient) SetAsync(hashKey, sortKey, value []byte, ttlSeconds int32, callback InfoCallback) {
	const op = "set"
	cb := withoutResult(callback)

	if err := c.checkTTL(op, ttlSeconds); err != nil {
		reject(c, op, cb, err)
		return
	}
	k, err := c.encodeKey(op, hashKey, sortKey)
	if err != nil {
		reject(c, op, cb, err)
		return
	}

	invoke(c, call[struct{}]{
		op:            op,
		write:         true,
		partitionHash: key.PartitionHash(k),
		req:           common.NewPutRequest(c.appName, k, value, c.expireTs(ttlSeconds)),
		timeout:       c.timeout,
		decode:        decodeNothing,
	}, cb)
}

func (c *rpcClient) MultiSet(hashKey []byte, kvs []common.KeyValue, ttlSeconds int32) (Info, error) {
	return waitInfo(func(callback InfoCallback) {
		c.MultiSetAsync(hashKey, kvs, ttlSeconds, callback)
	})
}

func (c *rpcClient) MultiSetAsync(hashKey []byte, kvs []common.KeyValue, ttlSeconds int32, callback InfoCallback) {
	const op = "multi_set"
	cb := withoutResult(callback)

	if err := c.checkGroupKey(op, hashKey); err != nil {
		reject(c, op, cb, err)
		return
	}
	if len(kvs) == 0 {
		reject(c, op, cb, c.invalidValue(op, "multi set needs at least one record"))
		return
	}
	if err := c.checkTTL(op, ttlSeconds); err != nil {
		reject(c, op, cb, err)
		return
	}

	invoke(c, call[struct{}]{
		op:            op,
		write:         true,
		partitionHash: key.HashKeyHash(hashKey),
		req:           common.NewMultiPutRequest(c.appName, hashKey, kvs, c.expireTs(ttlSeconds)),
		timeout:       c.timeout,
		decode:        decodeNothing,
	}, cb)
}

func (c *rpcClient) Get(hashKey, sortKey []byte) ([]byte, Info, error) {
	return wait(func(callback Callback[[]byte]) {
		c.GetAsync(hashKey, sortKey, callback)
	})
}

func (c *rpcClient) GetAsync(hashKey, sortKey []byte, callback Callback[[]byte]) {
	const op = "get"

	k, err := c.encodeKey(op, hashKey, sortKey)
	if err != nil {
		reject(c, op, callback, err)
		return
	}

	invoke(c, call[[]byte]{
		op:            op,
		partitionHash: key.PartitionHash(k),
		req:           common.NewGetRequest(c.appName, k),
		timeout:       c.timeout,
		decode:        func(resp *common.Message) []byte { return resp.Value },
	}, callback)
}

func (c *rpcClient) MultiGet(hashKey []byte, sortKeys [][]byte, maxFetchCount, maxFetchSize int32) ([]common.KeyValue, Info, error) {
	return wait(func(callback Callback[[]common.KeyValue]) {
		c.MultiGetAsync(hashKey, sortKeys, maxFetchCount, maxFetchSize, callback)
	})
}

func (c *rpcClient) MultiGetAsync(hashKey []byte, sortKeys [][]byte, maxFetchCount, maxFetchSize int32, callback Callback[[]common.KeyValue]) {
	const op = "multi_get"

	if err := c.checkGroupKey(op, hashKey); err != nil {
		reject(c, op, callback, err)
		return
	}

	invoke(c, call[[]common.KeyValue]{
		op:            op,
		partitionHash: key.HashKeyHash(hashKey),
		req:           common.NewMultiGetRequest(c.appName, hashKey, sortKeys, maxFetchCount, maxFetchSize, false),
		timeout:       c.timeout,
		decode:        func(resp *common.Message) []common.KeyValue { return resp.Kvs },
	}, callback)
}

func (c *rpcClient) MultiGetSortKeys(hashKey []byte, maxFetchCount, maxFetchSize int32) ([][]byte, Info, error) {
	return wait(func(callback Callback[[][]byte]) {
		c.MultiGetSortKeysAsync(hashKey, maxFetchCount, maxFetchSize, callback)
	})
}

func (c *rpcClient) MultiGetSortKeysAsync(hashKey []byte, maxFetchCount, maxFetchSize int32, callback Callback[[][]byte]) {
	const op = "multi_get_sortkeys"

	if err := c.checkGroupKey(op, hashKey); err != nil {
		reject(c, op, callback, err)
		return
	}

	invoke(c, call[[][]byte]{
		op:            op,
		partitionHash: key.HashKeyHash(hashKey),
		req:           common.NewMultiGetRequest(c.appName, hashKey, nil, maxFetchCount, maxFetchSize, true),
		timeout:       c.timeout,
		decode: func(resp *common.Message) [][]byte {
			if len(resp.Kvs) == 0 {
				return nil
			}
			sortKeys := make([][]byte, len(resp.Kvs))
			for i, kv := range resp.Kvs {
				sortKeys[i] = kv.Key
			}
			return sortKeys
		},
	}, callback)
}

func (c *rpcClient) Exist(hashKey, sortKey []byte) (Info, error) {
	return waitInfo(func(callback InfoCallback) {
		c.ExistAsync(hashKey, sortKey, callback)
	})
}

// ExistAsync is a TTL lookup that drops the ttl
func (c *rpcClient) ExistAsync(hashKey, sortKey []byte, callback InfoCallback) {
	var cb Callback[int32]
	if callback != nil {
		cb = func(_ int32, info Info, err error) { callback(info, err) }
	}
	c.ttlAsync("exist", hashKey, sortKey, cb)
}

func (c *rpcClient) SortKeyCount(hashKey []byte) (int64, Info, error) {
	return wait(func(callback Callback[int64]) {
		c.SortKeyCountAsync(hashKey, callback)
	})
}

func (c *rpcClient) SortKeyCountAsync(hashKey []byte, callback Callback[int64]) {
	const op = "sortkey_count"

	if err := c.checkGroupKey(op, hashKey); err != nil {
		reject(c, op, callback, err)
		return
	}

	invoke(c, call[int64]{
		op:            op,
		partitionHash: key.HashKeyHash(hashKey),
		req:           common.NewSortKeyCountRequest(c.appName, hashKey),
		timeout:       c.timeout,
		decode:        decodeCount,
	}, callback)
}

func (c *rpcClient) Del(hashKey, sortKey []byte) (Info, error) {
	return waitInfo(func(callback InfoCallback) {
		c.DelAsync(hashKey, sortKey, callback)
	})
}

func (c *rpcClient) DelAsync(hashKey, sortKey []byte, callback InfoCallback) {
	const op = "del"
	cb := withoutResult(callback)

	k, err := c.encodeKey(op, hashKey, sortKey)
	if err != nil {
		reject(c, op, cb, err)
		return
	}

	invoke(c, call[struct{}]{
		op:            op,
		write:         true,
		partitionHash: key.PartitionHash(k),
		req:           common.NewRemoveRequest(c.appName, k),
		timeout:       c.timeout,
		decode:        decodeNothing,
	}, cb)
}

func (c *rpcClient) MultiDel(hashKey []byte, sortKeys [][]byte) (int64, Info, error) {
	return wait(func(callback Callback[int64]) {
		c.MultiDelAsync(hashKey, sortKeys, callback)
	})
}

func (c *rpcClient) MultiDelAsync(hashKey []byte, sortKeys [][]byte, callback Callback[int64]) {
	const op = "multi_del"

	if err := c.checkGroupKey(op, hashKey); err != nil {
		reject(c, op, callback, err)
		return
	}
	if len(sortKeys) == 0 {
		reject(c, op, callback, c.invalidValue(op, "multi del needs at least one sort key"))
		return
	}

	invoke(c, call[int64]{
		op:            op,
		write:         true,
		partitionHash: key.HashKeyHash(hashKey),
		req:           common.NewMultiRemoveRequest(c.appName, hashKey, sortKeys),
		timeout:       c.timeout,
		decode:        decodeCount,
	}, callback)
}

func (c *rpcClient) TTL(hashKey, sortKey []byte) (int32, Info, error) {
	return wait(func(callback Callback[int32]) {
		c.TTLAsync(hashKey, sortKey, callback)
	})
}

func (c *rpcClient) TTLAsync(hashKey, sortKey []byte, callback Callback[int32]) {
	c.ttlAsync("ttl", hashKey, sortKey, callback)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (c *rpcClient) ttlAsync(op string, hashKey, sortKey []byte, callback Callback[int32]) {
	if err := c.checkGroupKey(op, hashKey); err != nil {
		reject(c, op, callback, err)
		return
	}
	k, err := c.encodeKey(op, hashKey, sortKey)
	if err != nil {
		reject(c, op, callback, err)
		return
	}

	invoke(c, call[int32]{
		op:            op,
		partitionHash: key.PartitionHash(k),
		req:           common.NewTTLRequest(c.appName, k),
		timeout:       c.timeout,
		decode:        func(resp *common.Message) int32 { return resp.TTLSeconds },
	}, callback)
}

func decodeNothing(*common.Message) struct{} { return struct{}{} }

func decodeCount(resp *common.Message) int64 { return resp.Count }

// encodeKey builds the composite key of a point operation, empty hash keys are allowed
func (c *rpcClient) encodeKey(op string, hashKey, sortKey []byte) ([]byte, error) {
	k, err := key.Encode(hashKey, sortKey)
	if err != nil {
		return nil, c.invalidHashKey(op, fmt.Sprintf("hash key length should be less than %d, but is %d", key.MaxHashKeyLen, len(hashKey)))
	}
	return k, nil
}

// checkGroupKey validates the hash key of an operation that addresses a whole group
func (c *rpcClient) checkGroupKey(op string, hashKey []byte) error {
	if len(hashKey) == 0 {
		return c.invalidHashKey(op, "hash key should not be empty")
	}
	if len(hashKey) >= key.MaxHashKeyLen {
		return c.invalidHashKey(op, fmt.Sprintf("hash key length should be less than %d, but is %d", key.MaxHashKeyLen, len(hashKey)))
	}
	return nil
}

func (c *rpcClient) checkTTL(op string, ttlSeconds int32) error {
	if ttlSeconds < 0 {
		return c.invalidValue(op, fmt.Sprintf("ttl should not be negative, but is %d", ttlSeconds))
	}
	return nil
}

func (c *rpcClient) invalidHashKey(op, msg string) error {
	Logger.Errorf("%s: invalid hash key: %s", op, msg)
	return errcode.NewError(errcode.InvalidHashKey, msg)
}

func (c *rpcClient) invalidValue(op, msg string) error {
	Logger.Errorf("%s: invalid value: %s", op, msg)
	return errcode.NewError(errcode.InvalidValue, msg)
}

// expireTs turns a ttl relative to now into an absolute epoch second, 0 stays 0
func (c *rpcClient) expireTs(ttlSeconds int32) uint32 {
	if ttlSeconds == 0 {
		return 0
	}
	return uint32(c.now().Unix()) + uint32(ttlSeconds)
}
