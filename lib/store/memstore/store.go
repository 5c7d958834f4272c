package memstore

import (
	"bytes"
	"sort"
	"sync"
	"time"

	"github.com/ValentinKolb/sKV/lib/key"
	"github.com/ValentinKolb/sKV/lib/store"
	"github.com/google/btree"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("store")

// degree of the B-tree nodes
const degree = 32

// record is a single entry of the tree
type record struct {
	key      []byte
	value    []byte
	expireTs uint32
}

func lessRecord(a, b *record) bool {
	return bytes.Compare(a.key, b.key) < 0
}

type storeImpl struct {
	mu     sync.RWMutex
	tree   *btree.BTreeG[*record]
	decree int64
	now    func() time.Time
}

// NewMemStore creates an empty memory store using the wall clock for expiry.
func NewMemStore() store.IStore {
	return NewMemStoreWithClock(time.Now)
}

// NewMemStoreWithClock creates an empty memory store that evaluates expiry against now.
func NewMemStoreWithClock(now func() time.Time) store.IStore {
	return &storeImpl{
		tree: btree.NewG[*record](degree, lessRecord),
		now:  now,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store.IStore)
// --------------------------------------------------------------------------

func (s *storeImpl) Put(k, value []byte, expireTsSeconds uint32) (int64, store.Status) {
	if _, _, err := key.Decode(k); err != nil {
		Logger.Warningf("rejecting put with malformed key: %v", err)
		return 0, store.StatusInvalidArgument
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tree.ReplaceOrInsert(&record{key: clone(k), value: clone(value), expireTs: expireTsSeconds})
	return s.nextDecree(), store.StatusOK
}

func (s *storeImpl) MultiPut(hashKey []byte, kvs []store.KeyValue, expireTsSeconds uint32) (int64, store.Status) {
	if len(kvs) == 0 {
		return 0, store.StatusInvalidArgument
	}

	// encode everything first, the write is all or nothing
	records := make([]*record, 0, len(kvs))
	for _, kv := range kvs {
		k, err := key.Encode(hashKey, kv.Key)
		if err != nil {
			return 0, store.StatusInvalidArgument
		}
		records = append(records, &record{key: k, value: clone(kv.Value), expireTs: expireTsSeconds})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		s.tree.ReplaceOrInsert(r)
	}
	return s.nextDecree(), store.StatusOK
}

func (s *storeImpl) Get(k []byte) ([]byte, store.Status) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.lookup(k)
	if !ok {
		return nil, store.StatusNotFound
	}
	return clone(r.value), store.StatusOK
}

func (s *storeImpl) MultiGet(hashKey []byte, sortKeys [][]byte, maxKvCount, maxKvSize int32, noValue bool) ([]store.KeyValue, store.Status) {
	if len(hashKey) >= key.MaxHashKeyLen {
		return nil, store.StatusInvalidArgument
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := newFetchLimit(maxKvCount, maxKvSize)
	var kvs []store.KeyValue

	add := func(sortKey []byte, r *record) bool {
		if limit.reached() {
			return false
		}
		kv := store.KeyValue{Key: clone(sortKey)}
		if !noValue {
			kv.Value = clone(r.value)
		}
		kvs = append(kvs, kv)
		limit.add(len(kv.Key) + len(kv.Value))
		return true
	}

	if len(sortKeys) == 0 {
		now := s.nowTs()
		s.ascendGroup(hashKey, func(r *record) bool {
			if r.expired(now) {
				return true
			}
			_, sortKey, _ := key.Decode(r.key)
			return add(sortKey, r)
		})
	} else {
		for _, sortKey := range sortedUnique(sortKeys) {
			k, _ := key.Encode(hashKey, sortKey)
			r, ok := s.lookup(k)
			if !ok {
				continue
			}
			if !add(sortKey, r) {
				break
			}
		}
	}

	if limit.truncated {
		return kvs, store.StatusIncomplete
	}
	return kvs, store.StatusOK
}

func (s *storeImpl) Remove(k []byte) (int64, store.Status) {
	if _, _, err := key.Decode(k); err != nil {
		return 0, store.StatusInvalidArgument
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tree.Delete(&record{key: k})
	return s.nextDecree(), store.StatusOK
}

func (s *storeImpl) MultiRemove(hashKey []byte, sortKeys [][]byte) (int64, int64, store.Status) {
	if len(sortKeys) == 0 {
		return 0, 0, store.StatusInvalidArgument
	}

	keys := make([][]byte, 0, len(sortKeys))
	for _, sortKey := range sortedUnique(sortKeys) {
		k, err := key.Encode(hashKey, sortKey)
		if err != nil {
			return 0, 0, store.StatusInvalidArgument
		}
		keys = append(keys, k)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowTs()
	var count int64
	for _, k := range keys {
		if r, ok := s.tree.Delete(&record{key: k}); ok && !r.expired(now) {
			count++
		}
	}
	return count, s.nextDecree(), store.StatusOK
}

func (s *storeImpl) SortKeyCount(hashKey []byte) (int64, store.Status) {
	if len(hashKey) >= key.MaxHashKeyLen {
		return 0, store.StatusInvalidArgument
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.nowTs()
	var count int64
	s.ascendGroup(hashKey, func(r *record) bool {
		if !r.expired(now) {
			count++
		}
		return true
	})
	return count, store.StatusOK
}

func (s *storeImpl) TTL(k []byte) (int32, store.Status) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.lookup(k)
	if !ok {
		return 0, store.StatusNotFound
	}
	if r.expireTs == 0 {
		return -1, store.StatusOK
	}
	return int32(r.expireTs - s.nowTs()), store.StatusOK
}

func (s *storeImpl) Scan(rng store.ScanRange, limit int, noValue bool) ([]store.KeyValue, bool, store.Status) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.nowTs()
	var (
		kvs  []store.KeyValue
		more bool
	)

	s.tree.AscendGreaterOrEqual(&record{key: rng.Start}, func(r *record) bool {
		if !rng.StartInclusive && bytes.Equal(r.key, rng.Start) {
			return true
		}
		if len(rng.Stop) > 0 {
			cmp := bytes.Compare(r.key, rng.Stop)
			if cmp > 0 || (cmp == 0 && !rng.StopInclusive) {
				return false
			}
		}
		if r.expired(now) {
			return true
		}
		if limit > 0 && len(kvs) >= limit {
			more = true
			return false
		}
		kv := store.KeyValue{Key: clone(r.key)}
		if !noValue {
			kv.Value = clone(r.value)
		}
		kvs = append(kvs, kv)
		return true
	})

	return kvs, more, store.StatusOK
}

func (s *storeImpl) Decree() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.decree
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// nextDecree must be called with the write lock held
func (s *storeImpl) nextDecree() int64 {
	s.decree++
	return s.decree
}

// lookup returns the live record of k, must be called with the lock held
func (s *storeImpl) lookup(k []byte) (*record, bool) {
	r, ok := s.tree.Get(&record{key: k})
	if !ok || r.expired(s.nowTs()) {
		return nil, false
	}
	return r, true
}

func (s *storeImpl) nowTs() uint32 {
	return uint32(s.now().Unix())
}

func (r *record) expired(now uint32) bool {
	return r.expireTs != 0 && r.expireTs <= now
}

// ascendGroup visits the records under hashKey in key order, must be called with the lock held.
// The group of the last hash-key has no successor and runs to the end of the tree.
func (s *storeImpl) ascendGroup(hashKey []byte, fn func(r *record) bool) {
	start, _ := key.Encode(hashKey, nil)
	stop, _ := key.EncodeSuccessor(hashKey)
	if len(stop) == 0 {
		s.tree.AscendGreaterOrEqual(&record{key: start}, fn)
		return
	}
	s.tree.AscendRange(&record{key: start}, &record{key: stop}, fn)
}

// fetchLimit tracks the count and size bounds of a multi get
type fetchLimit struct {
	maxCount, maxSize int
	count, size       int
	truncated         bool
}

func newFetchLimit(maxCount, maxSize int32) *fetchLimit {
	return &fetchLimit{maxCount: int(maxCount), maxSize: int(maxSize)}
}

// reached marks the result as truncated if another record would exceed a bound
func (l *fetchLimit) reached() bool {
	if (l.maxCount > 0 && l.count >= l.maxCount) || (l.maxSize > 0 && l.size >= l.maxSize) {
		l.truncated = true
	}
	return l.truncated
}

func (l *fetchLimit) add(size int) {
	l.count++
	l.size += size
}

func sortedUnique(keys [][]byte) [][]byte {
	sorted := make([][]byte, len(keys))
	copy(sorted, keys)
	sort.Slice(sorted, func(i, j int) bool { return bytes.Compare(sorted[i], sorted[j]) < 0 })

	out := sorted[:0]
	for _, k := range sorted {
		if len(out) > 0 && bytes.Equal(k, out[len(out)-1]) {
			continue
		}
		out = append(out, k)
	}
	return out
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append(make([]byte, 0, len(b)), b...)
}
