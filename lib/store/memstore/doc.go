// Package memstore provides an ordered in-memory implementation of store.IStore.
//
// Records are kept in a github.com/google/btree B-tree ordered by composite key, so a hash
// key group is one contiguous key range and scans are plain in-order iterations. A single
// RWMutex guards the tree; reads share the lock, writes (and the decree counter) are
// exclusive. Expiry is evaluated against the injected clock at read time.
package memstore
