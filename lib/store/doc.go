// Package store defines the storage interface of a single table partition as it is
// served by the development replica.
//
// The package focuses on:
//   - A unified interface (IStore) for the request shapes of the client (point reads and
//     writes, multi operations on a hash key group, TTL queries and range scans)
//   - Storage status codes (Status) that are reported to clients unchanged
//   - Pluggable storage backends through the Factory type
//
// Key Components:
//
//   - IStore Interface: All keys of point operations are composite keys as produced by
//     lib/key. Multi operations receive the hash key and a list of sort keys and build the
//     composite keys themselves. Every write is assigned a monotonically increasing decree.
//
//   - Status: The storage status of an operation. The numbering follows common storage
//     engine conventions (0 = OK, 1 = NotFound, ..., 12 = Expired); the client translates
//     every status k != 0 into its reserved storage error range.
//
// Implementations:
//
//	- Memory Store (memstore): an ordered in-memory store based on a B-tree. Expired
//	  records are hidden from all reads and overwritten by later writes.
//	  Available in the "github.com/ValentinKolb/sKV/lib/store/memstore" package.
//
//	- storetest: a reusable test suite every IStore implementation should pass.
package store
