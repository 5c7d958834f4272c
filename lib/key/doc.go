// Package key implements the composite key layout used by every request of the
// sorted key-value store.
//
// A composite key is the pair (hash-key, sort-key). The hash-key groups related
// records and decides which partition they live on, the sort-key orders records
// inside one group. On the wire both are packed into a single byte key:
//
//	[2 bytes big endian len(hashKey)][hashKey][sortKey]
//
// The length prefix makes the hash-key recoverable although the sort-key has no
// terminator, and it keeps all sort-keys of a group contiguous in byte order.
//
// Key Components:
//
//   - Encode / Decode: build and split a composite key.
//
//   - EncodeSuccessor: the smallest key greater than every key of one hash-key
//     group. Used as the exclusive stop bound of a range scan.
//
//   - PartitionHash: the routing hash. It only reads the hash-key segment, so all
//     records of a group land on the same partition. Replicas compute the partition
//     with the same function (partition = hash % partitionCount).
//
//   - RangeEligible: the byte-wise sanity check a range scan runs before it touches
//     any partition.
package key
