package key

import (
	"bytes"
	"encoding/binary"
	"hash/crc64"

	"github.com/cockroachdb/errors"
)

// MaxHashKeyLen is the exclusive upper bound for the length of a hash-key.
// The length has to fit the 16 bit prefix.
const MaxHashKeyLen = 1 << 16

// prefixLen is the size of the hash-key length prefix.
const prefixLen = 2

// routingTable is built from the reflected CRC-64 polynomial used for partition routing
var routingTable = crc64.MakeTable(0x9a6c9329ac4bc9b5)

var (
	// ErrInvalidHashKey is returned if a hash-key does not fit the length prefix
	ErrInvalidHashKey = errors.New("key: hash key length must be less than 65536")
	// ErrMalformedKey is returned if an encoded key is shorter than its length prefix claims
	ErrMalformedKey = errors.New("key: malformed composite key")
)

// --------------------------------------------------------------------------
// Encoding
// --------------------------------------------------------------------------

// Encode packs hashKey and sortKey into a single composite key.
func Encode(hashKey, sortKey []byte) ([]byte, error) {
	if len(hashKey) >= MaxHashKeyLen {
		return nil, ErrInvalidHashKey
	}
	buf := make([]byte, prefixLen+len(hashKey)+len(sortKey))
	binary.BigEndian.PutUint16(buf[:prefixLen], uint16(len(hashKey)))
	copy(buf[prefixLen:], hashKey)
	copy(buf[prefixLen+len(hashKey):], sortKey)
	return buf, nil
}

// EncodeSuccessor returns the smallest composite key that is strictly greater than
// every key sharing hashKey.
//
// The encoded hash-key segment (prefix included) is incremented at its last byte
// that is not 0xFF, everything after that byte is cut off. If the hash-key consists
// of 0xFF bytes only, the increment lands in the length prefix, which still yields
// the tightest bound since longer hash-keys sort after shorter ones.
//
// The longest hash-key made of 0xFF bytes only has no finite successor, its group
// is the last one of the key space. EncodeSuccessor returns an empty key without
// an error for it, which every range in this module reads as unbounded.
func EncodeSuccessor(hashKey []byte) ([]byte, error) {
	buf, err := Encode(hashKey, nil)
	if err != nil {
		return nil, err
	}
	i := len(buf) - 1
	for i >= 0 && buf[i] == 0xFF {
		i--
	}
	if i < 0 {
		return nil, nil
	}
	buf[i]++
	return buf[:i+1], nil
}

// Decode splits a composite key into its hash-key and sort-key.
// The returned slices share memory with key.
func Decode(key []byte) (hashKey, sortKey []byte, err error) {
	if len(key) < prefixLen {
		return nil, nil, ErrMalformedKey
	}
	hashKeyLen := int(binary.BigEndian.Uint16(key[:prefixLen]))
	if len(key) < prefixLen+hashKeyLen {
		return nil, nil, ErrMalformedKey
	}
	return key[prefixLen : prefixLen+hashKeyLen], key[prefixLen+hashKeyLen:], nil
}

// --------------------------------------------------------------------------
// Routing
// --------------------------------------------------------------------------

// PartitionHash returns the routing hash of a composite key.
// Only the hash-key segment is hashed. A key too short to carry its prefix is
// hashed as a whole so the function stays total.
func PartitionHash(key []byte) uint64 {
	hashKey, _, err := Decode(key)
	if err != nil {
		return crc64.Checksum(key, routingTable)
	}
	return HashKeyHash(hashKey)
}

// HashKeyHash returns the routing hash of a raw hash-key.
// It is equal to PartitionHash of any composite key built from hashKey.
func HashKeyHash(hashKey []byte) uint64 {
	return crc64.Checksum(hashKey, routingTable)
}

// --------------------------------------------------------------------------
// Ranges
// --------------------------------------------------------------------------

// RangeEligible reports whether the range between start and stop can contain a key.
// Equal bounds are only eligible if both of them are inclusive. An empty stop is
// unbounded.
func RangeEligible(start []byte, startInclusive bool, stop []byte, stopInclusive bool) bool {
	if len(stop) == 0 {
		return true
	}
	cmp := bytes.Compare(start, stop)
	return cmp < 0 || (cmp == 0 && startInclusive && stopInclusive)
}
