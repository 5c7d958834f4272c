package store

import "fmt"

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// KeyValue is a single record. Depending on the operation Key holds either a
// sort key (multi operations) or a full composite key (Scan).
type KeyValue struct {
	Key   []byte
	Value []byte
}

// ScanRange describes the bounds of a single Scan call on composite keys.
// An empty Stop means the range is unbounded on the right.
type ScanRange struct {
	Start          []byte
	StartInclusive bool
	Stop           []byte
	StopInclusive  bool
}

// IStore is the interface of a single partition of a table.
// Point operations take composite keys (see lib/key), multi operations take the
// hash key plus a list of sort keys.
// Write operations return the decree (write sequence number) assigned to the write.
// All expire timestamps are absolute epoch seconds, 0 means the record never expires.
// Expired records behave exactly like missing records.
type IStore interface {
	// Put inserts or updates a record.
	Put(key, value []byte, expireTsSeconds uint32) (decree int64, status Status)
	// MultiPut inserts or updates all records of kvs under hashKey in one write.
	MultiPut(hashKey []byte, kvs []KeyValue, expireTsSeconds uint32) (decree int64, status Status)
	// Get returns the value of a record, StatusNotFound if there is none.
	Get(key []byte) (value []byte, status Status)
	// MultiGet returns the records of sortKeys under hashKey in sort key order.
	// No sort keys means the whole group. The result is bounded by maxKvCount and
	// maxKvSize (key plus value bytes, values <= 0 disable the bound). A truncated
	// result is reported with StatusIncomplete.
	MultiGet(hashKey []byte, sortKeys [][]byte, maxKvCount, maxKvSize int32, noValue bool) (kvs []KeyValue, status Status)
	// Remove deletes a record. Removing a missing record is not an error.
	Remove(key []byte) (decree int64, status Status)
	// MultiRemove deletes the records of sortKeys under hashKey and returns how many existed.
	MultiRemove(hashKey []byte, sortKeys [][]byte) (count int64, decree int64, status Status)
	// SortKeyCount returns the number of live records under hashKey.
	SortKeyCount(hashKey []byte) (count int64, status Status)
	// TTL returns the remaining time to live of a record in seconds, -1 if it never expires.
	TTL(key []byte) (ttlSeconds int32, status Status)
	// Scan returns at most limit live records of r in key order. more reports whether
	// records beyond the last returned one remain in r.
	Scan(r ScanRange, limit int, noValue bool) (kvs []KeyValue, more bool, status Status)
	// Decree returns the decree of the last write.
	Decree() int64
}

// Factory creates the store of a single partition.
type Factory func() IStore

// --------------------------------------------------------------------------
// Status Codes
// --------------------------------------------------------------------------

// Status is the status reported by a storage engine. The values are shared
// with the client translator which maps k != 0 into its reserved storage range.
type Status int32

const (
	StatusOK                 Status = 0
	StatusNotFound           Status = 1
	StatusCorruption         Status = 2
	StatusNotSupported       Status = 3
	StatusInvalidArgument    Status = 4
	StatusIOError            Status = 5
	StatusMergeInProgress    Status = 6
	StatusIncomplete         Status = 7
	StatusShutdownInProgress Status = 8
	StatusTimedOut           Status = 9
	StatusAborted            Status = 10
	StatusBusy               Status = 11
	StatusExpired            Status = 12
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusNotFound:
		return "NotFound"
	case StatusCorruption:
		return "Corruption"
	case StatusNotSupported:
		return "NotSupported"
	case StatusInvalidArgument:
		return "InvalidArgument"
	case StatusIOError:
		return "IOError"
	case StatusMergeInProgress:
		return "MergeInProgress"
	case StatusIncomplete:
		return "Incomplete"
	case StatusShutdownInProgress:
		return "ShutdownInProgress"
	case StatusTimedOut:
		return "TimedOut"
	case StatusAborted:
		return "Aborted"
	case StatusBusy:
		return "Busy"
	case StatusExpired:
		return "Expired"
	default:
		return fmt.Sprintf("Status(%d)", int32(s))
	}
}
