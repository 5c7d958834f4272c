package common

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/sKV/lib/errcode"
)

// ScanContextCompleted is the context id of a scan response after which the
// partition holds no further records for the scan.
const ScanContextCompleted int64 = -1

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// KeyValue is a single record of a multi operation or a scan batch.
// In multi operations Key is the sort key, in scan batches the composite key.
type KeyValue struct {
	Key   []byte `json:"key"`
	Value []byte `json:"value,omitempty"`
}

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// Table the request is addressed to
	AppName string `json:"app_name,omitempty"`

	// Key fields
	Key      []byte     `json:"key,omitempty"`       // Used for: Put, Get, Remove, TTL (composite key)
	HashKey  []byte     `json:"hash_key,omitempty"`  // Used for: MultiPut, MultiGet, MultiRemove, SortKeyCount
	SortKeys [][]byte   `json:"sort_keys,omitempty"` // Used for: MultiGet, MultiRemove
	Value    []byte     `json:"value,omitempty"`     // Used for: Put (request), Get (response)
	Kvs      []KeyValue `json:"kvs,omitempty"`       // Used for: MultiPut (request), MultiGet, GetScanner, Scan (response)

	// Write options
	ExpireTsSeconds uint32 `json:"expire_ts_seconds,omitempty"` // absolute epoch second, 0 = never

	// Read options
	MaxKvCount int32 `json:"max_kv_count,omitempty"`
	MaxKvSize  int32 `json:"max_kv_size,omitempty"`
	NoValue    bool  `json:"no_value,omitempty"`

	// Scanner fields
	StartKey       []byte `json:"start_key,omitempty"`
	StopKey        []byte `json:"stop_key,omitempty"`
	StartInclusive bool   `json:"start_inclusive,omitempty"`
	StopInclusive  bool   `json:"stop_inclusive,omitempty"`
	BatchSize      int32  `json:"batch_size,omitempty"`
	Snapshot       []byte `json:"snapshot,omitempty"`
	ContextID      int64  `json:"context_id,omitempty"` // Used for: Scan, ClearScanner (request), GetScanner, Scan (response)

	// Response only fields
	Error int32  `json:"error,omitempty"` // Storage status, or the transport status of a MsgTError response
	Err   string `json:"err,omitempty"`   // Human readable error message, informational only

	// Envelope, filled by the serving replica
	AppID          int32  `json:"app_id,omitempty"`
	PartitionIndex int32  `json:"partition_index,omitempty"`
	Decree         int64  `json:"decree,omitempty"`
	Server         string `json:"server,omitempty"`

	// Operation results
	Count          int64 `json:"count,omitempty"`           // Used for: MultiRemove, SortKeyCount
	TTLSeconds     int32 `json:"ttl_seconds,omitempty"`     // Used for: TTL
	PartitionCount int32 `json:"partition_count,omitempty"` // Used for: QueryConfig
}

// SetEnvelope fills the envelope fields of a response
func (m *Message) SetEnvelope(appID, partitionIndex int32, server string) *Message {
	m.AppID = appID
	m.PartitionIndex = partitionIndex
	m.Server = server
	return m
}

// --------------------------------------------------------------------------
// Message Factory Functions (requests)
// --------------------------------------------------------------------------

// NewPutRequest creates a new Put request
func NewPutRequest(appName string, key, value []byte, expireTsSeconds uint32) *Message {
	return &Message{
		MsgType:         MsgTPut,
		AppName:         appName,
		Key:             key,
		Value:           value,
		ExpireTsSeconds: expireTsSeconds,
	}
}

// NewMultiPutRequest creates a new MultiPut request
func NewMultiPutRequest(appName string, hashKey []byte, kvs []KeyValue, expireTsSeconds uint32) *Message {
	return &Message{
		MsgType:         MsgTMultiPut,
		AppName:         appName,
		HashKey:         hashKey,
		Kvs:             kvs,
		ExpireTsSeconds: expireTsSeconds,
	}
}

// NewGetRequest creates a new Get request
func NewGetRequest(appName string, key []byte) *Message {
	return &Message{
		MsgType: MsgTGet,
		AppName: appName,
		Key:     key,
	}
}

// NewMultiGetRequest creates a new MultiGet request. No sort keys select the whole group.
func NewMultiGetRequest(appName string, hashKey []byte, sortKeys [][]byte, maxKvCount, maxKvSize int32, noValue bool) *Message {
	return &Message{
		MsgType:    MsgTMultiGet,
		AppName:    appName,
		HashKey:    hashKey,
		SortKeys:   sortKeys,
		MaxKvCount: maxKvCount,
		MaxKvSize:  maxKvSize,
		NoValue:    noValue,
	}
}

// NewRemoveRequest creates a new Remove request
func NewRemoveRequest(appName string, key []byte) *Message {
	return &Message{
		MsgType: MsgTRemove,
		AppName: appName,
		Key:     key,
	}
}

// NewMultiRemoveRequest creates a new MultiRemove request
func NewMultiRemoveRequest(appName string, hashKey []byte, sortKeys [][]byte) *Message {
	return &Message{
		MsgType:  MsgTMultiRemove,
		AppName:  appName,
		HashKey:  hashKey,
		SortKeys: sortKeys,
	}
}

// NewSortKeyCountRequest creates a new SortKeyCount request
func NewSortKeyCountRequest(appName string, hashKey []byte) *Message {
	return &Message{
		MsgType: MsgTSortKeyCount,
		AppName: appName,
		HashKey: hashKey,
	}
}

// NewTTLRequest creates a new TTL request
func NewTTLRequest(appName string, key []byte) *Message {
	return &Message{
		MsgType: MsgTTTL,
		AppName: appName,
		Key:     key,
	}
}

// NewGetScannerRequest creates the first request of a scan on a partition
func NewGetScannerRequest(appName string, startKey, stopKey []byte, startInclusive, stopInclusive bool, batchSize int32, noValue bool, snapshot []byte) *Message {
	return &Message{
		MsgType:        MsgTGetScanner,
		AppName:        appName,
		StartKey:       startKey,
		StopKey:        stopKey,
		StartInclusive: startInclusive,
		StopInclusive:  stopInclusive,
		BatchSize:      batchSize,
		NoValue:        noValue,
		Snapshot:       snapshot,
	}
}

// NewScanRequest creates a request for the next batch of an open scan context
func NewScanRequest(appName string, contextID int64) *Message {
	return &Message{
		MsgType:   MsgTScan,
		AppName:   appName,
		ContextID: contextID,
	}
}

// NewClearScannerRequest creates a request that releases an open scan context
func NewClearScannerRequest(appName string, contextID int64) *Message {
	return &Message{
		MsgType:   MsgTClearScanner,
		AppName:   appName,
		ContextID: contextID,
	}
}

// NewQueryConfigRequest creates a request for the partition layout of a table
func NewQueryConfigRequest(appName string) *Message {
	return &Message{
		MsgType: MsgTQueryConfig,
		AppName: appName,
	}
}

// --------------------------------------------------------------------------
// Message Factory Functions (responses)
// --------------------------------------------------------------------------

// NewWriteResponse creates a response for Put, MultiPut and Remove
func NewWriteResponse(msgType MessageType, status int32, decree int64) *Message {
	return &Message{
		MsgType: msgType,
		Error:   status,
		Decree:  decree,
	}
}

// NewGetResponse creates a new Get response
func NewGetResponse(status int32, value []byte) *Message {
	return &Message{
		MsgType: MsgTGet,
		Error:   status,
		Value:   value,
		Decree:  -1,
	}
}

// NewMultiGetResponse creates a new MultiGet response
func NewMultiGetResponse(status int32, kvs []KeyValue) *Message {
	return &Message{
		MsgType: MsgTMultiGet,
		Error:   status,
		Kvs:     kvs,
		Decree:  -1,
	}
}

// NewMultiRemoveResponse creates a new MultiRemove response
func NewMultiRemoveResponse(status int32, count, decree int64) *Message {
	return &Message{
		MsgType: MsgTMultiRemove,
		Error:   status,
		Count:   count,
		Decree:  decree,
	}
}

// NewSortKeyCountResponse creates a new SortKeyCount response
func NewSortKeyCountResponse(status int32, count int64) *Message {
	return &Message{
		MsgType: MsgTSortKeyCount,
		Error:   status,
		Count:   count,
		Decree:  -1,
	}
}

// NewTTLResponse creates a new TTL response
func NewTTLResponse(status int32, ttlSeconds int32) *Message {
	return &Message{
		MsgType:    MsgTTTL,
		Error:      status,
		TTLSeconds: ttlSeconds,
		Decree:     -1,
	}
}

// NewScanResponse creates a response carrying one batch of a scan.
// msgType is either MsgTGetScanner or MsgTScan.
func NewScanResponse(msgType MessageType, status int32, kvs []KeyValue, contextID int64) *Message {
	return &Message{
		MsgType:   msgType,
		Error:     status,
		Kvs:       kvs,
		ContextID: contextID,
		Decree:    -1,
	}
}

// NewClearScannerResponse creates a new ClearScanner response
func NewClearScannerResponse() *Message {
	return &Message{
		MsgType: MsgTClearScanner,
	}
}

// NewQueryConfigResponse creates a new QueryConfig response
func NewQueryConfigResponse(appID, partitionCount int32) *Message {
	return &Message{
		MsgType:        MsgTQueryConfig,
		AppID:          appID,
		PartitionCount: partitionCount,
	}
}

// NewErrorResponse creates a response for a request that failed before reaching a
// partition. status is reported to the client as a transport status.
func NewErrorResponse(status errcode.TransportStatus, err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Error:   int32(status),
		Err:     err,
	}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

// messageTypeNames holds the wire names of all message types
var messageTypeNames = map[MessageType]string{
	MsgTError:        "error",
	MsgTPut:          "put",
	MsgTMultiPut:     "multi_put",
	MsgTGet:          "get",
	MsgTMultiGet:     "multi_get",
	MsgTRemove:       "remove",
	MsgTMultiRemove:  "multi_remove",
	MsgTSortKeyCount: "sortkey_count",
	MsgTTTL:          "ttl",
	MsgTGetScanner:   "get_scanner",
	MsgTScan:         "scan",
	MsgTClearScanner: "clear_scanner",
	MsgTQueryConfig:  "query_config",
}

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	if s == "unknown" {
		*t = MsgTUnknown
		return nil
	}
	for msgType, name := range messageTypeNames {
		if name == s {
			*t = msgType
			return nil
		}
	}
	return fmt.Errorf("unknown message type: %s", s)
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTError               // Request failed before reaching a partition

	// Partition operations

	MsgTPut          // Insert or update a record
	MsgTMultiPut     // Insert or update records of one hash key
	MsgTGet          // Read a record
	MsgTMultiGet     // Read records of one hash key
	MsgTRemove       // Delete a record
	MsgTMultiRemove  // Delete records of one hash key
	MsgTSortKeyCount // Count the records of one hash key
	MsgTTTL          // Read the remaining time to live of a record

	// Scanner operations

	MsgTGetScanner   // Open a scan context and read the first batch
	MsgTScan         // Read the next batch of a scan context
	MsgTClearScanner // Release a scan context

	// Meta operations

	MsgTQueryConfig // Read the partition layout of a table
)

// MaxMessageType is the highest defined message type
const MaxMessageType = MsgTQueryConfig
