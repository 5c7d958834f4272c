package serializer

import (
	"encoding/binary"
	"math"

	"github.com/ValentinKolb/sKV/rpc/common"
	"github.com/cockroachdb/errors"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format.
//
// Layout: [1 byte MsgType][4 byte flags][present fields in flag order].
// Byte slices are written as [4 byte len][data] and are present iff not nil, entries of
// lists are written as [4 byte len+1][data] so nil (0) and empty (1) survive a round trip.
// Booleans are encoded in the flags only.
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasAppName uint32 = 1 << iota
	hasKey
	hasHashKey
	hasSortKeys
	hasValue
	hasKvs
	hasExpireTs
	hasMaxKvCount
	hasMaxKvSize
	isNoValue
	hasStartKey
	hasStopKey
	isStartInclusive
	isStopInclusive
	hasBatchSize
	hasSnapshot
	hasContextID
	hasError
	hasErr
	hasAppID
	hasPartitionIndex
	hasDecree
	hasServer
	hasCount
	hasTTLSeconds
	hasPartitionCount
)

// headerSize is the size of MsgType and flags
const headerSize = 5

var errShortData = errors.New("data too short")

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	w := binaryWriter{buf: make([]byte, headerSize, b.sizeBytes(msg))}
	var flags uint32

	w.buf[0] = byte(msg.MsgType)

	if msg.AppName != "" {
		flags |= hasAppName
		w.bytes([]byte(msg.AppName))
	}
	if msg.Key != nil {
		flags |= hasKey
		w.bytes(msg.Key)
	}
	if msg.HashKey != nil {
		flags |= hasHashKey
		w.bytes(msg.HashKey)
	}
	if msg.SortKeys != nil {
		flags |= hasSortKeys
		w.uint32(uint32(len(msg.SortKeys)))
		for _, sortKey := range msg.SortKeys {
			w.entry(sortKey)
		}
	}
	if msg.Value != nil {
		flags |= hasValue
		w.bytes(msg.Value)
	}
	if msg.Kvs != nil {
		flags |= hasKvs
		w.uint32(uint32(len(msg.Kvs)))
		for _, kv := range msg.Kvs {
			w.entry(kv.Key)
			w.entry(kv.Value)
		}
	}
	if msg.ExpireTsSeconds != 0 {
		flags |= hasExpireTs
		w.uint32(msg.ExpireTsSeconds)
	}
	if msg.MaxKvCount != 0 {
		flags |= hasMaxKvCount
		w.uint32(uint32(msg.MaxKvCount))
	}
	if msg.MaxKvSize != 0 {
		flags |= hasMaxKvSize
		w.uint32(uint32(msg.MaxKvSize))
	}
	if msg.NoValue {
		flags |= isNoValue
	}
	if msg.StartKey != nil {
		flags |= hasStartKey
		w.bytes(msg.StartKey)
	}
	if msg.StopKey != nil {
		flags |= hasStopKey
		w.bytes(msg.StopKey)
	}
	if msg.StartInclusive {
		flags |= isStartInclusive
	}
	if msg.StopInclusive {
		flags |= isStopInclusive
	}
	if msg.BatchSize != 0 {
		flags |= hasBatchSize
		w.uint32(uint32(msg.BatchSize))
	}
	if msg.Snapshot != nil {
		flags |= hasSnapshot
		w.bytes(msg.Snapshot)
	}
	if msg.ContextID != 0 {
		flags |= hasContextID
		w.uint64(uint64(msg.ContextID))
	}
	if msg.Error != 0 {
		flags |= hasError
		w.uint32(uint32(msg.Error))
	}
	if msg.Err != "" {
		flags |= hasErr
		w.bytes([]byte(msg.Err))
	}
	if msg.AppID != 0 {
		flags |= hasAppID
		w.uint32(uint32(msg.AppID))
	}
	if msg.PartitionIndex != 0 {
		flags |= hasPartitionIndex
		w.uint32(uint32(msg.PartitionIndex))
	}
	if msg.Decree != 0 {
		flags |= hasDecree
		w.uint64(uint64(msg.Decree))
	}
	if msg.Server != "" {
		flags |= hasServer
		w.bytes([]byte(msg.Server))
	}
	if msg.Count != 0 {
		flags |= hasCount
		w.uint64(uint64(msg.Count))
	}
	if msg.TTLSeconds != 0 {
		flags |= hasTTLSeconds
		w.uint32(uint32(msg.TTLSeconds))
	}
	if msg.PartitionCount != 0 {
		flags |= hasPartitionCount
		w.uint32(uint32(msg.PartitionCount))
	}

	// Set flags after knowing which fields are present
	binary.BigEndian.PutUint32(w.buf[1:headerSize], flags)

	return w.buf, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + flags)
	if len(data) < headerSize {
		return errors.New("data too short for message header")
	}

	*msg = common.Message{MsgType: common.MessageType(data[0])}
	flags := binary.BigEndian.Uint32(data[1:headerSize])
	r := binaryReader{data: data, pos: headerSize}

	if flags&hasAppName != 0 {
		msg.AppName = string(r.bytes("app name"))
	}
	if flags&hasKey != 0 {
		msg.Key = r.bytes("key")
	}
	if flags&hasHashKey != 0 {
		msg.HashKey = r.bytes("hash key")
	}
	if flags&hasSortKeys != 0 {
		n := r.count("sort keys")
		msg.SortKeys = make([][]byte, 0, n)
		for i := 0; i < n && r.err == nil; i++ {
			msg.SortKeys = append(msg.SortKeys, r.entry("sort key"))
		}
	}
	if flags&hasValue != 0 {
		msg.Value = r.bytes("value")
	}
	if flags&hasKvs != 0 {
		n := r.count("kvs")
		msg.Kvs = make([]common.KeyValue, 0, n)
		for i := 0; i < n && r.err == nil; i++ {
			msg.Kvs = append(msg.Kvs, common.KeyValue{Key: r.entry("kv key"), Value: r.entry("kv value")})
		}
	}
	if flags&hasExpireTs != 0 {
		msg.ExpireTsSeconds = r.uint32("expire ts")
	}
	if flags&hasMaxKvCount != 0 {
		msg.MaxKvCount = int32(r.uint32("max kv count"))
	}
	if flags&hasMaxKvSize != 0 {
		msg.MaxKvSize = int32(r.uint32("max kv size"))
	}
	msg.NoValue = flags&isNoValue != 0
	if flags&hasStartKey != 0 {
		msg.StartKey = r.bytes("start key")
	}
	if flags&hasStopKey != 0 {
		msg.StopKey = r.bytes("stop key")
	}
	msg.StartInclusive = flags&isStartInclusive != 0
	msg.StopInclusive = flags&isStopInclusive != 0
	if flags&hasBatchSize != 0 {
		msg.BatchSize = int32(r.uint32("batch size"))
	}
	if flags&hasSnapshot != 0 {
		msg.Snapshot = r.bytes("snapshot")
	}
	if flags&hasContextID != 0 {
		msg.ContextID = int64(r.uint64("context id"))
	}
	if flags&hasError != 0 {
		msg.Error = int32(r.uint32("error"))
	}
	if flags&hasErr != 0 {
		msg.Err = string(r.bytes("err"))
	}
	if flags&hasAppID != 0 {
		msg.AppID = int32(r.uint32("app id"))
	}
	if flags&hasPartitionIndex != 0 {
		msg.PartitionIndex = int32(r.uint32("partition index"))
	}
	if flags&hasDecree != 0 {
		msg.Decree = int64(r.uint64("decree"))
	}
	if flags&hasServer != 0 {
		msg.Server = string(r.bytes("server"))
	}
	if flags&hasCount != 0 {
		msg.Count = int64(r.uint64("count"))
	}
	if flags&hasTTLSeconds != 0 {
		msg.TTLSeconds = int32(r.uint32("ttl"))
	}
	if flags&hasPartitionCount != 0 {
		msg.PartitionCount = int32(r.uint32("partition count"))
	}

	return r.err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	size := headerSize

	size += 4 + len(msg.AppName)
	size += 4 + len(msg.Key)
	size += 4 + len(msg.HashKey)
	size += 4 + len(msg.Value)
	size += 4 + len(msg.StartKey)
	size += 4 + len(msg.StopKey)
	size += 4 + len(msg.Snapshot)
	size += 4 + len(msg.Err)
	size += 4 + len(msg.Server)
	if msg.SortKeys != nil {
		size += 4
		for _, sortKey := range msg.SortKeys {
			size += 4 + len(sortKey)
		}
	}
	if msg.Kvs != nil {
		size += 4
		for _, kv := range msg.Kvs {
			size += 8 + len(kv.Key) + len(kv.Value)
		}
	}

	// fixed size fields: 7 x int32, 3 x int64
	return size + 7*4 + 3*8
}

// binaryWriter appends fields to a buffer
type binaryWriter struct {
	buf []byte
}

func (w *binaryWriter) uint32(v uint32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

func (w *binaryWriter) uint64(v uint64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, v)
}

func (w *binaryWriter) bytes(v []byte) {
	w.uint32(uint32(len(v)))
	w.buf = append(w.buf, v...)
}

// entry writes a list entry, keeping nil and empty apart
func (w *binaryWriter) entry(v []byte) {
	if v == nil {
		w.uint32(0)
		return
	}
	w.uint32(uint32(len(v)) + 1)
	w.buf = append(w.buf, v...)
}

// binaryReader reads fields from a buffer. The first error is sticky and
// turns every following read into a no-op.
type binaryReader struct {
	data []byte
	pos  int
	err  error
}

func (r *binaryReader) need(n int, field string) bool {
	if r.err != nil {
		return false
	}
	if n < 0 || r.pos+n > len(r.data) {
		r.err = errors.Wrapf(errShortData, "reading %s", field)
		return false
	}
	return true
}

func (r *binaryReader) uint32(field string) uint32 {
	if !r.need(4, field) {
		return 0
	}
	v := binary.BigEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v
}

func (r *binaryReader) uint64(field string) uint64 {
	if !r.need(8, field) {
		return 0
	}
	v := binary.BigEndian.Uint64(r.data[r.pos:])
	r.pos += 8
	return v
}

// count reads a list length and checks it against the remaining data
func (r *binaryReader) count(field string) int {
	n := r.uint32(field)
	// every entry needs at least its 4 byte length
	if r.err == nil && uint64(n)*4 > uint64(len(r.data)-r.pos) {
		r.err = errors.Wrapf(errShortData, "reading %s (%d entries)", field, n)
		return 0
	}
	return int(n)
}

func (r *binaryReader) raw(n int, field string) []byte {
	if !r.need(n, field) {
		return nil
	}
	v := make([]byte, n)
	copy(v, r.data[r.pos:r.pos+n])
	r.pos += n
	return v
}

func (r *binaryReader) bytes(field string) []byte {
	n := r.uint32(field)
	if r.err != nil || n > math.MaxInt32 {
		r.need(-1, field)
		return nil
	}
	return r.raw(int(n), field)
}

func (r *binaryReader) entry(field string) []byte {
	n := r.uint32(field)
	if r.err != nil {
		return nil
	}
	if n == 0 {
		return nil
	}
	if n-1 > math.MaxInt32 {
		r.need(-1, field)
		return nil
	}
	return r.raw(int(n-1), field)
}
