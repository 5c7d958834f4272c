package serializer

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/ValentinKolb/sKV/rpc/common"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON":   NewJSONSerializer,
	"GOB":    NewGOBSerializer,
	"Binary": NewBinarySerializer,
}

// testMessages creates a set of test messages with different fields filled
func testMessages() []common.Message {
	return []common.Message{
		// Basic message with just a type
		{MsgType: common.MsgTClearScanner},

		// Put request
		*common.NewPutRequest("temp", []byte{0, 1, 'h', 's'}, []byte("test-value"), 1700000000),

		// MultiGet request
		*common.NewMultiGetRequest("temp", []byte("h"), [][]byte{[]byte("a"), []byte("b")}, 100, 1000000, true),

		// MultiGet response with envelope
		*common.NewMultiGetResponse(7, []common.KeyValue{
			{Key: []byte("a"), Value: []byte("1")},
			{Key: []byte("b"), Value: []byte("2")},
		}).SetEnvelope(3, 5, "node-1"),

		// Scanner request
		*common.NewGetScannerRequest("temp", []byte{0, 1, 'a'}, []byte{0, 1, 'b'}, true, true, 1000, false, []byte("snap")),

		// Scan response
		*common.NewScanResponse(common.MsgTScan, 0, []common.KeyValue{{Key: []byte{0, 1, 'a', 'x'}, Value: []byte("v")}}, common.ScanContextCompleted),

		// Error response
		*common.NewErrorResponse(6, "table not found"),

		// Message with all number fields filled
		{
			MsgType:        common.MsgTMultiRemove,
			AppName:        "temp",
			HashKey:        []byte("group"),
			SortKeys:       [][]byte{[]byte("x")},
			ContextID:      42,
			AppID:          1,
			PartitionIndex: 7,
			Decree:         1 << 40,
			Server:         "127.0.0.1:8080",
			Count:          -3,
			TTLSeconds:     -1,
			PartitionCount: 8,
		},
	}
}

// TestSerializerRoundTrip tests that messages can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	messages := testMessages()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, msg := range messages {
				// Serialize
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message %d: %v", i, err)
					continue
				}

				// Deserialize
				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message %d: %v", i, err)
					continue
				}

				// Compare
				if !reflect.DeepEqual(msg, result) {
					t.Errorf("Message %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v",
						i, msg, result)
				}
			}
		})
	}
}

// TestMessageTypes tests each message type with each serializer
func TestMessageTypes(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for msgType := common.MsgTError; msgType <= common.MaxMessageType; msgType++ {
				msg := common.Message{MsgType: msgType}

				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message type %s: %v", msgType.String(), err)
					continue
				}

				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message type %s: %v", msgType.String(), err)
					continue
				}

				if result.MsgType != msgType {
					t.Errorf("Message type doesn't match after round trip: Expected %s, got %s",
						msgType.String(), result.MsgType.String())
				}
			}
		})
	}
}

// TestBinarySerializerNilAndEmpty tests that the binary serializer keeps nil and empty slices apart
func TestBinarySerializerNilAndEmpty(t *testing.T) {
	serializer := NewBinarySerializer()

	msg := common.Message{
		MsgType:  common.MsgTMultiPut,
		Key:      []byte{},
		Value:    nil,
		SortKeys: [][]byte{nil, {}, []byte("x")},
		Kvs: []common.KeyValue{
			{Key: []byte{}, Value: nil},
			{Key: []byte("k"), Value: []byte{}},
		},
	}

	data, err := serializer.Serialize(msg)
	if err != nil {
		t.Fatalf("Failed to serialize: %v", err)
	}

	var result common.Message
	if err := serializer.Deserialize(data, &result); err != nil {
		t.Fatalf("Failed to deserialize: %v", err)
	}

	if result.Key == nil || len(result.Key) != 0 {
		t.Errorf("Key: expected empty non-nil slice, got %#v", result.Key)
	}
	if result.Value != nil {
		t.Errorf("Value: expected nil, got %#v", result.Value)
	}
	if len(result.SortKeys) != 3 || result.SortKeys[0] != nil || result.SortKeys[1] == nil || !bytes.Equal(result.SortKeys[2], []byte("x")) {
		t.Errorf("SortKeys mismatch: %#v", result.SortKeys)
	}
	if len(result.Kvs) != 2 || result.Kvs[0].Key == nil || result.Kvs[0].Value != nil || result.Kvs[1].Value == nil {
		t.Errorf("Kvs mismatch: %#v", result.Kvs)
	}
}

// TestBinarySerializerDoesNotAlias tests that decoded slices do not share memory with the input
func TestBinarySerializerDoesNotAlias(t *testing.T) {
	serializer := NewBinarySerializer()

	data, _ := serializer.Serialize(common.Message{MsgType: common.MsgTGet, Value: []byte("value")})

	var result common.Message
	if err := serializer.Deserialize(data, &result); err != nil {
		t.Fatalf("Failed to deserialize: %v", err)
	}
	for i := range data {
		data[i] = 0
	}
	if string(result.Value) != "value" {
		t.Errorf("Deserialized value changed with the input buffer: %q", result.Value)
	}
}

// TestInvalidBinaryData tests how the binary serializer handles corrupt or invalid data
func TestInvalidBinaryData(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name        string
		data        []byte
		expectError bool
	}{
		{
			name:        "Empty data",
			data:        []byte{},
			expectError: true,
		},
		{
			name:        "Too short header",
			data:        []byte{1, 0, 0}, // type and a partial flags word
			expectError: true,
		},
		{
			name:        "Valid header only",
			data:        []byte{1, 0, 0, 0, 0}, // Message type 1, no flags
			expectError: false,
		},
		{
			name:        "Invalid length for key",
			data:        []byte{3, 0, 0, 0, 2, 0, 0, 0, 5, 'a', 'b', 'c'}, // Claims key length 5 but only 3 bytes provided
			expectError: true,
		},
		{
			name:        "Missing decree",
			data:        []byte{3, 0, 0x20, 0, 0, 0, 0, 0}, // hasDecree set but only 3 bytes follow
			expectError: true,
		},
		{
			name:        "Too many sort keys",
			data:        []byte{3, 0, 0, 0, 8, 0xFF, 0xFF, 0xFF, 0xFF}, // claims 2^32-1 sort keys
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var msg common.Message
			err := serializer.Deserialize(tc.data, &msg)

			if tc.expectError && err == nil {
				t.Errorf("Expected error but got none")
			} else if !tc.expectError && err != nil {
				t.Errorf("Did not expect error but got: %v", err)
			}
		})
	}
}

// TestJSONMessageTypeNames tests that message types are encoded by name
func TestJSONMessageTypeNames(t *testing.T) {
	data, err := NewJSONSerializer().Serialize(common.Message{MsgType: common.MsgTSortKeyCount})
	if err != nil {
		t.Fatalf("Failed to serialize: %v", err)
	}
	if !bytes.Contains(data, []byte(`"msg_type":"sortkey_count"`)) {
		t.Errorf("Expected message type name in %s", data)
	}

	var msg common.Message
	if err := NewJSONSerializer().Deserialize([]byte(`{"msg_type":"no_such_type"}`), &msg); err == nil {
		t.Errorf("Expected error for unknown message type")
	}
}

// TestInvalidTextData tests that the json and gob serializers reject truncated input
func TestInvalidTextData(t *testing.T) {
	for name, newSerializer := range map[string]func() IRPCSerializer{
		"JSON": NewJSONSerializer,
		"GOB":  NewGOBSerializer,
	} {
		t.Run(name, func(t *testing.T) {
			s := newSerializer()
			data, err := s.Serialize(common.Message{MsgType: common.MsgTGet, AppName: "temp", Key: []byte("k")})
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			var msg common.Message
			if err := s.Deserialize(nil, &msg); err == nil {
				t.Errorf("Expected error for empty data")
			}
			if err := s.Deserialize(data[:len(data)/2], &msg); err == nil {
				t.Errorf("Expected error for truncated data")
			}
		})
	}
}
