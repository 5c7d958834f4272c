// Package serializer provides message serialization for the sKV RPC system. The
// transports move opaque bytes, the serializers turn a common.Message into those bytes
// and back. Every implementation must preserve the difference between a nil and an
// empty byte field, since an empty sort key or value is a valid key part.
//
// The package focuses on:
//   - Providing a consistent interface for different serialization formats
//   - Offering multiple implementations with different performance characteristics
//   - Supporting efficient encoding of the system's message structure
//   - Minimizing memory allocations and processing overhead
//
// Key Components:
//
//   - IRPCSerializer: Core interface that all serializer implementations must satisfy.
//
//   - binarySerializerImpl: Custom binary format optimized for speed and space
//     efficiency. A flag word marks the present fields and carries the booleans,
//     list entries store len+1 so that nil and empty entries stay distinct.
//
//   - gobSerializerImpl: Implementation using Go's built-in gob encoding, offering
//     good compatibility with Go's type system but with larger serialized sizes.
//
//   - jsonSerializerImpl: Implementation using JSON encoding, useful for debugging
//     or interoperability with other systems, but with lower performance.
//
// Performance Characteristics (see benchmark_test.go):
//
//   - Binary: fastest with the smallest payloads, the default of client and server.
//
//   - JSON: human readable, message types are encoded by name. Useful with the HTTP
//     transport when debugging.
//
//   - GOB: larger and slower than both, kept for comparison.
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent use
//	across multiple goroutines without additional synchronization.
//
// Usage:
//
//	Serializers are typically created once and reused throughout the application:
//
//	  serializer := serializer.NewBinarySerializer()
//	  data, err := serializer.Serialize(message)
//	  // ... send data ...
//	  var receivedMsg common.Message
//	  err = serializer.Deserialize(receivedData, &receivedMsg)
package serializer
