// Package base provides a foundation for framed transport layers, implementing the core
// functionality for RPC communication independent of the specific network protocol
// (TCP, Unix sockets, etc.). It serves as a base layer that is extended with
// protocol-specific connectors.
//
// The package focuses on:
//   - Protocol-agnostic client and server transport implementations
//   - Performance optimization through connection pooling and buffer reuse
//   - Frame-based message protocol with partition hash and request id tracking
//   - Asynchronous request dispatch and response correlation
//
// Key Components:
//
//   - IClientConnector/IServerConnector: Interfaces for protocol-specific operations
//     that allow extending the base transport with different network protocols.
//
//   - clientTransport: Core client implementation that manages multiple connections
//     with round-robin load balancing. Every request is registered in a lock-free
//     pending table (xsync.MapOf) keyed by its request id. The first of response,
//     timeout timer, write failure or connection loss removes the entry and fires the
//     callback, so every callback runs exactly once. Requests are attempted once;
//     retrying is left to the caller.
//
//   - serverTransport: Core server implementation that accepts connections. Each one is
//     a replicaConn that reads frames in order, runs at most workersPerConn handler calls
//     at a time and writes every reply under the request id of its frame.
//
// Frame format:
//
//	[8 byte partition hash][8 byte request id][4 byte length][payload]
//
// Thread Safety:
//
//	All public methods are thread-safe. Callbacks are invoked on their own goroutine
//	so a slow callback never stalls the connection reader.
package base
