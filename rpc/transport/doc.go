// Package transport defines the interfaces and abstractions for RPC communication
// between clients and replicas. It provides a common contract that all transport
// implementations must fulfill, enabling protocol-agnostic communication.
//
// The package focuses on:
//   - Defining clear interfaces for client and server transport layers
//   - Routing every request by the partition hash of its key
//   - Asynchronous request dispatch with exactly-once completion callbacks
//
// Key Components:
//
//   - IRPCClientTransport: Interface for client-side transport implementations that
//     handles connection management and request sending. SendAsync never blocks the
//     caller; the callback runs on a goroutine owned by the transport.
//
//   - IRPCServerTransport: Interface for server-side transport implementations that
//     receives requests and routes them to the registered handler.
//
//   - ServerHandleFunc: Function type for request handling callbacks.
//
// Implementations: base (framed connections, used by tcp and unix), http and local
// (in-process, for tests and embedding).
package transport
