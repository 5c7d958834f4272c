// Package http implements an HTTP-based transport layer for RPC communication
// in sKV. It provides concrete implementations of the transport interfaces
// defined in the parent package, enabling communication between clients and
// servers over HTTP.
//
// The package focuses on:
//   - Client-side HTTP transport for sending RPC requests to servers
//   - Server-side HTTP transport for receiving and handling RPC requests
//   - Round-robin load balancing across multiple server endpoints
//   - Request routing based on the partition hash in the URL path
//
// Key Components:
//
//   - httpClientTransport: Implements IRPCClientTransport. Every request runs on its
//     own goroutine bounded by a context deadline, so SendAsync never blocks.
//     Requests are attempted once.
//
//   - httpServerTransport: Implements IRPCServerTransport with a chi router.
//     POST /{partitionHash} carries the serialized request, GET /metrics exposes
//     the process metrics in the prometheus text format.
//
// Thread Safety:
//
//	The client transport is thread-safe and can be used concurrently. It uses
//	atomic operations for the round-robin counter to ensure thread safety when
//	selecting server endpoints.
package http
