// Package unix runs the framed sKV protocol of package base over Unix domain
// sockets, for a client and a development replica on the same machine.
//
// The package only contributes the connectors: the client side dials the socket
// path of every endpoint, the server side removes a stale socket file before it
// listens. Connection pooling, request ids and response dispatch come from base.
//
// Buffers default to 64 KB. Compared to the tcp transport the kernel skips the
// network stack, so latency is lower for local benchmarks.
package unix
