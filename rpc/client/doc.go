// Package client implements the sKV client of a single table. It turns a two part key
// (hash key and sort key) into requests routed to the right partition, bridges the
// asynchronous transport into blocking calls and translates transport and storage
// failures into one client error space (see lib/errcode).
//
// The package focuses on:
//   - One asynchronous request path shared by all operations (bridge.go)
//   - Synchronous operations built on that path with a single use future
//   - Validation before any request is sent
//   - Ordered scans over one hash key and unordered, split full table scans
//
// Key Components:
//
//   - NewRPCClient: Factory function that creates an IClient. It connects the given
//     transport and uses the given resolver for partition count queries.
//
//   - invoke / wait: invoke serializes a request, tracks it until the transport
//     completes, decodes the envelope and the payload and translates the status pair.
//     wait runs any async operation and blocks on its future. Every public operation
//     is a thin combination of the two.
//
//   - scanner: Walks a list of partition hashes. For every partition a GetScanner
//     request opens a scan context on the replica, Scan requests follow until the
//     context is completed.
//
//   - splitPartitions: Divides the partition indices of a table into balanced,
//     disjoint groups, one scanner per group.
//
// Usage Example:
//
//	config := common.ClientConfig{
//		AppName:            "temp",
//		TimeoutMillisecond: 1000,
//		Transport: common.ClientTransportConfig{
//			Endpoints:              []string{"localhost:8080"},
//			ConnectionsPerEndpoint: 1,
//		},
//	}
//
//	c, err := client.NewRPCClient(config, tcp.NewTCPClientTransport(), serializer.NewBinarySerializer(), nil)
//	if err != nil {
//		panic(err)
//	}
//	defer c.Close()
//
//	info, err := c.Set([]byte("user1"), []byte("age"), []byte("30"), 0)
//	value, _, err := c.Get([]byte("user1"), []byte("age"))
//	if errcode.CodeOf(err) == errcode.NotFound {
//		// ...
//	}
//
// Thread Safety:
//
//	The client is thread-safe and can be used concurrently from multiple goroutines.
//	Scanners are not, every scanner must be owned by a single goroutine.
package client
