// Package server implements the sKV development replica: a single node that hosts any
// number of tables, each split into a fixed number of partitions, and answers all
// request shapes of the client.
//
// The package focuses on:
//   - Routing a request to partition partitionHash % partitionCount of its table
//   - Filling the response envelope (app id, partition index, decree, node id)
//   - Reporting requests that reach no partition as MsgTError with a transport status
//   - Keeping resume positions of open scans
//
// Key Components:
//
//   - IRPCServerAdapter: Interface defining the contract for partition adapters,
//     with the Handle method that processes a request against a store.IStore.
//
//   - NewIStoreServerAdapter: Factory function creating the adapter for point and
//     multi operations, translating requests to store.IStore method calls.
//
//   - scanRegistry: Open scan contexts by id in a skipmap. GetScanner opens a context
//     if the partition holds more than one batch, Scan continues it, ClearScanner drops
//     it. Contexts idle for five minutes are dropped.
//
//   - NewRPCServer: Factory function creating a configured server with the specified
//     transport, serializer and store factory.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  Tables: []common.TableConfig{
//	    {Name: "temp", AppID: 1, PartitionCount: 8},
//	  },
//	  NodeID:   "node-1",
//	  Endpoint: "0.0.0.0:8080",
//	  LogLevel: "info",
//	}
//
//	s := server.NewRPCServer(
//	  config,
//	  tcp.NewTCPServerTransport(4),
//	  serializer.NewBinarySerializer(),
//	  nil,
//	)
//
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Thread Safety:
//
//	The server implementation is thread-safe and can handle concurrent requests
//	across multiple connections. Each request is processed independently.
//	Serve should be called only once.
package server
