// Package common provides core data structures and utilities shared across
// the client, the transports and the development replica. It defines the wire
// protocol, configuration structures and the logger integration.
//
// The package focuses on:
//   - Message protocol definition for all requests and responses
//   - Configuration structures for client and server components
//   - Custom logging implementation integrated with Dragonboat's logger package
//
// Key Components:
//
//   - Message: Core data structure for all RPC communication, with a flexible
//     structure that adapts to different operation types. Includes factory methods
//     for creating the request and response messages of every operation. Responses
//     carry the storage status in Error and the envelope (app id, partition index,
//     decree, server) of the partition that served them.
//
//   - MessageType: Enumeration of all supported operation types, categorized into
//     partition operations, scanner operations, meta operations and the error response.
//
//   - ServerConfig: Configuration of the development replica (tables, endpoint,
//     transport tuning and logging).
//
//   - ClientConfig: Configuration for clients: the table, the default timeout, transport
//     endpoints and the metadata resolver.
//
//   - Logger: Custom logging implementation that plugs into Dragonboat's logging
//     system while providing consistent formatting across the application.
package common
