// Package rpc provides the communication layer between sKV clients and the
// replicas that host the partitions of a table.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures and utilities used across the RPC system,
//     including the Message protocol, configuration structures, and logging.
//
//   - transport: Network communication abstractions with pluggable implementations
//     (TCP, Unix sockets, HTTP, in-process).
//
//   - serializer: Message serialization with multiple format options (Binary, JSON, GOB)
//     for converting between Message objects and byte arrays.
//
//   - meta: Resolvers for the partition layout of a table (replica query,
//     ZooKeeper, static).
//
//   - client: The table client with point, multi and scan operations, each with
//     a synchronous and an asynchronous form.
//
//   - server: A single node development replica serving tables from in-memory stores.
package rpc
