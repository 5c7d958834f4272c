// Package meta resolves the partition layout of a table. The client only needs one
// answer from the metadata service: how many partitions does a table have (and which
// app id does it carry). The split scanner asks exactly once per call.
//
// Implementations:
//
//   - rpcResolver: sends a QueryConfig message over any client transport, either the
//     data transport of the client or a dedicated one connected to meta endpoints.
//
//   - zkResolver: reads the table layout from a znode <root>/<table>, written by
//     `skv serve --zk-servers` through PublishTable. The znode holds the YAML form
//     of common.TableConfig.
//
//   - staticResolver: answers every table with a fixed layout, handy for tests and
//     for clusters whose layout never changes.
//
// All resolvers are asynchronous: the callback runs exactly once on a goroutine owned
// by the resolver. Errors carry a transport status (see errcode.TransportStatusOf)
// so the client can translate them like any other transport failure.
package meta
