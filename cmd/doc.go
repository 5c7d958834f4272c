// Package cmd implements the command-line interface of sKV. It provides a
// hierarchical command structure for running a development replica and for
// talking to a table as a client.
//
// The package is organized into several subpackages:
//
//   - kv: Commands for every client operation (set, get, mget, scan, split-scan, perf, ...)
//   - serve: Commands for starting and configuring the development replica
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See skv -help for a list of all commands.
package cmd
