// Package local implements an in-process transport. A server transport registers its
// handler under its endpoint name and client transports connected to that name call
// the handler directly, without any network or framing in between.
//
// The local transport is meant for tests and for embedding a dev server into the same
// process as the client. It keeps the asynchronous contract of the other transports:
// SendAsync never blocks and every callback runs exactly once on its own goroutine,
// either with the handler's response or with a timeout error.
package local
