package transport

import (
	"time"

	"github.com/ValentinKolb/sKV/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc is a function type that handles incoming requests
// This function is called by a server transport layer when a request is received
// It takes the partition hash the request was routed by and the request as parameters
// and returns a response
type ServerHandleFunc func(partitionHash uint64, req []byte) (resp []byte)

// IRPCServerTransport is the interface for the RPC transport layer
// It must accept a ServerConfig as a parameter
type IRPCServerTransport interface {
	// RegisterHandler registers a handler for the transport layer
	// This handler should be called when a request is received
	RegisterHandler(handler ServerHandleFunc)
	// Listen starts the transport layer and blocks until Close is called
	Listen(config common.ServerConfig) error
	// Close stops listening, Listen returns nil afterward
	Close() error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// ResponseCallback receives the outcome of a single request. Exactly one of resp and
// err is meaningful. Errors should carry a status (see errcode.TransportError).
type ResponseCallback func(resp []byte, err error)

// IRPCClientTransport is the interface for the RPC client transport
type IRPCClientTransport interface {
	// Connect initializes the transport with the given configuration
	Connect(config common.ClientConfig) error
	// SendAsync sends a request routed by partitionHash and returns immediately.
	// The callback is invoked exactly once, on a transport goroutine, with either the
	// response or the failure of this single attempt. A timeout <= 0 disables the deadline.
	SendAsync(partitionHash uint64, req []byte, timeout time.Duration, callback ResponseCallback)
	// Close closes the transport connection. Requests still in flight fail.
	Close() error
}
