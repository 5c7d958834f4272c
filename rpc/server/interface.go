package server

import (
	"github.com/ValentinKolb/sKV/lib/store"
	"github.com/ValentinKolb/sKV/rpc/common"
)

// IRPCServerAdapter is the interface for all RPC server adapters
// It is responsible for handling requests and responses of a single partition
type IRPCServerAdapter interface {
	// Handle handles a request and returns a response
	// It takes a Message and the store of the partition the request was routed to.
	// It returns a Message as a response, storage failures are reported in its Error field.
	// The envelope is filled in by the server.
	Handle(req *common.Message, store store.IStore) (resp *common.Message)
}
