package serializer

import "github.com/ValentinKolb/sKV/rpc/common"

// IRPCSerializer converts messages to the opaque payloads moved by a transport.
// Client and replica must use the same implementation.
type IRPCSerializer interface {
	// Serialize encodes msg
	Serialize(msg common.Message) ([]byte, error)

	// Deserialize decodes b into msg. A payload that is not a complete message
	// returns an error and leaves msg in an undefined state.
	Deserialize(b []byte, msg *common.Message) error
}
