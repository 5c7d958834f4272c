package meta

import (
	"time"

	"github.com/ValentinKolb/sKV/lib/errcode"
	"github.com/ValentinKolb/sKV/rpc/common"
	"github.com/ValentinKolb/sKV/rpc/serializer"
	"github.com/ValentinKolb/sKV/rpc/transport"
	"github.com/cockroachdb/errors"
)

type rpcResolver struct {
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
	owned      bool
}

// NewRPCResolver creates a resolver that sends QueryConfig requests over t.
// The transport must already be connected. If owned is true, Close also closes t.
func NewRPCResolver(t transport.IRPCClientTransport, s serializer.IRPCSerializer, owned bool) IMetaResolver {
	return &rpcResolver{transport: t, serializer: s, owned: owned}
}

func (r *rpcResolver) QueryPartitionCount(appName string, timeout time.Duration, callback QueryCallback) {
	req, err := r.serializer.Serialize(*common.NewQueryConfigRequest(appName))
	if err != nil {
		go callback(-1, -1, errors.Wrap(err, "failed to serialize request"))
		return
	}

	// tables are not partitioned for the server, any hash routes the request
	r.transport.SendAsync(0, req, timeout, func(resp []byte, err error) {
		if err != nil {
			callback(-1, -1, err)
			return
		}

		var msg common.Message
		if err := r.serializer.Deserialize(resp, &msg); err != nil {
			callback(-1, -1, errcode.NewTransportError(errcode.TransportNetworkFailure,
				errors.Wrap(err, "failed to deserialize response")))
			return
		}

		switch msg.MsgType {
		case common.MsgTQueryConfig:
			callback(msg.PartitionCount, msg.AppID, nil)
		case common.MsgTError:
			callback(-1, -1, errcode.NewTransportError(errcode.TransportStatus(msg.Error), errors.New(msg.Err)))
		default:
			callback(-1, -1, errcode.NewTransportError(errcode.TransportNetworkFailure,
				errors.Newf("unexpected response type %s", msg.MsgType)))
		}
	})
}

func (r *rpcResolver) Close() error {
	if r.owned {
		return r.transport.Close()
	}
	return nil
}
