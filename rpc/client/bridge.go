package client

import (
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/sKV/lib/errcode"
	"github.com/ValentinKolb/sKV/rpc/common"
)

// --------------------------------------------------------------------------
// Sync side
// --------------------------------------------------------------------------

// result is the value a future is completed with
type result[T any] struct {
	value T
	info  Info
	err   error
}

// future is a single use, single slot result. The channel is buffered, so complete
// never blocks and may run before wait.
type future[T any] struct {
	ch chan result[T]
}

func newFuture[T any]() *future[T] {
	return &future[T]{ch: make(chan result[T], 1)}
}

func (f *future[T]) complete(value T, info Info, err error) {
	f.ch <- result[T]{value: value, info: info, err: err}
}

func (f *future[T]) wait() (T, Info, error) {
	r := <-f.ch
	return r.value, r.info, r.err
}

// wait runs an async operation and blocks until its callback fired.
// This is the only place where a caller blocks on an operation.
func wait[T any](async func(callback Callback[T])) (T, Info, error) {
	f := newFuture[T]()
	async(f.complete)
	return f.wait()
}

// waitInfo is wait for operations without payload
func waitInfo(async func(callback InfoCallback)) (Info, error) {
	_, info, err := wait(func(callback Callback[struct{}]) {
		async(func(info Info, err error) { callback(struct{}{}, info, err) })
	})
	return info, err
}

// withoutResult adapts an InfoCallback, a nil callback stays nil
func withoutResult(callback InfoCallback) Callback[struct{}] {
	if callback == nil {
		return nil
	}
	return func(_ struct{}, info Info, err error) { callback(info, err) }
}

// --------------------------------------------------------------------------
// Async side
// --------------------------------------------------------------------------

// call describes a single request
type call[T any] struct {
	// op names the operation in logs and metrics
	op string
	// write marks operations whose envelope carries a decree
	write         bool
	partitionHash uint64
	req           *common.Message
	timeout       time.Duration
	// decode extracts the payload, it also runs if the storage reported an error
	decode func(resp *common.Message) T
}

// invoke sends a request and runs callback exactly once with the translated result.
// The in-flight entry of the call is released on every path, also without a callback.
func invoke[T any](c *rpcClient, cl call[T], callback Callback[T]) {
	start := c.now()

	// Serialize the request
	reqBytes, err := c.serializer.Serialize(*cl.req)
	if err != nil {
		Logger.Errorf("%s: failed to serialize request: %v", cl.op, err)
		finish(c, cl.op, start, callback, zero[T](), failedInfo, c.clientError(errcode.Unknown, err.Error()))
		return
	}

	id, ok := c.track(cl.op)
	if !ok {
		finish(c, cl.op, start, callback, zero[T](), failedInfo,
			c.clientError(errcode.NetworkFailure, "client is closed"))
		return
	}

	c.transport.SendAsync(cl.partitionHash, reqBytes, cl.timeout, func(respBytes []byte, err error) {
		defer c.untrack(id)

		// (1) transport failure, nothing to decode
		if err != nil {
			code := c.translator.FromTransport(errcode.TransportStatusOf(err))
			finish(c, cl.op, start, callback, zero[T](), failedInfo, c.clientError(code, err.Error()))
			return
		}

		// (2) decode envelope and payload
		var resp common.Message
		if err := c.serializer.Deserialize(respBytes, &resp); err != nil {
			Logger.Errorf("%s: failed to deserialize response: %v", cl.op, err)
			finish(c, cl.op, start, callback, zero[T](), failedInfo, c.clientError(errcode.Unknown, err.Error()))
			return
		}

		// the replica reports failures before a partition was reached as transport status
		if resp.MsgType == common.MsgTError {
			code := c.translator.FromTransport(errcode.TransportStatus(resp.Error))
			finish(c, cl.op, start, callback, zero[T](), failedInfo, c.clientError(code, resp.Err))
			return
		}

		if resp.MsgType != cl.req.MsgType {
			Logger.Errorf("%s: unexpected response type %s", cl.op, resp.MsgType)
			finish(c, cl.op, start, callback, zero[T](), failedInfo,
				c.clientError(errcode.Unknown, "unexpected response type "+resp.MsgType.String()))
			return
		}

		info := Info{
			AppID:          resp.AppID,
			PartitionIndex: resp.PartitionIndex,
			Decree:         -1,
			Server:         resp.Server,
		}
		if cl.write {
			info.Decree = resp.Decree
		}

		// (3) translate the storage status
		code := c.translator.ToClientError(errcode.TransportOK, resp.Error)
		finish(c, cl.op, start, callback, cl.decode(&resp), info, c.clientError(code, resp.Err))
	})
}

// finish records the call and runs the callback if there is one
func finish[T any](c *rpcClient, op string, start time.Time, callback Callback[T], value T, info Info, err error) {
	recordCall(op, errcode.CodeOf(err), c.now().Sub(start))
	if callback != nil {
		callback(value, info, err)
	}
}

// reject reports a request that failed validation, no request is sent
func reject[T any](c *rpcClient, op string, callback Callback[T], err error) {
	recordCall(op, errcode.CodeOf(err), 0)
	if callback != nil {
		callback(zero[T](), failedInfo, err)
	}
}

// clientError builds the error of a code, nil for Ok
func (c *rpcClient) clientError(code errcode.Code, detail string) error {
	msg := c.translator.ErrorString(code)
	if detail != "" {
		msg += ": " + detail
	}
	return errcode.NewError(code, msg)
}

// track registers an in-flight call, it fails once the client is closed
func (c *rpcClient) track(op string) (uint64, bool) {
	c.closeMu.RLock()
	defer c.closeMu.RUnlock()
	if c.closed {
		return 0, false
	}
	id := atomic.AddUint64(&c.nextID, 1)
	c.inFlight.Store(id, op)
	c.pending.Add(1)
	return id, true
}

func (c *rpcClient) untrack(id uint64) {
	if _, ok := c.inFlight.LoadAndDelete(id); ok {
		c.pending.Done()
	}
}

// inFlightCount returns the number of calls waiting for their completion
func (c *rpcClient) inFlightCount() int {
	return c.inFlight.Size()
}

func zero[T any]() T {
	var v T
	return v
}
