package server

import (
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/sKV/lib/store"
	"github.com/ValentinKolb/sKV/rpc/common"
	"github.com/zhangyunhao116/skipmap"
)

// scanContextTTL is the idle time after which an open scan context is dropped
const scanContextTTL = 5 * time.Minute

// scanContext is the resume position of an open scan
type scanContext struct {
	appName   string
	partition *partition
	next      store.ScanRange
	batchSize int
	noValue   bool
	lastUsed  time.Time
}

// scanRegistry holds the open scan contexts of all partitions by context id
type scanRegistry struct {
	contexts *skipmap.FuncMap[int64, *scanContext]
	nextID   atomic.Int64
	now      func() time.Time
}

func newScanRegistry(now func() time.Time) *scanRegistry {
	return &scanRegistry{
		contexts: skipmap.NewFunc[int64, *scanContext](func(a, b int64) bool {
			return a < b
		}),
		now: now,
	}
}

// start handles a GetScanner request on p
func (r *scanRegistry) start(req *common.Message, p *partition) *common.Message {
	ctx := &scanContext{
		appName:   req.AppName,
		partition: p,
		next: store.ScanRange{
			Start:          req.StartKey,
			StartInclusive: req.StartInclusive,
			Stop:           req.StopKey,
			StopInclusive:  req.StopInclusive,
		},
		batchSize: int(req.BatchSize),
		noValue:   req.NoValue,
	}
	return r.resume(common.MsgTGetScanner, r.nextID.Add(1), ctx)
}

// scan handles a Scan request. The context is taken out of the registry while it is
// in use, so concurrent requests for the same id see it as unknown.
func (r *scanRegistry) scan(req *common.Message) (*common.Message, *partition) {
	ctx, ok := r.contexts.LoadAndDelete(req.ContextID)
	if !ok || ctx.appName != req.AppName {
		if ok {
			r.contexts.Store(req.ContextID, ctx)
		}
		resp := common.NewScanResponse(common.MsgTScan, int32(store.StatusNotFound), nil, common.ScanContextCompleted)
		resp.Err = "unknown scan context"
		return resp, nil
	}
	return r.resume(common.MsgTScan, req.ContextID, ctx), ctx.partition
}

// clear handles a ClearScanner request
func (r *scanRegistry) clear(req *common.Message) *common.Message {
	if ctx, ok := r.contexts.Load(req.ContextID); ok && ctx.appName == req.AppName {
		r.contexts.Delete(req.ContextID)
	}
	return common.NewClearScannerResponse()
}

// resume scans the next batch of ctx and keeps the context under id if the partition has more
func (r *scanRegistry) resume(msgType common.MessageType, id int64, ctx *scanContext) *common.Message {
	kvs, more, status := ctx.partition.store.Scan(ctx.next, ctx.batchSize, ctx.noValue)
	if status != store.StatusOK {
		return common.NewScanResponse(msgType, int32(status), nil, common.ScanContextCompleted)
	}

	contextID := common.ScanContextCompleted
	if more && len(kvs) > 0 {
		ctx.next.Start = kvs[len(kvs)-1].Key
		ctx.next.StartInclusive = false
		ctx.lastUsed = r.now()
		r.contexts.Store(id, ctx)
		contextID = id
	}
	return common.NewScanResponse(msgType, int32(status), fromStoreKVs(kvs), contextID)
}

// expire drops all contexts idle for longer than scanContextTTL
func (r *scanRegistry) expire() int {
	deadline := r.now().Add(-scanContextTTL)
	var expired []int64
	r.contexts.Range(func(id int64, ctx *scanContext) bool {
		if ctx.lastUsed.Before(deadline) {
			expired = append(expired, id)
		}
		return true
	})
	for _, id := range expired {
		r.contexts.Delete(id)
	}
	return len(expired)
}

// size returns the number of open contexts
func (r *scanRegistry) size() int {
	return r.contexts.Len()
}
