package client

import (
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/sKV/lib/errcode"
	"github.com/ValentinKolb/sKV/lib/key"
	"github.com/ValentinKolb/sKV/rpc/common"
)

// Scan defaults
const (
	DefaultScanTimeout   = 5000 * time.Millisecond
	DefaultScanBatchSize = 1000
)

// ScanOptions configure a scanner
type ScanOptions struct {
	// Timeout of every single fetch
	Timeout time.Duration
	// BatchSize is the number of records fetched per request
	BatchSize      int32
	StartInclusive bool
	StopInclusive  bool
	// NoValue only fetches keys
	NoValue bool
	// Snapshot is an opaque token handed to the replica
	Snapshot []byte
}

// DefaultScanOptions returns the options used by the split scanners
func DefaultScanOptions() ScanOptions {
	return ScanOptions{
		Timeout:        DefaultScanTimeout,
		BatchSize:      DefaultScanBatchSize,
		StartInclusive: true,
		StopInclusive:  false,
	}
}

// ScanItem is one record returned by a scanner
type ScanItem struct {
	HashKey []byte
	SortKey []byte
	Value   []byte
}

// ScannerState is the state of a scanner
type ScannerState int32

const (
	// Ready means the scanner can hand out the next record
	Ready ScannerState = iota
	// Fetching means a request to a replica is outstanding
	Fetching
	// Exhausted means the scanner has no more records, or failed
	Exhausted
)

func (s ScannerState) String() string {
	switch s {
	case Ready:
		return "Ready"
	case Fetching:
		return "Fetching"
	case Exhausted:
		return "Exhausted"
	default:
		return "Unknown"
	}
}

// ScanCallback receives the next record of a scanner. ok is false once the scanner is exhausted.
type ScanCallback func(item ScanItem, ok bool, err error)

// IScanner iterates over records of one or more partitions.
// A scanner is not safe for concurrent use, distinct scanners are independent.
type IScanner interface {
	// Next returns the next record, ok is false if the scan is complete.
	// A failed fetch ends the scan, every later call returns the same error.
	Next() (item ScanItem, ok bool, err error)

	// NextAsync is the asynchronous form of Next, at most one call may be outstanding
	NextAsync(callback ScanCallback)

	// Close ends the scan and releases the scan context held by the replica
	Close()

	// State returns the current state
	State() ScannerState
}

// --------------------------------------------------------------------------
// Scanner
// --------------------------------------------------------------------------

// scanner walks a list of partition hashes. For every hash it opens a scan context
// on the replica with a GetScanner request and follows it with Scan requests until
// the replica reports the context as completed.
type scanner struct {
	client  *rpcClient
	options ScanOptions

	// key range of the scan, empty bounds scan the whole partition
	start, stop []byte

	// remaining partition hashes, consumed from the back
	hashes []uint64

	// current partition and its open scan context
	hash      uint64
	contextID int64

	batch []common.KeyValue
	pos   int

	state atomic.Int32
	err   error
}

func newScanner(c *rpcClient, hashes []uint64, options ScanOptions, start, stop []byte) *scanner {
	s := &scanner{
		client:    c,
		options:   options,
		start:     start,
		stop:      stop,
		hashes:    hashes,
		contextID: common.ScanContextCompleted,
	}
	s.state.Store(int32(Ready))
	if len(hashes) == 0 {
		s.state.Store(int32(Exhausted))
	}
	return s
}

// --------------------------------------------------------------------------
// Interface Methods (docu see client.IScanner)
// --------------------------------------------------------------------------

func (s *scanner) Next() (ScanItem, bool, error) {
	type next struct {
		item ScanItem
		ok   bool
	}
	n, _, err := wait(func(callback Callback[next]) {
		s.NextAsync(func(item ScanItem, ok bool, err error) {
			callback(next{item: item, ok: ok}, failedInfo, err)
		})
	})
	return n.item, n.ok, err
}

func (s *scanner) NextAsync(callback ScanCallback) {
	for {
		if s.err != nil {
			callback(ScanItem{}, false, s.err)
			return
		}

		if s.pos < len(s.batch) {
			kv := s.batch[s.pos]
			s.pos++
			item, err := s.item(kv)
			if err != nil {
				s.fail(err)
				continue
			}
			callback(item, true, nil)
			return
		}

		if s.contextID == common.ScanContextCompleted {
			if len(s.hashes) == 0 {
				s.state.Store(int32(Exhausted))
				callback(ScanItem{}, false, nil)
				return
			}
			s.hash = s.hashes[len(s.hashes)-1]
			s.hashes = s.hashes[:len(s.hashes)-1]
		}

		s.fetch(func(err error) {
			if err != nil {
				s.fail(err)
			}
			s.NextAsync(callback)
		})
		return
	}
}

func (s *scanner) Close() {
	if s.contextID != common.ScanContextCompleted {
		// fire and forget, the replica drops unknown contexts on its own
		invoke(s.client, call[struct{}]{
			op:            "clear_scanner",
			partitionHash: s.hash,
			req:           common.NewClearScannerRequest(s.client.appName, s.contextID),
			timeout:       s.options.Timeout,
			decode:        decodeNothing,
		}, nil)
		s.contextID = common.ScanContextCompleted
	}
	s.hashes = nil
	s.batch = nil
	s.state.Store(int32(Exhausted))
}

func (s *scanner) State() ScannerState {
	return ScannerState(s.state.Load())
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// scanBatch is the payload of GetScanner and Scan responses
type scanBatch struct {
	kvs       []common.KeyValue
	contextID int64
}

func decodeScanBatch(resp *common.Message) scanBatch {
	return scanBatch{kvs: resp.Kvs, contextID: resp.ContextID}
}

// fetch requests the next batch of the current partition
func (s *scanner) fetch(done func(err error)) {
	s.state.Store(int32(Fetching))

	cl := call[scanBatch]{
		partitionHash: s.hash,
		timeout:       s.options.Timeout,
		decode:        decodeScanBatch,
	}
	if s.contextID == common.ScanContextCompleted {
		cl.op = "get_scanner"
		cl.req = common.NewGetScannerRequest(s.client.appName, s.start, s.stop,
			s.options.StartInclusive, s.options.StopInclusive, s.options.BatchSize, s.options.NoValue, s.options.Snapshot)
	} else {
		cl.op = "scan"
		cl.req = common.NewScanRequest(s.client.appName, s.contextID)
	}

	invoke(s.client, cl, func(batch scanBatch, _ Info, err error) {
		if err != nil {
			done(err)
			return
		}
		s.batch = batch.kvs
		s.pos = 0
		s.contextID = batch.contextID
		s.state.Store(int32(Ready))
		done(nil)
	})
}

// fail ends the scan with a sticky error
func (s *scanner) fail(err error) {
	s.err = err
	s.batch = nil
	s.hashes = nil
	s.contextID = common.ScanContextCompleted
	s.state.Store(int32(Exhausted))
}

// item restores hash and sort key of a scanned record
func (s *scanner) item(kv common.KeyValue) (ScanItem, error) {
	hashKey, sortKey, err := key.Decode(kv.Key)
	if err != nil {
		Logger.Errorf("scan: malformed key in response: %v", err)
		return ScanItem{}, errcode.NewError(errcode.Unknown, "malformed key in scan response")
	}
	return ScanItem{HashKey: hashKey, SortKey: sortKey, Value: kv.Value}, nil
}

// normalize fills unset options with the defaults of the client
func (o ScanOptions) normalize(c *rpcClient) ScanOptions {
	if o.Timeout <= 0 {
		o.Timeout = c.timeout
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultScanBatchSize
	}
	return o
}

// --------------------------------------------------------------------------
// Range Scanner
// --------------------------------------------------------------------------

func (c *rpcClient) GetScanner(hashKey, startSortKey, stopSortKey []byte, options ScanOptions) (IScanner, error) {
	type created struct{ scanner IScanner }
	res, _, err := wait(func(callback Callback[created]) {
		c.GetScannerAsync(hashKey, startSortKey, stopSortKey, options, func(s IScanner, err error) {
			callback(created{s}, failedInfo, err)
		})
	})
	return res.scanner, err
}

// GetScannerAsync builds the scanner without network interaction, callback runs on the calling goroutine
func (c *rpcClient) GetScannerAsync(hashKey, startSortKey, stopSortKey []byte, options ScanOptions, callback func(IScanner, error)) {
	if callback == nil {
		return
	}
	if err := c.checkGroupKey("get_scanner", hashKey); err != nil {
		callback(nil, err)
		return
	}

	o := options.normalize(c)

	start, err := key.Encode(hashKey, startSortKey)
	if err != nil {
		callback(nil, c.invalidHashKey("get_scanner", err.Error()))
		return
	}
	// an empty stop of the last hash-key group is unbounded
	var stop []byte
	if len(stopSortKey) == 0 {
		stop, err = key.EncodeSuccessor(hashKey)
		o.StopInclusive = false
	} else {
		stop, err = key.Encode(hashKey, stopSortKey)
	}
	if err != nil {
		callback(nil, c.invalidHashKey("get_scanner", err.Error()))
		return
	}

	var hashes []uint64
	if key.RangeEligible(start, o.StartInclusive, stop, o.StopInclusive) {
		hashes = []uint64{key.PartitionHash(start)}
	}
	callback(newScanner(c, hashes, o, start, stop), nil)
}
