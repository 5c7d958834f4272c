package client

import (
	"sync"
	"time"

	"github.com/ValentinKolb/sKV/lib/errcode"
	"github.com/ValentinKolb/sKV/rpc/common"
	"github.com/ValentinKolb/sKV/rpc/meta"
	"github.com/ValentinKolb/sKV/rpc/serializer"
	"github.com/ValentinKolb/sKV/rpc/transport"
	"github.com/cockroachdb/errors"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var (
	Logger = logger.GetLogger("rpc")
)

// DefaultTimeout is used if the client config carries no timeout
const DefaultTimeout = 5 * time.Second

// Info is the envelope of a finished operation. It is filled from the response of the
// serving replica. Failed calls that never reached a replica carry -1/-1/-1/"".
type Info struct {
	AppID          int32
	PartitionIndex int32
	// Decree is the write sequence number of the partition, -1 for reads
	Decree int64
	Server string
}

// failedInfo is the envelope of calls without a replica response
var failedInfo = Info{AppID: -1, PartitionIndex: -1, Decree: -1}

// Callback receives the result of an asynchronous operation. The payload may be set
// together with an error, for example MultiGet returns the fetched part of a truncated
// result together with errcode.Incomplete.
type Callback[T any] func(result T, info Info, err error)

// InfoCallback receives the result of an asynchronous operation without payload
type InfoCallback func(info Info, err error)

// IClient is the client of one table. Every operation comes in a synchronous and an
// asynchronous form, the synchronous form blocks until the asynchronous one completed.
// Async operations never block, their callback runs on a transport goroutine, or on
// the calling goroutine if the request is rejected before it is sent. A nil callback
// is allowed for fire and forget calls.
//
// Errors carry a client code, use errcode.CodeOf to recover it.
type IClient interface {
	// Set stores value under (hashKey, sortKey). ttlSeconds is relative to now, 0 means the record never expires.
	Set(hashKey, sortKey, value []byte, ttlSeconds int32) (Info, error)
	SetAsync(hashKey, sortKey, value []byte, ttlSeconds int32, callback InfoCallback)

	// MultiSet stores all kvs (Key is the sort key) under hashKey atomically
	MultiSet(hashKey []byte, kvs []common.KeyValue, ttlSeconds int32) (Info, error)
	MultiSetAsync(hashKey []byte, kvs []common.KeyValue, ttlSeconds int32, callback InfoCallback)

	// Get returns the value of (hashKey, sortKey), errcode.NotFound if there is none
	Get(hashKey, sortKey []byte) ([]byte, Info, error)
	GetAsync(hashKey, sortKey []byte, callback Callback[[]byte])

	// MultiGet returns the records of sortKeys under hashKey, all records of the group if
	// sortKeys is empty. maxFetchCount and maxFetchSize bound the result, values <= 0 mean
	// no bound. A truncated result is returned together with errcode.Incomplete.
	MultiGet(hashKey []byte, sortKeys [][]byte, maxFetchCount, maxFetchSize int32) ([]common.KeyValue, Info, error)
	MultiGetAsync(hashKey []byte, sortKeys [][]byte, maxFetchCount, maxFetchSize int32, callback Callback[[]common.KeyValue])

	// MultiGetSortKeys returns the sort keys of the group hashKey without values
	MultiGetSortKeys(hashKey []byte, maxFetchCount, maxFetchSize int32) ([][]byte, Info, error)
	MultiGetSortKeysAsync(hashKey []byte, maxFetchCount, maxFetchSize int32, callback Callback[[][]byte])

	// Exist returns nil if (hashKey, sortKey) exists, errcode.NotFound otherwise
	Exist(hashKey, sortKey []byte) (Info, error)
	ExistAsync(hashKey, sortKey []byte, callback InfoCallback)

	// SortKeyCount returns the number of records in the group hashKey
	SortKeyCount(hashKey []byte) (int64, Info, error)
	SortKeyCountAsync(hashKey []byte, callback Callback[int64])

	// Del removes (hashKey, sortKey). Removing a missing record is not an error.
	Del(hashKey, sortKey []byte) (Info, error)
	DelAsync(hashKey, sortKey []byte, callback InfoCallback)

	// MultiDel removes sortKeys from the group hashKey and returns the number of removed records
	MultiDel(hashKey []byte, sortKeys [][]byte) (int64, Info, error)
	MultiDelAsync(hashKey []byte, sortKeys [][]byte, callback Callback[int64])

	// TTL returns the remaining time to live of (hashKey, sortKey) in seconds, -1 if it never expires
	TTL(hashKey, sortKey []byte) (int32, Info, error)
	TTLAsync(hashKey, sortKey []byte, callback Callback[int32])

	// GetScanner returns an ordered scanner over the group hashKey from startSortKey to
	// stopSortKey. An empty stopSortKey scans to the end of the group.
	GetScanner(hashKey, startSortKey, stopSortKey []byte, options ScanOptions) (IScanner, error)
	GetScannerAsync(hashKey, startSortKey, stopSortKey []byte, options ScanOptions, callback func(IScanner, error))

	// GetUnorderedScanners splits a full table scan into at most maxSplitCount
	// independent scanners over disjoint sets of partitions.
	GetUnorderedScanners(maxSplitCount int, options ScanOptions) ([]IScanner, error)
	GetUnorderedScannersAsync(maxSplitCount int, options ScanOptions, callback func([]IScanner, error))

	// AppName returns the table the client is bound to
	AppName() string

	// ErrorString returns the message of a client code
	ErrorString(code errcode.Code) string

	// Close waits for all in-flight calls, then closes the transport and the resolver
	Close() error
}

// NewRPCClient creates a new client for the table config.AppName.
// The function connects the transport. If resolver is nil, partition count queries are
// sent over the data transport.
func NewRPCClient(
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
	resolver meta.IMetaResolver,
) (IClient, error) {
	if config.AppName == "" {
		return nil, errors.New("no app name provided")
	}

	// Connect the transport
	if err := transport.Connect(config); err != nil {
		return nil, err
	}

	if resolver == nil {
		resolver = meta.NewRPCResolver(transport, serializer, false)
	}

	timeout := time.Duration(config.TimeoutMillisecond) * time.Millisecond
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &rpcClient{
		appName:    config.AppName,
		timeout:    timeout,
		transport:  transport,
		serializer: serializer,
		resolver:   resolver,
		translator: errcode.NewTranslator(),
		inFlight:   xsync.NewMapOf[uint64, string](),
		now:        time.Now,
	}, nil
}

// rpcClient stores all data needed for the bridge between the public operations and the transport
type rpcClient struct {
	appName    string
	timeout    time.Duration
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
	resolver   meta.IMetaResolver
	translator *errcode.Translator

	// in-flight calls by call id, the value is the operation name
	inFlight *xsync.MapOf[uint64, string]
	nextID   uint64
	pending  sync.WaitGroup
	closeMu  sync.RWMutex
	closed   bool

	now func() time.Time
}

func (c *rpcClient) AppName() string {
	return c.appName
}

func (c *rpcClient) ErrorString(code errcode.Code) string {
	return c.translator.ErrorString(code)
}

func (c *rpcClient) Close() error {
	c.closeMu.Lock()
	if c.closed {
		c.closeMu.Unlock()
		return nil
	}
	c.closed = true
	c.closeMu.Unlock()

	// drain in-flight calls
	c.pending.Wait()

	rErr := c.resolver.Close()
	tErr := c.transport.Close()
	return errors.CombineErrors(tErr, rErr)
}
