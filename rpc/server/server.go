package server

import (
	"fmt"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/ValentinKolb/sKV/lib/errcode"
	"github.com/ValentinKolb/sKV/lib/store"
	"github.com/ValentinKolb/sKV/lib/store/memstore"
	"github.com/ValentinKolb/sKV/rpc/common"
	"github.com/ValentinKolb/sKV/rpc/serializer"
	"github.com/ValentinKolb/sKV/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/cockroachdb/errors"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("server")

// partition is a single partition of a table
type partition struct {
	index int32
	store store.IStore
}

// table is a table hosted by the server, requests are routed to
// partitions[partitionHash % len(partitions)]
type table struct {
	config     common.TableConfig
	partitions []*partition
}

func (t *table) route(partitionHash uint64) *partition {
	return t.partitions[partitionHash%uint64(len(t.partitions))]
}

// NewRPCServer creates a new development replica
// It takes a config, transport, serializer and a store factory as parameters.
// A nil factory creates in-memory stores.
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		tcp.NewTCPServerTransport(config.Transport.WorkersPerConn),
//		serializer.NewBinarySerializer(),
//		nil,
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
	storeFactory store.Factory,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	if storeFactory == nil {
		storeFactory = memstore.NewMemStore
	}

	Logger.Infof("Created RPC Server")
	Logger.Infof(config.String())

	// Create the RPC server
	return &RPCServer{
		config:       config,
		transport:    transport,
		serializer:   serializer,
		storeFactory: storeFactory,
		adapter:      NewIStoreServerAdapter(),
		tables:       xsync.NewMapOf[string, *table](),
		scans:        newScanRegistry(time.Now),
		done:         make(chan struct{}),
	}
}

// RPCServer serves the tables of its config on a single node
type RPCServer struct {
	config       common.ServerConfig
	transport    transport.IRPCServerTransport
	serializer   serializer.IRPCSerializer
	storeFactory store.Factory
	adapter      IRPCServerAdapter
	tables       *xsync.MapOf[string, *table]
	scans        *scanRegistry
	done         chan struct{}
	closeOnce    sync.Once
}

// Serve creates the tables and starts the transport layer. It blocks until the
// transport is closed.
func (s *RPCServer) Serve() error {
	if err := s.init(); err != nil {
		return err
	}
	go s.expireScans()
	return s.transport.Listen(s.config)
}

// Close stops the transport and drops all scan contexts
func (s *RPCServer) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.transport.Close()
	})
	return err
}

func (s *RPCServer) init() error {
	for _, tc := range s.config.Tables {
		if tc.Name == "" {
			return errors.New("table without name")
		}
		if tc.PartitionCount <= 0 {
			return errors.Newf("table %s: partition count must be positive, got %d", tc.Name, tc.PartitionCount)
		}

		t := &table{config: tc, partitions: make([]*partition, tc.PartitionCount)}
		for i := range t.partitions {
			t.partitions[i] = &partition{index: int32(i), store: s.storeFactory()}
		}

		if _, loaded := s.tables.LoadOrStore(tc.Name, t); loaded {
			return errors.Newf("table %s is defined twice", tc.Name)
		}
		Logger.Infof("created table %s (app id %d) with %d partitions", tc.Name, tc.AppID, tc.PartitionCount)
	}

	Logger.Infof("sKV setup completed successfully")

	// Configure the transport layer
	s.transport.RegisterHandler(s.handle)
	return nil
}

// handle decodes a request, dispatches it and encodes the response
func (s *RPCServer) handle(partitionHash uint64, req []byte) []byte {
	var msg common.Message
	var resp *common.Message

	if err := s.serializer.Deserialize(req, &msg); err != nil {
		resp = common.NewErrorResponse(errcode.TransportUnclassified, fmt.Sprintf("failed to deserialize request: %s", err))
	} else {
		resp = s.dispatch(partitionHash, &msg)
	}
	metrics.GetOrCreateCounter(fmt.Sprintf(`skv_server_requests_total{type=%q,status=%q}`, msg.MsgType, responseStatus(resp))).Inc()

	val, err := s.serializer.Serialize(*resp)
	if err != nil {
		Logger.Errorf("failed to serialize response: %v", err)
		val, _ = s.serializer.Serialize(*common.NewErrorResponse(errcode.TransportUnclassified,
			fmt.Sprintf("failed to serialize response: %s", err)))
	}
	return val
}

// dispatch answers a decoded request
func (s *RPCServer) dispatch(partitionHash uint64, msg *common.Message) *common.Message {
	t, ok := s.tables.Load(msg.AppName)
	if !ok {
		return common.NewErrorResponse(errcode.TransportObjectNotFound, fmt.Sprintf("table %q not found", msg.AppName))
	}

	switch msg.MsgType {
	case common.MsgTQueryConfig:
		return common.NewQueryConfigResponse(t.config.AppID, t.config.PartitionCount)

	case common.MsgTScan:
		// scan contexts are bound to the partition they were opened on
		resp, p := s.scans.scan(msg)
		if p == nil {
			p = t.route(partitionHash)
		}
		return resp.SetEnvelope(t.config.AppID, p.index, s.config.NodeID)

	case common.MsgTClearScanner:
		return s.scans.clear(msg).SetEnvelope(t.config.AppID, t.route(partitionHash).index, s.config.NodeID)

	case common.MsgTGetScanner:
		p := t.route(partitionHash)
		return s.scans.start(msg, p).SetEnvelope(t.config.AppID, p.index, s.config.NodeID)

	default:
		p := t.route(partitionHash)
		resp := s.adapter.Handle(msg, p.store)
		if resp.MsgType == common.MsgTError {
			return resp
		}
		return resp.SetEnvelope(t.config.AppID, p.index, s.config.NodeID)
	}
}

// expireScans drops idle scan contexts until the server is closed
func (s *RPCServer) expireScans() {
	ticker := time.NewTicker(scanContextTTL / 5)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := s.scans.expire(); n > 0 {
				Logger.Infof("dropped %d idle scan contexts", n)
			}
		case <-s.done:
			return
		}
	}
}

// responseStatus names the outcome of a response for metrics
func responseStatus(resp *common.Message) string {
	if resp.MsgType == common.MsgTError {
		return errcode.TransportStatus(resp.Error).String()
	}
	return store.Status(resp.Error).String()
}
