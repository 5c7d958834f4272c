package base

import (
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/sKV/rpc/common"
	"github.com/ValentinKolb/sKV/rpc/transport"
	"github.com/cockroachdb/errors"
	"github.com/puzpuzpuz/xsync/v3"
)

// -----------------------------------------------------------
// Socket specific parts
// -----------------------------------------------------------

// IServerConnector opens the listening socket of a replica and tunes accepted connections
type IServerConnector interface {
	// Listen opens the socket named by config.Endpoint
	Listen(config common.ServerConfig) (net.Listener, error)

	// GetName names the socket family in logs ("tcp", "unix")
	GetName() string

	// UpgradeConnection applies the socket options of config to an accepted connection
	UpgradeConnection(conn net.Conn, config common.ServerConfig) error
}

// -----------------------------------------------------------
// Server Transport
// -----------------------------------------------------------

// serverTransport accepts framed connections and hands every frame to the handler
type serverTransport struct {
	connector  IServerConnector
	handler    transport.ServerHandleFunc
	config     common.ServerConfig
	listenerMu sync.Mutex
	listener   net.Listener
	closed     atomic.Bool

	// conns holds the accepted connections, Close shuts them down
	conns *xsync.MapOf[net.Conn, struct{}]

	frameBuffers *sync.Pool
	workers      int
}

// NewBaseServerTransport builds a framed server transport on top of connector.
// Every connection runs at most workersPerConn handler calls at a time and reads
// its frames into pooled buffers of bufferSize bytes.
func NewBaseServerTransport(connector IServerConnector, bufferSize int, workersPerConn int) transport.IRPCServerTransport {
	return &serverTransport{
		connector: connector,
		workers:   max(workersPerConn, 1),
		conns:     xsync.NewMapOf[net.Conn, struct{}](),
		frameBuffers: &sync.Pool{
			New: func() interface{} {
				return make([]byte, bufferSize)
			},
		},
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *serverTransport) Listen(config common.ServerConfig) error {
	if t.handler == nil {
		return errors.New("no handler registered")
	}
	t.config = config

	listener, err := t.connector.Listen(config)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", config.Endpoint)
	}

	t.listenerMu.Lock()
	t.listener = listener
	t.listenerMu.Unlock()

	Logger.Infof("replica listening on %s (%s, %d workers per connection)",
		config.Endpoint, t.connector.GetName(), t.workers)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if t.closed.Load() {
				return nil
			}
			Logger.Errorf("accept failed: %v", err)
			continue
		}

		if err := t.connector.UpgradeConnection(conn, config); err != nil {
			Logger.Warningf("socket options of %s not applied: %v", conn.RemoteAddr(), err)
		}

		go t.serveConn(conn)
	}
}

func (t *serverTransport) Close() error {
	t.closed.Store(true)

	t.listenerMu.Lock()
	defer t.listenerMu.Unlock()

	if t.listener == nil {
		return nil
	}
	err := t.listener.Close()

	t.conns.Range(func(conn net.Conn, _ struct{}) bool {
		_ = conn.Close()
		return true
	})
	return err
}

// --------------------------------------------------------------------------
// Connection
// --------------------------------------------------------------------------

// replicaConn is one accepted connection. Frames are read in order, handled
// concurrently and answered in completion order under the request id they came with.
type replicaConn struct {
	t            *serverTransport
	conn         net.Conn
	writeTimeout time.Duration

	slots   chan struct{}
	pending sync.WaitGroup
	writeMu sync.Mutex
}

func (t *serverTransport) serveConn(conn net.Conn) {
	t.conns.Store(conn, struct{}{})
	defer t.conns.Delete(conn)
	defer conn.Close()

	c := &replicaConn{
		t:            t,
		conn:         conn,
		writeTimeout: time.Duration(t.config.TimeoutSecond) * time.Second,
		slots:        make(chan struct{}, t.workers),
	}

	for {
		err := c.next()
		if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
			Logger.Debugf("connection %s closed", conn.RemoteAddr())
			break
		}
		if err != nil {
			Logger.Errorf("dropping connection %s: %v", conn.RemoteAddr(), err)
			break
		}
	}

	// replies of running handlers still need the connection
	c.pending.Wait()
}

// next reads one frame and dispatches it, blocking while all worker slots are busy
func (c *replicaConn) next() error {
	buf := c.t.frameBuffers.Get().([]byte)

	partitionHash, requestID, payload, err := readFrame(c.conn, buf)
	if err != nil {
		c.t.frameBuffers.Put(buf)
		return err
	}

	c.slots <- struct{}{}
	c.pending.Add(1)
	go func() {
		defer func() {
			c.t.frameBuffers.Put(buf)
			<-c.slots
			c.pending.Done()
		}()
		c.handle(partitionHash, requestID, payload)
	}()
	return nil
}

// handle runs the handler for one frame and writes its reply
func (c *replicaConn) handle(partitionHash, requestID uint64, payload []byte) {
	start := time.Now()
	resp := c.t.handler(partitionHash, payload)
	Logger.Debugf("request %d (partition hash %d) took %s", requestID, partitionHash, time.Since(start))

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			Logger.Errorf("write deadline of request %d: %v", requestID, err)
			return
		}
	}
	if err := writeFrame(c.conn, partitionHash, requestID, resp); err != nil {
		Logger.Errorf("reply to request %d failed: %v", requestID, err)
	}
}
