package base

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/sKV/lib/errcode"
	"github.com/ValentinKolb/sKV/rpc/common"
	"github.com/ValentinKolb/sKV/rpc/transport"
	"github.com/cockroachdb/errors"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("transport/rpc")

var (
	errTransportClosed = errors.New("transport closed")
	errNoConnection    = errors.New("no active connections available")
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection to the endpoint
	Connect(endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.ClientConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// pendingRequest is a request waiting for its response
type pendingRequest struct {
	callback transport.ResponseCallback
	timer    atomic.Pointer[time.Timer]
}

// clientConnection represents a single net connection
type clientConnection struct {
	conn     net.Conn
	endpoint string
	stopCh   chan struct{} // Close signal for the reader goroutine
	pending  *xsync.MapOf[uint64, *pendingRequest]
	connMu   sync.Mutex // Protects the connection itself
	parent   *clientTransport
}

// clientTransport implements the core client transport functionality
// independent of the specific transport medium (unix, tcp, etc.)
type clientTransport struct {
	connector     IClientConnector
	config        common.ClientConfig
	connections   []*clientConnection
	connectionsMu sync.RWMutex
	nextConnIndex uint64 // Atomic counter for Round Robin
	nextRequestID uint64 // Atomic counter for unique request IDs
	stopping      atomic.Bool
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseClientTransport creates a new base client transport with the specified connector
func NewBaseClientTransport(connector IClientConnector) transport.IRPCClientTransport {
	return &clientTransport{
		connector:     connector,
		nextRequestID: 1, // Start from 1
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) Connect(config common.ClientConfig) error {
	if len(config.Transport.Endpoints) == 0 {
		return errors.New("no endpoints provided")
	}

	// Close all existing connections
	t.closeConnections(errTransportClosed)

	t.config = config
	t.stopping.Store(false)

	// Set default value for ConnectionsPerEndpoint
	connectionsPerEP := 1
	if config.Transport.ConnectionsPerEndpoint > 0 {
		connectionsPerEP = config.Transport.ConnectionsPerEndpoint
	}

	connections := make([]*clientConnection, 0, len(config.Transport.Endpoints)*connectionsPerEP)

	for _, endpoint := range config.Transport.Endpoints {
		// Create multiple connections per endpoint
		for i := 0; i < connectionsPerEP; i++ {
			clientConn := &clientConnection{
				endpoint: endpoint,
				stopCh:   make(chan struct{}),
				pending:  xsync.NewMapOf[uint64, *pendingRequest](),
				parent:   t,
			}

			if err := clientConn.reconnect(); err != nil {
				Logger.Warningf("Failed to connect to %s (connection %d/%d): %v", endpoint, i+1, connectionsPerEP, err)
				continue
			}

			connections = append(connections, clientConn)
			Logger.Infof("Connected to %s (connection %d/%d)", endpoint, i+1, connectionsPerEP)

			// Start the response reader
			go clientConn.readResponses()
		}
	}

	if len(connections) == 0 {
		return errors.New("failed to connect to any endpoint")
	}

	t.connectionsMu.Lock()
	t.connections = connections
	t.connectionsMu.Unlock()

	Logger.Infof("Connected to %d out of %d connections to %d endpoints using %s transport",
		len(connections), len(config.Transport.Endpoints)*connectionsPerEP, len(config.Transport.Endpoints), t.connector.GetName())

	return nil
}

func (t *clientTransport) SendAsync(partitionHash uint64, req []byte, timeout time.Duration, callback transport.ResponseCallback) {
	if t.stopping.Load() {
		go callback(nil, errcode.NewTransportError(errcode.TransportNetworkFailure, errTransportClosed))
		return
	}

	connection := t.getNextConnection()
	if connection == nil {
		go callback(nil, errcode.NewTransportError(errcode.TransportNetworkFailure, errNoConnection))
		return
	}

	// Generate a unique request ID and register the request
	requestID := atomic.AddUint64(&t.nextRequestID, 1)
	p := &pendingRequest{callback: callback}
	connection.pending.Store(requestID, p)

	if timeout > 0 {
		p.timer.Store(time.AfterFunc(timeout, func() {
			connection.complete(requestID, nil, errcode.NewTransportError(errcode.TransportTimeout,
				errors.Newf("request %d timed out after %s", requestID, timeout)))
		}))
	}

	// Lock the connection only for writing
	connection.connMu.Lock()
	conn := connection.conn
	var err error
	if conn == nil {
		err = errors.New("connection is closed")
	} else {
		if timeout > 0 {
			_ = conn.SetWriteDeadline(time.Now().Add(timeout))
		}
		err = writeFrame(conn, partitionHash, requestID, req)
	}
	connection.connMu.Unlock()

	if err != nil {
		status := errcode.TransportStatusOf(err)
		if status == errcode.TransportUnclassified {
			status = errcode.TransportNetworkFailure
		}
		connection.complete(requestID, nil, errcode.NewTransportError(status, errors.Wrapf(err, "sending request %d", requestID)))
	}
}

func (t *clientTransport) Close() error {
	t.stopping.Store(true)
	t.closeConnections(errTransportClosed)
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// getNextConnection selects the next connection via Round Robin
func (t *clientTransport) getNextConnection() *clientConnection {
	t.connectionsMu.RLock()
	defer t.connectionsMu.RUnlock()

	if len(t.connections) == 0 {
		return nil
	}

	// Simple Round Robin algorithm
	var index uint64
	if len(t.connections) == 1 {
		// optimize for single connection
		index = 0
	} else {
		index = atomic.AddUint64(&t.nextConnIndex, 1) % uint64(len(t.connections))
	}
	return t.connections[index]
}

// closeConnections closes all active connections and fails their pending requests
func (t *clientTransport) closeConnections(cause error) {
	t.connectionsMu.Lock()
	connections := t.connections
	t.connections = nil
	t.connectionsMu.Unlock()

	for _, c := range connections {
		// Signal reader goroutine to stop
		close(c.stopCh)

		c.connMu.Lock()
		if c.conn != nil {
			_ = c.conn.Close()
		}
		c.connMu.Unlock()

		c.failAll(cause)
	}
}

// complete finishes a pending request. Only the first completion of a request wins,
// later ones (late responses, expired timers) are dropped.
func (c *clientConnection) complete(requestID uint64, data []byte, err error) bool {
	p, ok := c.pending.LoadAndDelete(requestID)
	if !ok {
		return false
	}
	if timer := p.timer.Load(); timer != nil {
		timer.Stop()
	}
	go p.callback(data, err)
	return true
}

// failAll fails every pending request of the connection
func (c *clientConnection) failAll(cause error) {
	c.pending.Range(func(requestID uint64, _ *pendingRequest) bool {
		c.complete(requestID, nil, errcode.NewTransportError(errcode.TransportNetworkFailure, cause))
		return true
	})
}

// readResponses reads responses in a loop and distributes them to waiting requests
func (c *clientConnection) readResponses() {
	for {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			return
		}

		partitionHash, requestID, data, err := readFrame(conn, nil)

		if err != nil {
			// Check if we should stop
			select {
			case <-c.stopCh:
				return
			default:
			}

			Logger.Errorf("Error reading from %s: %v", c.endpoint, err)
			c.failAll(errors.Wrapf(err, "connection to %s broken", c.endpoint))

			// Try to restore the connection
			if err := c.reconnect(); err != nil {
				Logger.Errorf("Failed to reconnect to %s: %v", c.endpoint, err)
				return
			}
			continue
		}

		if !c.complete(requestID, data, nil) {
			Logger.Warningf("Received response for unknown request ID %d with partition hash %d", requestID, partitionHash)
		}
	}
}

// reconnect establishes or restores a connection to the endpoint
func (c *clientConnection) reconnect() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	// Close the old connection if it exists
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}

	conn, err := c.parent.connector.Connect(c.endpoint)
	if err != nil {
		return errors.Wrapf(err, "failed to connect to %s", c.endpoint)
	}

	// Upgrade the connection with protocol-specific settings
	if err := c.parent.connector.UpgradeConnection(conn, c.parent.config); err != nil {
		_ = conn.Close()
		return errors.Wrapf(err, "failed to upgrade connection to %s", c.endpoint)
	}

	c.conn = conn
	return nil
}
