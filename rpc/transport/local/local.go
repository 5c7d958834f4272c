package local

import (
	"sync"
	"time"

	"github.com/ValentinKolb/sKV/lib/errcode"
	"github.com/ValentinKolb/sKV/rpc/common"
	"github.com/ValentinKolb/sKV/rpc/transport"
	"github.com/cockroachdb/errors"
	"github.com/puzpuzpuz/xsync/v3"
)

// servers holds all listening local servers by endpoint name
var servers = xsync.NewMapOf[string, *serverTransport]()

// --------------------------------------------------------------------------
// Server
// --------------------------------------------------------------------------

type serverTransport struct {
	handler  transport.ServerHandleFunc
	endpoint string
	done     chan struct{}
	once     sync.Once
}

// NewLocalServerTransport creates a new in-process server transport
func NewLocalServerTransport() transport.IRPCServerTransport {
	return &serverTransport{done: make(chan struct{})}
}

func (s *serverTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	s.handler = handler
}

// Listen registers the server under config.Endpoint and blocks until Close is called
func (s *serverTransport) Listen(config common.ServerConfig) error {
	if s.handler == nil {
		return errors.New("no handler registered")
	}
	if config.Endpoint == "" {
		return errors.New("no endpoint provided")
	}
	if _, loaded := servers.LoadOrStore(config.Endpoint, s); loaded {
		return errors.Newf("local endpoint %q already in use", config.Endpoint)
	}
	s.endpoint = config.Endpoint

	<-s.done
	return nil
}

func (s *serverTransport) Close() error {
	s.once.Do(func() {
		if s.endpoint != "" {
			servers.Compute(s.endpoint, func(old *serverTransport, loaded bool) (*serverTransport, bool) {
				// only remove the entry if it still belongs to this server
				return old, !loaded || old == s
			})
		}
		close(s.done)
	})
	return nil
}

// WaitListening blocks until a server is registered under endpoint or the timeout expires
func WaitListening(endpoint string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, ok := servers.Load(endpoint); ok {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

// --------------------------------------------------------------------------
// Client
// --------------------------------------------------------------------------

type clientTransport struct {
	endpoint string

	// mu orders the closed check of a send before the Wait of Close
	mu       sync.RWMutex
	closed   bool
	inFlight sync.WaitGroup
}

// NewLocalClientTransport creates a new in-process client transport
func NewLocalClientTransport() transport.IRPCClientTransport {
	return &clientTransport{}
}

func (c *clientTransport) Connect(config common.ClientConfig) error {
	if len(config.Transport.Endpoints) == 0 {
		return errors.New("no endpoints provided")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endpoint = config.Transport.Endpoints[0]
	c.closed = false
	return nil
}

func (c *clientTransport) SendAsync(partitionHash uint64, req []byte, timeout time.Duration, callback transport.ResponseCallback) {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		go callback(nil, errcode.NewTransportError(errcode.TransportNetworkFailure, errors.New("transport closed")))
		return
	}

	server, ok := servers.Load(c.endpoint)
	if !ok {
		c.mu.RUnlock()
		go callback(nil, errcode.NewTransportError(errcode.TransportNetworkFailure,
			errors.Newf("no local server listening on %q", c.endpoint)))
		return
	}
	c.inFlight.Add(1)
	c.mu.RUnlock()

	// the handler must not see buffers the caller may reuse
	payload := append([]byte(nil), req...)

	go func() {
		defer c.inFlight.Done()

		result := make(chan []byte, 1)
		go func() { result <- server.handler(partitionHash, payload) }()

		if timeout <= 0 {
			callback(<-result, nil)
			return
		}

		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case resp := <-result:
			callback(resp, nil)
		case <-timer.C:
			callback(nil, errcode.NewTransportError(errcode.TransportTimeout, errors.New("request timed out")))
		case <-server.done:
			callback(nil, errcode.NewTransportError(errcode.TransportNetworkFailure, errors.New("server closed")))
		}
	}()
}

func (c *clientTransport) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.inFlight.Wait()
	return nil
}
