package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/sKV/lib/errcode"
	"github.com/ValentinKolb/sKV/rpc/common"
	"github.com/ValentinKolb/sKV/rpc/transport"
	"github.com/cockroachdb/errors"
)

// NewHttpClientTransport creates a new HTTP client transport
func NewHttpClientTransport() transport.IRPCClientTransport {
	return &httpClientTransport{}
}

type httpClientTransport struct {
	serverURLs []*url.URL
	client     *http.Client
	counter    uint32

	// mu orders the closed check of a send before the Wait of Close
	mu       sync.RWMutex
	closed   bool
	inFlight sync.WaitGroup
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *httpClientTransport) Connect(config common.ClientConfig) error {
	if len(config.Transport.Endpoints) == 0 {
		return errors.New("no endpoints provided")
	}

	// Parse each server URL
	parsedURLs := make([]*url.URL, len(config.Transport.Endpoints))
	for i, server := range config.Transport.Endpoints {
		parsedURL, err := url.Parse(server)
		if err != nil {
			return errors.Wrapf(err, "invalid endpoint %q", server)
		}
		parsedURLs[i] = parsedURL
	}

	connsPerHost := max(config.Transport.ConnectionsPerEndpoint, 10)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.client = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: connsPerHost,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	t.serverURLs = parsedURLs
	t.counter = 0
	t.closed = false

	return nil
}

func (t *httpClientTransport) SendAsync(partitionHash uint64, req []byte, timeout time.Duration, callback transport.ResponseCallback) {
	// Check if the transport is initialized
	t.mu.RLock()
	if t.client == nil || t.closed {
		t.mu.RUnlock()
		go callback(nil, errcode.NewTransportError(errcode.TransportNetworkFailure, errors.New("http transport not initialized")))
		return
	}
	t.inFlight.Add(1)
	t.mu.RUnlock()

	go func() {
		defer t.inFlight.Done()
		resp, err := t.send(partitionHash, req, timeout)
		callback(resp, err)
	}()
}

func (t *httpClientTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.inFlight.Wait()

	if t.client != nil {
		t.client.CloseIdleConnections()
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// send performs a single blocking request
func (t *httpClientTransport) send(partitionHash uint64, req []byte, timeout time.Duration) ([]byte, error) {
	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// Select the next server via round-robin
	idx := atomic.AddUint32(&t.counter, 1) % uint32(len(t.serverURLs))
	requestURL := fmt.Sprintf("%s/%d", t.serverURLs[idx].String(), partitionHash)

	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(req))
	if err != nil {
		return nil, errcode.NewTransportError(errcode.TransportNetworkFailure, err)
	}
	httpRequest.Header.Set("Content-Type", "application/octet-stream")

	httpResponse, err := t.client.Do(httpRequest)
	if err != nil {
		// keeps timeouts apart from other failures
		return nil, err
	}
	defer func() {
		if err := httpResponse.Body.Close(); err != nil {
			Logger.Errorf("Failed to close response body: %v", err)
		}
	}()

	if httpResponse.StatusCode != http.StatusOK {
		return nil, errcode.NewTransportError(statusOfHTTP(httpResponse.StatusCode),
			errors.Newf("http error: %s", httpResponse.Status))
	}

	body, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading response body")
	}
	return body, nil
}

// statusOfHTTP maps an HTTP status code of a failed request to a transport status
func statusOfHTTP(code int) errcode.TransportStatus {
	switch code {
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return errcode.TransportHandlerNotFound
	case http.StatusGatewayTimeout, http.StatusRequestTimeout:
		return errcode.TransportTimeout
	default:
		return errcode.TransportNetworkFailure
	}
}
