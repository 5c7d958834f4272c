package tcp

import (
	"encoding/binary"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/sKV/rpc/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// freeEndpoint returns a loopback address that was free a moment ago
func freeEndpoint(t *testing.T) string {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	endpoint := l.Addr().String()
	require.NoError(t, l.Close())
	return endpoint
}

func TestTCPRoundTrip(t *testing.T) {
	endpoint := freeEndpoint(t)

	server := NewTCPServerTransport(4)
	// echoes the partition hash in front of the payload
	server.RegisterHandler(func(partitionHash uint64, req []byte) []byte {
		resp := binary.BigEndian.AppendUint64(nil, partitionHash)
		return append(resp, req...)
	})
	errCh := make(chan error, 1)
	go func() { errCh <- server.Listen(common.ServerConfig{Endpoint: endpoint, TimeoutSecond: 5}) }()
	require.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", endpoint)
		if err == nil {
			_ = conn.Close()
		}
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)

	client := NewTCPClientTransport()
	require.NoError(t, client.Connect(common.ClientConfig{
		Transport: common.ClientTransportConfig{Endpoints: []string{endpoint}, ConnectionsPerEndpoint: 2},
	}))

	const requests = 50
	var wg sync.WaitGroup
	for i := 0; i < requests; i++ {
		wg.Add(1)
		hash := uint64(i)
		client.SendAsync(hash, []byte("ping"), time.Second, func(resp []byte, err error) {
			defer wg.Done()
			if !assert.NoError(t, err) || !assert.Len(t, resp, 12) {
				return
			}
			assert.Equal(t, hash, binary.BigEndian.Uint64(resp[:8]))
			assert.Equal(t, "ping", string(resp[8:]))
		})
	}
	wg.Wait()

	assert.NoError(t, client.Close())
	assert.NoError(t, server.Close())
	assert.NoError(t, <-errCh)
}
