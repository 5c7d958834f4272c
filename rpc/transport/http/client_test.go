package http

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/sKV/lib/errcode"
	"github.com/ValentinKolb/sKV/rpc/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoServer(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHttpClientRoundTrip(t *testing.T) {
	srv := echoServer(t)

	client := NewHttpClientTransport()
	require.NoError(t, client.Connect(common.ClientConfig{
		Transport: common.ClientTransportConfig{Endpoints: []string{srv.URL}},
	}))
	defer client.Close()

	done := make(chan []byte, 1)
	client.SendAsync(3, []byte("ping"), time.Second, func(resp []byte, err error) {
		assert.NoError(t, err)
		done <- resp
	})
	assert.Equal(t, []byte("ping"), <-done)
}

func TestHttpClientSendsRacingClose(t *testing.T) {
	srv := echoServer(t)

	client := NewHttpClientTransport()
	require.NoError(t, client.Connect(common.ClientConfig{
		Transport: common.ClientTransportConfig{Endpoints: []string{srv.URL}},
	}))

	const senders = 32
	var (
		wg        sync.WaitGroup
		callbacks atomic.Int32
	)
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client.SendAsync(0, []byte("x"), time.Second, func([]byte, error) {
				callbacks.Add(1)
			})
		}()
	}
	require.NoError(t, client.Close())
	wg.Wait()

	require.Eventually(t, func() bool { return callbacks.Load() == senders }, 2*time.Second, time.Millisecond)

	done := make(chan error, 1)
	client.SendAsync(0, nil, time.Second, func(_ []byte, err error) { done <- err })
	assert.Equal(t, errcode.TransportNetworkFailure, errcode.TransportStatusOf(<-done))
}
