package base

import (
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	payload := []byte("hello partition")
	go func() {
		_ = writeFrame(client, 0xDEADBEEF, 42, payload)
		_ = writeFrame(client, 7, 43, nil)
	}()

	hash, id, data, err := readFrame(server, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xDEADBEEF), hash)
	assert.Equal(t, uint64(42), id)
	assert.Equal(t, payload, data)

	// a large enough buffer is reused
	buf := make([]byte, 64)
	hash, id, data, err = readFrame(server, buf)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), hash)
	assert.Equal(t, uint64(43), id)
	assert.Empty(t, data)
}

func TestReadFrameTruncated(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	go func() {
		// header announcing 10 bytes, followed by 3
		header := []byte{0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 10}
		_, _ = client.Write(header)
		_, _ = client.Write([]byte("abc"))
		client.Close()
	}()

	_, _, _, err := readFrame(server, nil)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
