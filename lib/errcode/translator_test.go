package errcode

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransportStatusMapping(t *testing.T) {
	tr := NewTranslator()

	cases := map[TransportStatus]Code{
		TransportOK:                  Ok,
		TransportTimeout:             Timeout,
		TransportNetworkFailure:      NetworkFailure,
		TransportHandlerNotFound:     HandlerNotFound,
		TransportAppNotExist:         AppNotExist,
		TransportAppExist:            AppExist,
		TransportObjectNotFound:      ObjectNotFound,
		TransportFileOperationFailed: ServerInternalError,
		TransportInvalidState:        ServerChanged,
	}
	for status, want := range cases {
		t.Run(status.String(), func(t *testing.T) {
			// storage status is ignored when the transport failed
			assert.Equal(t, want, tr.ToClientError(status, 7))
			assert.Equal(t, want, tr.FromTransport(status))
		})
	}
}

func TestOkPair(t *testing.T) {
	assert.Equal(t, Ok, NewTranslator().ToClientError(TransportOK, 0))
}

func TestStorageStatusesAreReservedAndDistinct(t *testing.T) {
	tr := NewTranslator()
	seen := make(map[Code]int32)

	for k := int32(1); k <= MaxStorageStatus; k++ {
		code := tr.ToClientError(TransportOK, k)
		require.Equal(t, StorageErrorStart-Code(k), code)
		require.True(t, IsStorageError(code), "code %d outside storage range", code)

		prev, dup := seen[code]
		require.False(t, dup, "storage status %d and %d collide", prev, k)
		seen[code] = k
	}

	assert.Equal(t, NotFound, tr.ToClientError(TransportOK, 1))
	assert.Equal(t, Expired, tr.ToClientError(TransportOK, 12))
}

func TestUnmappedStatusesDegradeToUnknown(t *testing.T) {
	tr := NewTranslator()

	assert.Equal(t, Unknown, tr.ToClientError(TransportStatus(99), 0))
	assert.Equal(t, Unknown, tr.ToClientError(TransportUnclassified, 0))
	assert.Equal(t, Unknown, tr.ToClientError(TransportOK, 13))
	assert.Equal(t, Unknown, tr.ToClientError(TransportOK, -5))
}

func TestTranslationIsTotal(t *testing.T) {
	tr := NewTranslator()
	for ts := TransportStatus(-3); ts < 20; ts++ {
		for ss := int32(-3); ss < 20; ss++ {
			code := tr.ToClientError(ts, ss)
			assert.NotEmpty(t, tr.ErrorString(code))
		}
	}
}

func TestErrorString(t *testing.T) {
	tr := NewTranslator()
	assert.Equal(t, "ok", tr.ErrorString(Ok))
	assert.Equal(t, "invalid hash key", tr.ErrorString(InvalidHashKey))
	assert.Contains(t, tr.ErrorString(NotFound), "NotFound")
	assert.Equal(t, "unknown client error -4242", tr.ErrorString(Code(-4242)))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, Ok, CodeOf(nil))
	assert.Nil(t, NewError(Ok, "ignored"))

	err := NewError(InvalidValue, "empty kvs")
	assert.Equal(t, InvalidValue, CodeOf(err))
	assert.Equal(t, InvalidValue, CodeOf(errors.Wrap(err, "multi set")))
	assert.True(t, errors.Is(errors.Wrap(err, "x"), &Error{Code: InvalidValue}))
	assert.False(t, errors.Is(err, &Error{Code: Timeout}))
	assert.Equal(t, Unknown, CodeOf(fmt.Errorf("plain")))
}

type timeoutErr struct{ timeout bool }

func (e timeoutErr) Error() string   { return "net" }
func (e timeoutErr) Timeout() bool   { return e.timeout }
func (e timeoutErr) Temporary() bool { return false }

var _ net.Error = timeoutErr{}

func TestTransportStatusOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want TransportStatus
	}{
		{"nil", nil, TransportOK},
		{"typed", NewTransportError(TransportInvalidState, nil), TransportInvalidState},
		{"wrapped typed", errors.Wrap(NewTransportError(TransportAppNotExist, io.EOF), "send"), TransportAppNotExist},
		{"context deadline", context.DeadlineExceeded, TransportTimeout},
		{"os deadline", errors.Wrap(os.ErrDeadlineExceeded, "read"), TransportTimeout},
		{"net timeout", timeoutErr{timeout: true}, TransportTimeout},
		{"net failure", timeoutErr{timeout: false}, TransportNetworkFailure},
		{"eof", io.EOF, TransportNetworkFailure},
		{"closed", net.ErrClosed, TransportNetworkFailure},
		{"other", errors.New("boom"), TransportUnclassified},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, TransportStatusOf(tc.err))
		})
	}
}
