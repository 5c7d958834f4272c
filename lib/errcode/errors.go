package errcode

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/cockroachdb/errors"
)

// --------------------------------------------------------------------------
// Client Errors
// --------------------------------------------------------------------------

// Error is the error type returned by all client operations
type Error struct {
	Code Code
	Msg  string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("skv error %s (%d)", e.Code, int32(e.Code))
	}
	return fmt.Sprintf("skv error %s (%d): %s", e.Code, int32(e.Code), e.Msg)
}

// Is matches any *Error with the same code
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// NewError creates an error for code, nil if the code is Ok
func NewError(code Code, msg string) error {
	if code == Ok {
		return nil
	}
	return &Error{Code: code, Msg: msg}
}

// CodeOf returns the client code carried by err.
// A nil error is Ok, an error without a code is Unknown.
func CodeOf(err error) Code {
	if err == nil {
		return Ok
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Unknown
}

// --------------------------------------------------------------------------
// Transport Errors
// --------------------------------------------------------------------------

// TransportError is returned by transports that know the status of a failure
type TransportError struct {
	Status TransportStatus
	Err    error
}

// NewTransportError wraps err with a transport status
func NewTransportError(status TransportStatus, err error) *TransportError {
	return &TransportError{Status: status, Err: err}
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Err == nil {
		return e.Status.String()
	}
	return fmt.Sprintf("%s: %v", e.Status, e.Err)
}

// Unwrap returns the underlying error
func (e *TransportError) Unwrap() error {
	return e.Err
}

// TransportStatusOf classifies an error returned by a transport.
// Typed transport errors keep their status, deadlines become TransportTimeout and
// connection level failures TransportNetworkFailure. Everything else is
// TransportUnclassified, which translates to Unknown.
func TransportStatusOf(err error) TransportStatus {
	if err == nil {
		return TransportOK
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Status
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return TransportTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return TransportTimeout
		}
		return TransportNetworkFailure
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return TransportNetworkFailure
	}

	return TransportUnclassified
}
