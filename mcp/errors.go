package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrClosed is wrapped by TransportError when a handle is used after close.
var ErrClosed = errors.New("transport closed")

// ErrProviderExited is wrapped by TransportError when the provider process
// exits while a request is outstanding.
var ErrProviderExited = errors.New("provider process exited")

// TransportError reports a subprocess or pipe failure.
type TransportError struct {
	Server string
	Op     string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %s: %v", e.Server, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError reports a response that is an error object, carries the
// wrong id, or does not satisfy the expected schema.
type ProtocolError struct {
	Method  string
	Code    int
	Message string
	Err     error
}

func (e *ProtocolError) Error() string {
	switch {
	case e.Code != 0:
		return fmt.Sprintf("protocol %s: error %d: %s", e.Method, e.Code, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("protocol %s: %s: %v", e.Method, e.Message, e.Err)
	}
	return fmt.Sprintf("protocol %s: %s", e.Method, e.Message)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// TimeoutError reports a request that got no response before its deadline.
type TimeoutError struct {
	Method  string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request %s timed out after %s", e.Method, e.Timeout)
}

func (e *TimeoutError) Is(target error) bool {
	return target == context.DeadlineExceeded
}

// IsCallError reports whether err belongs to the tool-call taxonomy
// (transport, protocol or timeout).
func IsCallError(err error) bool {
	var te *TransportError
	var pe *ProtocolError
	var to *TimeoutError
	return errors.As(err, &te) || errors.As(err, &pe) || errors.As(err, &to)
}

// ErrUnknownServer is returned for tools of servers missing from the
// configuration.
var ErrUnknownServer = errors.New("unknown server")
