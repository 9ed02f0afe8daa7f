package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// TransportError means the call never produced a response: connection
// failures, resets and per-call timeouts. It is always transient.
type TransportError struct {
	Service  string
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s.%s: transport error: %v", e.Service, e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatusError carries a non-2xx status reported by the remote service
// together with its human readable message.
type StatusError struct {
	Service  string
	Endpoint string
	Code     int
	Message  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s.%s: status %d: %s", e.Service, e.Endpoint, e.Code, e.Message)
}

func (e *StatusError) Transient() bool {
	return e.Code >= http.StatusInternalServerError ||
		e.Code == http.StatusRequestTimeout ||
		e.Code == http.StatusTooManyRequests
}

func (e *StatusError) NotFound() bool {
	return e.Code == http.StatusNotFound
}

// ProtocolError reports a response that does not follow the envelope
// contract. It is never retried and never replaced by a default value.
type ProtocolError struct {
	Service  string
	Endpoint string
	Reason   string
	Err      error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: malformed envelope: %s: %v", e.Service, e.Endpoint, e.Reason, e.Err)
	}

	return fmt.Sprintf("%s.%s: malformed envelope: %s", e.Service, e.Endpoint, e.Reason)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is worth retrying later and should count
// against a circuit breaker.
func IsTransient(err error) bool {
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return true
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Transient()
	}

	return false
}

func IsNotFound(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.NotFound()
}

func IsProtocol(err error) bool {
	var protocolErr *ProtocolError
	return errors.As(err, &protocolErr)
}
