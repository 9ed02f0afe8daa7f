// Package remote implements the typed RPC stub used to talk to the identity
// and catalog services. Every response is an Envelope; anything else is a
// protocol error.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sakashimaa/order-orchestrator/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	OutcomeOK        = "ok"
	OutcomeTransport = "transport_error"
	OutcomeStatus    = "status_error"
	OutcomeProtocol  = "protocol_error"
	OutcomeCanceled  = "canceled"
)

// Endpoint names one remote operation. Name identifies it for gRPC, metrics
// and logs; Method and Path are used by the HTTP transport.
type Endpoint struct {
	Name   string
	Method string
	// Path may hold {name} placeholders filled from Params.
	Path string
	// Params are the arguments of a bodiless call. Over HTTP they fill the
	// Path placeholders and the rest become the query string; over gRPC they
	// are sent as the request message.
	Params map[string]string
	// AllowEmptyResult accepts a 2xx envelope without a result.
	AllowEmptyResult bool
}

// NoBody is the request type of endpoints that send no payload.
type NoBody struct{}

type Response struct {
	StatusCode int
	Body       []byte
}

type Transport interface {
	RoundTrip(ctx context.Context, service string, endpoint Endpoint, body []byte) (*Response, error)
	Close() error
}

type Observer interface {
	ObserveCall(service, endpoint, outcome string, elapsed time.Duration)
}

type ClientOption func(*Client)

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

func WithObserver(observer Observer) ClientOption {
	return func(c *Client) {
		c.observer = observer
	}
}

type Client struct {
	service   string
	transport Transport
	timeout   time.Duration
	observer  Observer
	logger    *zap.Logger
	tracer    trace.Tracer
}

func NewClient(service string, transport Transport, logger *zap.Logger, opts ...ClientOption) *Client {
	c := &Client{
		service:   service,
		transport: transport,
		timeout:   2 * time.Second,
		logger:    logger,
		tracer:    otel.Tracer("remote_client"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Client) Service() string {
	return c.service
}

func (c *Client) Close() error {
	return c.transport.Close()
}

// Call sends req to endpoint and decodes the envelope returned by the remote
// service. Errors are *TransportError, *StatusError, *ProtocolError or the
// caller's context error.
func Call[Req, Res any](ctx context.Context, c *Client, endpoint Endpoint, req Req) (*Envelope[Res], error) {
	ctx, span := c.tracer.Start(ctx, "RemoteClient.Call", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("remote.service", c.service),
		attribute.String("remote.endpoint", endpoint.Name),
	)

	start := time.Now()
	env, err := call[Req, Res](ctx, c, endpoint, req)
	outcome := outcomeOf(err)

	if c.observer != nil {
		c.observer.ObserveCall(c.service, endpoint.Name, outcome, time.Since(start))
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)

		log := mylogger.Warn
		if outcome == OutcomeProtocol {
			log = mylogger.Error
		}

		log(
			ctx,
			c.logger,
			"Remote call failed",
			zap.String("service", c.service),
			zap.String("endpoint", endpoint.Name),
			zap.String("outcome", outcome),
			zap.Error(err),
		)

		return nil, err
	}

	span.SetAttributes(attribute.Int("remote.status_code", env.StatusCode))

	return env, nil
}

func call[Req, Res any](ctx context.Context, c *Client, endpoint Endpoint, req Req) (*Envelope[Res], error) {
	var body []byte
	if _, empty := any(req).(NoBody); !empty {
		encoded, err := json.Marshal(req)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s.%s request: %w", c.service, endpoint.Name, err)
		}
		body = encoded
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.transport.RoundTrip(callCtx, c.service, endpoint, body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		return nil, c.annotate(endpoint, err)
	}

	raw, err := parseEnvelope(resp.Body)
	if err != nil {
		if !is2xx(resp.StatusCode) {
			return nil, &StatusError{
				Service:  c.service,
				Endpoint: endpoint.Name,
				Code:     resp.StatusCode,
				Message:  fallbackMessage(resp),
			}
		}

		return nil, &ProtocolError{
			Service:  c.service,
			Endpoint: endpoint.Name,
			Reason:   "undecodable envelope",
			Err:      err,
		}
	}

	code := *raw.StatusCode
	if !is2xx(resp.StatusCode) {
		code = resp.StatusCode
	}

	if !is2xx(code) {
		return nil, &StatusError{
			Service:  c.service,
			Endpoint: endpoint.Name,
			Code:     code,
			Message:  raw.StatusMessage,
		}
	}

	env, err := decodeResult[Res](raw, endpoint.AllowEmptyResult)
	if err != nil {
		return nil, &ProtocolError{
			Service:  c.service,
			Endpoint: endpoint.Name,
			Reason:   "invalid result",
			Err:      err,
		}
	}

	return env, nil
}

func (c *Client) annotate(endpoint Endpoint, err error) error {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		statusErr.Service = c.service
		statusErr.Endpoint = endpoint.Name
		return statusErr
	}

	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		transportErr.Service = c.service
		transportErr.Endpoint = endpoint.Name
		return transportErr
	}

	return &TransportError{Service: c.service, Endpoint: endpoint.Name, Err: err}
}

func outcomeOf(err error) string {
	var (
		transportErr *TransportError
		statusErr    *StatusError
		protocolErr  *ProtocolError
	)

	switch {
	case err == nil:
		return OutcomeOK
	case errors.As(err, &transportErr):
		return OutcomeTransport
	case errors.As(err, &statusErr):
		return OutcomeStatus
	case errors.As(err, &protocolErr):
		return OutcomeProtocol
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	default:
		return OutcomeProtocol
	}
}

func fallbackMessage(resp *Response) string {
	msg := strings.TrimSpace(string(resp.Body))
	if msg == "" || len(msg) > 256 {
		return http.StatusText(resp.StatusCode)
	}

	return msg
}
