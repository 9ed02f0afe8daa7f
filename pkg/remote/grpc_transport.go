package remote

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sakashimaa/order-orchestrator/pkg/mylogger"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// jsonCodec lets envelope services speak gRPC without generated stubs: the
// request and response messages are the same JSON documents the HTTP
// transport exchanges.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return "json"
}

type GRPCTransport struct {
	conn *grpc.ClientConn
}

func NewGRPCTransport(target string, opts ...grpc.DialOption) (*GRPCTransport, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{})),
	}

	conn, err := grpc.NewClient(target, append(dialOpts, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("error creating gRPC client: %w", err)
	}

	return &GRPCTransport{conn: conn}, nil
}

func (t *GRPCTransport) RoundTrip(ctx context.Context, service string, endpoint Endpoint, body []byte) (*Response, error) {
	if requestID := mylogger.RequestID(ctx); requestID != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "x-request-id", requestID)
	}

	in := json.RawMessage(body)
	if body == nil {
		params, err := json.Marshal(endpoint.Params)
		if err != nil || endpoint.Params == nil {
			params = []byte("{}")
		}
		in = params
	}

	var out json.RawMessage
	if err := t.conn.Invoke(ctx, fmt.Sprintf("/%s/%s", service, endpoint.Name), &in, &out); err != nil {
		st, ok := status.FromError(err)
		if !ok {
			return nil, &TransportError{Err: err}
		}

		switch st.Code() {
		case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled, codes.Aborted:
			return nil, &TransportError{Err: err}
		default:
			return nil, &StatusError{Code: httpStatusFromCode(st.Code()), Message: st.Message()}
		}
	}

	return &Response{StatusCode: httpStatusFromCode(codes.OK), Body: out}, nil
}

func (t *GRPCTransport) Close() error {
	return t.conn.Close()
}
