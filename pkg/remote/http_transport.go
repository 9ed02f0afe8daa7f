package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sakashimaa/order-orchestrator/pkg/mylogger"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxResponseBytes = 4 << 20

type HTTPTransport struct {
	baseURL string
	client  *http.Client
}

// NewHTTPTransport sends envelope requests to baseURL. A nil client gets an
// otelhttp instrumented default.
func NewHTTPTransport(baseURL string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}

	return &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

func (t *HTTPTransport) RoundTrip(ctx context.Context, service string, endpoint Endpoint, body []byte) (*Response, error) {
	method := endpoint.Method
	if method == "" {
		method = http.MethodGet
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+expandPath(endpoint), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if requestID := mylogger.RequestID(ctx); requestID != "" {
		req.Header.Set("X-Request-Id", requestID)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("failed to read response: %w", err)}
	}

	return &Response{StatusCode: resp.StatusCode, Body: data}, nil
}

// expandPath fills {name} placeholders of the endpoint path and appends the
// remaining params as a query string.
func expandPath(endpoint Endpoint) string {
	path := endpoint.Path
	query := url.Values{}

	for name, value := range endpoint.Params {
		placeholder := "{" + name + "}"
		if strings.Contains(path, placeholder) {
			path = strings.ReplaceAll(path, placeholder, url.PathEscape(value))
			continue
		}
		query.Set(name, value)
	}

	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	return path
}

func (t *HTTPTransport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}
