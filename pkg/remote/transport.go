package remote

import (
	"fmt"
	"net/url"
)

// NewTransport picks the transport from the scheme of rawURL:
// http:// and https:// use HTTPTransport, grpc:// uses GRPCTransport.
func NewTransport(rawURL string) (Transport, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid service url %q: %w", rawURL, err)
	}

	switch u.Scheme {
	case "http", "https":
		return NewHTTPTransport(rawURL, nil), nil
	case "grpc":
		t, err := NewGRPCTransport(u.Host)
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unsupported scheme %q in service url %q", u.Scheme, rawURL)
	}
}
