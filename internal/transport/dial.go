package transport

import (
	"fmt"

	"github.com/scttfrdmn/agenkit-sub000/protocolerr"
)

// New builds the concrete Transport for endpoint, matching
// original_source's parse_endpoint dispatcher. It does not connect; call
// Connect on the result.
func New(endpoint string) (Transport, error) {
	ep, err := Parse(endpoint)
	if err != nil {
		return nil, err
	}
	switch ep.Scheme {
	case "unix":
		return NewUnixTransport(ep.Addr), nil
	case "tcp":
		return NewTCPTransport(ep.Addr), nil
	case "ws", "wss":
		return NewWebSocketTransport(endpoint, DefaultWebSocketConfig()), nil
	case "http", "https", "h2c", "h3":
		return NewHTTPTransport(fmt.Sprintf("%s://%s", httpScheme(ep.Scheme), ep.Addr), nil), nil
	case "grpc":
		return NewGRPCTransport(ep.Addr), nil
	default:
		return nil, protocolerr.New(protocolerr.InvalidMessage, fmt.Sprintf("unsupported endpoint scheme: %s", ep.Scheme), nil)
	}
}

// httpScheme maps h2c/h3 onto the http/https scheme their client actually
// dials with; h3 falls back to HTTP/2 over TLS until native H3 support
// lands (see DESIGN.md's open-question note).
func httpScheme(scheme string) string {
	switch scheme {
	case "h2c":
		return "http"
	case "h3":
		return "https"
	default:
		return scheme
	}
}
