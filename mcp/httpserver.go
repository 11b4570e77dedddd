package mcp

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/server"

	"github.com/foomo/mediawiki-mcp/fault"
)

// httpRequestKey is a custom context key for storing the original HTTP request
type httpRequestKey struct{}

// withHTTPRequest adds the original HTTP request to the context
func withHTTPRequest(ctx context.Context, req *http.Request) context.Context {
	return context.WithValue(ctx, httpRequestKey{}, req)
}

// httpRequestFromContext extracts the original HTTP request from the context
func httpRequestFromContext(ctx context.Context) (*http.Request, bool) {
	req, ok := ctx.Value(httpRequestKey{}).(*http.Request)
	return req, ok
}

// httpContextFunc extracts the original HTTP request and adds it to the context
func httpContextFunc(ctx context.Context, r *http.Request) context.Context {
	return withHTTPRequest(ctx, r)
}

// newStreamableHandler builds the streamable HTTP handler for the MCP
// endpoint, wiring the original request into tool-handler contexts so the
// write authorization can read the bearer credential.
func newStreamableHandler(s *server.MCPServer, endpoint string) *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(
		s,
		server.WithEndpointPath(endpoint),
		server.WithHTTPContextFunc(httpContextFunc),
	)
}

// bearerFromRequest extracts the bearer credential from the Authorization
// header, or "" when none is present.
func bearerFromRequest(req *http.Request) string {
	const prefix = "Bearer "
	auth := req.Header.Get("Authorization")
	if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
		return auth[len(prefix):]
	}
	return ""
}

// authorizeWrite gates write operations arriving over the network transport.
// Stdio requests carry no HTTP request in their context and are implicitly
// trusted; network requests must present the configured write token as a
// bearer credential whenever one is set.
func authorizeWrite(ctx context.Context, writeToken string) error {
	req, overNetwork := httpRequestFromContext(ctx)
	if !overNetwork || writeToken == "" {
		return nil
	}
	presented := bearerFromRequest(req)
	if subtle.ConstantTimeCompare([]byte(presented), []byte(writeToken)) != 1 {
		return fault.WithHint(
			fault.New(fault.Unauthorized, "write operations require a valid bearer credential"),
			"send the configured write token in the Authorization header: Bearer <token>")
	}
	return nil
}
