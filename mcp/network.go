package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/foomo/mediawiki-mcp/fault"
	"github.com/foomo/mediawiki-mcp/wiki"
)

// NetworkServerConfig holds configuration for the network front-end.
type NetworkServerConfig struct {
	Endpoint          string
	ReadHeaderTimeout time.Duration
	HealthTimeout     time.Duration
}

// DefaultNetworkServerConfig returns the default configuration for the
// network front-end.
func DefaultNetworkServerConfig() *NetworkServerConfig {
	return &NetworkServerConfig{
		Endpoint:          "/mcp",
		ReadHeaderTimeout: 10 * time.Second,
		HealthTimeout:     10 * time.Second,
	}
}

// NetworkServer is the network transport: an HTTP listener serving the MCP
// endpoint alongside plain info and health routes. It shares the one MCP
// server and the one wiki session with the stdio transport, so clients
// observe the same logical operation set on either channel.
type NetworkServer struct {
	logger     *zap.Logger
	mux        *http.ServeMux
	httpServer *http.Server
	session    wiki.Session
	config     *NetworkServerConfig
}

// NewNetworkServer wires the MCP streamable handler and the info/health
// routes into one mux.
func NewNetworkServer(logger *zap.Logger, s *server.MCPServer, session wiki.Session, config *NetworkServerConfig) *NetworkServer {
	if config == nil {
		config = DefaultNetworkServerConfig()
	}
	if config.Endpoint == "" {
		config.Endpoint = "/mcp"
	}
	ns := &NetworkServer{
		logger:  logger,
		session: session,
		config:  config,
	}

	mux := http.NewServeMux()
	mux.Handle(config.Endpoint, newStreamableHandler(s, config.Endpoint))
	mux.HandleFunc("/", ns.handleInfo)
	mux.HandleFunc("/health", ns.handleHealth)
	ns.mux = mux
	return ns
}

// ServeHTTP implements http.Handler
func (ns *NetworkServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ns.mux.ServeHTTP(w, r)
}

// Start listens on addr and serves until Shutdown or a listener error.
func (ns *NetworkServer) Start(addr string) error {
	ns.httpServer = &http.Server{
		Addr:              addr,
		Handler:           ns.mux,
		ReadHeaderTimeout: ns.config.ReadHeaderTimeout,
	}
	ns.logger.Info("network transport listening",
		zap.String("addr", addr),
		zap.String("endpoint", ns.config.Endpoint))
	return ns.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the listener.
func (ns *NetworkServer) Shutdown(ctx context.Context) error {
	if ns.httpServer == nil {
		return nil
	}
	ns.logger.Info("shutting down network transport")
	return ns.httpServer.Shutdown(ctx)
}

func (ns *NetworkServer) handleInfo(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"server":    ServerName,
		"version":   Version,
		"transport": "streamable-http",
	})
}

// handleHealth probes the wiki and reports the live status, mapping an
// unreachable wiki to its transport status while keeping the classified
// payload in the body.
func (ns *NetworkServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), ns.config.HealthTimeout)
	defer cancel()

	report, err := ns.session.Status(ctx)
	if err != nil {
		ns.logger.Warn("health probe failed", zap.Error(err))
		writeJSON(w, fault.StatusFor(err), fault.ResponseFor(err))
		return
	}
	report.ServerVersion = ServerName + " " + Version
	writeJSON(w, http.StatusOK, report)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
