package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/foomo/mediawiki-mcp/config"
	"github.com/foomo/mediawiki-mcp/mcp"
	"github.com/foomo/mediawiki-mcp/wiki"
)

func main() {
	// Define command line flags
	host := flag.String("host", "", "Wiki host (e.g. 'wiki.example.com')")
	apiPath := flag.String("api-path", "", "Wiki API base path (default '/wiki/')")
	useHTTPS := flag.Bool("https", true, "Use HTTPS to reach the wiki")
	botUser := flag.String("bot-user", "", "Bot account username")
	botPass := flag.String("bot-pass", "", "Bot account password")
	writeToken := flag.String("write-token", "", "Bearer token required for network-mode writes")
	stdioMode := flag.Bool("stdio", true, "Run in stdio mode (the default unless -http is set)")
	httpAddr := flag.String("http", "", "HTTP server address (e.g., ':8080')")
	endpoint := flag.String("endpoint", "/mcp", "HTTP path of the MCP endpoint")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s\n", mcp.ServerName, mcp.Version)
		return
	}

	logger, err := newLogger(*verbose)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to build logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// Resolve the connection profile once: defaults < .env/environment <
	// explicit flags, field by field.
	config.LoadDotenv()
	overrides := config.Overrides{
		Host:       *host,
		APIPath:    *apiPath,
		BotUser:    *botUser,
		BotPass:    *botPass,
		WriteToken: *writeToken,
	}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "https" {
			overrides.UseHTTPS = useHTTPS
		}
	})
	if *httpAddr != "" {
		listenHost, listenPort, err := splitListenAddr(*httpAddr)
		if err != nil {
			logger.Fatal("invalid -http address", zap.String("addr", *httpAddr), zap.Error(err))
		}
		overrides.ListenHost = listenHost
		overrides.ListenPort = listenPort
	}
	profile, warnings := config.Resolve(overrides, os.LookupEnv)
	for _, warning := range warnings {
		logger.Warn(warning)
	}
	if err := profile.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	session := wiki.NewClient(profile, nil, logger.Named("wiki"))

	// Startup probe: log the wiki version when reachable, warn and keep
	// going when not — the wiki may come up later.
	probeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	report, err := session.Status(probeCtx)
	cancel()
	if err != nil {
		logger.Warn("wiki not reachable at startup", zap.String("endpoint", profile.APIEndpoint()), zap.Error(err))
	} else {
		logger.Info("connected to wiki",
			zap.String("endpoint", profile.APIEndpoint()),
			zap.String("mediawikiVersion", report.MediaWikiVersion),
			zap.Bool("loggedIn", report.LoggedIn))
	}

	s := mcp.NewServer(session, profile.WriteToken)

	if addr := profile.ListenAddr(); addr != "" {
		runNetwork(logger, s, session, addr, *endpoint)
		return
	}

	// Start the stdio server
	if !*stdioMode {
		logger.Warn("no listen address configured, falling back to stdio")
	}
	logger.Info("starting MCP server on stdio")
	if err := server.ServeStdio(s); err != nil {
		logger.Fatal("stdio server failed", zap.Error(err))
	}
}

func runNetwork(logger *zap.Logger, s *server.MCPServer, session wiki.Session, addr, endpoint string) {
	networkConfig := mcp.DefaultNetworkServerConfig()
	networkConfig.Endpoint = endpoint
	networkServer := mcp.NewNetworkServer(logger.Named("http"), s, session, networkConfig)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := networkServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown did not complete cleanly", zap.Error(err))
		}
	}()

	if err := networkServer.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("network server failed", zap.Error(err))
	}
}

// newLogger builds the process logger on stderr so the stdio transport keeps
// stdout clean for the protocol.
func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func splitListenAddr(addr string) (string, int, error) {
	listenHost, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port %q", portStr)
	}
	if listenHost == "" {
		listenHost = config.DefaultListenHost
	}
	return listenHost, port, nil
}
