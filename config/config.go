// Package config resolves the gateway's connection profile from compiled
// defaults, environment variables and explicit invocation parameters, in
// that ascending precedence, field by field. Resolution happens exactly once
// at startup; every other component works from the resolved Profile and
// never reads the environment itself.
package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variable names. The MW_* group mirrors the wiki connection,
// the MCP_* group configures the gateway's own network listener.
const (
	EnvHost       = "MW_API_HOST"
	EnvAPIPath    = "MW_API_PATH"
	EnvUseHTTPS   = "MW_USE_HTTPS"
	EnvBotUser    = "MW_BOT_USER"
	EnvBotPass    = "MW_BOT_PASS"
	EnvWriteToken = "MW_WRITE_TOKEN"
	EnvListenHost = "MCP_LISTEN_HOST"
	EnvListenPort = "MCP_LISTEN_PORT"
)

const (
	DefaultHost       = "wiki.example.com"
	DefaultAPIPath    = "/wiki/"
	DefaultListenHost = "0.0.0.0"
)

// Profile is the immutable connection profile shared read-only by all
// request handlers. Absent BotUser/BotPass disables authenticated writes;
// ListenPort 0 selects the stdio transport.
type Profile struct {
	Host       string
	APIPath    string
	UseHTTPS   bool
	BotUser    string
	BotPass    string
	WriteToken string
	ListenHost string
	ListenPort int
}

// Overrides carries explicit invocation parameters. An empty string (or nil
// pointer, or zero port) means "not supplied" — the field falls through to
// the environment and then to the default.
type Overrides struct {
	Host       string
	APIPath    string
	UseHTTPS   *bool
	BotUser    string
	BotPass    string
	WriteToken string
	ListenHost string
	ListenPort int
}

// Defaults returns the compiled-in profile.
func Defaults() Profile {
	return Profile{
		Host:       DefaultHost,
		APIPath:    DefaultAPIPath,
		UseHTTPS:   true,
		ListenHost: DefaultListenHost,
	}
}

// LoadDotenv merges a .env file from the working directory into the process
// environment, if one exists. A missing file is not an error.
func LoadDotenv() {
	_ = godotenv.Load()
}

// Resolve merges overrides, the environment (via lookup, typically
// os.LookupEnv) and defaults into one Profile. It never fails: malformed
// values resolve to a safe fallback and are reported in the returned
// warning list.
func Resolve(ov Overrides, lookup func(string) (string, bool)) (Profile, []string) {
	if lookup == nil {
		lookup = func(string) (string, bool) { return "", false }
	}
	p := Defaults()
	var warnings []string

	if v, ok := lookup(EnvHost); ok && v != "" {
		p.Host = v
	}
	if v, ok := lookup(EnvAPIPath); ok && v != "" {
		p.APIPath = v
	}
	if v, ok := lookup(EnvUseHTTPS); ok && v != "" {
		b, valid := parseBool(v)
		if !valid {
			warnings = append(warnings, fmt.Sprintf("%s=%q is not a valid boolean, treating as false", EnvUseHTTPS, v))
		}
		p.UseHTTPS = b
	}
	if v, ok := lookup(EnvBotUser); ok && v != "" {
		p.BotUser = v
	}
	if v, ok := lookup(EnvBotPass); ok && v != "" {
		p.BotPass = v
	}
	if v, ok := lookup(EnvWriteToken); ok && v != "" {
		p.WriteToken = v
	}
	if v, ok := lookup(EnvListenHost); ok && v != "" {
		p.ListenHost = v
	}
	if v, ok := lookup(EnvListenPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port < 0 || port > 65535 {
			warnings = append(warnings, fmt.Sprintf("%s=%q is not a valid port, ignoring", EnvListenPort, v))
		} else {
			p.ListenPort = port
		}
	}

	if ov.Host != "" {
		p.Host = ov.Host
	}
	if ov.APIPath != "" {
		p.APIPath = ov.APIPath
	}
	if ov.UseHTTPS != nil {
		p.UseHTTPS = *ov.UseHTTPS
	}
	if ov.BotUser != "" {
		p.BotUser = ov.BotUser
	}
	if ov.BotPass != "" {
		p.BotPass = ov.BotPass
	}
	if ov.WriteToken != "" {
		p.WriteToken = ov.WriteToken
	}
	if ov.ListenHost != "" {
		p.ListenHost = ov.ListenHost
	}
	if ov.ListenPort != 0 {
		p.ListenPort = ov.ListenPort
	}

	p.APIPath = normalizeAPIPath(p.APIPath)
	return p, warnings
}

// parseBool accepts "true"/"false" case-insensitively. Anything else is
// reported invalid and treated as false, to keep startup deterministic.
func parseBool(raw string) (value bool, valid bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true":
		return true, true
	case "false":
		return false, true
	default:
		return false, false
	}
}

func normalizeAPIPath(path string) string {
	if path == "" {
		return DefaultAPIPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	return path
}

// Validate checks the invariants a usable profile must hold.
func (p Profile) Validate() error {
	if p.Host == "" {
		return fmt.Errorf("host must not be empty (set %s or -host)", EnvHost)
	}
	return nil
}

// HasCredentials reports whether bot authentication is configured.
func (p Profile) HasCredentials() bool {
	return p.BotUser != "" && p.BotPass != ""
}

// Scheme returns "https" or "http" according to UseHTTPS.
func (p Profile) Scheme() string {
	if p.UseHTTPS {
		return "https"
	}
	return "http"
}

// APIEndpoint returns the Action API URL, e.g.
// https://wiki.example.com/wiki/api.php.
func (p Profile) APIEndpoint() string {
	return fmt.Sprintf("%s://%s%sapi.php", p.Scheme(), p.Host, p.APIPath)
}

// PageURL returns the human-facing URL of a page, e.g.
// https://wiki.example.com/wiki/index.php/Main_Page.
func (p Profile) PageURL(title string) string {
	return fmt.Sprintf("%s://%s%sindex.php/%s", p.Scheme(), p.Host, p.APIPath,
		url.PathEscape(strings.ReplaceAll(title, " ", "_")))
}

// ListenAddr returns host:port for the network listener, or "" when no
// listen port is configured (stdio mode).
func (p Profile) ListenAddr() string {
	if p.ListenPort == 0 {
		return ""
	}
	return net.JoinHostPort(p.ListenHost, strconv.Itoa(p.ListenPort))
}
