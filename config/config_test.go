package config

import (
	"strings"
	"testing"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestResolveDefaults(t *testing.T) {
	p, warnings := Resolve(Overrides{}, nil)
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	if p.Host != DefaultHost {
		t.Errorf("host = %q", p.Host)
	}
	if p.APIPath != "/wiki/" {
		t.Errorf("apiPath = %q", p.APIPath)
	}
	if !p.UseHTTPS {
		t.Error("useHttps default should be true")
	}
	if p.HasCredentials() {
		t.Error("credentials should be absent by default")
	}
	if p.ListenAddr() != "" {
		t.Errorf("default listen addr = %q, want stdio", p.ListenAddr())
	}
}

func TestResolvePrecedence(t *testing.T) {
	env := envMap(map[string]string{EnvHost: "b"})

	// invocation beats environment beats default
	p, _ := Resolve(Overrides{Host: "c"}, env)
	if p.Host != "c" {
		t.Errorf("host = %q, want invocation value c", p.Host)
	}

	// absent invocation falls through to environment
	p, _ = Resolve(Overrides{}, env)
	if p.Host != "b" {
		t.Errorf("host = %q, want environment value b", p.Host)
	}

	// absent both falls through to default
	p, _ = Resolve(Overrides{}, nil)
	if p.Host != DefaultHost {
		t.Errorf("host = %q, want default", p.Host)
	}
}

func TestResolvePrecedenceIsPerField(t *testing.T) {
	env := envMap(map[string]string{
		EnvHost:    "env.example.org",
		EnvAPIPath: "/w/",
	})
	p, _ := Resolve(Overrides{APIPath: "/mediawiki/"}, env)
	if p.Host != "env.example.org" {
		t.Errorf("host = %q, the override of another field must not shadow it", p.Host)
	}
	if p.APIPath != "/mediawiki/" {
		t.Errorf("apiPath = %q", p.APIPath)
	}
}

func TestResolveUseHTTPS(t *testing.T) {
	cases := []struct {
		raw      string
		want     bool
		warnings int
	}{
		{"true", true, 0},
		{"TRUE", true, 0},
		{"False", false, 0},
		{"false", false, 0},
		{"yes", false, 1},
		{"1", false, 1},
		{"banana", false, 1},
	}
	for _, c := range cases {
		p, warnings := Resolve(Overrides{}, envMap(map[string]string{EnvUseHTTPS: c.raw}))
		if p.UseHTTPS != c.want {
			t.Errorf("useHttps(%q) = %v, want %v", c.raw, p.UseHTTPS, c.want)
		}
		if len(warnings) != c.warnings {
			t.Errorf("useHttps(%q) produced %d warnings, want %d", c.raw, len(warnings), c.warnings)
		}
	}

	useHTTPS := false
	p, _ := Resolve(Overrides{UseHTTPS: &useHTTPS}, envMap(map[string]string{EnvUseHTTPS: "true"}))
	if p.UseHTTPS {
		t.Error("explicit override did not beat environment")
	}
}

func TestResolveListenPort(t *testing.T) {
	p, warnings := Resolve(Overrides{}, envMap(map[string]string{EnvListenPort: "8000"}))
	if p.ListenPort != 8000 {
		t.Errorf("listenPort = %d", p.ListenPort)
	}
	if p.ListenAddr() != "0.0.0.0:8000" {
		t.Errorf("listenAddr = %q", p.ListenAddr())
	}
	if len(warnings) != 0 {
		t.Errorf("warnings: %v", warnings)
	}

	p, warnings = Resolve(Overrides{}, envMap(map[string]string{EnvListenPort: "not-a-port"}))
	if p.ListenPort != 0 {
		t.Errorf("malformed port resolved to %d", p.ListenPort)
	}
	if len(warnings) != 1 {
		t.Errorf("malformed port produced %d warnings", len(warnings))
	}
}

func TestAPIPathNormalization(t *testing.T) {
	p, _ := Resolve(Overrides{APIPath: "w"}, nil)
	if p.APIPath != "/w/" {
		t.Errorf("apiPath = %q, want /w/", p.APIPath)
	}
}

func TestValidate(t *testing.T) {
	p, _ := Resolve(Overrides{}, nil)
	if err := p.Validate(); err != nil {
		t.Errorf("default profile should validate: %v", err)
	}
	p.Host = ""
	err := p.Validate()
	if err == nil {
		t.Fatal("empty host must not validate")
	}
	if !strings.Contains(err.Error(), EnvHost) {
		t.Errorf("error should name the env var: %v", err)
	}
}

func TestDerivedURLs(t *testing.T) {
	p, _ := Resolve(Overrides{Host: "wiki.local", APIPath: "/wiki/"}, nil)
	if got := p.APIEndpoint(); got != "https://wiki.local/wiki/api.php" {
		t.Errorf("APIEndpoint = %q", got)
	}
	if got := p.PageURL("Main Page"); got != "https://wiki.local/wiki/index.php/Main_Page" {
		t.Errorf("PageURL = %q", got)
	}

	useHTTPS := false
	p, _ = Resolve(Overrides{Host: "wiki.local", UseHTTPS: &useHTTPS}, nil)
	if got := p.Scheme(); got != "http" {
		t.Errorf("Scheme = %q", got)
	}
}
