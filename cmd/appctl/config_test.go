package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/appctl/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "client.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadCLIConfigDefaults(t *testing.T) {
	cfg, err := loadCLIConfig("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if cfg.Controller.Timeouts.Short != 10*time.Second || cfg.Controller.Timeouts.Unbounded != 100000*time.Second {
		t.Fatalf("unexpected timeouts: %+v", cfg.Controller.Timeouts)
	}
	if cfg.Controller.Transport.TLS.VerifyChain {
		t.Fatalf("expected unverified tls by default")
	}
	if cfg.StubAddr != "127.0.0.1:17443" {
		t.Fatalf("unexpected stub addr: %q", cfg.StubAddr)
	}
}

func TestLoadCLIConfigTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.toml")
	if err := config.WriteTemplate(path, "client", false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	cfg, err := loadCLIConfig(path)
	if err != nil {
		t.Fatalf("load template: %v", err)
	}
	if cfg.Controller.Host != "127.0.0.1" || cfg.Controller.Secret != "" {
		t.Fatalf("unexpected controller config: host=%q", cfg.Controller.Host)
	}
	if cfg.Controller.Transport.Backoff.InitialDelay != time.Second {
		t.Fatalf("unexpected retry pause: %v", cfg.Controller.Transport.Backoff.InitialDelay)
	}
	if cfg.Gateway.Addr != "127.0.0.1:9400" || len(cfg.Gateway.CorsOrigins) != 1 {
		t.Fatalf("unexpected gateway config: %+v", cfg.Gateway)
	}
}

func TestLoadCLIConfigOverrides(t *testing.T) {
	path := writeConfig(t, `
host = " 10.0.0.5 "
secret = "k"
max_attempts = 4

[timeouts]
short = "2s"
unbounded = "1h"

[retry]
pause = "250ms"

[tls]
verify_chain = true
ca_file = "/etc/appctl/ca.pem"
server_name = "controller.local"

[gateway]
cors_origins = ["https://ops.example", " "]

[stub]
secret = "dev"
`)
	cfg, err := loadCLIConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Controller.Host != "10.0.0.5" || cfg.Controller.Secret != "k" || cfg.Controller.MaxAttempts != 4 {
		t.Fatalf("unexpected controller config: %+v", cfg.Controller)
	}
	if cfg.Controller.Timeouts.Short != 2*time.Second || cfg.Controller.Timeouts.Long != 30*time.Second || cfg.Controller.Timeouts.Unbounded != time.Hour {
		t.Fatalf("unexpected timeouts: %+v", cfg.Controller.Timeouts)
	}
	backoff := cfg.Controller.Transport.Backoff
	if backoff.InitialDelay != 250*time.Millisecond || backoff.MaxDelay != 250*time.Millisecond || backoff.Multiplier != 1 {
		t.Fatalf("unexpected backoff: %+v", backoff)
	}
	tlsCfg := cfg.Controller.Transport.TLS
	if !tlsCfg.VerifyChain || tlsCfg.CAFile != "/etc/appctl/ca.pem" || tlsCfg.ServerName != "controller.local" {
		t.Fatalf("unexpected tls config: %+v", tlsCfg)
	}
	if len(cfg.Gateway.CorsOrigins) != 1 || cfg.Gateway.CorsOrigins[0] != "https://ops.example" {
		t.Fatalf("unexpected cors origins: %v", cfg.Gateway.CorsOrigins)
	}
	if cfg.Gateway.Addr != "127.0.0.1:9400" {
		t.Fatalf("gateway addr should keep its default: %q", cfg.Gateway.Addr)
	}
	if cfg.StubSecret != "dev" {
		t.Fatalf("unexpected stub secret: %q", cfg.StubSecret)
	}
}

func TestLoadCLIConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "bad duration", content: "[timeouts]\nshort = \"soon\"\n", want: "timeouts.short"},
		{name: "zero pause", content: "[retry]\npause = \"0s\"\n", want: "retry.pause"},
		{name: "negative attempts", content: "max_attempts = -1\n", want: "max_attempts"},
		{name: "unknown key", content: "hots = \"10.0.0.1\"\n", want: "hots"},
		{name: "syntax", content: "host = \n", want: "load appctl config"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := loadCLIConfig(writeConfig(t, tc.content))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestApplyEnvSecret(t *testing.T) {
	t.Setenv(EnvSecret, "from-env")

	cfg := defaultCLIConfig()
	cfg.applyEnv()
	if cfg.Controller.Secret != "from-env" {
		t.Fatalf("expected env secret, got %q", cfg.Controller.Secret)
	}

	cfg = defaultCLIConfig()
	cfg.Controller.Secret = "from-file"
	cfg.applyEnv()
	if cfg.Controller.Secret != "from-file" {
		t.Fatalf("file secret should win over env, got %q", cfg.Controller.Secret)
	}
}
