package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/appctl/internal/controller"
	"github.com/danmuck/appctl/internal/gateway"
)

// EnvSecret supplies the controller secret when neither flag nor file set it.
const EnvSecret = "APPCTL_SECRET"

type fileConfig struct {
	Host        string `toml:"host"`
	Secret      string `toml:"secret"`
	MaxAttempts int    `toml:"max_attempts"`
	Timeouts    struct {
		Short     string `toml:"short"`
		Long      string `toml:"long"`
		Unbounded string `toml:"unbounded"`
	} `toml:"timeouts"`
	Retry struct {
		Pause string `toml:"pause"`
	} `toml:"retry"`
	TLS struct {
		VerifyChain bool   `toml:"verify_chain"`
		CAFile      string `toml:"ca_file"`
		ServerName  string `toml:"server_name"`
	} `toml:"tls"`
	Gateway struct {
		Addr        string   `toml:"addr"`
		CorsOrigins []string `toml:"cors_origins"`
	} `toml:"gateway"`
	Stub struct {
		Addr   string `toml:"addr"`
		Secret string `toml:"secret"`
	} `toml:"stub"`
}

type cliConfig struct {
	Controller controller.Config
	Gateway    gateway.Config
	StubAddr   string
	StubSecret string
}

func defaultCLIConfig() cliConfig {
	return cliConfig{
		Controller: controller.DefaultConfig(),
		Gateway:    gateway.DefaultConfig(),
		StubAddr:   fmt.Sprintf("127.0.0.1:%d", controller.Port),
		StubSecret: "appctl-dev",
	}
}

// loadCLIConfig overlays the keys present in path onto the defaults. An
// empty path yields the defaults.
func loadCLIConfig(path string) (cliConfig, error) {
	cfg := defaultCLIConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return cliConfig{}, fmt.Errorf("load appctl config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return cliConfig{}, fmt.Errorf("load appctl config: unknown key %s", undecoded[0])
	}

	if meta.IsDefined("host") {
		cfg.Controller.Host = strings.TrimSpace(raw.Host)
	}
	if meta.IsDefined("secret") {
		cfg.Controller.Secret = raw.Secret
	}
	if meta.IsDefined("max_attempts") {
		if raw.MaxAttempts < 0 {
			return cliConfig{}, fmt.Errorf("max_attempts must be >= 0")
		}
		cfg.Controller.MaxAttempts = raw.MaxAttempts
	}

	durations := []struct {
		key  []string
		raw  string
		dest *time.Duration
	}{
		{key: []string{"timeouts", "short"}, raw: raw.Timeouts.Short, dest: &cfg.Controller.Timeouts.Short},
		{key: []string{"timeouts", "long"}, raw: raw.Timeouts.Long, dest: &cfg.Controller.Timeouts.Long},
		{key: []string{"timeouts", "unbounded"}, raw: raw.Timeouts.Unbounded, dest: &cfg.Controller.Timeouts.Unbounded},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key...) {
			continue
		}
		v, err := parsePositiveDuration(strings.Join(d.key, "."), d.raw)
		if err != nil {
			return cliConfig{}, err
		}
		*d.dest = v
	}

	if meta.IsDefined("retry", "pause") {
		pause, err := parsePositiveDuration("retry.pause", raw.Retry.Pause)
		if err != nil {
			return cliConfig{}, err
		}
		cfg.Controller.Transport.Backoff.InitialDelay = pause
		cfg.Controller.Transport.Backoff.MaxDelay = pause
		cfg.Controller.Transport.Backoff.Multiplier = 1
	}

	if meta.IsDefined("tls", "verify_chain") {
		cfg.Controller.Transport.TLS.VerifyChain = raw.TLS.VerifyChain
	}
	if meta.IsDefined("tls", "ca_file") {
		cfg.Controller.Transport.TLS.CAFile = strings.TrimSpace(raw.TLS.CAFile)
	}
	if meta.IsDefined("tls", "server_name") {
		cfg.Controller.Transport.TLS.ServerName = strings.TrimSpace(raw.TLS.ServerName)
	}

	if meta.IsDefined("gateway", "addr") {
		cfg.Gateway.Addr = strings.TrimSpace(raw.Gateway.Addr)
	}
	if meta.IsDefined("gateway", "cors_origins") {
		cfg.Gateway.CorsOrigins = normalizeOrigins(raw.Gateway.CorsOrigins)
	}

	if meta.IsDefined("stub", "addr") {
		cfg.StubAddr = strings.TrimSpace(raw.Stub.Addr)
	}
	if meta.IsDefined("stub", "secret") {
		cfg.StubSecret = raw.Stub.Secret
	}

	return cfg, nil
}

// applyEnv fills the secret from the environment when the file left it empty.
func (c *cliConfig) applyEnv() {
	if c.Controller.Secret != "" {
		return
	}
	if v, ok := os.LookupEnv(EnvSecret); ok {
		c.Controller.Secret = v
	}
}

func parsePositiveDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, origin := range in {
		v := strings.TrimSpace(origin)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
