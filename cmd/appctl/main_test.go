package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/appctl/internal/call"
	"github.com/danmuck/appctl/internal/clock"
	"github.com/danmuck/appctl/internal/config"
	"github.com/danmuck/appctl/internal/controller"
	"github.com/danmuck/appctl/internal/protocol"
	"github.com/danmuck/appctl/internal/stub"
	"github.com/danmuck/appctl/internal/testutil/controllertest"
	"github.com/danmuck/appctl/internal/testutil/testlog"
	"github.com/danmuck/appctl/internal/transport"
)

const testSecret = "s3cret"

// stubClients points every client at addr instead of host:17443.
func stubClients(addr string) clientFactory {
	return func(cfg controller.Config) (*controller.Client, error) {
		cfg.Clock = clock.NewRecorder()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		binding, err := transport.NewTLSBinding(addr, cfg.Transport)
		if err != nil {
			return nil, err
		}
		return controller.NewWithBinding(cfg, binding)
	}
}

func runCLI(t *testing.T, newClient clientFactory, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommandWith(newClient)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func TestCLIQueriesAgainstStub(t *testing.T) {
	testlog.Start(t)
	srv, _ := controllertest.Start(t, testSecret)
	clients := stubClients(srv.Addr())
	base := []string{"--host", "127.0.0.1", "--secret", testSecret}

	out, err := runCLI(t, clients, append(base, "public-ips")...)
	if err != nil {
		t.Fatalf("public-ips: %v", err)
	}
	var ips []string
	if err := json.Unmarshal([]byte(out), &ips); err != nil || len(ips) != 1 || ips[0] != "127.0.0.1" {
		t.Fatalf("public-ips output %q: %v", out, err)
	}

	out, err = runCLI(t, clients, append(base, "get-property", "^max_", "-o", "table")...)
	if err != nil {
		t.Fatalf("get-property: %v", err)
	}
	requireContains(t, out, "max_memory")
	requireContains(t, out, "400")

	out, err = runCLI(t, clients, append(base, "db-status")...)
	if err != nil {
		t.Fatalf("db-status: %v", err)
	}
	requireContains(t, out, `"primary_db_is_up": true`)

	out, err = runCLI(t, clients, append(base, "node-stats", "--output", "table")...)
	if err != nil {
		t.Fatalf("node-stats: %v", err)
	}
	requireContains(t, out, "gae_app")
	requireContains(t, out, "1/1")

	out, err = runCLI(t, clients, append(base, "request-info", "guestbook_default_v1")...)
	if err != nil {
		t.Fatalf("request-info: %v", err)
	}
	requireContains(t, out, `"num_of_requests": 42`)

	out, err = runCLI(t, clients, append(base, "set-property", "verbose", "True", "-o", "table")...)
	if err != nil || strings.TrimSpace(out) != "OK" {
		t.Fatalf("set-property: %q %v", out, err)
	}
}

func TestCLISetParametersFromDeploymentFile(t *testing.T) {
	testlog.Start(t)
	srv, state := controllertest.Start(t, testSecret)
	path := filepath.Join(t.TempDir(), "deployment.toml")
	if err := config.WriteTemplate(path, "deployment", false); err != nil {
		t.Fatalf("write deployment: %v", err)
	}

	out, err := runCLI(t, stubClients(srv.Addr()), "--host", "127.0.0.1", "--secret", testSecret, "set-parameters", path)
	if err != nil {
		t.Fatalf("set-parameters: %v", err)
	}
	requireContains(t, out, "Parameters accepted")
	state.View(func(st *stub.State) {
		if len(st.Layout) != 2 || st.Options["keyname"] != "appscale" {
			t.Fatalf("deployment not applied: %+v %v", st.Layout, st.Options)
		}
	})
}

func TestCLIReportsFailures(t *testing.T) {
	testlog.Start(t)
	t.Setenv(EnvSecret, "")
	srv, _ := controllertest.Start(t, testSecret)
	clients := stubClients(srv.Addr())

	if _, err := runCLI(t, clients, "--host", "127.0.0.1", "public-ips"); !errors.Is(err, controller.ErrSecretRequired) {
		t.Fatalf("expected ErrSecretRequired, got %v", err)
	}
	if _, err := runCLI(t, clients, "--host", "127.0.0.1", "--secret", "wrong", "public-ips"); !errors.Is(err, call.ErrAuthenticationRejected) {
		t.Fatalf("expected ErrAuthenticationRejected, got %v", err)
	}
	if _, err := runCLI(t, clients, "--host", "127.0.0.1", "--secret", testSecret, "set-read-only", "maybe"); err == nil {
		t.Fatalf("expected read-only parse error")
	}
	if _, err := runCLI(t, clients, "--host", "127.0.0.1", "--secret", testSecret, "-o", "yaml", "public-ips"); err == nil {
		t.Fatalf("expected unknown output format error")
	}
	if srv.Calls(protocol.MethodGetAllPublicIPs) != 1 {
		t.Fatalf("expected only the bad secret call to reach the stub, got %d", srv.Calls(protocol.MethodGetAllPublicIPs))
	}
}

func TestCLIConfigInit(t *testing.T) {
	testlog.Start(t)
	target := filepath.Join(t.TempDir(), "nested", "client.toml")

	out, err := runCLI(t, nil, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample client configuration")

	if _, err := runCLI(t, nil, "config", "init", "--path", target); err == nil {
		t.Fatalf("expected refusal to overwrite")
	}
	if _, err := runCLI(t, nil, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	cfg, err := loadCLIConfig(target)
	if err != nil {
		t.Fatalf("load written config: %v", err)
	}
	if cfg.Controller.Host != "127.0.0.1" {
		t.Fatalf("unexpected host: %q", cfg.Controller.Host)
	}
}
