// Package controllertest starts stub controllers for package tests.
package controllertest

import (
	"context"
	"testing"

	"github.com/danmuck/appctl/internal/auth"
	"github.com/danmuck/appctl/internal/stub"
	"github.com/danmuck/appctl/internal/testutil/testlog"
	"github.com/danmuck/appctl/internal/testutil/tlstest"
)

// Start serves a stub controller with the default catalog on 127.0.0.1.
// It is stopped when the test ends.
func Start(t *testing.T, secret string) (*stub.Server, *stub.State) {
	t.Helper()
	srv := StartEmpty(t, secret)
	st := stub.NewState()
	st.Install(srv)
	return srv, st
}

// StartEmpty serves a stub controller with no handlers registered.
func StartEmpty(t *testing.T, secret string) *stub.Server {
	t.Helper()
	tlsCfg, _ := tlstest.LoopbackServerTLS(t)
	logger := testlog.Logger(t)
	srv, err := stub.Listen(stub.Config{
		Addr:      "127.0.0.1:0",
		TLS:       tlsCfg,
		Validator: auth.SharedSecret{Secret: secret},
		Logger:    &logger,
	})
	if err != nil {
		t.Fatalf("listen stub: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		_ = srv.Close()
		if err := <-done; err != nil {
			t.Errorf("stub serve: %v", err)
		}
	})
	return srv
}
