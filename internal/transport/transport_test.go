package transport

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/danmuck/appctl/internal/protocol"
	"github.com/danmuck/appctl/internal/testutil/controllertest"
	"github.com/danmuck/appctl/internal/testutil/testlog"
	"github.com/danmuck/appctl/internal/testutil/tlstest"
)

func TestNextBackoffDelayDeterministicNoJitter(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
		Jitter:       false,
	}
	if got := NextBackoffDelay(cfg, 1, nil); got != 250*time.Millisecond {
		t.Fatalf("attempt1 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 3, nil); got != time.Second {
		t.Fatalf("attempt3 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 6, nil); got != 5*time.Second {
		t.Fatalf("attempt6 got=%v", got)
	}
}

func TestDefaultBackoffIsConstantOneSecond(t *testing.T) {
	cfg := DefaultConfig().Backoff
	for attempt := 1; attempt <= 5; attempt++ {
		if got := NextBackoffDelay(cfg, attempt, nil); got != time.Second {
			t.Fatalf("attempt%d got=%v", attempt, got)
		}
	}
}

func TestNextBackoffDelayJitterRange(t *testing.T) {
	cfg := BackoffConfig{InitialDelay: 100 * time.Millisecond, Multiplier: 1, Jitter: true}
	rng := rand.New(rand.NewPCG(7, 7))
	for i := 0; i < 50; i++ {
		got := NextBackoffDelay(cfg, 2, rng)
		if got < 50*time.Millisecond || got > 150*time.Millisecond {
			t.Fatalf("jittered delay out of range: %v", got)
		}
		if shared := NextBackoffDelay(cfg, 2, nil); shared < 50*time.Millisecond || shared > 150*time.Millisecond {
			t.Fatalf("shared jitter delay out of range: %v", shared)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if err := (Config{}).Validate(); err != nil {
		t.Fatalf("zero config should validate: %v", err)
	}
	cfg.TLS.VerifyChain = true
	if err := cfg.Validate(); !errors.Is(err, ErrTLSTrustUnspecified) {
		t.Fatalf("expected ErrTLSTrustUnspecified, got %v", err)
	}
	if _, err := NewTLSBinding("127.0.0.1:17443", cfg); !errors.Is(err, ErrTLSTrustUnspecified) {
		t.Fatalf("binding should reject unverifiable config, got %v", err)
	}
	if _, err := NewTLSBinding("  ", DefaultConfig()); !errors.Is(err, ErrAddressRequired) {
		t.Fatalf("expected ErrAddressRequired, got %v", err)
	}
}

func TestTLSBindingInvokeAgainstStub(t *testing.T) {
	testlog.Start(t)
	srv, _ := controllertest.Start(t, "s3cret")

	b, err := NewTLSBinding(srv.Addr(), DefaultConfig())
	if err != nil {
		t.Fatalf("new binding: %v", err)
	}
	res, err := b.Invoke(context.Background(), protocol.MethodGetAllPublicIPs, []any{"s3cret"})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	var ips []string
	if err := res.Decode(&ips); err != nil || len(ips) != 1 || ips[0] != "127.0.0.1" {
		t.Fatalf("unexpected ips %v err=%v", ips, err)
	}

	res, err = b.Invoke(context.Background(), protocol.MethodGetAllPublicIPs, []any{"wrong"})
	if err != nil {
		t.Fatalf("invoke with bad secret: %v", err)
	}
	if marker, ok := res.Sentinel(); !ok || marker != protocol.BadSecretResponse {
		t.Fatalf("expected bad secret sentinel, got %s", res)
	}

	res, err = b.Invoke(context.Background(), protocol.MethodGetProperty, []any{"s3cret"})
	if err != nil {
		t.Fatalf("invoke with missing arg: %v", err)
	}
	if marker, ok := res.Sentinel(); !ok || marker != protocol.InvalidRequestResponse {
		t.Fatalf("expected invalid request sentinel, got %s", res)
	}
}

func TestZeroConfigBindingSkipsChainVerification(t *testing.T) {
	testlog.Start(t)
	srv, _ := controllertest.Start(t, "s3cret")

	b, err := NewTLSBinding(srv.Addr(), Config{})
	if err != nil {
		t.Fatalf("new binding from zero config: %v", err)
	}
	if !b.tls.InsecureSkipVerify {
		t.Fatalf("zero config should skip chain verification")
	}
	if _, err := b.Invoke(context.Background(), protocol.MethodIsDoneInitializing, []any{"s3cret"}); err != nil {
		t.Fatalf("invoke against self-signed stub: %v", err)
	}
}

func TestTLSBindingVerifiesPinnedCA(t *testing.T) {
	testlog.Start(t)
	serverTLS, caFile := tlstest.LoopbackServerTLS(t)
	addr := serveRaw(t, serverTLS, func(c net.Conn) {
		_, _ = io.WriteString(c, `{"result":"pinned"}`+"\n")
	})

	cfg := DefaultConfig()
	cfg.TLS.VerifyChain = true
	cfg.TLS.CAFile = caFile
	b, err := NewTLSBinding(addr, cfg)
	if err != nil {
		t.Fatalf("new binding: %v", err)
	}
	res, err := b.Invoke(context.Background(), "anything", nil)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if s, _ := res.String(); s != "pinned" {
		t.Fatalf("unexpected result %s", res)
	}
}

func TestTLSBindingClassifiesFaults(t *testing.T) {
	testlog.Start(t)
	serverTLS, _ := tlstest.LoopbackServerTLS(t)

	refusedAddr := closedPort(t)
	emptyAddr := serveRaw(t, serverTLS, func(net.Conn) {})
	garbageAddr := serveRaw(t, serverTLS, func(c net.Conn) {
		_, _ = io.WriteString(c, "<html>busy</html>\n")
	})
	plainAddr := servePlain(t, func(c net.Conn) {
		buf := make([]byte, 4096)
		_, _ = c.Read(buf)
		_, _ = io.WriteString(c, "HTTP/1.0 400 Bad Request\r\n\r\n")
	})
	remoteAddr := serveRaw(t, serverTLS, func(c net.Conn) {
		_ = protocol.WriteFault(c, "unknown_method", "no such method")
	})

	tests := []struct {
		name string
		addr string
		want FaultKind
		op   string
	}{
		{name: "refused", addr: refusedAddr, want: FaultConnectionRefused, op: OpDial},
		{name: "empty", addr: emptyAddr, want: FaultEmptyResponse, op: OpRead},
		{name: "garbage", addr: garbageAddr, want: FaultMalformedResponse, op: OpRead},
		{name: "not tls", addr: plainAddr, want: FaultTLSHandshake, op: OpHandshake},
		{name: "remote fault", addr: remoteAddr, want: FaultRemote, op: OpRead},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b, err := NewTLSBinding(tc.addr, DefaultConfig())
			if err != nil {
				t.Fatalf("new binding: %v", err)
			}
			_, err = b.Invoke(context.Background(), protocol.MethodPrimaryDBIsUp, []any{"s"})
			var fault *Fault
			if !errors.As(err, &fault) {
				t.Fatalf("expected *Fault, got %v", err)
			}
			if fault.Kind != tc.want || fault.Op != tc.op {
				t.Fatalf("unexpected fault kind=%s op=%s err=%v", fault.Kind, fault.Op, fault.Err)
			}
		})
	}
}

func TestTLSBindingHonorsContextWhileBlocked(t *testing.T) {
	testlog.Start(t)
	serverTLS, _ := tlstest.LoopbackServerTLS(t)
	release := make(chan struct{})
	addr := serveRaw(t, serverTLS, func(c net.Conn) {
		select {
		case <-release:
		case <-time.After(5 * time.Second):
		}
	})
	defer close(release)

	b, err := NewTLSBinding(addr, DefaultConfig())
	if err != nil {
		t.Fatalf("new binding: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = b.Invoke(ctx, protocol.MethodGetNodeStats, []any{"s"})
	if err == nil {
		t.Fatalf("expected error from blocked exchange")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("invoke ignored context: %v", elapsed)
	}
	if KindOf(err) != FaultTimeout {
		t.Fatalf("expected timeout fault, got %v", err)
	}
}

func TestKindOfSyscallErrors(t *testing.T) {
	tests := []struct {
		err  error
		want FaultKind
	}{
		{err: &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, want: FaultConnectionRefused},
		{err: &net.OpError{Op: "dial", Err: syscall.EHOSTUNREACH}, want: FaultHostUnreachable},
		{err: &net.DNSError{Err: "no such host", Name: "ctl.invalid"}, want: FaultHostUnreachable},
		{err: fmt.Errorf("write: %w", syscall.EPIPE), want: FaultBrokenPipe},
		{err: fmt.Errorf("read: %w", syscall.ECONNRESET), want: FaultConnectionReset},
		{err: io.ErrUnexpectedEOF, want: FaultEmptyResponse},
		{err: errors.New("boom"), want: FaultUnknown},
	}
	for _, tc := range tests {
		if got := KindOf(tc.err); got != tc.want {
			t.Fatalf("KindOf(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
	wrapped := Classify(OpRead, "10.0.0.1:17443", syscall.ECONNRESET)
	if again := Classify(OpDial, "x", wrapped); again != wrapped {
		t.Fatalf("Classify should pass existing faults through")
	}
}

func closedPort(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

// serveRaw accepts TLS connections, consumes the request line, and hands the
// connection to fn.
func serveRaw(t *testing.T, cfg *tls.Config, fn func(net.Conn)) string {
	t.Helper()
	ln, err := tls.Listen("tcp", "127.0.0.1:0", cfg)
	if err != nil {
		t.Fatalf("listen tls: %v", err)
	}
	return serveListener(t, ln, func(c net.Conn) {
		if _, err := bufio.NewReader(c).ReadString('\n'); err != nil {
			return
		}
		fn(c)
	})
}

func servePlain(t *testing.T, fn func(net.Conn)) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	return serveListener(t, ln, fn)
}

func serveListener(t *testing.T, ln net.Listener, fn func(net.Conn)) string {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				fn(conn)
			}()
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		<-done
	})
	return ln.Addr().String()
}
