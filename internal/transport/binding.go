package transport

import (
	"bufio"
	"context"
	"crypto/tls"
	"net"
	"strings"
	"time"

	"github.com/danmuck/appctl/internal/protocol"
)

// Binding invokes named controller operations with positional arguments.
// Failures are returned as *Fault.
type Binding interface {
	Invoke(ctx context.Context, method string, args []any) (protocol.Result, error)
}

// BindingFunc adapts a function into a Binding.
type BindingFunc func(ctx context.Context, method string, args []any) (protocol.Result, error)

func (f BindingFunc) Invoke(ctx context.Context, method string, args []any) (protocol.Result, error) {
	return f(ctx, method, args)
}

// TLSBinding is a Binding over TLS that opens one connection per call.
// No connection is shared between calls, so an abandoned call cannot leave a
// half-read response behind for the next one.
type TLSBinding struct {
	addr string
	cfg  Config
	tls  *tls.Config
}

// NewTLSBinding constructs a binding for addr ("host:port").
func NewTLSBinding(addr string, cfg Config) (*TLSBinding, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, ErrAddressRequired
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tlsCfg, err := cfg.clientTLSConfig(addr)
	if err != nil {
		return nil, err
	}
	return &TLSBinding{addr: addr, cfg: cfg, tls: tlsCfg}, nil
}

// Addr returns the bound controller address.
func (b *TLSBinding) Addr() string {
	return b.addr
}

// Invoke performs one request/response exchange. Cancelling ctx closes the
// connection, which unblocks any pending read or write.
func (b *TLSBinding) Invoke(ctx context.Context, method string, args []any) (protocol.Result, error) {
	conn, err := b.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	_ = conn.SetWriteDeadline(time.Now().Add(b.cfg.WriteTimeout))
	if err := protocol.WriteRequest(conn, protocol.Request{Method: method, Args: args}); err != nil {
		return nil, Classify(OpWrite, b.addr, b.contextErr(ctx, err))
	}

	readDeadline := time.Now().Add(b.cfg.ReadTimeout)
	if deadline, ok := ctx.Deadline(); ok {
		readDeadline = deadline
	}
	_ = conn.SetReadDeadline(readDeadline)
	result, err := protocol.ReadResponse(bufio.NewReader(conn))
	if err != nil {
		return nil, Classify(OpRead, b.addr, b.contextErr(ctx, err))
	}
	return result, nil
}

func (b *TLSBinding) dial(ctx context.Context) (*tls.Conn, error) {
	dialer := net.Dialer{Timeout: b.cfg.ConnectTimeout}
	rawConn, err := dialer.DialContext(ctx, "tcp", b.addr)
	if err != nil {
		return nil, Classify(OpDial, b.addr, err)
	}
	conn := tls.Client(rawConn, b.tls)
	handshakeCtx, cancel := context.WithTimeout(ctx, b.cfg.HandshakeTimeout)
	defer cancel()
	if err := conn.HandshakeContext(handshakeCtx); err != nil {
		_ = rawConn.Close()
		return nil, Classify(OpHandshake, b.addr, b.contextErr(ctx, err))
	}
	return conn, nil
}

// contextErr prefers the context error when the exchange failed because the
// call was cancelled or ran out of time.
func (b *TLSBinding) contextErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}
