package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"

	"github.com/danmuck/appctl/internal/protocol"
)

// FaultKind classifies a failed exchange.
type FaultKind string

const (
	FaultConnectionRefused FaultKind = "connection_refused"
	FaultHostUnreachable   FaultKind = "host_unreachable"
	FaultTLSHandshake      FaultKind = "tls_handshake"
	FaultBrokenPipe        FaultKind = "broken_pipe"
	FaultConnectionReset   FaultKind = "connection_reset"
	FaultTimeout           FaultKind = "timeout"
	FaultEmptyResponse     FaultKind = "empty_response"
	FaultMalformedResponse FaultKind = "malformed_response"
	FaultRemote            FaultKind = "remote_fault"
	FaultUnknown           FaultKind = "unknown"
)

// Exchange phases recorded on a Fault.
const (
	OpDial      = "dial"
	OpHandshake = "handshake"
	OpWrite     = "write"
	OpRead      = "read"
)

// Fault is the error returned by a Binding for any failed exchange.
type Fault struct {
	Kind FaultKind
	Op   string
	Addr string
	Err  error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("transport: %s %s: %s: %v", f.Op, f.Addr, f.Kind, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// Classify wraps err into a *Fault. Errors that already are faults pass through.
func Classify(op, addr string, err error) *Fault {
	if err == nil {
		return nil
	}
	var existing *Fault
	if errors.As(err, &existing) {
		return existing
	}
	return &Fault{Kind: kindOf(op, err), Op: op, Addr: addr, Err: err}
}

// KindOf reports the fault kind for any error, classifying on the fly.
func KindOf(err error) FaultKind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return kindOf("", err)
}

func kindOf(op string, err error) FaultKind {
	var (
		remote     *protocol.Fault
		dnsErr     *net.DNSError
		recordErr  tls.RecordHeaderError
		alertErr   tls.AlertError
		verifyErr  *tls.CertificateVerificationError
		unknownCA  x509.UnknownAuthorityError
		hostErr    x509.HostnameError
		invalidErr x509.CertificateInvalidError
		netErr     net.Error
	)
	switch {
	case errors.As(err, &remote):
		return FaultRemote
	case errors.Is(err, protocol.ErrEmptyResponse),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF):
		if op == OpHandshake {
			return FaultTLSHandshake
		}
		return FaultEmptyResponse
	case errors.Is(err, protocol.ErrMalformedEnvelope),
		errors.Is(err, protocol.ErrMessageTooLarge):
		return FaultMalformedResponse
	case errors.Is(err, syscall.ECONNREFUSED):
		return FaultConnectionRefused
	case errors.Is(err, syscall.EHOSTUNREACH),
		errors.Is(err, syscall.ENETUNREACH),
		errors.As(err, &dnsErr):
		return FaultHostUnreachable
	case errors.Is(err, syscall.EPIPE):
		return FaultBrokenPipe
	case errors.Is(err, syscall.ECONNRESET):
		return FaultConnectionReset
	case errors.As(err, &recordErr),
		errors.As(err, &alertErr),
		errors.As(err, &verifyErr),
		errors.As(err, &unknownCA),
		errors.As(err, &hostErr),
		errors.As(err, &invalidErr):
		return FaultTLSHandshake
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return FaultTimeout
	case op == OpHandshake:
		return FaultTLSHandshake
	default:
		return FaultUnknown
	}
}
