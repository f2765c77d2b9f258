package call

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/appctl/internal/transport"
)

// Kind names why a call failed.
type Kind string

const (
	KindAuthenticationRejected Kind = "authentication_rejected"
	KindProtocolRejected       Kind = "protocol_rejected"
	KindTransportFault         Kind = "transport_fault"
	KindTimeout                Kind = "timeout"
	KindApplicationFailure     Kind = "application_failure"
	KindCanceled               Kind = "canceled"
)

var (
	ErrAuthenticationRejected = errors.New("call: authentication rejected")
	ErrProtocolRejected       = errors.New("call: protocol rejected")
	ErrTransportFault         = errors.New("call: transport fault")
	ErrTimeout                = errors.New("call: deadline exceeded")
	ErrApplicationFailure     = errors.New("call: application failure")
	ErrCanceled               = errors.New("call: canceled")

	ErrInvalidDescriptor = errors.New("call: invalid descriptor")
	ErrInvokePanic       = errors.New("call: invocation panicked")
)

var kindSentinels = map[Kind]error{
	KindAuthenticationRejected: ErrAuthenticationRejected,
	KindProtocolRejected:       ErrProtocolRejected,
	KindTransportFault:         ErrTransportFault,
	KindTimeout:                ErrTimeout,
	KindApplicationFailure:     ErrApplicationFailure,
	KindCanceled:               ErrCanceled,
}

// FailedNode is the single error type surfaced for a controller call.
type FailedNode struct {
	Target    string
	Operation string
	Kind      Kind
	// Fault is the transport classification of the last failed attempt, if any.
	Fault    transport.FaultKind
	Attempts int
	Cause    error
}

func (f *FailedNode) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "call: %s on %s failed: %s", f.Operation, f.Target, f.Kind)
	if f.Fault != "" {
		fmt.Fprintf(&b, " (%s)", f.Fault)
	}
	if f.Attempts > 1 {
		fmt.Fprintf(&b, " after %d attempts", f.Attempts)
	}
	if f.Cause != nil {
		fmt.Fprintf(&b, ": %v", f.Cause)
	}
	return b.String()
}

func (f *FailedNode) Unwrap() error {
	return f.Cause
}

// Is matches the sentinel for the node's kind, so errors.Is(err, ErrTimeout)
// works without unpacking.
func (f *FailedNode) Is(target error) bool {
	sentinel, ok := kindSentinels[f.Kind]
	return ok && target == sentinel
}

// KindOf returns the failure kind carried by err.
func KindOf(err error) (Kind, bool) {
	var node *FailedNode
	if errors.As(err, &node) {
		return node.Kind, true
	}
	return "", false
}

// ApplicationFailure builds the failure a facade method reports when a
// successful response encodes an error by convention.
func ApplicationFailure(target, operation, message string) *FailedNode {
	return &FailedNode{
		Target:    target,
		Operation: operation,
		Kind:      KindApplicationFailure,
		Attempts:  1,
		Cause:     errors.New(message),
	}
}
