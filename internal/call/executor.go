package call

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danmuck/appctl/internal/clock"
	"github.com/danmuck/appctl/internal/observability"
	"github.com/danmuck/appctl/internal/protocol"
	"github.com/danmuck/appctl/internal/transport"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Descriptor describes one call: what to invoke, how long it may take in
// total, and whether transport faults are retried.
type Descriptor struct {
	Operation string
	Deadline  time.Duration
	Retry     bool
	// Invoke performs exactly one remote exchange and returns the raw result.
	Invoke func(ctx context.Context) (protocol.Result, error)
}

type Config struct {
	// Target identifies the controller in logs, metrics and failures.
	Target  string
	Logger  *zerolog.Logger
	Clock   clock.Clock
	Backoff transport.BackoffConfig
	// MaxAttempts caps retried calls; 0 leaves them bounded by the deadline only.
	MaxAttempts int
}

// Executor applies the deadline and retry policy to calls against one target.
// It keeps no state between calls and is safe for concurrent use.
type Executor struct {
	target      string
	logger      zerolog.Logger
	clock       clock.Clock
	backoff     transport.BackoffConfig
	maxAttempts int
}

func New(cfg Config) *Executor {
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	backoff := cfg.Backoff
	if backoff.InitialDelay <= 0 {
		backoff = transport.DefaultConfig().Backoff
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 0 {
		maxAttempts = 0
	}
	return &Executor{
		target:      cfg.Target,
		logger:      logger.With().Str("component", "call").Str("target", cfg.Target).Logger(),
		clock:       clk,
		backoff:     backoff,
		maxAttempts: maxAttempts,
	}
}

// Target returns the controller this executor reports against.
func (e *Executor) Target() string {
	return e.target
}

// Execute runs d until it succeeds, is rejected, or fails for good. The
// result of a successful call is returned unchanged. Failures are *FailedNode.
func (e *Executor) Execute(ctx context.Context, d Descriptor) (protocol.Result, error) {
	if d.Invoke == nil || d.Deadline <= 0 {
		return nil, fmt.Errorf("%w: %q needs an invocation and a positive deadline", ErrInvalidDescriptor, d.Operation)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	start := e.clock.Now()
	logger := e.logger.With().
		Str("call_id", uuid.NewString()).
		Str("operation", d.Operation).
		Logger()

	callCtx, cancel := context.WithTimeout(ctx, d.Deadline)
	defer cancel()

	attempts := 0
	var lastErr error
	for {
		if e.clock.Now().Sub(start) >= d.Deadline {
			return nil, e.timedOut(logger, d, start, attempts, lastErr)
		}
		if callCtx.Err() != nil {
			return nil, e.interrupted(ctx, logger, d, start, attempts, lastErr)
		}

		attempts++
		result, err := e.attempt(callCtx, d.Invoke)
		if err == nil {
			if marker, ok := result.Sentinel(); ok {
				return nil, e.rejected(logger, d, start, attempts, marker)
			}
			observability.RecordCall(e.target, d.Operation, "ok", e.clock.Now().Sub(start))
			return result, nil
		}
		if callCtx.Err() != nil {
			return nil, e.interrupted(ctx, logger, d, start, attempts, lastErrOr(err, lastErr))
		}
		lastErr = err
		fault := transport.KindOf(err)

		if !d.Retry {
			logger.Warn().
				Err(err).
				Str("fault", string(fault)).
				Msg("call failed, retry disabled")
			return nil, e.fail(d, start, &FailedNode{
				Target: e.target, Operation: d.Operation, Kind: KindTransportFault,
				Fault: fault, Attempts: attempts, Cause: err,
			})
		}
		if e.maxAttempts > 0 && attempts >= e.maxAttempts {
			logger.Warn().
				Err(err).
				Str("fault", string(fault)).
				Int("attempts", attempts).
				Msg("call failed, attempts exhausted")
			return nil, e.fail(d, start, &FailedNode{
				Target: e.target, Operation: d.Operation, Kind: KindTransportFault,
				Fault: fault, Attempts: attempts, Cause: err,
			})
		}

		delay := transport.NextBackoffDelay(e.backoff, attempts, nil)
		logger.Debug().
			Str("fault", string(fault)).
			Int("attempt", attempts).
			Dur("pause", delay).
			Msg("transport fault, retrying")
		observability.RecordRetry(e.target, d.Operation, string(fault))

		select {
		case <-callCtx.Done():
			return nil, e.interrupted(ctx, logger, d, start, attempts, lastErr)
		case <-e.clock.After(delay):
		}
	}
}

type outcome struct {
	result protocol.Result
	err    error
}

// attempt runs invoke on its own goroutine so a transport that ignores ctx
// cannot hold the call past its deadline. An abandoned attempt finishes into
// the buffered channel and is dropped.
func (e *Executor) attempt(ctx context.Context, invoke func(context.Context) (protocol.Result, error)) (protocol.Result, error) {
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("%w: %v", ErrInvokePanic, r)}
			}
		}()
		result, err := invoke(ctx)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e *Executor) rejected(logger zerolog.Logger, d Descriptor, start time.Time, attempts int, marker string) error {
	kind := KindProtocolRejected
	if marker == protocol.BadSecretResponse {
		kind = KindAuthenticationRejected
	}
	logger.Warn().
		Str("marker", marker).
		Msg("controller rejected call")
	return e.fail(d, start, &FailedNode{
		Target: e.target, Operation: d.Operation, Kind: kind,
		Attempts: attempts, Cause: errors.New(marker),
	})
}

func (e *Executor) timedOut(logger zerolog.Logger, d Descriptor, start time.Time, attempts int, lastErr error) error {
	logger.Warn().
		Dur("deadline", d.Deadline).
		Int("attempts", attempts).
		Msg("call timed out")
	cause := fmt.Errorf("no outcome within %s", d.Deadline)
	if lastErr != nil {
		cause = fmt.Errorf("no outcome within %s, last fault: %w", d.Deadline, lastErr)
	}
	node := &FailedNode{
		Target: e.target, Operation: d.Operation, Kind: KindTimeout,
		Attempts: attempts, Cause: cause,
	}
	if lastErr != nil {
		node.Fault = transport.KindOf(lastErr)
	}
	return e.fail(d, start, node)
}

// interrupted reports a call whose context ended. Cancellation of the
// caller's context is KindCanceled; any expired deadline is KindTimeout.
func (e *Executor) interrupted(parent context.Context, logger zerolog.Logger, d Descriptor, start time.Time, attempts int, lastErr error) error {
	if !errors.Is(parent.Err(), context.Canceled) {
		return e.timedOut(logger, d, start, attempts, lastErr)
	}
	logger.Warn().
		Int("attempts", attempts).
		Msg("call canceled")
	node := &FailedNode{
		Target: e.target, Operation: d.Operation, Kind: KindCanceled,
		Attempts: attempts, Cause: parent.Err(),
	}
	if lastErr != nil {
		node.Fault = transport.KindOf(lastErr)
	}
	return e.fail(d, start, node)
}

func (e *Executor) fail(d Descriptor, start time.Time, node *FailedNode) error {
	observability.RecordCall(e.target, d.Operation, string(node.Kind), e.clock.Now().Sub(start))
	return node
}

// lastErrOr keeps the transport fault seen before a context error.
func lastErrOr(err, prev error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		if prev != nil {
			return prev
		}
	}
	return err
}
