package controller

import (
	"errors"
	"strings"
	"time"

	"github.com/danmuck/appctl/internal/clock"
	"github.com/danmuck/appctl/internal/protocol"
	"github.com/danmuck/appctl/internal/transport"
	"github.com/rs/zerolog"
)

// Port is the fixed controller listening port.
const Port = protocol.Port

var (
	ErrHostRequired   = errors.New("controller: host required")
	ErrSecretRequired = errors.New("controller: secret required")
)

// Timeouts are the per-call deadlines. Unbounded stands in for "no timeout"
// and stays finite so every call keeps an upper bound.
type Timeouts struct {
	Short     time.Duration
	Long      time.Duration
	Unbounded time.Duration
}

func DefaultTimeouts() Timeouts {
	return Timeouts{
		Short:     10 * time.Second,
		Long:      30 * time.Second,
		Unbounded: 100000 * time.Second,
	}
}

func (t Timeouts) withDefaults() Timeouts {
	def := DefaultTimeouts()
	if t.Short <= 0 {
		t.Short = def.Short
	}
	if t.Long <= 0 {
		t.Long = def.Long
	}
	if t.Unbounded <= 0 {
		t.Unbounded = def.Unbounded
	}
	return t
}

// Policy returns the deadline and retry flag for an operation.
func (t Timeouts) Policy(operation string) (time.Duration, bool) {
	t = t.withDefaults()
	switch operation {
	case protocol.MethodSetParameters:
		return t.Short, false
	case protocol.MethodUploadApp,
		protocol.MethodGetClusterStats,
		protocol.MethodGetNodeStats:
		return t.Long, true
	case protocol.MethodGetProperty,
		protocol.MethodSetProperty,
		protocol.MethodSetNodeReadOnly,
		protocol.MethodPrimaryDBIsUp:
		return t.Unbounded, true
	default:
		return t.Short, true
	}
}

type Config struct {
	Host      string
	Secret    string
	Timeouts  Timeouts
	Transport transport.Config
	// MaxAttempts caps retried calls; 0 means only the deadline bounds them.
	MaxAttempts int
	Logger      *zerolog.Logger
	Clock       clock.Clock
}

func DefaultConfig() Config {
	return Config{
		Timeouts:  DefaultTimeouts(),
		Transport: transport.DefaultConfig(),
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return ErrHostRequired
	}
	if c.Secret == "" {
		return ErrSecretRequired
	}
	return nil
}
