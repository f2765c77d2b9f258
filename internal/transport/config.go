package transport

import "time"

// BackoffConfig defines the pause between retried attempts.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// TLSConfig controls the client side of the encrypted channel.
type TLSConfig struct {
	// VerifyChain enables certificate chain checks against CAFile. The zero
	// value leaves them off: controllers are trusted by network placement.
	VerifyChain bool
	CAFile             string
	ServerName         string
}

// Config defines dial and exchange timing for one binding.
type Config struct {
	ConnectTimeout   time.Duration
	HandshakeTimeout time.Duration
	// ReadTimeout bounds a response read only when the call context has no deadline.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Backoff      BackoffConfig
	TLS          TLSConfig
}

// DefaultConfig returns defaults for controller connections: a constant one
// second pause between retries. TLS chain verification stays off unless
// VerifyChain is set.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout:   5 * time.Second,
		HandshakeTimeout: 5 * time.Second,
		ReadTimeout:      30 * time.Second,
		WriteTimeout:     15 * time.Second,
		Backoff: BackoffConfig{
			InitialDelay: time.Second,
			Multiplier:   1.0,
			MaxDelay:     time.Second,
			Jitter:       false,
		},
	}
}

// WithDefaults fills zero durations from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.Backoff.InitialDelay <= 0 {
		c.Backoff = def.Backoff
	}
	return c
}
