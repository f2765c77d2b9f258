package transport

import (
	"math"
	"math/rand/v2"
	"time"
)

// NextBackoffDelay returns the retry delay for attempt N (1-based). A nil rng
// draws jitter from the shared generator, which is safe for concurrent use.
func NextBackoffDelay(cfg BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	if cfg.InitialDelay <= 0 {
		return 0
	}
	delay := float64(cfg.InitialDelay)
	if attempt > 1 {
		if cfg.Multiplier < 1.0 {
			cfg.Multiplier = 1.0
		}
		delay = delay * math.Pow(cfg.Multiplier, float64(attempt-1))
	}
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	if cfg.Jitter {
		f := rand.Float64()
		if rng != nil {
			f = rng.Float64()
		}
		delay = delay * (0.5 + f)
	}
	return time.Duration(delay)
}
