package clock

import (
	"sync"
	"time"
)

// Recorder is a Clock whose pauses complete immediately. Each requested
// duration is recorded and Now advances by it, so elapsed-time checks see
// the pauses as if they had been slept.
type Recorder struct {
	mu     sync.Mutex
	offset time.Duration
	pauses []time.Duration
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Now() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Now().Add(r.offset)
}

func (r *Recorder) After(d time.Duration) <-chan time.Time {
	r.mu.Lock()
	if d > 0 {
		r.offset += d
	}
	r.pauses = append(r.pauses, d)
	now := time.Now().Add(r.offset)
	r.mu.Unlock()

	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

// Pauses returns a copy of every duration passed to After.
func (r *Recorder) Pauses() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]time.Duration, len(r.pauses))
	copy(out, r.pauses)
	return out
}
