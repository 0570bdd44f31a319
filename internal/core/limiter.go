package core

// limiter.go bounds how many merge runs execute at once.
//
// A run holds a slot for its whole duration. When every slot is taken a new
// run waits up to maxWait and then fails with ErrTooBusy. WaitForDrain lets
// shutdown block until in-flight runs finish.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooBusy is returned when no merge slot frees up within the wait time.
var ErrTooBusy = errors.New("too many merges in progress")

// DefaultMaxConcurrent is the default number of parallel merge runs.
const DefaultMaxConcurrent = 4

// DefaultMaxWait is how long a run waits for a slot before giving up.
const DefaultMaxWait = 30 * time.Second

// Limiter is a counting semaphore for merge runs.
type Limiter struct {
	slots   chan struct{}
	maxWait time.Duration

	mu     sync.RWMutex
	active int
	drain  chan struct{}
}

// NewLimiter allows at most maxConcurrent runs at a time.
func NewLimiter(maxConcurrent int, maxWait time.Duration) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}

	return &Limiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire takes a slot, waiting up to the limiter's max wait.
// Callers must Release exactly once after a nil return.
func (l *Limiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil
	case <-timer.C:
		return ErrTooBusy
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire takes a slot only if one is free right now.
func (l *Limiter) TryAcquire() bool {
	select {
	case l.slots <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return true
	default:
		return false
	}
}

// Release returns a slot.
func (l *Limiter) Release() {
	l.mu.Lock()
	l.active--
	if l.active == 0 && l.drain != nil {
		close(l.drain)
		l.drain = nil
	}
	l.mu.Unlock()

	<-l.slots
}

// Active returns the number of runs holding a slot.
func (l *Limiter) Active() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// WaitForDrain blocks until no run holds a slot or ctx ends.
func (l *Limiter) WaitForDrain(ctx context.Context) error {
	l.mu.Lock()
	if l.active == 0 {
		l.mu.Unlock()
		return nil
	}
	if l.drain == nil {
		l.drain = make(chan struct{})
	}
	drained := l.drain
	l.mu.Unlock()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LimiterStatus is a snapshot of limiter state.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"maxConcurrent"`
}

// Status returns the current limiter state.
func (l *Limiter) Status() LimiterStatus {
	active := l.Active()
	return LimiterStatus{
		Active:        active,
		Available:     cap(l.slots) - active,
		MaxConcurrent: cap(l.slots),
	}
}
