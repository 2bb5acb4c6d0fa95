package core

import (
	"fmt"
	"sync"
)

// Limiter enforces a maximum number of agent and judge invocations per run.
// A nil *Limiter allows everything.
type Limiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewLimiter creates a new limiter with a max number of invocations.
// If max == 0, unlimited invocations are allowed.
func NewLimiter(max int) *Limiter {
	return &Limiter{max: max}
}

// Increment increases the counter and returns ErrBudgetExceeded once the
// limit is passed.
func (l *Limiter) Increment() error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.count++
	if l.max > 0 && l.count > l.max {
		return fmt.Errorf("%w: max %d invocations", ErrBudgetExceeded, l.max)
	}

	return nil
}

// Count returns the number of invocations made so far.
func (l *Limiter) Count() int {
	if l == nil {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.count
}

// Remaining returns how many invocations are left, or -1 when unlimited.
func (l *Limiter) Remaining() int {
	if l == nil {
		return -1
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.max == 0 {
		return -1
	}

	if l.count >= l.max {
		return 0
	}

	return l.max - l.count
}
