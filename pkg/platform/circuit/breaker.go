// Package circuit tracks consecutive failures of a dependency.
package circuit

import "sync"

// Transition reports whether the last observation changed the breaker state.
type Transition int

const (
	Unchanged Transition = iota
	Opened
	Closed
)

// Breaker opens after FailureThreshold consecutive failures and closes again
// after SuccessThreshold consecutive successes. Callers keep using the
// dependency while the breaker is open; the state is informational.
type Breaker struct {
	name             string
	failureThreshold int
	successThreshold int

	mu        sync.Mutex
	open      bool
	failures  int
	successes int
}

type Option func(*Breaker)

// WithFailureThreshold sets the consecutive failures that open the breaker. Default 5.
func WithFailureThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.failureThreshold = n
		}
	}
}

// WithSuccessThreshold sets the consecutive successes that close it. Default 3.
func WithSuccessThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.successThreshold = n
		}
	}
}

func New(name string, opts ...Option) *Breaker {
	b := &Breaker{name: name, failureThreshold: 5, successThreshold: 3}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Breaker) Name() string { return b.name }

func (b *Breaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}

// Observe records the outcome of one call. A nil err is a success.
func (b *Breaker) Observe(err error) Transition {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failures++
		b.successes = 0
		if !b.open && b.failures >= b.failureThreshold {
			b.open = true
			return Opened
		}
		return Unchanged
	}

	b.failures = 0
	if !b.open {
		return Unchanged
	}
	b.successes++
	if b.successes >= b.successThreshold {
		b.open = false
		b.successes = 0
		return Closed
	}
	return Unchanged
}
