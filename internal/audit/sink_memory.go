package audit

import (
	"context"
	"sync"
)

// InMemorySink keeps events in process. Used by tests and local runs.
type InMemorySink struct {
	mu     sync.RWMutex
	events []Event
}

func NewInMemorySink() *InMemorySink {
	return &InMemorySink{}
}

func (s *InMemorySink) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of everything appended so far, oldest first.
func (s *InMemorySink) Events() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event(nil), s.events...)
}
