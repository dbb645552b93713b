package audit

import (
	"context"
	"fmt"
	"time"
)

// Operation is the closed set of audited user-facing operations.
type Operation string

const (
	OpLogin    Operation = "login"
	OpRegister Operation = "register"
	OpList     Operation = "list"
	OpUpdate   Operation = "update"
	OpDelete   Operation = "delete"
	OpView     Operation = "view"
)

// Valid reports whether o is a known operation.
func (o Operation) Valid() bool {
	switch o {
	case OpLogin, OpRegister, OpList, OpUpdate, OpDelete, OpView:
		return true
	}
	return false
}

// Broadcast reports whether live observers are told about o.
// Views are durable-only.
func (o Operation) Broadcast() bool {
	return o.Valid() && o != OpView
}

// Event is created once an operation has committed. It is immutable.
type Event struct {
	Timestamp  time.Time `json:"timestamp"`
	ActorEmail string    `json:"actor_email"`
	Operation  Operation `json:"operation"`
	Detail     string    `json:"detail"`
	RequestID  string    `json:"request_id,omitempty"`
}

// Summary is the human-readable line shared by the log sink and notifications.
func (e Event) Summary() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s performed %s", e.ActorEmail, e.Operation)
	}
	return fmt.Sprintf("%s performed %s: %s", e.ActorEmail, e.Operation, e.Detail)
}

// Sink durably stores audit events.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// Notifier forwards a summary to live observers. Implementations must not block.
type Notifier interface {
	Notify(ctx context.Context, message string)
}
