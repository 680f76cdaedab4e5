package sink

import (
	"context"
	"time"

	"logtap/internal/event"
)

// Sink delivers batches of events to one destination. Deliver is called
// from the owning worker goroutine only; implementations do not need to be
// concurrency-safe across batches. Returning an error triggers the worker's
// retry policy for the whole batch.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, batch []event.Event) error
	Close() error
}

// OverflowPolicy selects which event is sacrificed when a worker's buffer
// is full.
type OverflowPolicy int

const (
	// DropNewest discards the incoming event. Default.
	DropNewest OverflowPolicy = iota
	// DropOldest discards the oldest buffered event to admit the new one.
	DropOldest
)

// ParseOverflow maps a config string to a policy, defaulting to DropNewest.
func ParseOverflow(value string) OverflowPolicy {
	if value == "drop-oldest" {
		return DropOldest
	}
	return DropNewest
}

// RetryPolicy governs re-delivery of a failed batch.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Func adapts a plain function into a Sink for custom destinations.
type Func struct {
	name    string
	deliver func(ctx context.Context, batch []event.Event) error
}

// NewFunc wraps deliver as a Sink.
func NewFunc(name string, deliver func(ctx context.Context, batch []event.Event) error) *Func {
	return &Func{name: name, deliver: deliver}
}

func (f *Func) Name() string { return f.name }

func (f *Func) Deliver(ctx context.Context, batch []event.Event) error {
	return f.deliver(ctx, batch)
}

func (f *Func) Close() error { return nil }
