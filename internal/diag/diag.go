// Package diag is the pipeline's sink of last resort. Internal failures
// (overflow drops, delivery exhaustion, destructuring faults) are counted
// and kept in a bounded in-memory buffer, and optionally written to a plain
// io.Writer. Nothing here feeds back into the monitored pipeline, so a
// failing sink can never recurse into itself.
package diag

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Kind classifies an incident.
type Kind string

const (
	KindOverflowDrop     Kind = "overflow_drop"
	KindDeliveryFailure  Kind = "delivery_failure"
	KindBatchAbandoned   Kind = "batch_abandoned"
	KindDestructureFault Kind = "destructure_fault"
	KindEmitFault        Kind = "emit_fault"
	KindShutdownLoss     Kind = "shutdown_loss"
)

// Incident is one recorded pipeline-internal failure.
type Incident struct {
	Time   time.Time
	Kind   Kind
	Sink   string
	Detail string
}

// SinkStats aggregates per-sink counters.
type SinkStats struct {
	Delivered uint64
	Dropped   uint64
	Failures  uint64
	Lost      uint64
}

// Stats is a point-in-time snapshot of all counters.
type Stats struct {
	Sinks             map[string]SinkStats
	DestructureFaults uint64
	EmitFaults        uint64
}

// Channel stores recent incidents in a bounded drop-oldest buffer and keeps
// monotonic counters. All methods are safe for concurrent use and never
// block the caller beyond the internal mutex.
type Channel struct {
	mu                sync.Mutex
	capacity          int
	buffer            []Incident
	sinks             map[string]*SinkStats
	destructureFaults uint64
	emitFaults        uint64
	writer            io.Writer
}

// New constructs a Channel keeping up to capacity incidents. writer, when
// non-nil, receives one line per incident best-effort (write errors are
// ignored; there is nowhere left to report them).
func New(capacity int, writer io.Writer) *Channel {
	if capacity <= 0 {
		capacity = 256
	}
	return &Channel{
		capacity: capacity,
		sinks:    make(map[string]*SinkStats),
		writer:   writer,
	}
}

func (c *Channel) record(inc Incident) {
	if inc.Time.IsZero() {
		inc.Time = time.Now().UTC()
	}
	c.mu.Lock()
	if len(c.buffer) == c.capacity {
		copy(c.buffer, c.buffer[1:])
		c.buffer = c.buffer[:c.capacity-1]
	}
	c.buffer = append(c.buffer, inc)
	writer := c.writer
	c.mu.Unlock()

	if writer != nil {
		fmt.Fprintf(writer, "logtap: %s sink=%s %s\n", inc.Kind, inc.Sink, inc.Detail)
	}
}

func (c *Channel) sinkStats(name string) *SinkStats {
	stats, ok := c.sinks[name]
	if !ok {
		stats = &SinkStats{}
		c.sinks[name] = stats
	}
	return stats
}

// Delivered counts n events successfully delivered by the named sink.
func (c *Channel) Delivered(sink string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.mu.Lock()
	c.sinkStats(sink).Delivered += uint64(n)
	c.mu.Unlock()
}

// OverflowDrop counts one event dropped because the sink's buffer was full.
func (c *Channel) OverflowDrop(sink string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.sinkStats(sink).Dropped++
	c.mu.Unlock()
	c.record(Incident{Kind: KindOverflowDrop, Sink: sink, Detail: "buffer full, event dropped"})
}

// DeliveryFailure records one failed delivery attempt.
func (c *Channel) DeliveryFailure(sink string, attempt int, err error) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.sinkStats(sink).Failures++
	c.mu.Unlock()
	c.record(Incident{
		Kind:   KindDeliveryFailure,
		Sink:   sink,
		Detail: fmt.Sprintf("attempt %d: %v", attempt, err),
	})
}

// BatchAbandoned records a batch dropped after the retry ceiling.
func (c *Channel) BatchAbandoned(sink string, size int, err error) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.sinkStats(sink).Lost += uint64(size)
	c.mu.Unlock()
	c.record(Incident{
		Kind:   KindBatchAbandoned,
		Sink:   sink,
		Detail: fmt.Sprintf("%d events dropped after retries: %v", size, err),
	})
}

// DestructureFault records a destructuring policy failure.
func (c *Channel) DestructureFault(err error) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.destructureFaults++
	c.mu.Unlock()
	c.record(Incident{Kind: KindDestructureFault, Detail: err.Error()})
}

// EmitFault records a failure inside the emit path itself.
func (c *Channel) EmitFault(err error) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.emitFaults++
	c.mu.Unlock()
	c.record(Incident{Kind: KindEmitFault, Detail: err.Error()})
}

// ShutdownLoss counts events still buffered when the flush deadline expired.
func (c *Channel) ShutdownLoss(sink string, count int) {
	if c == nil || count <= 0 {
		return
	}
	c.mu.Lock()
	c.sinkStats(sink).Lost += uint64(count)
	c.mu.Unlock()
	c.record(Incident{
		Kind:   KindShutdownLoss,
		Sink:   sink,
		Detail: fmt.Sprintf("%d events undelivered at shutdown", count),
	})
}

// Recent returns the buffered incidents in arrival order.
func (c *Channel) Recent() []Incident {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Incident, len(c.buffer))
	copy(out, c.buffer)
	return out
}

// Snapshot returns a copy of all counters.
func (c *Channel) Snapshot() Stats {
	stats := Stats{Sinks: make(map[string]SinkStats)}
	if c == nil {
		return stats
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, s := range c.sinks {
		stats.Sinks[name] = *s
	}
	stats.DestructureFaults = c.destructureFaults
	stats.EmitFaults = c.emitFaults
	return stats
}
