package sink

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"logtap/internal/diag"
	"logtap/internal/event"
)

// WorkerOptions configures one sink's buffering and delivery behavior.
type WorkerOptions struct {
	MinimumLevel event.Level
	Capacity     int
	BatchSize    int
	BatchTimeout time.Duration
	Overflow     OverflowPolicy
	Retry        RetryPolicy
}

// Worker owns one sink: a bounded buffer filled by Enqueue and a single
// goroutine that cuts batches and delivers them with retry. Enqueue never
// blocks; a full buffer drops per the overflow policy and counts the drop.
type Worker struct {
	sink Sink
	opts WorkerOptions
	diag *diag.Channel

	mu      sync.Mutex
	buf     []event.Event
	firstAt time.Time
	closing bool

	wake   chan struct{}
	stop   chan struct{}
	done   chan struct{}
	cancel context.CancelFunc
}

// NewWorker starts the delivery goroutine for sink.
func NewWorker(s Sink, opts WorkerOptions, diagCh *diag.Channel) *Worker {
	if opts.Capacity <= 0 {
		opts.Capacity = 1024
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.BatchTimeout <= 0 {
		opts.BatchTimeout = 2 * time.Second
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry.MaxAttempts = 1
	}
	if opts.Retry.BaseDelay <= 0 {
		opts.Retry.BaseDelay = 100 * time.Millisecond
	}
	if opts.Retry.MaxDelay < opts.Retry.BaseDelay {
		opts.Retry.MaxDelay = opts.Retry.BaseDelay
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		sink:   s,
		opts:   opts,
		diag:   diagCh,
		buf:    make([]event.Event, 0, opts.Capacity),
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go w.run(ctx)
	return w
}

// Name returns the wrapped sink's name.
func (w *Worker) Name() string { return w.sink.Name() }

// MinimumLevel returns the sink's own level floor.
func (w *Worker) MinimumLevel() event.Level { return w.opts.MinimumLevel }

// Enqueue submits one event without blocking. Events below the sink's
// minimum level and events arriving after Close begins are ignored.
func (w *Worker) Enqueue(e event.Event) {
	if e.Level < w.opts.MinimumLevel {
		return
	}
	w.mu.Lock()
	if w.closing {
		w.mu.Unlock()
		return
	}
	if len(w.buf) >= w.opts.Capacity {
		if w.opts.Overflow == DropNewest {
			w.mu.Unlock()
			w.diag.OverflowDrop(w.sink.Name())
			return
		}
		copy(w.buf, w.buf[1:])
		w.buf = w.buf[:len(w.buf)-1]
		defer w.diag.OverflowDrop(w.sink.Name())
	}
	if len(w.buf) == 0 {
		w.firstAt = time.Now()
	}
	w.buf = append(w.buf, e)
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Close stops intake, drains buffered events within ctx's deadline, then
// closes the sink. Events still undelivered when the deadline expires are
// dropped and counted.
func (w *Worker) Close(ctx context.Context) error {
	w.mu.Lock()
	alreadyClosing := w.closing
	w.closing = true
	w.mu.Unlock()

	if !alreadyClosing {
		close(w.stop)
	}

	select {
	case <-w.done:
	case <-ctx.Done():
		// Deadline hit: abort in-flight delivery and count what remains.
		w.cancel()
		<-w.done
	}

	w.mu.Lock()
	remaining := len(w.buf)
	w.buf = nil
	w.mu.Unlock()
	w.diag.ShutdownLoss(w.sink.Name(), remaining)

	return w.sink.Close()
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)
	for {
		batch, wait, idle := w.takeBatch()
		if len(batch) > 0 {
			w.deliver(ctx, batch)
			continue
		}
		if idle {
			// Nothing buffered; leave once close began.
			select {
			case <-w.stop:
				// Re-check: an Enqueue may have landed before closing was set.
				if batch, _, _ := w.takeBatch(); len(batch) > 0 {
					w.deliver(ctx, batch)
					continue
				}
				return
			case <-w.wake:
				continue
			case <-ctx.Done():
				return
			}
		}
		// Batch open but not full: wait out the batch timeout.
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-w.wake:
			timer.Stop()
		case <-w.stop:
			timer.Stop()
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// takeBatch cuts a batch when one is due: the buffer holds a full batch,
// the batch timeout elapsed since the first buffered event, or the worker
// is draining for close. Otherwise it reports how long the open batch may
// still wait (idle=true when the buffer is empty).
func (w *Worker) takeBatch() (batch []event.Event, wait time.Duration, idle bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.buf) == 0 {
		return nil, 0, true
	}

	due := len(w.buf) >= w.opts.BatchSize || w.closing
	if !due {
		elapsed := time.Since(w.firstAt)
		if elapsed >= w.opts.BatchTimeout {
			due = true
		} else {
			return nil, w.opts.BatchTimeout - elapsed, false
		}
	}

	n := len(w.buf)
	if n > w.opts.BatchSize {
		n = w.opts.BatchSize
	}
	batch = make([]event.Event, n)
	copy(batch, w.buf[:n])
	w.buf = append(w.buf[:0], w.buf[n:]...)
	if len(w.buf) > 0 {
		w.firstAt = time.Now()
	}
	return batch, 0, false
}

func (w *Worker) deliver(ctx context.Context, batch []event.Event) {
	var lastErr error
	for attempt := 1; attempt <= w.opts.Retry.MaxAttempts; attempt++ {
		lastErr = w.sink.Deliver(ctx, batch)
		if lastErr == nil {
			w.diag.Delivered(w.sink.Name(), len(batch))
			return
		}
		w.diag.DeliveryFailure(w.sink.Name(), attempt, lastErr)
		if attempt == w.opts.Retry.MaxAttempts {
			break
		}
		if !w.sleep(ctx, w.backoff(attempt)) {
			break
		}
	}
	w.diag.BatchAbandoned(w.sink.Name(), len(batch), lastErr)
}

// backoff returns the delay before the next attempt: exponential in the
// attempt number with full jitter, capped at MaxDelay.
func (w *Worker) backoff(attempt int) time.Duration {
	ceiling := w.opts.Retry.BaseDelay << (attempt - 1)
	if ceiling > w.opts.Retry.MaxDelay || ceiling <= 0 {
		ceiling = w.opts.Retry.MaxDelay
	}
	return time.Duration(rand.Int63n(int64(ceiling)) + 1)
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
