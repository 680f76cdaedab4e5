package relay_test

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"logtap/internal/config"
	"logtap/internal/correlation"
	"logtap/internal/destructure"
	"logtap/internal/diag"
	"logtap/internal/enrich"
	"logtap/internal/event"
	"logtap/internal/pipeline"
	"logtap/internal/relay"
	"logtap/internal/sink"
)

type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) all() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.Event, len(r.events))
	copy(out, r.events)
	return out
}

func startRelay(t *testing.T) (*recorder, *pipeline.Pipeline, string, func()) {
	t.Helper()
	rec := &recorder{}
	d := diag.New(32, nil)
	w := sink.NewWorker(sink.NewFunc("capture", func(_ context.Context, batch []event.Event) error {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		rec.events = append(rec.events, batch...)
		return nil
	}), sink.WorkerOptions{Capacity: 64, BatchSize: 4, BatchTimeout: 5 * time.Millisecond}, d)

	p := pipeline.New(pipeline.Options{
		DefaultMinimumLevel: event.LevelInformation,
		Destructurer:        destructure.New([]string{"password"}, d.DestructureFault),
		Enrichers:           []enrich.Enricher{enrich.Ambient{}},
		Diagnostics:         d,
	}, w)

	cfg := config.Default()
	cfg.Relay.Bind = "127.0.0.1:0"

	srv := relay.New(&cfg, p, nil)
	ctx, cancel := context.WithCancel(context.Background())
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("start relay: %v", err)
	}

	stop := func() {
		cancel()
		srv.Stop()
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		_ = p.Close(closeCtx)
	}
	return rec, p, "http://" + srv.Addr(), stop
}

func TestIngestSingleEvent(t *testing.T) {
	rec, p, base, stop := startRelay(t)
	defer stop()

	body := `{"level":"Warning","source":"billing","message":"invoice {Id} overdue","properties":{"Id":17}}`
	resp, err := http.Post(base+"/ingest", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if resp.Header.Get(correlation.DefaultHeader) == "" {
		t.Fatal("response missing correlation header")
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = p.Close(flushCtx)

	events := rec.all()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.Level != event.LevelWarning || e.SourceContext != "billing" {
		t.Fatalf("unexpected event: %+v", e)
	}
	if id, _ := e.Properties.Get("Id"); id != float64(17) {
		t.Fatalf("property Id: %v", id)
	}
	if _, ok := e.Properties.Get(correlation.PropertyName); !ok {
		t.Fatal("ingested event missing correlation identifier")
	}
}

func TestIngestArrayAndInboundCorrelation(t *testing.T) {
	rec, p, base, stop := startRelay(t)
	defer stop()

	body := `[{"level":"Information","message":"a"},{"level":"Error","message":"b"}]`
	req, _ := http.NewRequest(http.MethodPost, base+"/ingest", strings.NewReader(body))
	req.Header.Set(correlation.DefaultHeader, "batch-7")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close() //nolint:errcheck

	if got := resp.Header.Get(correlation.DefaultHeader); got != "batch-7" {
		t.Fatalf("correlation not echoed: %q", got)
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = p.Close(flushCtx)

	events := rec.all()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	for _, e := range events {
		if id, _ := e.Properties.Get(correlation.PropertyName); id != "batch-7" {
			t.Fatalf("event missing inbound correlation id: %v", id)
		}
	}
}

func TestIngestRejectsBadPayload(t *testing.T) {
	_, _, base, stop := startRelay(t)
	defer stop()

	resp, err := http.Post(base+"/ingest", "application/json", strings.NewReader("not json"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	_, _, base, stop := startRelay(t)
	defer stop()

	resp, err := http.Get(base + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
}
