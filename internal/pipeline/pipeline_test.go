package pipeline_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"logtap/internal/ambient"
	"logtap/internal/destructure"
	"logtap/internal/diag"
	"logtap/internal/enrich"
	"logtap/internal/event"
	"logtap/internal/pipeline"
	"logtap/internal/sink"
	"logtap/internal/template"
)

type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) sink(name string) sink.Sink {
	return sink.NewFunc(name, func(_ context.Context, batch []event.Event) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, batch...)
		return nil
	})
}

func (r *recorder) all() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.Event, len(r.events))
	copy(out, r.events)
	return out
}

func newTestPipeline(t *testing.T, opts pipeline.Options, rec *recorder) *pipeline.Pipeline {
	t.Helper()
	if opts.Diagnostics == nil {
		opts.Diagnostics = diag.New(32, nil)
	}
	if opts.Destructurer == nil {
		opts.Destructurer = destructure.New([]string{"password"}, opts.Diagnostics.DestructureFault)
	}
	w := sink.NewWorker(rec.sink("test"), sink.WorkerOptions{
		Capacity:     256,
		BatchSize:    8,
		BatchTimeout: 5 * time.Millisecond,
	}, opts.Diagnostics)
	return pipeline.New(opts, w)
}

func drain(t *testing.T, p *pipeline.Pipeline) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Close(ctx); err != nil {
		t.Fatalf("close pipeline: %v", err)
	}
}

func TestScopedEmissionScenario(t *testing.T) {
	var rec recorder
	p := newTestPipeline(t, pipeline.Options{
		DefaultMinimumLevel: event.LevelInformation,
	}, &rec)
	log := p.Logger("orders")

	ctx := ambient.Push(context.Background(), "TraceId", "abc123")
	log.Information(ctx, "Order {OrderId} total {Amount}", 456, 78.90)
	drain(t, p)

	events := rec.all()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if v, _ := e.Properties.Get("OrderId"); v != 456 {
		t.Fatalf("OrderId: %v", v)
	}
	if v, _ := e.Properties.Get("Amount"); v != 78.90 {
		t.Fatalf("Amount: %v", v)
	}
	if v, _ := e.Properties.Get("TraceId"); v != "abc123" {
		t.Fatalf("TraceId: %v", v)
	}
	rendered := template.Parse(e.MessageTemplate).Render(e.Properties)
	if rendered != "Order 456 total 78.9" {
		t.Fatalf("rendered message: %q", rendered)
	}
}

func TestLevelFilterWithLongestPrefixOverride(t *testing.T) {
	var rec recorder
	p := newTestPipeline(t, pipeline.Options{
		DefaultMinimumLevel: event.LevelWarning,
		LevelOverrides: map[string]event.Level{
			"billing":       event.LevelDebug,
			"billing.audit": event.LevelTrace,
		},
	}, &rec)

	if got := p.EffectiveLevel("orders"); got != event.LevelWarning {
		t.Fatalf("default: %v", got)
	}
	if got := p.EffectiveLevel("billing.invoices"); got != event.LevelDebug {
		t.Fatalf("prefix override: %v", got)
	}
	if got := p.EffectiveLevel("billing.audit.trail"); got != event.LevelTrace {
		t.Fatalf("longest prefix must win: %v", got)
	}

	p.Logger("orders").Information(context.Background(), "filtered out")
	p.Logger("billing.audit").Trace(context.Background(), "kept")
	drain(t, p)

	events := rec.all()
	if len(events) != 1 || events[0].MessageTemplate != "kept" {
		t.Fatalf("filtering wrong: %v", events)
	}
}

func TestConcurrentOperationsKeepDistinctTraceIDs(t *testing.T) {
	var rec recorder
	p := newTestPipeline(t, pipeline.Options{
		DefaultMinimumLevel: event.LevelInformation,
	}, &rec)
	log := p.Logger("ops")

	var wg sync.WaitGroup
	for _, id := range []string{"op-a", "op-b"} {
		id := id
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx := ambient.Push(context.Background(), "TraceId", id)
			for i := 0; i < 200; i++ {
				log.Information(ctx, "tick {N} from {Op}", i, id)
			}
		}()
	}
	wg.Wait()
	drain(t, p)

	for _, e := range rec.all() {
		op, _ := e.Properties.Get("Op")
		trace, _ := e.Properties.Get("TraceId")
		if op != trace {
			t.Fatalf("operation %v observed TraceId %v", op, trace)
		}
	}
}

func TestTrailingErrorBecomesException(t *testing.T) {
	var rec recorder
	p := newTestPipeline(t, pipeline.Options{
		DefaultMinimumLevel: event.LevelInformation,
	}, &rec)

	p.Logger("app").Error(context.Background(), "handling {Path} failed", "/orders", errors.New("db timeout"))
	drain(t, p)

	events := rec.all()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ex := events[0].Exception
	if ex == nil || ex.Message != "db timeout" {
		t.Fatalf("exception not captured: %+v", ex)
	}
	if v, _ := events[0].Properties.Get("Path"); v != "/orders" {
		t.Fatalf("placeholder arg consumed incorrectly: %v", v)
	}
}

func TestSensitiveCallSiteArgumentsAreMasked(t *testing.T) {
	var rec recorder
	p := newTestPipeline(t, pipeline.Options{
		DefaultMinimumLevel: event.LevelInformation,
	}, &rec)

	p.Logger("auth").Information(context.Background(), "login {Creds}",
		map[string]any{"user": "alice", "password": "hunter2"})
	drain(t, p)

	events := rec.all()
	creds, _ := events[0].Properties.Get("Creds")
	m, ok := creds.(map[string]any)
	if !ok {
		t.Fatalf("expected destructured map, got %T", creds)
	}
	if m["password"] != destructure.Redacted {
		t.Fatalf("password leaked: %v", m)
	}
}

func TestAmbientMappingsAreMaskedToo(t *testing.T) {
	var rec recorder
	p := newTestPipeline(t, pipeline.Options{
		DefaultMinimumLevel: event.LevelInformation,
		Enrichers:           []enrich.Enricher{enrich.Ambient{}},
	}, &rec)

	ctx := ambient.Push(context.Background(), "Session",
		map[string]any{"id": "s1", "password": "leaky"})
	p.Logger("auth").Information(ctx, "request")
	drain(t, p)

	session, _ := rec.all()[0].Properties.Get("Session")
	m, ok := session.(map[string]any)
	if !ok || m["password"] != destructure.Redacted {
		t.Fatalf("ambient mapping not masked: %v", session)
	}
}

func TestEmitAfterCloseIsIgnored(t *testing.T) {
	var rec recorder
	p := newTestPipeline(t, pipeline.Options{
		DefaultMinimumLevel: event.LevelInformation,
	}, &rec)
	drain(t, p)

	p.Logger("late").Information(context.Background(), "after close")
	if got := rec.all(); len(got) != 0 {
		t.Fatalf("event accepted after close: %v", got)
	}
}

func TestEmitNeverPanics(t *testing.T) {
	var rec recorder
	d := diag.New(32, nil)
	boom := destructure.New(nil, d.DestructureFault, func(v any) (any, bool) {
		panic("hostile policy")
	})
	p := newTestPipeline(t, pipeline.Options{
		DefaultMinimumLevel: event.LevelInformation,
		Destructurer:        boom,
		Diagnostics:         d,
	}, &rec)

	// Must not panic even though every destructure call blows up.
	p.Logger("app").Information(context.Background(), "value {V}", 42)
	drain(t, p)

	events := rec.all()
	if len(events) != 1 {
		t.Fatalf("event should survive policy failure, got %d", len(events))
	}
	if v, _ := events[0].Properties.Get("V"); v != destructure.ErrorMarker {
		t.Fatalf("expected error marker, got %v", v)
	}
	if d.Snapshot().DestructureFaults == 0 {
		t.Fatal("fault not recorded in diagnostics")
	}
}
