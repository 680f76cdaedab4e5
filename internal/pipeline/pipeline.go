// Package pipeline assembles the stages of the event logging pipeline:
// level filter, destructuring, enrichment, and sink fan-out.
//
// Emitting is fire-and-forget. No failure in any stage may reach the
// caller: panics are absorbed into the diagnostic channel and the event is
// dropped. Construct one Pipeline at process start, hand it to every
// component that logs, and Close it with a deadline at shutdown.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"logtap/internal/destructure"
	"logtap/internal/diag"
	"logtap/internal/enrich"
	"logtap/internal/event"
	"logtap/internal/sink"
	"logtap/internal/template"
)

// Options configures a Pipeline.
type Options struct {
	DefaultMinimumLevel event.Level
	// LevelOverrides maps a source-context prefix to a minimum level. The
	// longest matching prefix wins.
	LevelOverrides map[string]event.Level
	Destructurer   *destructure.Destructurer
	Enrichers      []enrich.Enricher
	Diagnostics    *diag.Channel
}

type override struct {
	prefix string
	level  event.Level
}

// Pipeline routes emitted events through filtering, destructuring, and
// enrichment into every configured sink worker.
type Pipeline struct {
	opts      Options
	overrides []override
	workers   []*sink.Worker
	closed    atomic.Bool
}

// New builds a Pipeline over the given workers. A nil destructurer gets a
// default with no sensitive keys.
func New(opts Options, workers ...*sink.Worker) *Pipeline {
	if opts.Destructurer == nil {
		opts.Destructurer = destructure.New(nil, opts.Diagnostics.DestructureFault)
	}
	overrides := make([]override, 0, len(opts.LevelOverrides))
	for prefix, level := range opts.LevelOverrides {
		overrides = append(overrides, override{prefix: prefix, level: level})
	}
	// Longest prefix first so the first match is the most specific.
	sort.Slice(overrides, func(i, j int) bool {
		if len(overrides[i].prefix) != len(overrides[j].prefix) {
			return len(overrides[i].prefix) > len(overrides[j].prefix)
		}
		return overrides[i].prefix < overrides[j].prefix
	})
	return &Pipeline{opts: opts, overrides: overrides, workers: workers}
}

// EffectiveLevel returns the minimum level applied to events from source.
func (p *Pipeline) EffectiveLevel(source string) event.Level {
	for _, o := range p.overrides {
		if strings.HasPrefix(source, o.prefix) {
			return o.level
		}
	}
	return p.opts.DefaultMinimumLevel
}

// Diagnostics exposes the pipeline's self-diagnostic channel.
func (p *Pipeline) Diagnostics() *diag.Channel {
	return p.opts.Diagnostics
}

// Logger binds a source context for emission. Loggers are cheap and safe
// to share.
type Logger struct {
	p      *Pipeline
	source string
}

// Logger returns an emitter whose events carry the given source context.
func (p *Pipeline) Logger(source string) *Logger {
	return &Logger{p: p, source: source}
}

func (l *Logger) Trace(ctx context.Context, tmpl string, args ...any) {
	l.Write(ctx, event.LevelTrace, tmpl, args...)
}

func (l *Logger) Debug(ctx context.Context, tmpl string, args ...any) {
	l.Write(ctx, event.LevelDebug, tmpl, args...)
}

func (l *Logger) Information(ctx context.Context, tmpl string, args ...any) {
	l.Write(ctx, event.LevelInformation, tmpl, args...)
}

func (l *Logger) Warning(ctx context.Context, tmpl string, args ...any) {
	l.Write(ctx, event.LevelWarning, tmpl, args...)
}

func (l *Logger) Error(ctx context.Context, tmpl string, args ...any) {
	l.Write(ctx, event.LevelError, tmpl, args...)
}

func (l *Logger) Fatal(ctx context.Context, tmpl string, args ...any) {
	l.Write(ctx, event.LevelFatal, tmpl, args...)
}

// Write emits one event. Template placeholders consume args positionally;
// an unconsumed error arg becomes the event's exception; other surplus
// args are attached as ArgN properties. Write never panics and never
// blocks on sink delivery.
func (l *Logger) Write(ctx context.Context, level event.Level, tmpl string, args ...any) {
	l.p.emit(ctx, level, l.source, tmpl, args)
}

func (p *Pipeline) emit(ctx context.Context, level event.Level, source, raw string, args []any) {
	defer func() {
		if r := recover(); r != nil {
			p.opts.Diagnostics.EmitFault(fmt.Errorf("emit panic: %v", r))
		}
	}()

	if p.closed.Load() {
		return
	}
	// Cheap pre-check before any parsing or allocation.
	if level < p.EffectiveLevel(source) {
		return
	}

	tmpl := template.Parse(raw)
	e := event.New(level, raw, source)
	e = e.WithProperties(p.bindArgs(tmpl, args, &e))
	p.finish(ctx, e)
}

// Emit submits an event with pre-named properties, bypassing positional
// argument binding. Used by ingest surfaces that already carry structured
// properties. Same guarantees as Logger.Write: never panics, never blocks.
func (p *Pipeline) Emit(ctx context.Context, level event.Level, source, raw string, props ...event.Property) {
	defer func() {
		if r := recover(); r != nil {
			p.opts.Diagnostics.EmitFault(fmt.Errorf("emit panic: %v", r))
		}
	}()

	if p.closed.Load() {
		return
	}
	if level < p.EffectiveLevel(source) {
		return
	}

	e := event.New(level, raw, source)
	var bound event.Properties
	for _, prop := range props {
		bound = bound.Set(prop.Name, p.opts.Destructurer.Value(prop.Value))
	}
	e = e.WithProperties(bound)
	p.finish(ctx, e)
}

func (p *Pipeline) finish(ctx context.Context, e event.Event) {
	props := e.Properties
	for _, enricher := range p.opts.Enrichers {
		props = enricher.Enrich(ctx, props)
	}
	e = e.WithProperties(p.maskEnriched(e.Properties, props))

	for _, w := range p.workers {
		w.Enqueue(e)
	}
}

// bindArgs matches args to template placeholders in order of first
// appearance, destructuring each value (deep when the placeholder carries
// the @ hint). Surplus args: the first unconsumed error becomes the
// exception; the rest attach as ArgN.
func (p *Pipeline) bindArgs(tmpl template.Template, args []any, e *event.Event) event.Properties {
	deepHint := make(map[string]bool)
	for _, tok := range tmpl.Tokens {
		if tok.Name != "" && tok.Deep {
			deepHint[tok.Name] = true
		}
	}

	var props event.Properties
	names := tmpl.PropertyNames()
	n := len(names)
	if n > len(args) {
		n = len(args)
	}
	for i := 0; i < n; i++ {
		value := args[i]
		if deepHint[names[i]] {
			value = p.opts.Destructurer.Deep(value)
		} else {
			value = p.opts.Destructurer.Value(value)
		}
		props = props.Set(names[i], value)
	}

	for i := n; i < len(args); i++ {
		if err, ok := args[i].(error); ok && e.Exception == nil {
			*e = e.WithException(event.CaptureException(err, 3))
			continue
		}
		props = props.Set(fmt.Sprintf("Arg%d", i), p.opts.Destructurer.Value(args[i]))
	}
	return props
}

// maskEnriched runs enrichment-added values through the destructurer so
// sensitive keys inside ambient mappings get the same redaction as
// call-site arguments. Call-site values (already destructured) pass
// through untouched.
func (p *Pipeline) maskEnriched(callSite, enriched event.Properties) event.Properties {
	out := callSite
	for _, prop := range enriched.All() {
		if _, ok := callSite.Get(prop.Name); ok {
			continue
		}
		out = out.Set(prop.Name, p.opts.Destructurer.Value(prop.Value))
	}
	return out
}

// Close stops intake and flushes every sink within ctx's deadline. Sinks
// close concurrently; one sink's slow drain does not serialize behind
// another's. The first close error is returned after all sinks finish.
func (p *Pipeline) Close(ctx context.Context) error {
	if p.closed.Swap(true) {
		return nil
	}
	var wg sync.WaitGroup
	errs := make([]error, len(p.workers))
	for i, w := range p.workers {
		i, w := i, w
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = w.Close(ctx)
		}()
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
