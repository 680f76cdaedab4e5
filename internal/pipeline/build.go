package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"logtap/internal/config"
	"logtap/internal/destructure"
	"logtap/internal/diag"
	"logtap/internal/enrich"
	"logtap/internal/event"
	"logtap/internal/sink"
)

// Build constructs a Pipeline from process configuration: one worker per
// configured sink, the masking destructurer, and the standard ambient and
// process enrichers. diagWriter receives last-resort incident lines; nil
// means stderr.
func Build(cfg config.Config, diagWriter io.Writer) (*Pipeline, error) {
	if diagWriter == nil {
		diagWriter = os.Stderr
	}
	diagCh := diag.New(cfg.Pipeline.DiagnosticCapacity, diagWriter)

	workers := make([]*sink.Worker, 0, len(cfg.Sinks))
	for _, sc := range cfg.Sinks {
		s, err := buildSink(sc)
		if err != nil {
			// Undo the workers already started.
			for _, w := range workers {
				_ = w.Close(closedContext())
			}
			return nil, err
		}
		workers = append(workers, sink.NewWorker(s, workerOptions(sc), diagCh))
	}

	overrides := make(map[string]event.Level, len(cfg.Pipeline.LevelOverrides))
	for prefix, level := range cfg.Pipeline.LevelOverrides {
		overrides[prefix] = event.ParseLevel(level)
	}

	opts := Options{
		DefaultMinimumLevel: event.ParseLevel(cfg.Pipeline.DefaultMinimumLevel),
		LevelOverrides:      overrides,
		Destructurer:        destructure.New(cfg.Pipeline.SensitiveKeys, diagCh.DestructureFault),
		Enrichers: []enrich.Enricher{
			enrich.Ambient{},
			enrich.NewProcess(cfg.Pipeline.Environment),
		},
		Diagnostics: diagCh,
	}
	return New(opts, workers...), nil
}

func buildSink(sc config.Sink) (sink.Sink, error) {
	switch sc.Kind {
	case "console":
		return sink.NewConsole(sc.Name, os.Stdout), nil
	case "file":
		return sink.NewFile(sc.Name, sc.Path)
	case "sqlite":
		return sink.NewSQLite(sc.Name, sc.Path)
	case "remote":
		client := &http.Client{Timeout: time.Duration(sc.BatchTimeoutMS) * time.Millisecond * 5}
		return sink.NewRemote(sc.Name, sc.Endpoint, client), nil
	default:
		return nil, fmt.Errorf("sink %s: unknown kind %q", sc.Name, sc.Kind)
	}
}

func closedContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

func workerOptions(sc config.Sink) sink.WorkerOptions {
	// An unset sink level adds no filtering beyond the global filter.
	minimum := event.LevelTrace
	if sc.MinimumLevel != "" {
		minimum = event.ParseLevel(sc.MinimumLevel)
	}
	return sink.WorkerOptions{
		MinimumLevel: minimum,
		Capacity:     sc.BufferCapacity,
		BatchSize:    sc.BatchSize,
		BatchTimeout: time.Duration(sc.BatchTimeoutMS) * time.Millisecond,
		Overflow:     sink.ParseOverflow(sc.Overflow),
		Retry: sink.RetryPolicy{
			MaxAttempts: sc.Retry.MaxAttempts,
			BaseDelay:   time.Duration(sc.Retry.BaseDelayMS) * time.Millisecond,
			MaxDelay:    time.Duration(sc.Retry.MaxDelayMS) * time.Millisecond,
		},
	}
}
