// Package enrich attaches ambient and process-level properties to events.
// Enrichers never overwrite a property the call site set explicitly: an
// explicit argument is a more specific signal than ambient context.
package enrich

import (
	"context"
	"os"
	"strconv"

	"logtap/internal/ambient"
	"logtap/internal/event"
)

// Standardized enrichment property names.
const (
	FieldHost        = "Host"
	FieldPid         = "Pid"
	FieldEnvironment = "Environment"
)

// Enricher adds properties to an event's property set, returning the
// (possibly extended) set.
type Enricher interface {
	Enrich(ctx context.Context, props event.Properties) event.Properties
}

// Ambient copies the context's ambient property snapshot onto the event.
type Ambient struct{}

func (Ambient) Enrich(ctx context.Context, props event.Properties) event.Properties {
	for _, p := range ambient.Snapshot(ctx).All() {
		props = props.SetIfAbsent(p.Name, p.Value)
	}
	return props
}

// Process attaches static process identity, resolved once at construction.
type Process struct {
	host        string
	pid         string
	environment string
}

// NewProcess resolves the process properties. environment names the deploy
// environment (development, staging, production).
func NewProcess(environment string) *Process {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return &Process{
		host:        host,
		pid:         strconv.Itoa(os.Getpid()),
		environment: environment,
	}
}

func (p *Process) Enrich(_ context.Context, props event.Properties) event.Properties {
	props = props.SetIfAbsent(FieldHost, p.host)
	props = props.SetIfAbsent(FieldPid, p.pid)
	if p.environment != "" {
		props = props.SetIfAbsent(FieldEnvironment, p.environment)
	}
	return props
}
