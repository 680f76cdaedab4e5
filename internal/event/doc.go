// Package event defines the immutable log record that flows through the
// pipeline.
//
// An Event is constructed once at the emit call site and never mutated
// afterwards: enrichment and masking produce overlays via With, because the
// same Event may be read concurrently by several sink workers. Properties
// preserve insertion order so rendered output and the wire encoding are
// stable.
package event
