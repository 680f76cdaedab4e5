// Package sink implements the pipeline's delivery destinations and the
// per-sink async machinery.
//
// A Sink only knows how to deliver one batch. Everything around it (the
// bounded buffer, batch cutting, retry with backoff, overflow accounting)
// lives in Worker, so every sink kind shares the same failure-isolation and
// backpressure behavior. One Worker owns one Sink and one goroutine; sinks
// never share state, so a stalled destination cannot slow its neighbors or
// the emitting caller.
package sink
