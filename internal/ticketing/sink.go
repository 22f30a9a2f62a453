package ticketing

import "time"

// Sink observes every request the client makes. It replaces the old
// patched-global debug console: observers are injected, never ambient.
type Sink interface {
	ObserveRequest(operation, outcome string, elapsed time.Duration)
}

// NopSink discards all observations.
type NopSink struct{}

func (NopSink) ObserveRequest(string, string, time.Duration) {}
