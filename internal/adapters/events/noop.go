package events

import "go.trai.ch/gantry/internal/core/ports"

// NoopSink discards all events. It is the sink used when no event
// output was requested.
type NoopSink struct{}

var _ ports.EventSink = (*NoopSink)(nil)

// NewNoop returns a sink that discards everything.
func NewNoop() *NoopSink { return &NoopSink{} }

// Emit discards the event.
func (*NoopSink) Emit(string, any) {}

// Close does nothing.
func (*NoopSink) Close() error { return nil }
