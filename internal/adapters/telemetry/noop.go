// Package telemetry provides the no-op implementation of the telemetry
// port. The recording implementation lives in the progrock subpackage.
package telemetry

import (
	"context"
	"io"

	"go.trai.ch/gantry/internal/core/domain"
	"go.trai.ch/gantry/internal/core/ports"
)

// Noop is a telemetry implementation that records nothing.
type Noop struct{}

var _ ports.Telemetry = (*Noop)(nil)

// NewNoop creates a new no-op telemetry.
func NewNoop() *Noop {
	return &Noop{}
}

// Record returns the context unchanged and a vertex that discards everything.
func (t *Noop) Record(ctx context.Context, _ string, _ ...ports.VertexOption) (context.Context, ports.Vertex) {
	return ctx, &NoopVertex{}
}

// Close does nothing.
func (t *Noop) Close() error { return nil }

// NoopVertex is a vertex that discards all recorded data.
type NoopVertex struct{}

var _ ports.Vertex = (*NoopVertex)(nil)

// Stdout returns a writer that discards everything.
func (v *NoopVertex) Stdout() io.Writer { return io.Discard }

// Stderr returns a writer that discards everything.
func (v *NoopVertex) Stderr() io.Writer { return io.Discard }

// Log does nothing.
func (v *NoopVertex) Log(_ domain.LogLevel, _ string) {}

// Complete does nothing.
func (v *NoopVertex) Complete(_ error) {}

// Cached does nothing.
func (v *NoopVertex) Cached() {}
