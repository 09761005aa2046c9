// Package telemetry provides telemetry adapters that do not depend on a backend.
package telemetry

import (
	"context"
	"io"

	"go.trai.ch/pgo/internal/core/domain"
	"go.trai.ch/pgo/internal/core/ports"
)

// NoOp is a no-op implementation of ports.Telemetry.
type NoOp struct{}

// NewNoOp creates a new NoOp telemetry.
func NewNoOp() *NoOp {
	return &NoOp{}
}

// Record returns ctx unchanged and a vertex that discards everything.
func (t *NoOp) Record(ctx context.Context, _ string) (context.Context, ports.Vertex) {
	return ctx, NoOpVertex{}
}

// Close does nothing.
func (t *NoOp) Close() error {
	return nil
}

// NoOpVertex is a no-op implementation of ports.Vertex.
type NoOpVertex struct{}

// Stdout returns io.Discard.
func (NoOpVertex) Stdout() io.Writer { return io.Discard }

// Stderr returns io.Discard.
func (NoOpVertex) Stderr() io.Writer { return io.Discard }

// Log does nothing.
func (NoOpVertex) Log(_ domain.LogLevel, _ string) {}

// Complete does nothing.
func (NoOpVertex) Complete(_ error) {}

// Cached does nothing.
func (NoOpVertex) Cached() {}
