// Package progrock provides the Progrock implementation of the telemetry adapter.
package progrock

import (
	"context"
	"strconv"
	"sync/atomic"

	"github.com/opencontainers/go-digest"
	"github.com/vito/progrock"
	"go.trai.ch/pgo/internal/core/ports"
)

// Recorder implements the ports.Telemetry interface using the progrock library.
type Recorder struct {
	session *progrock.Recorder
	seq     atomic.Uint64
}

// New creates a Recorder whose updates are forwarded to logger.
func New(logger ports.Logger) ports.Telemetry {
	return NewRecorder(NewLogWriter(logger))
}

// NewRecorder creates a new Recorder with the given writer.
func NewRecorder(w progrock.Writer) *Recorder {
	return &Recorder{session: progrock.NewRecorder(w)}
}

// Record starts recording a new step. Each call gets its own vertex, so
// repeated build attempts are reported separately.
func (r *Recorder) Record(ctx context.Context, name string) (context.Context, ports.Vertex) {
	d := digest.FromString(name + "#" + strconv.FormatUint(r.seq.Add(1), 10))
	return ctx, &Vertex{
		name:    name,
		session: r.session,
		step:    r.session.Vertex(d, name),
	}
}

// Close closes the underlying writer.
func (r *Recorder) Close() error {
	return r.session.Close()
}
