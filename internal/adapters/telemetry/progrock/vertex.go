package progrock

import (
	"io"

	"github.com/vito/progrock"
	"go.trai.ch/pgo/internal/core/domain"
)

// Vertex is one recorded step. Output goes to the step's streams; messages
// are recorded on the session, labelled with the step name.
type Vertex struct {
	name    string
	session *progrock.Recorder
	step    *progrock.VertexRecorder
}

func (v *Vertex) Stdout() io.Writer {
	return v.step.Stdout()
}

func (v *Vertex) Stderr() io.Writer {
	return v.step.Stderr()
}

// Log records msg as a session message at the matching progrock level.
func (v *Vertex) Log(level domain.LogLevel, msg string) {
	_ = v.session.Record(&progrock.StatusUpdate{
		Messages: []*progrock.Message{{
			Message: msg,
			Level:   messageLevel(level),
			Labels:  []*progrock.Label{{Name: stepLabel, Value: v.name}},
		}},
	})
}

func (v *Vertex) Complete(err error) {
	v.step.Done(err)
}

func (v *Vertex) Cached() {
	v.step.Cached()
}

// messageLevel maps a log level onto progrock's. progrock has no info level;
// the unset level stands in for it.
func messageLevel(level domain.LogLevel) progrock.MessageLevel {
	switch {
	case level >= domain.LogLevelError:
		return progrock.MessageLevel_ERROR
	case level >= domain.LogLevelWarn:
		return progrock.MessageLevel_WARNING
	case level <= domain.LogLevelDebug:
		return progrock.MessageLevel_DEBUG
	default:
		return progrock.MessageLevel_INVALID
	}
}
