package progrock

import (
	"time"

	"github.com/vito/progrock"
	"go.trai.ch/pgo/internal/core/ports"
	"go.trai.ch/zerr"
)

// stepLabel tags session messages with the name of the step that logged them.
const stepLabel = "pgo.trai.ch/step"

// LogWriter is a progrock.Writer that turns status updates into log lines as
// they arrive. It keeps no state between updates.
//
// Output chunks on the step streams are dropped: the executor already logs
// builder output line by line.
type LogWriter struct {
	logger ports.Logger
}

// NewLogWriter creates a LogWriter forwarding to logger.
func NewLogWriter(logger ports.Logger) *LogWriter {
	return &LogWriter{logger: logger}
}

// WriteStatus logs finished steps and session messages carried by status.
func (w *LogWriter) WriteStatus(status *progrock.StatusUpdate) error {
	for _, v := range status.GetVertexes() {
		w.step(v)
	}
	for _, m := range status.GetMessages() {
		w.message(m)
	}
	return nil
}

// Close implements progrock.Writer.
func (w *LogWriter) Close() error {
	return nil
}

func (w *LogWriter) step(v *progrock.Vertex) {
	switch {
	case v.GetCompleted() == nil:
		if v.GetCached() {
			w.logger.Info(v.GetName() + ": cached")
		}
	case v.GetCached():
		// Reported when it was marked cached.
	case v.GetCanceled():
		w.logger.Warn(v.GetName() + ": canceled after " + elapsed(v))
	case v.Error != nil:
		w.logger.Warn(v.GetName() + ": failed after " + elapsed(v) + ": " + v.GetError())
	default:
		w.logger.Info(v.GetName() + ": done in " + elapsed(v))
	}
}

func (w *LogWriter) message(m *progrock.Message) {
	msg := m.GetMessage()
	for _, l := range m.GetLabels() {
		if l.GetName() == stepLabel {
			msg = l.GetValue() + ": " + msg
			break
		}
	}

	switch m.GetLevel() {
	case progrock.MessageLevel_DEBUG:
	case progrock.MessageLevel_WARNING:
		w.logger.Warn(msg)
	case progrock.MessageLevel_ERROR:
		w.logger.Error(zerr.New(msg))
	default:
		w.logger.Info(msg)
	}
}

func elapsed(v *progrock.Vertex) string {
	if v.GetStarted() == nil {
		return "0s"
	}
	return v.GetCompleted().AsTime().Sub(v.GetStarted().AsTime()).Round(time.Millisecond).String()
}
