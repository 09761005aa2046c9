package domain

import (
	"strings"

	"go.trai.ch/zerr"
)

// Mode is the operational sentinel shared with the code-data-share runtime.
type Mode string

const (
	// ModeTrace means the process records the modules it loads. Images are only
	// served in this mode.
	ModeTrace Mode = "TRACE"
	// ModeDump means the process turns a recorded manifest into an image. It is
	// only ever set in the environment of the builder subprocess.
	ModeDump Mode = "DUMP"
)

// ParseMode converts s into a Mode, ignoring case and surrounding whitespace.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToUpper(strings.TrimSpace(s))); m {
	case ModeTrace, ModeDump:
		return m, nil
	default:
		return "", zerr.With(zerr.Wrap(ErrUnknownMode, "failed to parse mode"), "mode", s)
	}
}

// String returns the mode as it appears in the environment.
func (m Mode) String() string {
	return string(m)
}
