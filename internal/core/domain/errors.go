package domain

import (
	"errors"
	"fmt"

	"go.trai.ch/zerr"
)

var (
	// ErrConfiguration is returned when the process is not configured to serve images,
	// for example when the mode is not TRACE. It is a startup contract violation.
	ErrConfiguration = zerr.New("configuration error")

	// ErrBuild is returned when the external image builder fails, cannot be started,
	// or exits successfully without producing an image.
	ErrBuild = zerr.New("image build failed")

	// ErrManifestUnavailable is returned when the manifest cannot be read.
	ErrManifestUnavailable = zerr.New("manifest unavailable")

	// ErrIO is returned when the built image cannot be inspected or read.
	ErrIO = zerr.New("image io failed")

	// ErrFetch is returned when a remote server cannot serve a fetch of the image.
	ErrFetch = zerr.New("image fetch failed")

	// ErrInvalidRange is returned for negative range offsets or lengths.
	ErrInvalidRange = zerr.New("invalid range")

	// ErrInvalidRequest is returned for malformed event payloads.
	ErrInvalidRequest = zerr.New("invalid request")

	// ErrConfigNotFound is returned when an explicitly requested config file does not exist.
	ErrConfigNotFound = zerr.New("config file not found")

	// ErrUnknownMode is returned when a mode value is neither TRACE nor DUMP.
	ErrUnknownMode = zerr.New("unknown mode")
)

// Fail tags cause with the error kind so that errors.Is matches both of them.
// A nil cause returns kind unchanged.
func Fail(kind, cause error) error {
	if cause == nil {
		return kind
	}
	return fmt.Errorf("%w: %w", kind, cause)
}

// IsClientError reports whether err was caused by malformed caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidRange) || errors.Is(err, ErrInvalidRequest)
}
