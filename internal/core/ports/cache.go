package ports

import "context"

// ImageCache is the single-image cache shared by the request front-ends.
//
//go:generate go run go.uber.org/mock/mockgen -source=cache.go -destination=mocks/mock_cache.go -package=mocks
type ImageCache interface {
	// EnsureBuilt builds the image unless it already exists.
	EnsureBuilt(ctx context.Context) error
	// ReadManifestListing returns the raw manifest text without building.
	ReadManifestListing() (string, error)
	// Size returns the byte length of the image.
	Size(ctx context.Context) (int64, error)
	// ReadAll returns the whole image.
	ReadAll(ctx context.Context) ([]byte, error)
	// ReadRange returns bytes [start, start+size) of the image, clamped to its end.
	ReadRange(ctx context.Context, start, size int64) ([]byte, error)
}
