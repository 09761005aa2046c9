package ports

import "go.trai.ch/pgo/internal/core/domain"

// BuildRecordStore defines the interface for storing and retrieving build records.
//
//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks
type BuildRecordStore interface {
	// Get retrieves the record of the image at imagePath.
	// Returns nil, nil if not found.
	Get(imagePath string) (*domain.BuildRecord, error)

	// Put stores the record.
	Put(record domain.BuildRecord) error
}
