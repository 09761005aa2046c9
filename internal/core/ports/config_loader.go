package ports

import "go.trai.ch/pgo/internal/core/domain"

// ConfigLoader defines the interface for loading the server configuration.
//
//go:generate go run go.uber.org/mock/mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks
type ConfigLoader interface {
	// Load reads the configuration file at path, applies environment overrides
	// and returns the validated result. An empty path loads defaults only.
	Load(path string) (*domain.Config, error)
}
