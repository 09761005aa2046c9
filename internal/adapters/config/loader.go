// Package config provides the configuration loader for the image server.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"go.trai.ch/pgo/internal/core/domain"
	"go.trai.ch/pgo/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// DefaultFilename is the configuration file looked up when none is given.
const DefaultFilename = "pgo.yaml"

// Loader implements ports.ConfigLoader using a YAML file and environment overrides.
type Loader struct {
	logger    ports.Logger
	lookupEnv func(string) (string, bool)
}

// NewLoader creates a new Loader reading the process environment.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{
		logger:    logger,
		lookupEnv: os.LookupEnv,
	}
}

// WithLookupEnv replaces the environment lookup. Used for testing.
func (l *Loader) WithLookupEnv(fn func(string) (string, bool)) *Loader {
	l.lookupEnv = fn
	return l
}

// Load builds the configuration from defaults, the YAML file at path (if path
// is not empty) and the environment, in increasing order of precedence.
func (l *Loader) Load(path string) (*domain.Config, error) {
	cfg := domain.DefaultConfig()
	manifestEnv := domain.DefaultManifestEnv
	mode := ""

	if path != "" {
		file, err := readFile(path)
		if err != nil {
			return nil, err
		}
		mode = file.Mode
		if file.ManifestEnv != "" {
			manifestEnv = file.ManifestEnv
		}
		applyFile(&cfg, file)
	}

	if v, ok := l.lookupEnv(cfg.ModeEnv); ok {
		mode = v
	}
	if v, ok := l.lookupEnv(manifestEnv); ok && v != "" {
		cfg.ManifestPath = v
	}

	if mode != "" {
		m, err := domain.ParseMode(mode)
		if err != nil {
			return nil, err
		}
		cfg.Mode = m
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	if l.logger != nil && cfg.ManifestPath == "" {
		l.logger.Warn("no manifest configured; set " + manifestEnv + " or 'manifest' in the config file")
	}

	return &cfg, nil
}

func readFile(path string) (*Pgofile, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is provided by user
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, zerr.With(zerr.Wrap(domain.ErrConfigNotFound, "failed to read config file"), "path", path)
		}
		return nil, zerr.With(zerr.Wrap(err, "failed to read config file"), "path", path)
	}

	var file Pgofile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to parse config file"), "path", path)
	}
	return &file, nil
}

func applyFile(cfg *domain.Config, file *Pgofile) {
	if file.Manifest != "" {
		cfg.ManifestPath = file.Manifest
	}
	if file.Image != "" {
		cfg.ImagePath = file.Image
	}
	if file.FilteredManifest != "" {
		cfg.FilteredManifestPath = file.FilteredManifest
	}
	if file.SelfEntry != nil {
		cfg.SelfEntry = *file.SelfEntry
	}
	if file.Prefix != "" {
		cfg.Prefix = file.Prefix
	}
	if file.Listen != "" {
		cfg.Listen = file.Listen
	}
	if file.CompressMinSize != nil {
		cfg.CompressMinSize = *file.CompressMinSize
	}
	if file.ModeEnv != "" {
		cfg.ModeEnv = file.ModeEnv
	}
	if file.Builder != nil {
		if len(file.Builder.Command) > 0 {
			cfg.Builder.Command = file.Builder.Command
		}
		cfg.Builder.Environment = file.Builder.Env
	}
}

func validate(cfg *domain.Config) error {
	if len(cfg.Builder.Command) == 0 {
		return zerr.Wrap(domain.ErrConfiguration, "builder command is empty")
	}
	if cfg.ImagePath == "" || cfg.FilteredManifestPath == "" {
		return zerr.Wrap(domain.ErrConfiguration, "image and filtered manifest paths are required")
	}
	if filepath.Clean(cfg.ImagePath) == filepath.Clean(cfg.FilteredManifestPath) {
		return zerr.With(
			zerr.Wrap(domain.ErrConfiguration, "image and filtered manifest must not share a path"),
			"path", cfg.ImagePath,
		)
	}
	if cfg.CompressMinSize < 0 {
		return zerr.With(zerr.Wrap(domain.ErrConfiguration, "compress_min_size must not be negative"),
			"compress_min_size", cfg.CompressMinSize)
	}
	return nil
}
