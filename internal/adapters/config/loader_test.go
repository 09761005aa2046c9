package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/pgo/internal/adapters/config"
	"go.trai.ch/pgo/internal/core/domain"
	"go.trai.ch/pgo/internal/core/ports/mocks"
	"go.trai.ch/zerr"
	"go.uber.org/mock/gomock"
)

func envFrom(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), config.DefaultFilename)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoad_DefaultsFromEnvironment(t *testing.T) {
	loader := config.NewLoader(nil).WithLookupEnv(envFrom(map[string]string{
		"PYCDSMODE": "TRACE",
		"PYCDSLIST": "/code/cds.lst",
	}))

	cfg, err := loader.Load("")
	require.NoError(t, err)

	assert.Equal(t, domain.ModeTrace, cfg.Mode)
	assert.Equal(t, "/code/cds.lst", cfg.ManifestPath)
	assert.Equal(t, domain.DefaultImagePath, cfg.ImagePath)
	assert.Equal(t, domain.DefaultFilteredManifestPath, cfg.FilteredManifestPath)
	assert.Equal(t, domain.DefaultSelfEntry, cfg.SelfEntry)
	assert.Equal(t, domain.DefaultPrefix, cfg.Prefix)
	assert.Equal(t, domain.DefaultBuilderCommand, cfg.Builder.Command)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
mode: trace
manifest: /srv/list.txt
image: /var/cache/app.img
filtered_manifest: /var/cache/app.lst
self_entry: ""
prefix: /image
listen: "127.0.0.1:8080"
compress_min_size: 0
builder:
  command: ["/usr/bin/dump", "--fast"]
  env:
    CDS_VERBOSE: "1"
`)

	cfg, err := config.NewLoader(nil).WithLookupEnv(envFrom(nil)).Load(path)
	require.NoError(t, err)

	assert.Equal(t, domain.ModeTrace, cfg.Mode)
	assert.Equal(t, "/srv/list.txt", cfg.ManifestPath)
	assert.Equal(t, "/var/cache/app.img", cfg.ImagePath)
	assert.Equal(t, "/var/cache/app.lst", cfg.FilteredManifestPath)
	assert.Empty(t, cfg.SelfEntry)
	assert.Equal(t, "/image", cfg.Prefix)
	assert.Equal(t, "127.0.0.1:8080", cfg.Listen)
	assert.Equal(t, 0, cfg.CompressMinSize)
	assert.Equal(t, []string{"/usr/bin/dump", "--fast"}, cfg.Builder.Command)
	assert.Equal(t, map[string]string{"CDS_VERBOSE": "1"}, cfg.Builder.Environment)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, `
mode: DUMP
manifest: /from/file.lst
mode_env: APP_MODE
manifest_env: APP_LIST
`)

	cfg, err := config.NewLoader(nil).WithLookupEnv(envFrom(map[string]string{
		"APP_MODE":  "TRACE",
		"APP_LIST":  "/from/env.lst",
		"PYCDSMODE": "DUMP",
	})).Load(path)
	require.NoError(t, err)

	assert.Equal(t, domain.ModeTrace, cfg.Mode)
	assert.Equal(t, "/from/env.lst", cfg.ManifestPath)
	assert.Equal(t, "APP_MODE", cfg.ModeEnv)
}

func TestLoad_ModeUnset(t *testing.T) {
	cfg, err := config.NewLoader(nil).WithLookupEnv(envFrom(nil)).Load("")
	require.NoError(t, err)
	assert.Empty(t, cfg.Mode)
}

func TestLoad_UnknownMode(t *testing.T) {
	_, err := config.NewLoader(nil).WithLookupEnv(envFrom(map[string]string{
		"PYCDSMODE": "RECORD",
	})).Load("")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnknownMode))
}

func TestLoad_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")

	_, err := config.NewLoader(nil).WithLookupEnv(envFrom(nil)).Load(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConfigNotFound))

	var zErr *zerr.Error
	require.ErrorAs(t, err, &zErr)
	assert.Equal(t, path, zErr.Metadata()["path"])
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "mode: [unterminated")

	_, err := config.NewLoader(nil).WithLookupEnv(envFrom(nil)).Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"SharedPath", "image: /tmp/x\nfiltered_manifest: /tmp/x\n"},
		{"NegativeMinSize", "compress_min_size: -1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := config.NewLoader(nil).WithLookupEnv(envFrom(nil)).Load(path)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrConfiguration))
		})
	}
}

func TestLoad_EmptyBuilderCommandKeepsDefault(t *testing.T) {
	path := writeConfig(t, "builder:\n  command: []\n")

	cfg, err := config.NewLoader(nil).WithLookupEnv(envFrom(nil)).Load(path)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultBuilderCommand, cfg.Builder.Command)
}

func TestLoad_WarnsWithoutManifest(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLogger := mocks.NewMockLogger(ctrl)
	mockLogger.EXPECT().Warn(gomock.Any()).Times(1)

	_, err := config.NewLoader(mockLogger).WithLookupEnv(envFrom(nil)).Load("")
	require.NoError(t, err)
}
