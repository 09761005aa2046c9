// Package imagecache implements the single-image cache: it builds the image
// on first access and serves it, whole or in ranges, afterwards.
package imagecache

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.trai.ch/pgo/internal/core/domain"
	"go.trai.ch/pgo/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/singleflight"
)

// Cache implements ports.ImageCache.
//
// The image path is the only cache key and the existence of the file there is
// the only hit signal. Builds for the same path are collapsed into a single
// flight, and every file is written to a private temporary name and renamed
// into place, so readers never observe a partial image or manifest.
type Cache struct {
	cfg       domain.Config
	executor  ports.Executor
	store     ports.BuildRecordStore
	telemetry ports.Telemetry
	logger    ports.Logger

	flights singleflight.Group
	now     func() time.Time
}

// New creates a Cache for cfg. It fails with domain.ErrConfiguration unless
// cfg.Mode is TRACE and the image paths are set.
func New(
	cfg domain.Config,
	executor ports.Executor,
	store ports.BuildRecordStore,
	telemetry ports.Telemetry,
	logger ports.Logger,
) (*Cache, error) {
	if err := checkMode(cfg.Mode); err != nil {
		return nil, err
	}
	if cfg.ImagePath == "" || cfg.FilteredManifestPath == "" {
		return nil, zerr.Wrap(domain.ErrConfiguration, "image and filtered manifest paths are required")
	}
	if len(cfg.Builder.Command) == 0 {
		return nil, zerr.Wrap(domain.ErrConfiguration, "builder command is empty")
	}

	return &Cache{
		cfg:       cfg,
		executor:  executor,
		store:     store,
		telemetry: telemetry,
		logger:    logger,
		now:       time.Now,
	}, nil
}

func checkMode(mode domain.Mode) error {
	if mode != domain.ModeTrace {
		return zerr.With(
			zerr.Wrap(domain.ErrConfiguration, "images are only served in TRACE mode"),
			"mode", mode.String(),
		)
	}
	return nil
}

// ImagePath returns the path of the cached image.
func (c *Cache) ImagePath() string {
	return c.cfg.ImagePath
}

// EnsureBuilt builds the image unless it already exists.
//
// The existence check comes first and does not touch the manifest. Concurrent
// callers on a cold cache share one build; callers that arrive after a build
// has finished see the image and return immediately. The build is detached
// from the caller's cancellation because other callers may be waiting on it.
func (c *Cache) EnsureBuilt(ctx context.Context) error {
	if err := checkMode(c.cfg.Mode); err != nil {
		return err
	}

	if c.exists() {
		return nil
	}

	_, err, _ := c.flights.Do(c.cfg.ImagePath, func() (any, error) {
		// A flight for this path may have completed between our check and Do.
		if c.exists() {
			_, vertex := c.telemetry.Record(ctx, "build image")
			vertex.Cached()
			return nil, nil
		}
		return nil, c.build(context.WithoutCancel(ctx))
	})
	return err
}

func (c *Cache) exists() bool {
	info, err := os.Stat(c.cfg.ImagePath)
	return err == nil && info.Mode().IsRegular()
}

func (c *Cache) build(ctx context.Context) (err error) {
	ctx, vertex := c.telemetry.Record(ctx, "build image")
	defer func() { vertex.Complete(err) }()

	started := c.now()
	c.logger.Info("image missing, building " + c.cfg.ImagePath)

	manifest, err := c.readManifest()
	if err != nil {
		return err
	}
	filtered := manifest.WithoutSelf(c.cfg.SelfEntry)
	vertex.Log(domain.LogLevelInfo,
		"manifest has "+strconv.Itoa(len(manifest))+" entries, "+strconv.Itoa(len(filtered))+" after filtering")

	if err := writeFileAtomic(c.cfg.FilteredManifestPath, filtered.Bytes()); err != nil {
		return domain.Fail(domain.ErrBuild, zerr.With(err, "path", c.cfg.FilteredManifestPath))
	}

	size, err := c.runBuilder(ctx, vertex)
	if err != nil {
		c.logger.Error(err)
		return err
	}

	record := domain.BuildRecord{
		ImagePath:      c.cfg.ImagePath,
		Size:           size,
		Entries:        len(filtered),
		ManifestDigest: filtered.Digest(),
		BuiltAt:        started.UTC(),
		Duration:       c.now().Sub(started),
	}
	if err := c.store.Put(record); err != nil {
		c.logger.Warn("failed to save build record: " + err.Error())
	}

	c.logger.Info("image built: " + c.cfg.ImagePath + " (" + strconv.FormatInt(size, 10) + " bytes)")
	return nil
}

// runBuilder runs the external builder against a private output path and
// moves the result into place. It returns the size of the new image.
func (c *Cache) runBuilder(ctx context.Context, vertex ports.Vertex) (int64, error) {
	dir := filepath.Dir(c.cfg.ImagePath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return 0, domain.Fail(domain.ErrBuild, zerr.With(err, "dir", dir))
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(c.cfg.ImagePath)+".*.tmp")
	if err != nil {
		return 0, domain.Fail(domain.ErrBuild, zerr.With(err, "dir", dir))
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	// The builder creates its output itself.
	_ = os.Remove(tmpPath)
	defer func() { _ = os.Remove(tmpPath) }()

	env := make(map[string]string, len(c.cfg.Builder.Environment)+1)
	for k, v := range c.cfg.Builder.Environment {
		env[k] = v
	}
	env[c.cfg.ModeEnv] = domain.ModeDump.String()

	argv := make([]string, 0, len(c.cfg.Builder.Command)+2)
	argv = append(argv, c.cfg.Builder.Command...)
	argv = append(argv, c.cfg.FilteredManifestPath, tmpPath)

	inv := &domain.Invocation{
		Name:        "image-builder",
		Argv:        argv,
		Environment: env,
	}
	if err := c.executor.Execute(ctx, inv, vertex.Stdout(), vertex.Stderr()); err != nil {
		return 0, domain.Fail(domain.ErrBuild, err)
	}

	info, err := os.Stat(tmpPath)
	if err != nil || !info.Mode().IsRegular() {
		return 0, zerr.With(
			zerr.Wrap(domain.ErrBuild, "builder exited successfully but produced no image"),
			"path", tmpPath,
		)
	}

	if err := os.Rename(tmpPath, c.cfg.ImagePath); err != nil {
		return 0, domain.Fail(domain.ErrBuild, zerr.With(err, "path", c.cfg.ImagePath))
	}
	return info.Size(), nil
}

func (c *Cache) readManifest() (domain.Manifest, error) {
	if c.cfg.ManifestPath == "" {
		return nil, zerr.Wrap(domain.ErrManifestUnavailable, "no manifest path configured")
	}
	data, err := os.ReadFile(c.cfg.ManifestPath)
	if err != nil {
		return nil, domain.Fail(domain.ErrManifestUnavailable, zerr.With(err, "path", c.cfg.ManifestPath))
	}
	return domain.ParseManifest(data), nil
}

// ReadManifestListing returns the raw, unfiltered manifest. It does not build.
func (c *Cache) ReadManifestListing() (string, error) {
	if err := checkMode(c.cfg.Mode); err != nil {
		return "", err
	}
	m, err := c.readManifest()
	if err != nil {
		return "", err
	}
	return string(m.Bytes()), nil
}

// Size returns the byte length of the image from file metadata.
func (c *Cache) Size(ctx context.Context) (int64, error) {
	if err := c.EnsureBuilt(ctx); err != nil {
		return 0, err
	}
	info, err := os.Stat(c.cfg.ImagePath)
	if err != nil {
		return 0, domain.Fail(domain.ErrIO, zerr.With(err, "path", c.cfg.ImagePath))
	}
	return info.Size(), nil
}

// ReadAll returns the complete image.
func (c *Cache) ReadAll(ctx context.Context) ([]byte, error) {
	if err := c.EnsureBuilt(ctx); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(c.cfg.ImagePath)
	if err != nil {
		return nil, domain.Fail(domain.ErrIO, zerr.With(err, "path", c.cfg.ImagePath))
	}
	return data, nil
}

// ReadRange returns bytes [start, start+size) of the image. A range running
// past the end is clamped to the end, and a start at or beyond the end yields
// an empty slice. Negative arguments fail with domain.ErrInvalidRange.
func (c *Cache) ReadRange(ctx context.Context, start, size int64) ([]byte, error) {
	if start < 0 || size < 0 {
		return nil, zerr.With(zerr.With(
			zerr.Wrap(domain.ErrInvalidRange, "start and size must not be negative"),
			"start", start), "size", size)
	}

	if err := c.EnsureBuilt(ctx); err != nil {
		return nil, err
	}

	f, err := os.Open(c.cfg.ImagePath)
	if err != nil {
		return nil, domain.Fail(domain.ErrIO, zerr.With(err, "path", c.cfg.ImagePath))
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, domain.Fail(domain.ErrIO, zerr.With(err, "path", c.cfg.ImagePath))
	}

	length := info.Size()
	if start >= length || size == 0 {
		return []byte{}, nil
	}
	if size > length-start {
		size = length - start
	}

	buf := make([]byte, size)
	n, err := f.ReadAt(buf, start)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, domain.Fail(domain.ErrIO, zerr.With(err, "path", c.cfg.ImagePath))
	}
	return buf[:n], nil
}

// Record returns the build record of the current image, or nil if none was saved.
func (c *Cache) Record() (*domain.BuildRecord, error) {
	return c.store.Get(c.cfg.ImagePath)
}

// writeFileAtomic writes data to a temporary file next to path and renames it
// into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return zerr.Wrap(err, "failed to create directory")
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return zerr.Wrap(err, "failed to create temporary file")
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return zerr.Wrap(err, "failed to write temporary file")
	}
	if err := tmp.Close(); err != nil {
		return zerr.Wrap(err, "failed to close temporary file")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return zerr.Wrap(err, "failed to rename temporary file")
	}

	success = true
	return nil
}

var _ ports.ImageCache = (*Cache)(nil)
