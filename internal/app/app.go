// Package app implements the application layer for pgo.
package app

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.trai.ch/pgo/internal/core/domain"
	"go.trai.ch/pgo/internal/core/ports"
	"go.trai.ch/pgo/internal/engine/imagecache"
	"go.trai.ch/pgo/internal/frontend/event"
	"go.trai.ch/pgo/internal/frontend/web"
	"go.trai.ch/pgo/internal/server"
	"go.trai.ch/zerr"
)

// App represents the main application logic.
type App struct {
	configLoader ports.ConfigLoader
	executor     ports.Executor
	store        ports.BuildRecordStore
	telemetry    ports.Telemetry
	logger       ports.Logger
}

// New creates a new App instance.
func New(
	loader ports.ConfigLoader,
	executor ports.Executor,
	store ports.BuildRecordStore,
	telemetry ports.Telemetry,
	logger ports.Logger,
) *App {
	return &App{
		configLoader: loader,
		executor:     executor,
		store:        store,
		telemetry:    telemetry,
		logger:       logger,
	}
}

// LoadConfig loads the configuration at path. An empty path uses defaults
// and the environment only.
func (a *App) LoadConfig(path string) (*domain.Config, error) {
	cfg, err := a.configLoader.Load(path)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to load configuration")
	}
	return cfg, nil
}

// Cache loads the configuration and creates the image cache for it.
func (a *App) Cache(configPath string) (*imagecache.Cache, *domain.Config, error) {
	cfg, err := a.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	cache, err := imagecache.New(*cfg, a.executor, a.store, a.telemetry, a.logger)
	if err != nil {
		return nil, nil, err
	}
	return cache, cfg, nil
}

// Serve runs the HTTP server until ctx is done.
func (a *App) Serve(ctx context.Context, configPath string) error {
	cache, cfg, err := a.Cache(configPath)
	if err != nil {
		return err
	}

	events := event.NewHandler(cache, a.logger)
	root := web.NewHandler(cache, cfg.Prefix, server.NewMux(events), a.logger)

	srv, err := server.New(*cfg, root, a.logger)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}

// Invoke answers a single event payload and returns the JSON result.
func (a *App) Invoke(ctx context.Context, configPath string, payload []byte) ([]byte, error) {
	cache, _, err := a.Cache(configPath)
	if err != nil {
		return nil, err
	}

	result, err := event.NewHandler(cache, a.logger).Handle(ctx, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

// Build builds the image if needed and returns its size.
func (a *App) Build(ctx context.Context, configPath string) (int64, error) {
	cache, _, err := a.Cache(configPath)
	if err != nil {
		return 0, err
	}
	return cache.Size(ctx)
}

// List returns the raw manifest without building.
func (a *App) List(configPath string) (string, error) {
	cache, _, err := a.Cache(configPath)
	if err != nil {
		return "", err
	}
	return cache.ReadManifestListing()
}

// Status returns the record of the last build, or nil if the image has not
// been built.
func (a *App) Status(configPath string) (*domain.BuildRecord, error) {
	cache, _, err := a.Cache(configPath)
	if err != nil {
		return nil, err
	}
	return cache.Record()
}

// FetchOptions describe a download of the image from a running server.
type FetchOptions struct {
	// URL is the server's base URL. Empty derives it from the configured
	// listen address.
	URL string
	// Output is the file the image is written to.
	Output string
	// PartSize is the number of bytes requested per range event.
	PartSize int64
}

// Fetch downloads the image from a running server into opts.Output and
// returns its size. The output file only appears once the whole image has
// been received.
func (a *App) Fetch(ctx context.Context, configPath string, opts FetchOptions) (int64, error) {
	base := opts.URL
	if base == "" {
		cfg, err := a.LoadConfig(configPath)
		if err != nil {
			return 0, err
		}
		if base, err = listenURL(cfg.Listen); err != nil {
			return 0, err
		}
	}
	endpoint := strings.TrimRight(base, "/") + server.InvokePath
	client := event.NewClient(endpoint, nil)

	dir := filepath.Dir(opts.Output)
	tmp, err := os.CreateTemp(dir, filepath.Base(opts.Output)+".*.tmp")
	if err != nil {
		return 0, domain.Fail(domain.ErrIO, zerr.With(err, "dir", dir))
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	a.logger.Info("fetching image from " + endpoint)
	n, err := client.Fetch(ctx, tmp, opts.PartSize)
	if cerr := tmp.Close(); err == nil && cerr != nil {
		err = domain.Fail(domain.ErrIO, cerr)
	}
	if err != nil {
		return 0, err
	}

	if err := os.Rename(tmp.Name(), opts.Output); err != nil {
		return 0, domain.Fail(domain.ErrIO, zerr.With(err, "path", opts.Output))
	}
	a.logger.Info("fetched " + strconv.FormatInt(n, 10) + " bytes to " + opts.Output)
	return n, nil
}

// listenURL turns a listen address into a URL a local client can reach.
func listenURL(listen string) (string, error) {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "", zerr.With(zerr.Wrap(domain.ErrConfiguration, "invalid listen address"), "listen", listen)
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port), nil
}

// Close releases the telemetry session.
func (a *App) Close() error {
	return a.telemetry.Close()
}
