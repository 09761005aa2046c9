package commands_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/pgo/cmd/pgo/commands"
	"go.trai.ch/pgo/internal/app"
	"go.trai.ch/pgo/internal/build"
	"go.trai.ch/pgo/internal/core/domain"
	"go.trai.ch/pgo/internal/frontend/event"
)

type mockApp struct {
	serveFunc  func(ctx context.Context, configPath string) error
	invokeFunc func(ctx context.Context, configPath string, payload []byte) ([]byte, error)
	buildFunc  func(ctx context.Context, configPath string) (int64, error)
	listFunc   func(configPath string) (string, error)
	statusFunc func(configPath string) (*domain.BuildRecord, error)
	fetchFunc  func(ctx context.Context, configPath string, opts app.FetchOptions) (int64, error)
}

func (m *mockApp) Serve(ctx context.Context, configPath string) error {
	if m.serveFunc != nil {
		return m.serveFunc(ctx, configPath)
	}
	return nil
}

func (m *mockApp) Invoke(ctx context.Context, configPath string, payload []byte) ([]byte, error) {
	if m.invokeFunc != nil {
		return m.invokeFunc(ctx, configPath, payload)
	}
	return nil, nil
}

func (m *mockApp) Build(ctx context.Context, configPath string) (int64, error) {
	if m.buildFunc != nil {
		return m.buildFunc(ctx, configPath)
	}
	return 0, nil
}

func (m *mockApp) List(configPath string) (string, error) {
	if m.listFunc != nil {
		return m.listFunc(configPath)
	}
	return "", nil
}

func (m *mockApp) Status(configPath string) (*domain.BuildRecord, error) {
	if m.statusFunc != nil {
		return m.statusFunc(configPath)
	}
	return nil, nil
}

func (m *mockApp) Fetch(ctx context.Context, configPath string, opts app.FetchOptions) (int64, error) {
	if m.fetchFunc != nil {
		return m.fetchFunc(ctx, configPath, opts)
	}
	return 0, nil
}

func execute(t *testing.T, mock *mockApp, args ...string) (string, error) {
	t.Helper()
	cli := commands.New(mock)
	buf := new(bytes.Buffer)
	cli.SetOutput(buf, buf)
	cli.SetArgs(args)
	err := cli.Execute(context.Background())
	return buf.String(), err
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestCommands_Serve(t *testing.T) {
	t.Run("default config is optional", func(t *testing.T) {
		chdir(t, t.TempDir())

		captured := "unset"
		mock := &mockApp{serveFunc: func(_ context.Context, configPath string) error {
			captured = configPath
			return nil
		}}

		_, err := execute(t, mock, "serve")
		require.NoError(t, err)
		assert.Empty(t, captured)
	})

	t.Run("default config is used when present", func(t *testing.T) {
		dir := t.TempDir()
		chdir(t, dir)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "pgo.yaml"), []byte("mode: TRACE\n"), 0o600))

		var captured string
		mock := &mockApp{serveFunc: func(_ context.Context, configPath string) error {
			captured = configPath
			return nil
		}}

		_, err := execute(t, mock, "serve")
		require.NoError(t, err)
		assert.Equal(t, "pgo.yaml", captured)
	})

	t.Run("explicit config is passed through", func(t *testing.T) {
		var captured string
		mock := &mockApp{serveFunc: func(_ context.Context, configPath string) error {
			captured = configPath
			return nil
		}}

		_, err := execute(t, mock, "serve", "-c", "/etc/pgo/custom.yaml")
		require.NoError(t, err)
		assert.Equal(t, "/etc/pgo/custom.yaml", captured)
	})

	t.Run("returns error on failure", func(t *testing.T) {
		mock := &mockApp{serveFunc: func(_ context.Context, _ string) error {
			return domain.ErrConfiguration
		}}

		_, err := execute(t, mock, "serve")
		require.ErrorIs(t, err, domain.ErrConfiguration)
	})
}

func TestCommands_Invoke(t *testing.T) {
	t.Run("payload from argument", func(t *testing.T) {
		var captured string
		mock := &mockApp{invokeFunc: func(_ context.Context, _ string, payload []byte) ([]byte, error) {
			captured = string(payload)
			return []byte("4096"), nil
		}}

		out, err := execute(t, mock, "invoke", `{"type":"size"}`)
		require.NoError(t, err)
		assert.Equal(t, `{"type":"size"}`, captured)
		assert.Equal(t, "4096\n", out)
	})

	t.Run("payload from stdin", func(t *testing.T) {
		var captured string
		mock := &mockApp{invokeFunc: func(_ context.Context, _ string, payload []byte) ([]byte, error) {
			captured = string(payload)
			return []byte(`"YWJjZGU="`), nil
		}}

		cli := commands.New(mock)
		buf := new(bytes.Buffer)
		cli.SetOutput(buf, buf)
		cli.SetInput(strings.NewReader(`{"start":10,"size":20}`))
		cli.SetArgs([]string{"invoke"})

		require.NoError(t, cli.Execute(context.Background()))
		assert.Equal(t, `{"start":10,"size":20}`, captured)
		assert.Equal(t, "\"YWJjZGU=\"\n", buf.String())
	})

	t.Run("rejects extra arguments", func(t *testing.T) {
		_, err := execute(t, &mockApp{}, "invoke", "{}", "{}")
		require.Error(t, err)
	})
}

func TestCommands_Build(t *testing.T) {
	mock := &mockApp{buildFunc: func(_ context.Context, _ string) (int64, error) {
		return 1048576, nil
	}}

	out, err := execute(t, mock, "build")
	require.NoError(t, err)
	assert.Equal(t, "size: 1048576\n", out)

	mock.buildFunc = func(_ context.Context, _ string) (int64, error) {
		return 0, errors.New("builder exited 1")
	}
	_, err = execute(t, mock, "build")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "builder exited 1")
}

func TestCommands_List(t *testing.T) {
	mock := &mockApp{listFunc: func(_ string) (string, error) {
		return "json\npgo_index\n", nil
	}}

	out, err := execute(t, mock, "list")
	require.NoError(t, err)
	assert.Equal(t, "json\npgo_index\n", out)
}

func TestCommands_Status(t *testing.T) {
	t.Run("not built", func(t *testing.T) {
		out, err := execute(t, &mockApp{}, "status")
		require.NoError(t, err)
		assert.Equal(t, "not built\n", out)
	})

	t.Run("prints record", func(t *testing.T) {
		mock := &mockApp{statusFunc: func(_ string) (*domain.BuildRecord, error) {
			return &domain.BuildRecord{
				ImagePath:      "/tmp/cds.img",
				Size:           4096,
				Entries:        3,
				ManifestDigest: "abc123",
				BuiltAt:        time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
				Duration:       1500 * time.Millisecond,
			}, nil
		}}

		out, err := execute(t, mock, "status")
		require.NoError(t, err)
		assert.Contains(t, out, "image_path: /tmp/cds.img")
		assert.Contains(t, out, "size: 4096")
		assert.Contains(t, out, "entries: 3")
		assert.Contains(t, out, "duration: 1.5s")
	})
}

func TestCommands_Fetch(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		var captured app.FetchOptions
		mock := &mockApp{fetchFunc: func(_ context.Context, _ string, opts app.FetchOptions) (int64, error) {
			captured = opts
			return 15, nil
		}}

		out, err := execute(t, mock, "fetch")
		require.NoError(t, err)
		assert.Equal(t, app.FetchOptions{Output: "cds.img", PartSize: event.DefaultPartSize}, captured)
		assert.Equal(t, "fetched 15 bytes to cds.img\n", out)
	})

	t.Run("flags", func(t *testing.T) {
		var captured app.FetchOptions
		mock := &mockApp{fetchFunc: func(_ context.Context, _ string, opts app.FetchOptions) (int64, error) {
			captured = opts
			return 0, nil
		}}

		_, err := execute(t, mock, "fetch", "--url", "http://fc.example:9000", "-o", "out.img", "--part-size", "1024")
		require.NoError(t, err)
		assert.Equal(t, app.FetchOptions{URL: "http://fc.example:9000", Output: "out.img", PartSize: 1024}, captured)
	})

	t.Run("returns error on failure", func(t *testing.T) {
		mock := &mockApp{fetchFunc: func(_ context.Context, _ string, _ app.FetchOptions) (int64, error) {
			return 0, domain.ErrFetch
		}}

		_, err := execute(t, mock, "fetch")
		require.ErrorIs(t, err, domain.ErrFetch)
	})
}

func TestCommands_Version(t *testing.T) {
	out, err := execute(t, &mockApp{}, "version")
	require.NoError(t, err)
	assert.Contains(t, out, build.Version)
}
