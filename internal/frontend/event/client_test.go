package event_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/pgo/internal/adapters/logger"
	"go.trai.ch/pgo/internal/core/domain"
	"go.trai.ch/pgo/internal/frontend/event"
	"go.trai.ch/pgo/internal/server"
)

// memCache serves a fixed image from memory.
type memCache struct {
	image  []byte
	ranges atomic.Int32
}

func (c *memCache) EnsureBuilt(context.Context) error { return nil }

func (c *memCache) ReadManifestListing() (string, error) { return "", nil }

func (c *memCache) Size(context.Context) (int64, error) { return int64(len(c.image)), nil }

func (c *memCache) ReadAll(context.Context) ([]byte, error) { return c.image, nil }

func (c *memCache) ReadRange(_ context.Context, start, size int64) ([]byte, error) {
	c.ranges.Add(1)
	if start < 0 || size < 0 {
		return nil, domain.ErrInvalidRange
	}
	end := min(start+size, int64(len(c.image)))
	if start >= end {
		return []byte{}, nil
	}
	return c.image[start:end], nil
}

func newEventServer(t *testing.T, cache *memCache) *httptest.Server {
	t.Helper()
	h, err := server.Compress(event.NewHandler(cache, logger.NewWithWriter(io.Discard)), 0)
	require.NoError(t, err)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Fetch(t *testing.T) {
	image := bytes.Repeat([]byte("0123456789abcdef"), 1000)
	image = append(image, 0xff, 0x00, 0x7f)

	tests := []struct {
		name     string
		partSize int64
		ranges   int32
	}{
		{"SinglePart", int64(len(image)), 1},
		{"UnevenParts", 4096, 4},
		{"LargerThanImage", event.DefaultPartSize, 1},
		{"ThousandBytes", 1000, 17},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := &memCache{image: image}
			srv := newEventServer(t, cache)

			var out bytes.Buffer
			n, err := event.NewClient(srv.URL, nil).Fetch(context.Background(), &out, tt.partSize)
			require.NoError(t, err)

			want, err := cache.ReadAll(context.Background())
			require.NoError(t, err)
			assert.Equal(t, int64(len(want)), n)
			assert.Equal(t, want, out.Bytes())
			assert.Equal(t, tt.ranges, cache.ranges.Load())
		})
	}
}

func TestClient_FetchEmptyImage(t *testing.T) {
	cache := &memCache{}
	srv := newEventServer(t, cache)

	var out bytes.Buffer
	n, err := event.NewClient(srv.URL, nil).Fetch(context.Background(), &out, 4)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, cache.ranges.Load())
}

func TestClient_FetchRejectsPartSize(t *testing.T) {
	client := event.NewClient("http://127.0.0.1:0", nil)
	_, err := client.Fetch(context.Background(), io.Discard, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "image build failed", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	_, err := event.NewClient(srv.URL, nil).Size(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFetch)
	assert.Contains(t, err.Error(), "image build failed")
}

func TestClient_ShortPart(t *testing.T) {
	// The server reports more bytes than it serves.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload, _ := io.ReadAll(r.Body)
		if bytes.Contains(payload, []byte(`"size"}`)) && bytes.Contains(payload, []byte(`"type"`)) {
			_, _ = w.Write([]byte("10"))
			return
		}
		_, _ = w.Write([]byte(`"YWJj"`))
	}))
	t.Cleanup(srv.Close)

	var out bytes.Buffer
	n, err := event.NewClient(srv.URL, nil).Fetch(context.Background(), &out, 4)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFetch)
	assert.Zero(t, n)
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := event.NewClient(url, nil).Size(context.Background())
	assert.ErrorIs(t, err, domain.ErrFetch)
}

func TestResult_UnmarshalJSON(t *testing.T) {
	var size event.Result
	require.NoError(t, size.UnmarshalJSON([]byte("4096")))
	assert.True(t, size.IsSize())
	assert.Equal(t, int64(4096), size.Size)

	var data event.Result
	require.NoError(t, data.UnmarshalJSON([]byte(`"YWJjZGU="`)))
	assert.False(t, data.IsSize())
	assert.Equal(t, []byte("abcde"), data.Data)

	var bad event.Result
	assert.Error(t, bad.UnmarshalJSON([]byte(`"not base64!"`)))
	assert.Error(t, bad.UnmarshalJSON([]byte(`{}`)))
}
