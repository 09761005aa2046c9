package event

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzhttp"
	"go.trai.ch/pgo/internal/core/domain"
	"go.trai.ch/zerr"
)

// DefaultPartSize is the range length requested per event when fetching.
const DefaultPartSize = 3 << 20

// Client sends events to a remote server.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient creates a Client posting events to endpoint. A nil httpClient
// uses one that accepts compressed responses.
func NewClient(endpoint string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Transport: gzhttp.Transport(http.DefaultTransport)}
	}
	return &Client{endpoint: endpoint, http: httpClient}
}

// Size asks for the image size.
func (c *Client) Size(ctx context.Context) (int64, error) {
	result, err := c.post(ctx, map[string]any{"type": "size"})
	if err != nil {
		return 0, err
	}
	if !result.IsSize() {
		return 0, zerr.Wrap(domain.ErrFetch, "size event answered with data")
	}
	return result.Size, nil
}

// ReadRange asks for bytes [start, start+size) of the image.
func (c *Client) ReadRange(ctx context.Context, start, size int64) ([]byte, error) {
	result, err := c.post(ctx, map[string]any{"start": start, "size": size})
	if err != nil {
		return nil, err
	}
	if result.IsSize() {
		return nil, zerr.Wrap(domain.ErrFetch, "range event answered with a size")
	}
	return result.Data, nil
}

// Fetch copies the whole image to w, one range event per partSize bytes, and
// returns the number of bytes written.
func (c *Client) Fetch(ctx context.Context, w io.Writer, partSize int64) (int64, error) {
	if partSize <= 0 {
		return 0, zerr.With(zerr.Wrap(domain.ErrInvalidRequest, "part size must be positive"), "part_size", partSize)
	}

	total, err := c.Size(ctx)
	if err != nil {
		return 0, err
	}

	var written int64
	for written < total {
		want := min(partSize, total-written)
		data, err := c.ReadRange(ctx, written, want)
		if err != nil {
			return written, zerr.With(err, "start", written)
		}
		if int64(len(data)) != want {
			err := zerr.With(zerr.Wrap(domain.ErrFetch, "short part"), "start", written)
			return written, zerr.With(zerr.With(err, "want", want), "got", len(data))
		}
		if _, err := w.Write(data); err != nil {
			return written, domain.Fail(domain.ErrIO, err)
		}
		written += want
	}
	return written, nil
}

func (c *Client) post(ctx context.Context, payload map[string]any) (Result, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, domain.Fail(domain.ErrFetch, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, domain.Fail(domain.ErrFetch, zerr.With(err, "endpoint", c.endpoint))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, domain.Fail(domain.ErrFetch, zerr.With(err, "endpoint", c.endpoint))
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, domain.Fail(domain.ErrFetch, err)
	}
	if resp.StatusCode != http.StatusOK {
		err := zerr.With(zerr.Wrap(domain.ErrFetch, strings.TrimSpace(string(data))), "status", resp.StatusCode)
		return Result{}, zerr.With(err, "endpoint", c.endpoint)
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return Result{}, domain.Fail(domain.ErrFetch, err)
	}
	return result, nil
}
