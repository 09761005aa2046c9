// Package event serves the image cache to event invocations: a JSON payload
// asks for the image size or for a base64-encoded byte range.
package event

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"

	"go.trai.ch/pgo/internal/core/domain"
	"go.trai.ch/pgo/internal/core/ports"
	"go.trai.ch/pgo/internal/frontend/web"
	"go.trai.ch/zerr"
)

// maxPayloadSize bounds event payloads read over HTTP.
const maxPayloadSize = 1 << 20

// Result is the outcome of an event: either the image size or a byte range.
type Result struct {
	Size  int64
	Data  []byte
	sized bool
}

// SizeResult returns a Result carrying the image size.
func SizeResult(n int64) Result {
	return Result{Size: n, sized: true}
}

// DataResult returns a Result carrying a byte range.
func DataResult(data []byte) Result {
	return Result{Data: data}
}

// IsSize reports whether r carries a size rather than data.
func (r Result) IsSize() bool {
	return r.sized
}

// Encoded returns the data as standard base64.
func (r Result) Encoded() string {
	return base64.StdEncoding.EncodeToString(r.Data)
}

// MarshalJSON renders a size as a bare integer and data as a base64 string.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.sized {
		return []byte(strconv.FormatInt(r.Size, 10)), nil
	}
	return json.Marshal(r.Encoded())
}

// UnmarshalJSON reads either form written by MarshalJSON.
func (r *Result) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var encoded string
		if err := json.Unmarshal(b, &encoded); err != nil {
			return err
		}
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return zerr.Wrap(err, "data is not base64")
		}
		*r = DataResult(data)
		return nil
	}

	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return zerr.Wrap(err, "result is neither a size nor data")
	}
	*r = SizeResult(n)
	return nil
}

// Handler answers events from the image cache.
type Handler struct {
	cache  ports.ImageCache
	logger ports.Logger
}

// NewHandler creates a Handler.
func NewHandler(cache ports.ImageCache, logger ports.Logger) *Handler {
	return &Handler{cache: cache, logger: logger}
}

// Handle decodes payload and answers it. {"type":"size"} yields the size;
// any other payload must carry integral "start" and "size" fields and yields
// that range of the image, clamped to its end.
func (h *Handler) Handle(ctx context.Context, payload []byte) (Result, error) {
	fields, err := decode(payload)
	if err != nil {
		return Result{}, err
	}

	if kind, ok := fields["type"].(string); ok && kind == "size" {
		n, err := h.cache.Size(ctx)
		if err != nil {
			return Result{}, err
		}
		return SizeResult(n), nil
	}

	start, err := integerField(fields, "start")
	if err != nil {
		return Result{}, err
	}
	size, err := integerField(fields, "size")
	if err != nil {
		return Result{}, err
	}

	data, err := h.cache.ReadRange(ctx, start, size)
	if err != nil {
		return Result{}, err
	}
	return DataResult(data), nil
}

func decode(payload []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, domain.Fail(domain.ErrInvalidRequest, zerr.Wrap(err, "payload is not a JSON object"))
	}
	if fields == nil {
		return nil, zerr.Wrap(domain.ErrInvalidRequest, "payload is not a JSON object")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, zerr.Wrap(domain.ErrInvalidRequest, "unexpected data after JSON object")
	}
	return fields, nil
}

func integerField(fields map[string]any, key string) (int64, error) {
	raw, ok := fields[key]
	if !ok {
		return 0, zerr.With(zerr.Wrap(domain.ErrInvalidRequest, "missing field"), "field", key)
	}

	num, ok := raw.(json.Number)
	if !ok {
		return 0, zerr.With(zerr.Wrap(domain.ErrInvalidRequest, "field is not a number"), "field", key)
	}

	if n, err := num.Int64(); err == nil {
		return n, nil
	}

	// Accept integral floats such as 10.0. float64(math.MaxInt64) rounds up
	// to 2^63, which is already out of range.
	f, err := num.Float64()
	if err != nil || f != math.Trunc(f) || f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, zerr.With(zerr.Wrap(domain.ErrInvalidRequest, "field is not an integer"), "field", key)
	}
	return int64(f), nil
}

// ServeHTTP reads an event from the request body and writes the JSON result.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadSize))
	if err != nil {
		h.fail(w, domain.Fail(domain.ErrInvalidRequest, err))
		return
	}

	result, err := h.Handle(r.Context(), payload)
	if err != nil {
		h.fail(w, err)
		return
	}

	out, err := json.Marshal(result)
	if err != nil {
		h.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	h.logger.Error(err)
	web.Write(w, web.ErrorResponse(err))
}
