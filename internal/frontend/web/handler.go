// Package web serves the image cache over HTTP routes under a path prefix.
package web

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.trai.ch/pgo/internal/core/domain"
	"go.trai.ch/pgo/internal/core/ports"
	"go.trai.ch/zerr"
)

const (
	contentTypeText   = "text/plain"
	contentTypeBinary = "application/octet-stream"

	placeholderBody = "empty"
)

// Response is a fully materialized HTTP response.
type Response struct {
	Status int
	Header http.Header
	Body   [][]byte
}

// StatusLine renders the status as "200 OK".
func (r Response) StatusLine() string {
	return strconv.Itoa(r.Status) + " " + http.StatusText(r.Status)
}

// ContentLength returns the total length of the body chunks.
func (r Response) ContentLength() int {
	n := 0
	for _, chunk := range r.Body {
		n += len(chunk)
	}
	return n
}

func textResponse(status int, body string) Response {
	return Response{
		Status: status,
		Header: http.Header{"Content-Type": []string{contentTypeText}},
		Body:   [][]byte{[]byte(body)},
	}
}

// ErrorResponse maps err to a text response. Caller input errors become 400,
// everything else 500.
func ErrorResponse(err error) Response {
	status := http.StatusInternalServerError
	if domain.IsClientError(err) {
		status = http.StatusBadRequest
	}
	return textResponse(status, err.Error())
}

// Handler routes requests whose path contains the prefix to the image cache
// and passes all other requests to next.
type Handler struct {
	cache  ports.ImageCache
	prefix string
	next   http.Handler
	logger ports.Logger
}

// NewHandler creates a Handler. A nil next answers unrouted requests with 404.
func NewHandler(cache ports.ImageCache, prefix string, next http.Handler, logger ports.Logger) *Handler {
	if next == nil {
		next = http.NotFoundHandler()
	}
	return &Handler{
		cache:  cache,
		prefix: prefix,
		next:   next,
		logger: logger,
	}
}

// Handles reports whether the path belongs to this handler.
func (h *Handler) Handles(path string) bool {
	return strings.Contains(path, h.prefix)
}

// Route maps a request URI to a response. Only the path is considered.
// The listing route never builds the image; the size and download routes
// build it on first use. Any other route under the prefix returns the
// placeholder body without building.
func (h *Handler) Route(ctx context.Context, uri string) (Response, error) {
	u, err := url.ParseRequestURI(uri)
	if err != nil {
		return Response{}, domain.Fail(domain.ErrInvalidRequest, zerr.With(err, "uri", uri))
	}
	path := u.Path

	switch {
	case strings.HasSuffix(path, "/list"):
		listing, err := h.cache.ReadManifestListing()
		if err != nil {
			return Response{}, err
		}
		return textResponse(http.StatusOK, listing), nil

	case strings.HasSuffix(path, "/size"):
		size, err := h.cache.Size(ctx)
		if err != nil {
			return Response{}, err
		}
		return textResponse(http.StatusOK, "size: "+strconv.FormatInt(size, 10)), nil

	case strings.HasSuffix(path, "/download"):
		data, err := h.cache.ReadAll(ctx)
		if err != nil {
			return Response{}, err
		}
		return Response{
			Status: http.StatusOK,
			Header: http.Header{"Content-Type": []string{contentTypeBinary}},
			Body:   [][]byte{data},
		}, nil

	default:
		return textResponse(http.StatusOK, placeholderBody), nil
	}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.Handles(r.URL.Path) {
		h.next.ServeHTTP(w, r)
		return
	}

	resp, err := h.Route(r.Context(), r.URL.RequestURI())
	if err != nil {
		h.logger.Error(zerr.With(err, "path", r.URL.Path))
		resp = ErrorResponse(err)
	}
	Write(w, resp)
}

// Write copies resp to w.
func Write(w http.ResponseWriter, resp Response) {
	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.Status)
	for _, chunk := range resp.Body {
		if _, err := w.Write(chunk); err != nil {
			return
		}
	}
}
