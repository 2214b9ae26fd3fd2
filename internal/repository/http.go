package repository

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/provisio/prov/internal/coordinate"
	oerrors "github.com/provisio/prov/internal/errors"
)

// httpClient reads a repository over http(s) with optional basic auth.
type httpClient struct {
	ref   Reference
	http  *http.Client
	retry backoff
}

func (h *httpClient) Location() string {
	return h.ref.URL
}

func (h *httpClient) ListVersions(ctx context.Context, prefix coordinate.Coordinate) (*Metadata, error) {
	body, err := h.get(ctx, prefix.MetadataPath())
	if err != nil {
		return nil, notFound(h.ref.URL, prefix, err)
	}
	defer body.Close()

	meta, err := ParseMetadata(body)
	if err != nil {
		return nil, notFound(h.ref.URL, prefix, err)
	}
	return meta, nil
}

// Fetch streams the artifact body. Retries cover the request up to the
// response headers; a failure mid-body surfaces from Read.
func (h *httpClient) Fetch(ctx context.Context, c coordinate.Coordinate) (io.ReadCloser, error) {
	var body io.ReadCloser
	err := h.retry.run(ctx, h.ref.URL, c.Path(), func() error {
		b, err := h.open(ctx, h.ref.URL+"/"+c.Path())
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, notFound(h.ref.URL, c, err)
	}
	return &streamBody{ReadCloser: body}, nil
}

// get retries transient failures. The returned body is fully buffered so a
// retry never hands out a half-read stream. Only small documents go through
// here.
func (h *httpClient) get(ctx context.Context, rel string) (io.ReadCloser, error) {
	var data []byte
	err := h.retry.run(ctx, h.ref.URL, rel, func() error {
		body, err := h.open(ctx, h.ref.URL+"/"+rel)
		if err != nil {
			return err
		}
		defer body.Close()

		b, err := io.ReadAll(body)
		if err != nil {
			return &transientError{err: fmt.Errorf("%w: reading body: %v", oerrors.ErrConnectivity, err)}
		}
		data = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// open sends the request and hands back the unread body of a 200 response.
func (h *httpClient) open(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if h.ref.Username != "" {
		req.SetBasicAuth(h.ref.Username, h.ref.Password)
	}

	resp, err := h.http.Do(req)
	if err != nil {
		return nil, &transientError{err: fmt.Errorf("%w: %v", oerrors.ErrConnectivity, err)}
	}
	if err := checkStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

// streamBody reports a broken transfer as a connectivity failure.
type streamBody struct {
	io.ReadCloser
}

func (s *streamBody) Read(p []byte) (int, error) {
	n, err := s.ReadCloser.Read(p)
	if err != nil && err != io.EOF {
		err = fmt.Errorf("%w: reading body: %v", oerrors.ErrConnectivity, err)
	}
	return n, err
}

func checkStatus(resp *http.Response) error {
	code := resp.StatusCode
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		return fmt.Errorf("status %d", code)
	case code == http.StatusTooManyRequests || code >= 500:
		return &transientError{
			err:   fmt.Errorf("%w: status %d", oerrors.ErrConnectivity, code),
			after: retryAfter(resp.Header),
		}
	default:
		return fmt.Errorf("%w: status %d", oerrors.ErrConnectivity, code)
	}
}
