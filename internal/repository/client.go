// Package repository talks to one package repository laid out as
// group/as/path/name/version/name-version[-classifier].ext, over the local
// filesystem or http.
package repository

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/provisio/prov/internal/coordinate"
	oerrors "github.com/provisio/prov/internal/errors"
	"github.com/provisio/prov/internal/output"
	"github.com/provisio/prov/internal/version"
)

// Client reads one repository. Every failure of ListVersions and Fetch wraps
// errors.ErrNotFound so callers can move on to the next repository.
type Client interface {
	// ListVersions returns the metadata of the group:name prefix.
	ListVersions(ctx context.Context, prefix coordinate.Coordinate) (*Metadata, error)

	// Fetch opens the artifact c. The caller closes the stream.
	Fetch(ctx context.Context, c coordinate.Coordinate) (io.ReadCloser, error)

	// Location returns the repository location without credentials.
	Location() string
}

type options struct {
	httpClient *http.Client
	timeout    time.Duration
	attempts   int
	delay      time.Duration
}

// Option configures a Client.
type Option func(*options)

// WithHTTPClient sets the http client used by http repositories.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithTimeout sets the per-request timeout of http repositories.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithRetry sets the attempt count and initial backoff delay of http repositories.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(o *options) {
		o.attempts = attempts
		o.delay = delay
	}
}

// New returns a Client for ref.
func New(ref Reference, opts ...Option) (Client, error) {
	o := options{
		timeout:  30 * time.Second,
		attempts: 3,
		delay:    time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if ref.URL == "" {
		return nil, fmt.Errorf("repository reference has no location")
	}
	if ref.IsLocal() {
		return &fileClient{root: ref.URL}, nil
	}

	hc := o.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: o.timeout}
	}
	return &httpClient{
		ref:   ref,
		http:  hc,
		retry: backoff{attempts: o.attempts, delay: o.delay},
	}, nil
}

// FetchPOM fetches and decodes the POM of c.
func FetchPOM(ctx context.Context, client Client, c coordinate.Coordinate) (*POM, error) {
	rc, err := client.Fetch(ctx, c.POM())
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	pom, err := ParsePOM(rc)
	if err != nil {
		return nil, notFound(client.Location(), c.POM(), err)
	}
	return pom, nil
}

// Chain is an ordered list of repositories. Order is lookup priority.
type Chain []Client

// FindVersion returns the first repository whose metadata lists c.Version.
// Failures of individual repositories are logged and skipped.
func (ch Chain) FindVersion(ctx context.Context, c coordinate.Coordinate) (Client, error) {
	for _, client := range ch {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		meta, err := client.ListVersions(ctx, c)
		if err != nil {
			output.Debug("repository skipped", "repository", client.Location(), "artifact", c.Prefix(), "err", err)
			continue
		}
		if meta.Has(c.Version) {
			return client, nil
		}
		output.Debug("version not listed", "repository", client.Location(), "artifact", c.Prefix(), "version", c.Version)
	}
	return nil, oerrors.NewNotFoundError(
		fmt.Sprintf("no repository offers %s", c),
		"",
		"Run 'prov refresh' if the version was published recently.",
	)
}

// Versions merges the version lists of every repository, oldest first.
func (ch Chain) Versions(ctx context.Context, prefix coordinate.Coordinate) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	found := false

	for _, client := range ch {
		meta, err := client.ListVersions(ctx, prefix)
		if err != nil {
			output.Debug("repository skipped", "repository", client.Location(), "artifact", prefix.Prefix(), "err", err)
			continue
		}
		found = true
		for _, v := range meta.Versions() {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	if !found {
		return nil, oerrors.NewNotFoundError(fmt.Sprintf("no repository lists %s", prefix.Prefix()), "", "")
	}
	version.Sort(out)
	return out, nil
}

func notFound(location string, c coordinate.Coordinate, cause error) error {
	return fmt.Errorf("%w: %s in %s: %w", oerrors.ErrNotFound, c, location, cause)
}
