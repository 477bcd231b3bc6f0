package transport

import (
	"context"
	"net/url"
)

// Fetcher materializes remote files on local disk. Implementations hold
// one connection (or connection pool) for the duration of an operation.
type Fetcher interface {
	// FetchToFile streams the resource at rawURL into destination,
	// overwriting it. The parent directory of destination must exist.
	FetchToFile(ctx context.Context, rawURL, destination string) error
	Close() error
}

// Factory creates fetchers for the URL schemes it accepts.
type Factory interface {
	Accept(u *url.URL) bool
	Create(u *url.URL, options Options) (Fetcher, error)
	Name() string
}
