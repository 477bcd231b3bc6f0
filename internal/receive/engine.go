// Package receive implements the connector operations: fetching a listed
// directory tree, and receiving or sending a single file.
package receive

import (
	"log/slog"
	"net/url"

	"github.com/yarkm13/red-connector-http/internal/access"
	"github.com/yarkm13/red-connector-http/internal/connerr"
	"github.com/yarkm13/red-connector-http/internal/logging"
	"github.com/yarkm13/red-connector-http/internal/transport"
)

// Engine runs connector operations. Settings carries the options that do
// not come from the access descriptor (timeouts, CA roots, compression,
// user agent, known hosts); method, credentials and TLS policy are taken
// from the descriptor of each operation.
type Engine struct {
	Settings transport.Options
	Logger   *slog.Logger
}

// New creates an Engine. A nil logger discards output.
func New(settings transport.Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = logging.Discard()
	}
	settings.Logger = logger
	return &Engine{Settings: settings, Logger: logger}
}

// options resolves the descriptor once and overlays the engine settings.
func (e *Engine) options(descriptor *access.Descriptor, defaultMethod transport.Method) (transport.Options, error) {
	options, err := descriptor.TransportOptions(defaultMethod)
	if err != nil {
		return transport.Options{}, err
	}
	options.RootCAs = e.Settings.RootCAs
	options.ConnectTimeout = e.Settings.ConnectTimeout
	options.ReadTimeout = e.Settings.ReadTimeout
	options.Compression = e.Settings.Compression
	options.UserAgent = e.Settings.UserAgent
	options.KnownHostsFile = e.Settings.KnownHostsFile
	options.Logger = e.Logger
	return options, nil
}

// openHTTP returns an HTTP transport for operations that only make sense
// over http(s).
func (e *Engine) openHTTP(descriptor *access.Descriptor, defaultMethod transport.Method) (*transport.HTTP, error) {
	u, err := url.Parse(descriptor.URL)
	if err != nil {
		return nil, connerr.Config("invalid url %q", descriptor.RedactedURL())
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, connerr.Config("this operation requires an http or https url, got scheme %q", u.Scheme)
	}
	options, err := e.options(descriptor, defaultMethod)
	if err != nil {
		return nil, err
	}
	return transport.NewHTTP(options), nil
}

// HTTPClient returns a receive-side HTTP transport for descriptor, used by
// callers that issue their own requests such as the FUSE view.
func (e *Engine) HTTPClient(descriptor *access.Descriptor) (*transport.HTTP, error) {
	return e.openHTTP(descriptor, transport.MethodGet)
}
