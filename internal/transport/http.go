package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/icholy/digest"

	"github.com/yarkm13/red-connector-http/internal/connerr"
)

// MaxDocumentSize bounds document response reads.
const MaxDocumentSize int64 = 256 << 20

type HTTPFactory struct{}

func (f *HTTPFactory) Accept(u *url.URL) bool {
	return u.Scheme == "http" || u.Scheme == "https"
}

func (f *HTTPFactory) Create(u *url.URL, options Options) (Fetcher, error) {
	return NewHTTP(options), nil
}

func (f *HTTPFactory) Name() string {
	return "http"
}

// HTTP issues requests with a fixed verb, auth strategy and TLS policy.
type HTTP struct {
	options Options
	logger  *slog.Logger

	// streaming has no overall timeout; document is bounded by
	// ConnectTimeout + ReadTimeout.
	streaming *http.Client
	document  *http.Client
	transport *http.Transport
}

// NewHTTP builds an HTTP transport for options.
func NewHTTP(options Options) *HTTP {
	options.setDefaults()

	dialer := &net.Dialer{
		Timeout:   options.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}
	base := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: options.ConnectTimeout,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: !options.VerifyTLS,
			RootCAs:            options.RootCAs,
		},
		MaxIdleConnsPerHost: 2,
	}

	var roundTripper http.RoundTripper = base
	if options.Credentials != nil && options.Credentials.Scheme == AuthDigest {
		roundTripper = &digest.Transport{
			Username:  options.Credentials.Username,
			Password:  string(options.Credentials.Password),
			Transport: base,
		}
	}

	return &HTTP{
		options:   options,
		logger:    options.Logger,
		streaming: &http.Client{Transport: roundTripper},
		document: &http.Client{
			Transport: roundTripper,
			Timeout:   options.ConnectTimeout + options.ReadTimeout,
		},
		transport: base,
	}
}

// Method returns the verb every request of this transport uses.
func (h *HTTP) Method() Method {
	return h.options.Method
}

func (h *HTTP) newRequest(ctx context.Context, rawURL string, body io.Reader) (*http.Request, error) {
	request, err := http.NewRequestWithContext(ctx, string(h.options.Method), rawURL, body)
	if err != nil {
		return nil, &connerr.TransportError{URL: Redact(rawURL), Method: string(h.options.Method), Err: err}
	}
	if credentials := h.options.Credentials; credentials != nil && credentials.Scheme == AuthBasic {
		request.SetBasicAuth(credentials.Username, string(credentials.Password))
	}
	if h.options.UserAgent != "" {
		request.Header.Set("User-Agent", h.options.UserAgent)
	}
	if h.options.Compression {
		request.Header.Set("Accept-Encoding", acceptEncoding)
	}
	return request, nil
}

// do sends request and converts failures and statuses of 400 and above
// into transport errors. On success the caller owns the response body.
func (h *HTTP) do(client *http.Client, request *http.Request) (*http.Response, error) {
	rawURL := request.URL.Redacted()
	response, err := client.Do(request)
	if err != nil {
		return nil, &connerr.TransportError{URL: Redact(rawURL), Method: request.Method, Err: err}
	}
	if response.StatusCode >= http.StatusBadRequest {
		defer response.Body.Close()
		return nil, &connerr.TransportError{
			URL:        Redact(rawURL),
			Method:     request.Method,
			StatusCode: response.StatusCode,
			Status:     response.Status,
			Body:       readErrorBody(response.Body),
		}
	}
	return response, nil
}

func (h *HTTP) body(rawURL string, response *http.Response) (io.ReadCloser, error) {
	if !h.options.Compression {
		return response.Body, nil
	}
	body, err := decodeBody(response.Header.Get("Content-Encoding"), response.Body)
	if err != nil {
		response.Body.Close()
		return nil, &connerr.TransportError{URL: Redact(rawURL), Method: string(h.options.Method), Err: err}
	}
	return body, nil
}

// FetchToFile streams the response for rawURL into destination without
// buffering the whole body.
func (h *HTTP) FetchToFile(ctx context.Context, rawURL, destination string) error {
	request, err := h.newRequest(ctx, rawURL, nil)
	if err != nil {
		return err
	}
	response, err := h.do(h.streaming, request)
	if err != nil {
		return err
	}
	body, err := h.body(rawURL, response)
	if err != nil {
		return err
	}
	defer body.Close()

	written, err := saveRemoteFile(destination, rawURL, string(h.options.Method), body)
	if err != nil {
		return err
	}
	h.logger.Debug("fetched file", "url", Redact(rawURL), "path", destination, "bytes", written)
	return nil
}

// FetchDocument requests rawURL and decodes the response as a single JSON
// value.
func (h *HTTP) FetchDocument(ctx context.Context, rawURL string) (any, error) {
	request, err := h.newRequest(ctx, rawURL, nil)
	if err != nil {
		return nil, err
	}
	request.Header.Set("Accept", "application/json")
	response, err := h.do(h.document, request)
	if err != nil {
		return nil, err
	}
	body, err := h.body(rawURL, response)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	document, err := DecodeDocument(io.LimitReader(body, MaxDocumentSize))
	if err != nil {
		return nil, &connerr.TransportError{
			URL:    Redact(rawURL),
			Method: request.Method,
			Err:    fmt.Errorf("decoding response as JSON: %w", err),
		}
	}
	h.logger.Debug("fetched document", "url", Redact(rawURL), "status", response.StatusCode)
	return document, nil
}

// SendDocument encodes document as JSON and sends it as the request body.
func (h *HTTP) SendDocument(ctx context.Context, rawURL string, document any) error {
	data, err := json.Marshal(document)
	if err != nil {
		return connerr.Validation("encoding document: %w", err)
	}
	request, err := h.newRequest(ctx, rawURL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	request.Header.Set("Content-Type", "application/json")
	response, err := h.do(h.document, request)
	if err != nil {
		return err
	}
	defer response.Body.Close()
	io.Copy(io.Discard, io.LimitReader(response.Body, errorBodyLimit))
	h.logger.Debug("sent document", "url", Redact(rawURL), "status", response.StatusCode, "bytes", len(data))
	return nil
}

// SendFile streams the file at source as the request body.
func (h *HTTP) SendFile(ctx context.Context, rawURL, source string) error {
	file, err := os.Open(source)
	if err != nil {
		return connerr.Filesystem("opening %s: %w", source, err)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return connerr.Filesystem("stat %s: %w", source, err)
	}
	if info.IsDir() {
		return connerr.Filesystem("%s is a directory", source)
	}

	request, err := h.newRequest(ctx, rawURL, file)
	if err != nil {
		return err
	}
	request.ContentLength = info.Size()
	request.Header.Set("Content-Type", "application/octet-stream")
	// Digest auth replays the request after the challenge.
	request.GetBody = func() (io.ReadCloser, error) {
		return os.Open(source)
	}

	response, err := h.do(h.streaming, request)
	if err != nil {
		return err
	}
	defer response.Body.Close()
	io.Copy(io.Discard, io.LimitReader(response.Body, errorBodyLimit))
	h.logger.Debug("sent file", "url", Redact(rawURL), "path", source, "bytes", info.Size())
	return nil
}

// Head returns the content length reported for rawURL, or -1 when the
// server does not report one. It always uses HEAD regardless of Method.
func (h *HTTP) Head(ctx context.Context, rawURL string) (int64, error) {
	request, err := h.newRequest(ctx, rawURL, nil)
	if err != nil {
		return 0, err
	}
	request.Method = http.MethodHead
	request.Header.Del("Accept-Encoding")
	response, err := h.do(h.document, request)
	if err != nil {
		return 0, err
	}
	response.Body.Close()
	return response.ContentLength, nil
}

// ReadRange reads up to len(dest) bytes of rawURL starting at offset using
// a Range request. Servers ignoring Range are handled by skipping ahead.
func (h *HTTP) ReadRange(ctx context.Context, rawURL string, dest []byte, offset int64) (int, error) {
	request, err := h.newRequest(ctx, rawURL, nil)
	if err != nil {
		return 0, err
	}
	request.Method = http.MethodGet
	request.Header.Del("Accept-Encoding")
	request.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+int64(len(dest))-1))
	response, err := h.do(h.streaming, request)
	if err != nil {
		if transportErr, ok := err.(*connerr.TransportError); ok && transportErr.StatusCode == http.StatusRequestedRangeNotSatisfiable {
			return 0, io.EOF
		}
		return 0, err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusPartialContent && offset > 0 {
		if _, err := io.CopyN(io.Discard, response.Body, offset); err != nil {
			if err == io.EOF {
				return 0, io.EOF
			}
			return 0, &connerr.TransportError{URL: Redact(rawURL), Method: request.Method, Err: err}
		}
	}
	n, err := io.ReadFull(response.Body, dest)
	if err == io.ErrUnexpectedEOF || (err == io.EOF && n == 0) {
		return n, nil
	}
	if err != nil {
		return n, &connerr.TransportError{URL: Redact(rawURL), Method: request.Method, Err: err}
	}
	return n, nil
}

// Close releases idle connections and wipes the password.
func (h *HTTP) Close() error {
	h.options.Credentials.Clear()
	h.transport.CloseIdleConnections()
	return nil
}
