package transport

import (
	"errors"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/yarkm13/red-connector-http/internal/connerr"
)

const copyBufferSize = 32 << 10

// errorBodyLimit bounds how much of an error response is kept for the
// error message.
const errorBodyLimit = 4 << 10

// saveRemoteFile streams reader into destination, truncating any existing
// file. The parent directory is never created here. Write failures are
// reported as filesystem errors, read failures as transport errors.
func saveRemoteFile(destination, sourceURL, method string, reader io.Reader) (int64, error) {
	destFile, err := os.Create(destination)
	if err != nil {
		return 0, connerr.Filesystem("creating %s: %w", destination, err)
	}

	writer := &trackedWriter{w: destFile}
	written, copyErr := io.CopyBuffer(writer, reader, make([]byte, copyBufferSize))
	closeErr := destFile.Close()

	switch {
	case writer.err != nil:
		return written, connerr.Filesystem("writing %s: %w", destination, writer.err)
	case copyErr != nil:
		return written, &connerr.TransportError{URL: Redact(sourceURL), Method: method, Err: copyErr}
	case closeErr != nil:
		return written, connerr.Filesystem("closing %s: %w", destination, closeErr)
	}
	return written, nil
}

// trackedWriter remembers the first write error so copy failures can be
// attributed to the destination rather than the source.
type trackedWriter struct {
	w   io.Writer
	err error
}

func (t *trackedWriter) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	if err != nil && t.err == nil {
		t.err = err
	}
	return n, err
}

func readErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, errorBodyLimit))
	return string(data)
}

// Redact masks the password of rawURL for error messages and logs. URLs
// that do not parse lose their whole userinfo.
func Redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err == nil {
		return u.Redacted()
	}
	scheme, rest, found := strings.Cut(rawURL, "://")
	if !found {
		return rawURL
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		rest = rest[at+1:]
	}
	return scheme + "://" + rest
}

// invalidURL reports a url.Parse failure without echoing the raw URL,
// which the parse error itself would carry.
func invalidURL(rawURL string, err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	return connerr.Config("invalid url %q: %w", Redact(rawURL), err)
}
