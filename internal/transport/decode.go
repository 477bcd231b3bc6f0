package transport

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

const acceptEncoding = "zstd, gzip"

// decodeBody wraps body in a decompressor matching contentEncoding.
// Closing the result closes body.
func decodeBody(contentEncoding string, body io.ReadCloser) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "", "identity":
		return body, nil
	case "gzip", "x-gzip":
		reader, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("opening gzip stream: %w", err)
		}
		return &decodedBody{Reader: reader, close: reader.Close, body: body}, nil
	case "zstd":
		decoder, err := zstd.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("opening zstd stream: %w", err)
		}
		return &decodedBody{
			Reader: decoder,
			close:  func() error { decoder.Close(); return nil },
			body:   body,
		}, nil
	}
	return nil, fmt.Errorf("unsupported content encoding %q", contentEncoding)
}

type decodedBody struct {
	io.Reader
	close func() error
	body  io.Closer
}

func (d *decodedBody) Close() error {
	err := d.close()
	if bodyErr := d.body.Close(); err == nil {
		err = bodyErr
	}
	return err
}
