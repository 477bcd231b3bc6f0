package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// DecodeDocument decodes exactly one JSON value from r. Numbers are kept
// as json.Number so re-encoding does not lose precision. Anything but
// whitespace after the value is an error.
func DecodeDocument(r io.Reader) (any, error) {
	decoder := json.NewDecoder(r)
	decoder.UseNumber()
	var document any
	if err := decoder.Decode(&document); err != nil {
		return nil, err
	}
	var trailing any
	if err := decoder.Decode(&trailing); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after JSON value at offset %d", decoder.InputOffset())
	}
	return document, nil
}
