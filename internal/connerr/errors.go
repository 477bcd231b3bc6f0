// Package connerr classifies connector failures so the command layer can
// report what went wrong (bad descriptor, remote failure, local disk
// failure) without parsing error text.
package connerr

import (
	"errors"
	"fmt"
)

// Kind names the class of a connector failure.
type Kind string

const (
	// KindConfig is an invalid HTTP method, auth method or scheme in the
	// access descriptor. Always detected before any network call.
	KindConfig Kind = "config"

	// KindTransport is a non-success status or a connection, TLS or
	// timeout failure.
	KindTransport Kind = "transport"

	// KindFilesystem is a failure to create a directory or write a file.
	KindFilesystem Kind = "filesystem"

	// KindListing is a missing or malformed listing.
	KindListing Kind = "listing"

	// KindValidation is an access descriptor or JSON input that does not
	// match the expected shape.
	KindValidation Kind = "validation"

	// KindMount is a failure of the external mount driver.
	KindMount Kind = "mount"

	// KindUnknown is returned by KindOf for unclassified errors.
	KindUnknown Kind = "unknown"
)

// Error is a classified connector error wrapping the underlying cause.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Config creates a KindConfig error.
func Config(format string, args ...any) *Error {
	return newError(KindConfig, format, args...)
}

// Filesystem creates a KindFilesystem error.
func Filesystem(format string, args ...any) *Error {
	return newError(KindFilesystem, format, args...)
}

// Listing creates a KindListing error.
func Listing(format string, args ...any) *Error {
	return newError(KindListing, format, args...)
}

// Validation creates a KindValidation error.
func Validation(format string, args ...any) *Error {
	return newError(KindValidation, format, args...)
}

// Mount creates a KindMount error.
func Mount(format string, args ...any) *Error {
	return newError(KindMount, format, args...)
}

// TransportError describes a failed request. StatusCode is zero when the
// request never produced a response (connection refused, TLS failure,
// timeout); Err then holds the cause.
type TransportError struct {
	URL        string
	Method     string
	StatusCode int
	Status     string
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		msg := fmt.Sprintf("%s %s: %s", e.Method, e.URL, e.Status)
		if e.Body != "" {
			msg += ": " + e.Body
		}
		return msg
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// KindOf reports the kind of the outermost classified error in err's
// chain.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for current := err; current != nil; current = errors.Unwrap(current) {
		switch typed := current.(type) {
		case *Error:
			return typed.Kind
		case *TransportError:
			return KindTransport
		}
	}
	return KindUnknown
}
