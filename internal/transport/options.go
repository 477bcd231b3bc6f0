// Package transport moves single files between a remote endpoint and the
// local filesystem. HTTP(S) is the primary transport; ftp, sftp and scp
// URLs are served by fetchers sharing the same Fetcher contract.
package transport

import (
	"crypto/x509"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/yarkm13/red-connector-http/internal/connerr"
)

const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultReadTimeout    = 60 * time.Second
)

// Method is a request verb accepted in access descriptors.
type Method string

const (
	MethodGet  Method = "GET"
	MethodPut  Method = "PUT"
	MethodPost Method = "POST"
)

// ParseMethod maps a case-insensitive verb name onto a Method.
func ParseMethod(name string) (Method, error) {
	switch strings.ToLower(name) {
	case "get":
		return MethodGet, nil
	case "put":
		return MethodPut, nil
	case "post":
		return MethodPost, nil
	}
	return "", connerr.Config("Invalid HTTP method: %s", name)
}

// AuthScheme selects how credentials are presented.
type AuthScheme string

const (
	AuthBasic  AuthScheme = "basic"
	AuthDigest AuthScheme = "digest"
)

// ParseAuthScheme maps a case-insensitive auth method name onto an
// AuthScheme. An empty name means basic.
func ParseAuthScheme(name string) (AuthScheme, error) {
	switch strings.ToLower(name) {
	case "", "basic":
		return AuthBasic, nil
	case "digest":
		return AuthDigest, nil
	}
	return "", connerr.Config("Invalid auth method: %s", name)
}

// Credentials holds a username and password. The password is kept as a
// byte slice so it can be wiped once the operation is done.
type Credentials struct {
	Scheme   AuthScheme
	Username string
	Password []byte
}

// Clear overwrites the password with zeros and drops it.
func (c *Credentials) Clear() {
	if c == nil {
		return
	}
	SecureWipe(c.Password)
	c.Password = nil
}

// SecureWipe overwrites data with zeros.
func SecureWipe(data []byte) {
	for i := range data {
		data[i] = 0
	}
}

// Options configures a fetcher. It is resolved once per operation from
// the access descriptor and applies to every file of that operation.
type Options struct {
	Method Method

	// Credentials is nil when no authentication is sent.
	Credentials *Credentials

	// VerifyTLS enables certificate verification for https and host key
	// verification for ssh based schemes.
	VerifyTLS bool

	// RootCAs replaces the system roots when non-nil.
	RootCAs *x509.CertPool

	// ConnectTimeout bounds connection setup for every request.
	// ReadTimeout additionally bounds document requests, which hold the
	// whole body in memory. Streaming file transfers have no overall
	// deadline.
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration

	// Compression advertises zstd and gzip content encodings and decodes
	// them while streaming.
	Compression bool

	UserAgent string

	// KnownHostsFile is consulted for ssh host keys when VerifyTLS is set.
	KnownHostsFile string

	Logger *slog.Logger
}

func (o *Options) setDefaults() {
	if o.Method == "" {
		o.Method = MethodGet
	}
	if o.ConnectTimeout == 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.ReadTimeout == 0 {
		o.ReadTimeout = DefaultReadTimeout
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
}

// requireReceive rejects options that non-HTTP fetchers cannot honour.
func (o *Options) requireReceive(scheme string) error {
	if o.Method != MethodGet {
		return connerr.Config("%s transfers support only GET, got %s", scheme, o.Method)
	}
	if o.Credentials != nil && o.Credentials.Scheme != AuthBasic {
		return connerr.Config("%s transfers support only basic auth, got %s", scheme, o.Credentials.Scheme)
	}
	return nil
}
