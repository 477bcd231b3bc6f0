// Package access loads and interprets access descriptors: the small JSON
// documents naming a remote endpoint and how to reach it.
package access

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/tidwall/jsonc"

	"github.com/yarkm13/red-connector-http/internal/connerr"
	"github.com/yarkm13/red-connector-http/internal/transport"
)

// Auth is the optional authentication block of a descriptor.
type Auth struct {
	// Method is "basic" (the default) or "digest".
	Method   string `json:"method,omitempty"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Descriptor describes how to reach a remote endpoint.
type Descriptor struct {
	URL                    string `json:"url"`
	Method                 string `json:"method,omitempty"`
	Auth                   *Auth  `json:"auth,omitempty"`
	DisableSSLVerification bool   `json:"disableSSLVerification,omitempty"`
}

// Parse decodes a descriptor. Comments and trailing commas are accepted;
// unknown fields are not.
func Parse(data []byte) (*Descriptor, error) {
	decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	decoder.DisallowUnknownFields()
	var descriptor Descriptor
	if err := decoder.Decode(&descriptor); err != nil {
		return nil, connerr.Validation("parsing access descriptor: %w", err)
	}
	return &descriptor, nil
}

// ReadFile reads and parses the descriptor at path.
func ReadFile(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, connerr.Validation("reading access descriptor %s: %w", path, err)
	}
	descriptor, err := Parse(data)
	if err != nil {
		return nil, connerr.Validation("%s: %w", path, err)
	}
	return descriptor, nil
}

// VerifyTLS reports whether certificate verification stays enabled.
func (d *Descriptor) VerifyTLS() bool {
	return !d.DisableSSLVerification
}

// RedactedURL returns the URL with any password in the userinfo masked.
func (d *Descriptor) RedactedURL() string {
	return transport.Redact(d.URL)
}

// TransportOptions resolves the method, auth strategy and TLS policy once
// for a whole operation. defaultMethod applies when the descriptor names
// none. Unknown methods fail with a config error before any request.
func (d *Descriptor) TransportOptions(defaultMethod transport.Method) (transport.Options, error) {
	method := defaultMethod
	if d.Method != "" {
		parsed, err := transport.ParseMethod(d.Method)
		if err != nil {
			return transport.Options{}, err
		}
		method = parsed
	}

	var credentials *transport.Credentials
	if d.Auth != nil {
		scheme, err := transport.ParseAuthScheme(d.Auth.Method)
		if err != nil {
			return transport.Options{}, err
		}
		credentials = &transport.Credentials{
			Scheme:   scheme,
			Username: d.Auth.Username,
			Password: []byte(d.Auth.Password),
		}
	}

	return transport.Options{
		Method:      method,
		Credentials: credentials,
		VerifyTLS:   d.VerifyTLS(),
	}, nil
}
