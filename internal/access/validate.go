package access

import (
	"errors"
	"net/url"

	"github.com/yarkm13/red-connector-http/internal/connerr"
)

var transferSchemes = map[string]bool{
	"http":  true,
	"https": true,
	"ftp":   true,
	"sftp":  true,
	"scp":   true,
}

// Validate checks the shape of a descriptor used for file and directory
// transfers. Method and auth method names are checked later by
// TransportOptions so that they surface as config errors.
func (d *Descriptor) Validate() error {
	u, err := d.parseURL()
	if err != nil {
		return err
	}
	if !transferSchemes[u.Scheme] {
		return connerr.Validation("url scheme %q is not supported", u.Scheme)
	}
	return d.validateAuth()
}

// ValidateMount checks a descriptor used with mount-dir, which only
// understands http(s) URLs and has no use for a method.
func (d *Descriptor) ValidateMount() error {
	u, err := d.parseURL()
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return connerr.Validation("mount requires an http or https url, got scheme %q", u.Scheme)
	}
	if d.Method != "" {
		return connerr.Validation("mount descriptors do not accept a method")
	}
	return d.validateAuth()
}

func (d *Descriptor) parseURL() (*url.URL, error) {
	if d.URL == "" {
		return nil, connerr.Validation("access descriptor requires url")
	}
	u, err := url.Parse(d.URL)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, connerr.Validation("invalid url %q: %w", d.RedactedURL(), err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, connerr.Validation("url %q must be absolute", d.RedactedURL())
	}
	return u, nil
}

func (d *Descriptor) validateAuth() error {
	if d.Auth == nil {
		return nil
	}
	if d.Auth.Username == "" {
		return connerr.Validation("auth requires username")
	}
	return nil
}
