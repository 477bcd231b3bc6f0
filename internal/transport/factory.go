package transport

import (
	"net/url"

	"github.com/yarkm13/red-connector-http/internal/connerr"
)

var factories = []Factory{
	&HTTPFactory{},
	&FTPFactory{},
	&SFTPFactory{},
	&SCPFactory{},
}

// ForURL returns the factory accepting u, or nil.
func ForURL(u *url.URL) Factory {
	for _, factory := range factories {
		if factory.Accept(u) {
			return factory
		}
	}
	return nil
}

// Open parses rawURL and creates a fetcher for its scheme.
func Open(rawURL string, options Options) (Fetcher, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, invalidURL(rawURL, err)
	}
	factory := ForURL(u)
	if factory == nil {
		return nil, connerr.Config("no transport available for scheme %q", u.Scheme)
	}
	return factory.Create(u, options)
}
