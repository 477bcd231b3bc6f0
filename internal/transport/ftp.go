package transport

import (
	"context"
	"log/slog"
	"net"
	"net/url"

	"github.com/jlaffaye/ftp"

	"github.com/yarkm13/red-connector-http/internal/connerr"
)

type FTPFactory struct{}

func (f *FTPFactory) Accept(u *url.URL) bool {
	return u.Scheme == "ftp"
}

func (f *FTPFactory) Create(u *url.URL, options Options) (Fetcher, error) {
	return NewFTP(u, options)
}

func (f *FTPFactory) Name() string {
	return "ftp"
}

// FTP fetches files over a single logged-in control connection.
type FTP struct {
	client *ftp.ServerConn
	host   string
	creds  *Credentials
	logger *slog.Logger
}

func NewFTP(u *url.URL, options Options) (*FTP, error) {
	options.setDefaults()
	if err := options.requireReceive("ftp"); err != nil {
		return nil, err
	}

	address := hostWithPort(u, "21")
	c, err := ftp.Dial(address, ftp.DialWithTimeout(options.ConnectTimeout))
	if err != nil {
		return nil, &connerr.TransportError{URL: u.Redacted(), Method: "CONNECT", Err: err}
	}

	username, password := loginFor(u, options.Credentials, "anonymous", "anonymous")
	err = c.Login(username, string(password))
	SecureWipe(password)
	if err != nil {
		c.Quit()
		return nil, &connerr.TransportError{URL: u.Redacted(), Method: "LOGIN", Err: err}
	}

	options.Logger.Debug("ftp connected", "host", address, "user", username)
	return &FTP{
		client: c,
		host:   u.Host,
		creds:  options.Credentials,
		logger: options.Logger,
	}, nil
}

func (f *FTP) FetchToFile(ctx context.Context, rawURL, destination string) error {
	remotePath, err := remotePathFor(rawURL, f.host)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return &connerr.TransportError{URL: Redact(rawURL), Method: "RETR", Err: err}
	}

	r, err := f.client.Retr(remotePath)
	if err != nil {
		return &connerr.TransportError{URL: Redact(rawURL), Method: "RETR", Err: err}
	}
	defer r.Close()

	written, err := saveRemoteFile(destination, rawURL, "RETR", r)
	if err != nil {
		return err
	}
	f.logger.Debug("fetched file", "url", Redact(rawURL), "path", destination, "bytes", written)
	return nil
}

func (f *FTP) Close() error {
	f.creds.Clear()
	return f.client.Quit()
}

func hostWithPort(u *url.URL, defaultPort string) string {
	if u.Port() != "" {
		return u.Host
	}
	return net.JoinHostPort(u.Hostname(), defaultPort)
}

// loginFor picks the username and a private copy of the password from
// credentials, then from the URL userinfo, then the fallbacks.
func loginFor(u *url.URL, credentials *Credentials, fallbackUser, fallbackPassword string) (string, []byte) {
	if credentials != nil {
		password := make([]byte, len(credentials.Password))
		copy(password, credentials.Password)
		return credentials.Username, password
	}
	if u.User != nil {
		password, _ := u.User.Password()
		return u.User.Username(), []byte(password)
	}
	return fallbackUser, []byte(fallbackPassword)
}

// remotePathFor extracts the unescaped path of rawURL and rejects URLs on
// another host than the fetcher is connected to.
func remotePathFor(rawURL, host string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", invalidURL(rawURL, err)
	}
	if u.Host != host {
		return "", connerr.Config("url %s is not on host %s", Redact(rawURL), host)
	}
	if u.Path == "" {
		return "/", nil
	}
	return u.Path, nil
}
