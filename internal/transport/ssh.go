package transport

import (
	"net/url"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/yarkm13/red-connector-http/internal/connerr"
)

// DefaultKnownHostsFile returns ~/.ssh/known_hosts, or "" when the home
// directory is unknown.
func DefaultKnownHostsFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".ssh", "known_hosts")
}

func hostKeyCallback(options Options) (ssh.HostKeyCallback, error) {
	if !options.VerifyTLS {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	file := options.KnownHostsFile
	if file == "" {
		file = DefaultKnownHostsFile()
	}
	if file == "" {
		return nil, connerr.Config("host key verification requires a known_hosts file")
	}
	callback, err := knownhosts.New(file)
	if err != nil {
		return nil, connerr.Config("loading known hosts %s: %w", file, err)
	}
	return callback, nil
}

// dialSSH opens an ssh connection authenticated with a password.
func dialSSH(u *url.URL, options Options) (*ssh.Client, error) {
	callback, err := hostKeyCallback(options)
	if err != nil {
		return nil, err
	}

	username, password := loginFor(u, options.Credentials, "", "")
	if username == "" {
		return nil, connerr.Config("%s transfers require a username", u.Scheme)
	}
	defer SecureWipe(password)

	config := &ssh.ClientConfig{
		User: username,
		Auth: []ssh.AuthMethod{
			ssh.Password(string(password)),
		},
		HostKeyCallback: callback,
		Timeout:         options.ConnectTimeout,
	}

	client, err := ssh.Dial("tcp", hostWithPort(u, "22"), config)
	if err != nil {
		return nil, &connerr.TransportError{URL: u.Redacted(), Method: "SSH", Err: err}
	}
	return client, nil
}
