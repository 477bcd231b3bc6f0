package transport

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/yarkm13/red-connector-http/internal/connerr"
)

type SFTPFactory struct{}

func (f *SFTPFactory) Accept(u *url.URL) bool {
	return u.Scheme == "sftp"
}

func (f *SFTPFactory) Create(u *url.URL, options Options) (Fetcher, error) {
	return NewSFTP(u, options)
}

func (f *SFTPFactory) Name() string {
	return "sftp"
}

type SFTP struct {
	ssh    *ssh.Client
	client *sftp.Client
	host   string
	creds  *Credentials
	logger *slog.Logger
}

func NewSFTP(u *url.URL, options Options) (*SFTP, error) {
	options.setDefaults()
	if err := options.requireReceive("sftp"); err != nil {
		return nil, err
	}
	sshClient, err := dialSSH(u, options)
	if err != nil {
		return nil, err
	}
	client, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, &connerr.TransportError{URL: u.Redacted(), Method: "SFTP", Err: err}
	}
	options.Logger.Debug("sftp connected", "host", u.Host)
	return &SFTP{
		ssh:    sshClient,
		client: client,
		host:   u.Host,
		creds:  options.Credentials,
		logger: options.Logger,
	}, nil
}

func (s *SFTP) FetchToFile(ctx context.Context, rawURL, destination string) error {
	remotePath, err := remotePathFor(rawURL, s.host)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return &connerr.TransportError{URL: Redact(rawURL), Method: "OPEN", Err: err}
	}

	remote, err := s.client.Open(remotePath)
	if err != nil {
		return &connerr.TransportError{URL: Redact(rawURL), Method: "OPEN", Err: err}
	}
	defer remote.Close()

	written, err := saveRemoteFile(destination, rawURL, "READ", remote)
	if err != nil {
		return err
	}
	s.logger.Debug("fetched file", "url", Redact(rawURL), "path", destination, "bytes", written)
	return nil
}

func (s *SFTP) Close() error {
	s.creds.Clear()
	err := s.client.Close()
	if sshErr := s.ssh.Close(); err == nil {
		err = sshErr
	}
	return err
}
