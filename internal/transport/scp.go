package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/yarkm13/red-connector-http/internal/connerr"
)

type SCPFactory struct{}

func (f *SCPFactory) Accept(u *url.URL) bool { return u.Scheme == "scp" }

func (f *SCPFactory) Create(u *url.URL, options Options) (Fetcher, error) {
	return NewSCP(u, options)
}

func (f *SCPFactory) Name() string { return "scp" }

// SCP fetches files by running "scp -f" in a new session per file.
type SCP struct {
	client *ssh.Client
	host   string
	creds  *Credentials
	logger *slog.Logger
}

func NewSCP(u *url.URL, options Options) (*SCP, error) {
	options.setDefaults()
	if err := options.requireReceive("scp"); err != nil {
		return nil, err
	}
	client, err := dialSSH(u, options)
	if err != nil {
		return nil, err
	}
	return &SCP{
		client: client,
		host:   u.Host,
		creds:  options.Credentials,
		logger: options.Logger,
	}, nil
}

func (s *SCP) FetchToFile(ctx context.Context, rawURL, destination string) error {
	remotePath, err := remotePathFor(rawURL, s.host)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return scpError(rawURL, err)
	}

	session, err := s.client.NewSession()
	if err != nil {
		return scpError(rawURL, fmt.Errorf("failed to create session: %w", err))
	}
	defer session.Close()

	stdout, err := session.StdoutPipe()
	if err != nil {
		return scpError(rawURL, fmt.Errorf("failed to get stdout pipe: %w", err))
	}
	stdin, err := session.StdinPipe()
	if err != nil {
		return scpError(rawURL, fmt.Errorf("failed to get stdin pipe: %w", err))
	}

	if err := session.Start("scp -f " + shellQuote(remotePath)); err != nil {
		return scpError(rawURL, fmt.Errorf("failed to start scp command: %w", err))
	}

	writer := bufio.NewWriter(stdin)
	reader := bufio.NewReader(stdout)

	if err := writeByte(writer, 0); err != nil {
		return scpError(rawURL, fmt.Errorf("failed to write initial null byte: %w", err))
	}

	// file metadata line: C0664 999999999 test.txt
	//                     mode  size      filename
	line, err := reader.ReadString('\n')
	if err != nil {
		return scpError(rawURL, fmt.Errorf("failed to read file metadata: %w", err))
	}
	size, err := parseSCPHeader(line)
	if err != nil {
		return scpError(rawURL, err)
	}

	if err := writeByte(writer, 0); err != nil {
		return scpError(rawURL, fmt.Errorf("failed to acknowledge metadata: %w", err))
	}

	written, err := saveRemoteFile(destination, rawURL, "SCP", io.LimitReader(reader, size))
	if err != nil {
		return err
	}
	if written != size {
		return scpError(rawURL, fmt.Errorf("short transfer: got %d of %d bytes", written, size))
	}

	if b, err := reader.ReadByte(); err != nil || b != 0 {
		return scpError(rawURL, fmt.Errorf("unexpected trailing byte: %v", b))
	}
	if err := writeByte(writer, 0); err != nil {
		return scpError(rawURL, fmt.Errorf("failed to send final null byte: %w", err))
	}
	if err := session.Wait(); err != nil {
		return scpError(rawURL, err)
	}

	s.logger.Debug("fetched file", "url", Redact(rawURL), "path", destination, "bytes", written)
	return nil
}

func (s *SCP) Close() error {
	s.creds.Clear()
	return s.client.Close()
}

// parseSCPHeader returns the file size announced by a "C" line. Warning
// (0x01) and error (0x02) lines become errors carrying the remote message.
func parseSCPHeader(line string) (int64, error) {
	if line == "" {
		return 0, fmt.Errorf("empty scp response")
	}
	switch line[0] {
	case 1, 2:
		return 0, fmt.Errorf("remote scp: %s", strings.TrimSpace(line[1:]))
	case 'C':
	default:
		return 0, fmt.Errorf("unexpected SCP metadata format: %q", line)
	}

	fields := strings.SplitN(strings.TrimSpace(line), " ", 3)
	if len(fields) != 3 {
		return 0, fmt.Errorf("unexpected SCP metadata format: %q", line)
	}
	size, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid file size: %w", err)
	}
	return size, nil
}

func scpError(rawURL string, err error) error {
	return &connerr.TransportError{URL: Redact(rawURL), Method: "SCP", Err: err}
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func writeByte(w *bufio.Writer, b byte) error {
	if _, err := w.Write([]byte{b}); err != nil {
		return err
	}
	return w.Flush()
}
