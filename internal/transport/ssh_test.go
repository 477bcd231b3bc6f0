package transport

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yarkm13/red-connector-http/internal/connerr"
	"github.com/yarkm13/red-connector-http/internal/transport/sshtest"
)

func sshOptions(t *testing.T, server *sshtest.Server, password string) Options {
	return Options{
		Method:         MethodGet,
		Credentials:    &Credentials{Scheme: AuthBasic, Username: "alice", Password: []byte(password)},
		VerifyTLS:      true,
		KnownHostsFile: server.KnownHostsFile(t),
	}
}

func writeRemote(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "remote file.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func mustParse(t *testing.T, rawURL string) *url.URL {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parsing %s: %v", rawURL, err)
	}
	return u
}

func TestSFTPFetchToFile(t *testing.T) {
	server := sshtest.NewServer(t, "alice", "secret")
	remote := writeRemote(t, "over sftp")
	ctx := context.Background()

	fetcher, err := NewSFTP(mustParse(t, server.URL("sftp", "/")), sshOptions(t, server, "secret"))
	if err != nil {
		t.Fatalf("NewSFTP: %v", err)
	}
	defer fetcher.Close()

	t.Run("fetches file", func(t *testing.T) {
		destination := filepath.Join(t.TempDir(), "local.txt")
		if err := fetcher.FetchToFile(ctx, server.URL("sftp", remote), destination); err != nil {
			t.Fatalf("FetchToFile: %v", err)
		}
		if got := readFile(t, destination); got != "over sftp" {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("missing remote file", func(t *testing.T) {
		err := fetcher.FetchToFile(ctx, server.URL("sftp", remote+".missing"), filepath.Join(t.TempDir(), "x"))
		if connerr.KindOf(err) != connerr.KindTransport {
			t.Fatalf("expected transport error, got %v", err)
		}
	})

	t.Run("other host", func(t *testing.T) {
		err := fetcher.FetchToFile(ctx, "sftp://elsewhere.example/data/x.txt", filepath.Join(t.TempDir(), "x"))
		if connerr.KindOf(err) != connerr.KindConfig {
			t.Fatalf("expected config error, got %v", err)
		}
	})
}

func TestSSHDialFailures(t *testing.T) {
	server := sshtest.NewServer(t, "alice", "secret")
	u := mustParse(t, server.URL("sftp", "/"))

	t.Run("wrong password", func(t *testing.T) {
		_, err := NewSFTP(u, sshOptions(t, server, "guess"))
		if connerr.KindOf(err) != connerr.KindTransport {
			t.Fatalf("expected transport error, got %v", err)
		}
		if strings.Contains(err.Error(), "guess") {
			t.Fatalf("password leaked into error: %v", err)
		}
	})

	t.Run("unknown host key", func(t *testing.T) {
		options := sshOptions(t, server, "secret")
		options.KnownHostsFile = filepath.Join(t.TempDir(), "known_hosts")
		if err := os.WriteFile(options.KnownHostsFile, nil, 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := NewSFTP(u, options); connerr.KindOf(err) != connerr.KindTransport {
			t.Fatalf("expected transport error, got %v", err)
		}
	})

	t.Run("verification disabled", func(t *testing.T) {
		options := sshOptions(t, server, "secret")
		options.VerifyTLS = false
		options.KnownHostsFile = ""
		fetcher, err := NewSFTP(u, options)
		if err != nil {
			t.Fatalf("NewSFTP: %v", err)
		}
		fetcher.Close()
	})
}

func TestSCPFetchToFile(t *testing.T) {
	server := sshtest.NewServer(t, "alice", "secret")
	remote := writeRemote(t, "over scp")
	ctx := context.Background()

	fetcher, err := NewSCP(mustParse(t, server.URL("scp", "/")), sshOptions(t, server, "secret"))
	if err != nil {
		t.Fatalf("NewSCP: %v", err)
	}
	defer fetcher.Close()

	t.Run("fetches file", func(t *testing.T) {
		destination := filepath.Join(t.TempDir(), "local.txt")
		if err := fetcher.FetchToFile(ctx, server.URL("scp", remote), destination); err != nil {
			t.Fatalf("FetchToFile: %v", err)
		}
		if got := readFile(t, destination); got != "over scp" {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("remote error line", func(t *testing.T) {
		err := fetcher.FetchToFile(ctx, server.URL("scp", remote+".missing"), filepath.Join(t.TempDir(), "x"))
		if connerr.KindOf(err) != connerr.KindTransport {
			t.Fatalf("expected transport error, got %v", err)
		}
		if !strings.Contains(err.Error(), "No such file") {
			t.Fatalf("remote message lost: %v", err)
		}
	})

	t.Run("short transfer", func(t *testing.T) {
		server.SCPShortBy = 5
		defer func() { server.SCPShortBy = 0 }()
		err := fetcher.FetchToFile(ctx, server.URL("scp", remote), filepath.Join(t.TempDir(), "x"))
		if err == nil || !strings.Contains(err.Error(), "short transfer") {
			t.Fatalf("expected short transfer error, got %v", err)
		}
	})
}
