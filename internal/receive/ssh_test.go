package receive

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/yarkm13/red-connector-http/internal/access"
	"github.com/yarkm13/red-connector-http/internal/connerr"
	"github.com/yarkm13/red-connector-http/internal/transport"
	"github.com/yarkm13/red-connector-http/internal/transport/sshtest"
)

// writeRemoteTree lays out the files of twoLevelListing under a new
// directory and returns it.
func writeRemoteTree(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "data")
	if err := os.MkdirAll(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	for name, content := range map[string]string{"a.txt": "alpha", "sub/b.txt": "bravo"} {
		if err := os.WriteFile(filepath.Join(root, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestReceiveDirOverSSH(t *testing.T) {
	server := sshtest.NewServer(t, "alice", "secret")
	remote := writeRemoteTree(t)
	engine := New(transport.Options{KnownHostsFile: server.KnownHostsFile(t)}, nil)

	for _, scheme := range []string{"sftp", "scp"} {
		t.Run(scheme, func(t *testing.T) {
			localDir := filepath.Join(t.TempDir(), "out")
			descriptor := &access.Descriptor{
				URL:  server.URL(scheme, remote),
				Auth: &access.Auth{Username: "alice", Password: "secret"},
			}
			if err := engine.ReceiveDir(context.Background(), localDir, descriptor, twoLevelListing()); err != nil {
				t.Fatalf("ReceiveDir: %v", err)
			}
			assertContent(t, filepath.Join(localDir, "a.txt"), "alpha")
			assertDir(t, filepath.Join(localDir, "sub"))
			assertContent(t, filepath.Join(localDir, "sub", "b.txt"), "bravo")
		})
	}

	t.Run("missing remote file stops the fetch", func(t *testing.T) {
		localDir := filepath.Join(t.TempDir(), "out")
		descriptor := &access.Descriptor{
			URL:  server.URL("sftp", remote),
			Auth: &access.Auth{Username: "alice", Password: "secret"},
		}
		nodes := twoLevelListing()
		nodes[0].Basename = "absent.txt"
		err := engine.ReceiveDir(context.Background(), localDir, descriptor, nodes)
		if connerr.KindOf(err) != connerr.KindTransport {
			t.Fatalf("expected transport error, got %v", err)
		}
		if _, err := os.Stat(filepath.Join(localDir, "sub")); !os.IsNotExist(err) {
			t.Fatalf("fetch continued after the failure, stat err: %v", err)
		}
	})

	t.Run("non-GET method rejected before connecting", func(t *testing.T) {
		localDir := filepath.Join(t.TempDir(), "out")
		descriptor := &access.Descriptor{
			URL:    server.URL("sftp", remote),
			Method: "PUT",
			Auth:   &access.Auth{Username: "alice", Password: "secret"},
		}
		err := engine.ReceiveDir(context.Background(), localDir, descriptor, twoLevelListing())
		if connerr.KindOf(err) != connerr.KindConfig {
			t.Fatalf("expected config error, got %v", err)
		}
		if _, err := os.Stat(localDir); !os.IsNotExist(err) {
			t.Fatal("local directory created despite config error")
		}
	})
}
