package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yarkm13/red-connector-http/internal/config"
	"github.com/yarkm13/red-connector-http/internal/connerr"
)

func newTestApp(t *testing.T) (*app, *bytes.Buffer) {
	t.Helper()
	t.Setenv(config.EnvVar, "")
	var stdout bytes.Buffer
	return &app{
		ctx:    context.Background(),
		stdin:  os.Stdin,
		stdout: &stdout,
		stderr: &bytes.Buffer{},
	}, &stdout
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCLIVersion(t *testing.T) {
	a, stdout := newTestApp(t)
	if err := a.root().Execute([]string{"cli-version"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if stdout.String() != "1\n" {
		t.Fatalf("got %q, want %q", stdout.String(), "1\n")
	}
}

func TestReceiveDirValidate(t *testing.T) {
	dir := t.TempDir()
	accessPath := writeFile(t, dir, "access.json", `{"url": "https://example.com/data", /* comment */}`)
	listingPath := writeFile(t, dir, "listing.json", `[{"class": "File", "basename": "a.txt"}]`)

	t.Run("valid", func(t *testing.T) {
		a, _ := newTestApp(t)
		if err := a.root().Execute([]string{"receive-dir-validate", accessPath, "--listing", listingPath}); err != nil {
			t.Fatalf("Execute: %v", err)
		}
	})

	t.Run("missing listing", func(t *testing.T) {
		a, _ := newTestApp(t)
		err := a.root().Execute([]string{"receive-dir-validate", accessPath})
		if connerr.KindOf(err) != connerr.KindListing {
			t.Fatalf("expected listing error, got %v", err)
		}
	})

	t.Run("bad descriptor", func(t *testing.T) {
		a, _ := newTestApp(t)
		badPath := writeFile(t, dir, "bad.json", `{"uri": "https://example.com"}`)
		err := a.root().Execute([]string{"receive-dir-validate", badPath, "--listing", listingPath})
		if connerr.KindOf(err) != connerr.KindValidation {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}

func TestReceiveDirCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/data/a.txt":
			w.Write([]byte("alpha"))
		case "/data/sub/b.txt":
			w.Write([]byte("bravo"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	dir := t.TempDir()
	accessPath := writeFile(t, dir, "access.json", `{"url": "`+server.URL+`/data/"}`)
	listingPath := writeFile(t, dir, "listing.json", `[
		{"class": "File", "basename": "a.txt"},
		{"class": "Directory", "basename": "sub", "listing": [
			{"class": "File", "basename": "b.txt"},
		]},
	]`)
	localDir := filepath.Join(dir, "out")

	a, _ := newTestApp(t)
	err := a.root().Execute([]string{"receive-dir", accessPath, localDir, "--listing", listingPath, "--log-level", "debug"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	for path, want := range map[string]string{"a.txt": "alpha", "sub/b.txt": "bravo"} {
		data, err := os.ReadFile(filepath.Join(localDir, path))
		if err != nil {
			t.Fatalf("reading %s: %v", path, err)
		}
		if string(data) != want {
			t.Errorf("%s: got %q, want %q", path, data, want)
		}
	}
}

func TestConfigErrors(t *testing.T) {
	dir := t.TempDir()
	accessPath := writeFile(t, dir, "access.json", `{"url": "http://127.0.0.1:1/x"}`)

	t.Run("unknown config key", func(t *testing.T) {
		a, _ := newTestApp(t)
		configPath := writeFile(t, dir, "config.yaml", "http:\n  timeout: 5s\n")
		err := a.root().Execute([]string{"receive-file", accessPath, filepath.Join(dir, "out"), "--config", configPath})
		if connerr.KindOf(err) != connerr.KindConfig {
			t.Fatalf("expected config error, got %v", err)
		}
	})

	t.Run("bad log level", func(t *testing.T) {
		a, _ := newTestApp(t)
		err := a.root().Execute([]string{"receive-file", accessPath, filepath.Join(dir, "out"), "--log-level", "loud"})
		if connerr.KindOf(err) != connerr.KindConfig {
			t.Fatalf("expected config error, got %v", err)
		}
	})

	t.Run("CA file without certificates", func(t *testing.T) {
		a, _ := newTestApp(t)
		caPath := writeFile(t, dir, "ca.pem", "not a certificate")
		configPath := writeFile(t, dir, "ca.yaml", "http:\n  ca_file: "+caPath+"\n")
		err := a.root().Execute([]string{"receive-file", accessPath, filepath.Join(dir, "out"), "--config", configPath})
		if err == nil || !strings.Contains(err.Error(), "no PEM certificates") {
			t.Fatalf("got %v", err)
		}
	})
}

func TestValidateResolvesMethodAndAuth(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		command    string
		descriptor string
		want       connerr.Kind
	}{
		{"receive-file-validate", `{"url": "https://example.com/f", "method": "DELETE"}`, connerr.KindConfig},
		{"send-file-validate", `{"url": "https://example.com/f", "auth": {"method": "bearer", "username": "u", "password": "p"}}`, connerr.KindConfig},
		{"mount-dir-validate", `{"url": "https://example.com/d", "auth": {"method": "bearer", "username": "u", "password": "p"}}`, connerr.KindConfig},
		{"receive-file-validate", `{"url": "https://example.com/f", "method": "put", "auth": {"method": "Digest", "username": "u", "password": "p"}}`, ""},
	}
	for i, test := range tests {
		accessPath := writeFile(t, dir, fmt.Sprintf("access-%d.json", i), test.descriptor)
		t.Run(fmt.Sprintf("%s %d", test.command, i), func(t *testing.T) {
			a, _ := newTestApp(t)
			err := a.root().Execute([]string{test.command, accessPath})
			if got := connerr.KindOf(err); got != test.want {
				t.Fatalf("kind: got %q (%v), want %q", got, err, test.want)
			}
		})
	}
}
