package transport

import (
	"net/url"
	"testing"

	"github.com/yarkm13/red-connector-http/internal/connerr"
)

func TestForURL(t *testing.T) {
	tests := map[string]string{
		"http://example.com/data":  "http",
		"https://example.com/data": "http",
		"ftp://example.com/pub":    "ftp",
		"sftp://host/home/user":    "sftp",
		"scp://host/home/user":     "scp",
		"gopher://host/":           "",
	}
	for rawURL, want := range tests {
		u, err := url.Parse(rawURL)
		if err != nil {
			t.Fatal(err)
		}
		factory := ForURL(u)
		got := ""
		if factory != nil {
			got = factory.Name()
		}
		if got != want {
			t.Errorf("ForURL(%s): got %q, want %q", rawURL, got, want)
		}
	}
}

func TestOpenRejectsBeforeConnecting(t *testing.T) {
	// Port 1 on a reserved address: any dial attempt would fail with a
	// transport error, so a config error proves no connection was tried.
	tests := []struct {
		name    string
		rawURL  string
		options Options
	}{
		{"unknown scheme", "gopher://192.0.2.1:1/", Options{}},
		{"ftp with PUT", "ftp://192.0.2.1:1/pub", Options{Method: MethodPut}},
		{"sftp with digest", "sftp://192.0.2.1:1/x", Options{Credentials: &Credentials{Scheme: AuthDigest, Username: "u"}}},
		{"scp with POST", "scp://192.0.2.1:1/x", Options{Method: MethodPost}},
		{"sftp without username", "sftp://192.0.2.1:1/x", Options{}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Open(test.rawURL, test.options)
			if kind := connerr.KindOf(err); kind != connerr.KindConfig {
				t.Fatalf("kind: got %q (%v), want config", kind, err)
			}
		})
	}
}

func TestParseMethod(t *testing.T) {
	for _, name := range []string{"get", "GET", "Put", "post"} {
		if _, err := ParseMethod(name); err != nil {
			t.Errorf("ParseMethod(%q): %v", name, err)
		}
	}
	_, err := ParseMethod("delete")
	if connerr.KindOf(err) != connerr.KindConfig {
		t.Fatalf("expected config error, got %v", err)
	}
	if err.Error() != "Invalid HTTP method: delete" {
		t.Fatalf("message: got %q", err.Error())
	}
}

func TestParseAuthScheme(t *testing.T) {
	tests := map[string]AuthScheme{
		"":       AuthBasic,
		"basic":  AuthBasic,
		"BASIC":  AuthBasic,
		"Digest": AuthDigest,
	}
	for name, want := range tests {
		got, err := ParseAuthScheme(name)
		if err != nil || got != want {
			t.Errorf("ParseAuthScheme(%q): got %q, %v; want %q", name, got, err, want)
		}
	}
	_, err := ParseAuthScheme("bearer")
	if connerr.KindOf(err) != connerr.KindConfig {
		t.Fatalf("expected config error, got %v", err)
	}
	if err.Error() != "Invalid auth method: bearer" {
		t.Fatalf("message: got %q", err.Error())
	}
}

func TestCredentialsClear(t *testing.T) {
	password := []byte("secret")
	credentials := &Credentials{Username: "u", Password: password}
	credentials.Clear()
	if credentials.Password != nil {
		t.Fatal("password not dropped")
	}
	for _, b := range password {
		if b != 0 {
			t.Fatal("password bytes not wiped")
		}
	}
	var none *Credentials
	none.Clear()
}
