package transport

import "testing"

func TestParseSCPHeader(t *testing.T) {
	size, err := parseSCPHeader("C0644 1234 file.txt\n")
	if err != nil {
		t.Fatalf("parseSCPHeader: %v", err)
	}
	if size != 1234 {
		t.Fatalf("size: got %d, want 1234", size)
	}

	for _, line := range []string{
		"",
		"\x01scp: /x: No such file or directory\n",
		"\x02fatal\n",
		"D0755 0 dir\n",
		"C0644 notanumber file\n",
		"C0644 12\n",
	} {
		if _, err := parseSCPHeader(line); err == nil {
			t.Errorf("parseSCPHeader(%q): expected error", line)
		}
	}
}

func TestShellQuote(t *testing.T) {
	if got, want := shellQuote("/data/it's here"), `'/data/it'\''s here'`; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
