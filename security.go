package main

import (
	"bufio"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/yarkm13/red-connector-http/internal/access"
	"github.com/yarkm13/red-connector-http/internal/connerr"
	"github.com/yarkm13/red-connector-http/internal/transport"
)

// maxPasswordLength bounds a password read from a non-raw terminal.
const maxPasswordLength = 64 * 1024

// openDescriptor sets up the app, loads the descriptor at path with load
// and fills in a missing password from the terminal.
func (a *app) openDescriptor(path string, load func(string) (*access.Descriptor, error)) (*access.Descriptor, error) {
	if err := a.setup(); err != nil {
		return nil, err
	}
	descriptor, err := load(path)
	if err != nil {
		return nil, err
	}
	if err := a.promptPassword(descriptor); err != nil {
		return nil, err
	}
	return descriptor, nil
}

// promptPassword asks for the password when the descriptor names a user
// without one and stdin is a terminal. Descriptors read from pipes are
// left untouched.
func (a *app) promptPassword(descriptor *access.Descriptor) error {
	auth := descriptor.Auth
	if auth == nil || auth.Username == "" || auth.Password != "" {
		return nil
	}
	fd := int(a.stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil
	}

	fmt.Fprintf(a.stderr, "Password for %s at %s: ", auth.Username, descriptor.RedactedURL())
	password, err := readPassword(a.stdin)
	fmt.Fprintln(a.stderr)
	if err != nil {
		return connerr.Config("reading password: %w", err)
	}
	defer transport.SecureWipe(password)

	auth.Password = string(password)
	return nil
}

// readPassword reads a line without echo. If the terminal cannot be put
// into no-echo mode the line is read as typed.
func readPassword(stdin *os.File) ([]byte, error) {
	password, err := term.ReadPassword(int(stdin.Fd()))
	if err == nil {
		return password, nil
	}

	reader := bufio.NewReaderSize(stdin, 4096)
	var line []byte
	for {
		chunk, isPrefix, err := reader.ReadLine()
		if err != nil {
			return nil, err
		}
		line = append(line, chunk...)
		if len(line) > maxPasswordLength {
			transport.SecureWipe(line)
			return nil, fmt.Errorf("password longer than %d bytes", maxPasswordLength)
		}
		if !isPrefix {
			return line, nil
		}
	}
}
