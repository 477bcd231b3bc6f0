// Package sshtest runs an in-process SSH server on loopback for tests. It
// accepts one username and password, serves the sftp subsystem from the
// local filesystem and answers "scp -f PATH" exec requests.
package sshtest

import (
	"bufio"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Server is a running test server. Remote paths are absolute local paths.
type Server struct {
	// Addr is the host:port the server listens on.
	Addr string

	// HostKey is the server's public host key.
	HostKey ssh.PublicKey

	// SCPShortBy makes scp announce that many more bytes than it sends,
	// then hang up, simulating a transfer cut short.
	SCPShortBy int

	listener net.Listener
	config   *ssh.ServerConfig

	mu    sync.Mutex
	conns []net.Conn
	wg    sync.WaitGroup
}

// NewServer starts a server accepting username and password. It is
// closed when the test ends.
func NewServer(t testing.TB, username, password string) *Server {
	t.Helper()

	_, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generating host key: %v", err)
	}
	signer, err := ssh.NewSignerFromKey(private)
	if err != nil {
		t.Fatalf("creating host key signer: %v", err)
	}

	config := &ssh.ServerConfig{
		PasswordCallback: func(meta ssh.ConnMetadata, given []byte) (*ssh.Permissions, error) {
			if meta.User() == username && string(given) == password {
				return nil, nil
			}
			return nil, fmt.Errorf("password rejected for %q", meta.User())
		},
	}
	config.AddHostKey(signer)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listening: %v", err)
	}

	s := &Server{
		Addr:     listener.Addr().String(),
		HostKey:  signer.PublicKey(),
		listener: listener,
		config:   config,
	}
	s.wg.Add(1)
	go s.serve()
	t.Cleanup(s.Close)
	return s
}

// KnownHostsFile writes a known_hosts file trusting the server and returns
// its path.
func (s *Server) KnownHostsFile(t testing.TB) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "known_hosts")
	line := knownhosts.Line([]string{knownhosts.Normalize(s.Addr)}, s.HostKey)
	if err := os.WriteFile(path, []byte(line+"\n"), 0o600); err != nil {
		t.Fatalf("writing known_hosts: %v", err)
	}
	return path
}

// URL returns a scheme URL for path on this server.
func (s *Server) URL(scheme, path string) string {
	u := url.URL{Scheme: scheme, Host: s.Addr, Path: filepath.ToSlash(path)}
	return u.String()
}

// Close stops accepting connections and drops the open ones.
func (s *Server) Close() {
	s.listener.Close()
	s.mu.Lock()
	for _, conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(conn)
		}()
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()
	serverConn, channels, requests, err := ssh.NewServerConn(conn, s.config)
	if err != nil {
		return
	}
	defer serverConn.Close()
	go ssh.DiscardRequests(requests)

	for newChannel := range channels {
		if newChannel.ChannelType() != "session" {
			newChannel.Reject(ssh.UnknownChannelType, "only session channels are served")
			continue
		}
		channel, channelRequests, err := newChannel.Accept()
		if err != nil {
			return
		}
		go s.session(channel, channelRequests)
	}
}

type stringPayload struct {
	Value string
}

type exitStatus struct {
	Status uint32
}

func (s *Server) session(channel ssh.Channel, requests <-chan *ssh.Request) {
	for request := range requests {
		var payload stringPayload
		switch request.Type {
		case "subsystem":
			if ssh.Unmarshal(request.Payload, &payload) != nil || payload.Value != "sftp" {
				request.Reply(false, nil)
				continue
			}
			request.Reply(true, nil)
			go func() {
				defer channel.Close()
				server, err := sftp.NewServer(channel)
				if err != nil {
					return
				}
				server.Serve()
				server.Close()
			}()
		case "exec":
			if ssh.Unmarshal(request.Payload, &payload) != nil {
				request.Reply(false, nil)
				continue
			}
			request.Reply(true, nil)
			go func() {
				defer channel.Close()
				status := s.exec(channel, payload.Value)
				channel.SendRequest("exit-status", false, ssh.Marshal(exitStatus{Status: status}))
			}()
		default:
			request.Reply(false, nil)
		}
	}
}

// exec runs the source side of "scp -f PATH" and returns the exit status.
func (s *Server) exec(channel ssh.Channel, command string) uint32 {
	quoted, ok := strings.CutPrefix(command, "scp -f ")
	if !ok {
		fmt.Fprintf(channel.Stderr(), "unsupported command: %s\n", command)
		return 127
	}
	path := unquote(quoted)
	reader := bufio.NewReader(channel)

	if !readAck(reader) {
		return 1
	}
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(channel, "\x01scp: %s: No such file or directory\n", path)
		return 1
	}
	fmt.Fprintf(channel, "C0644 %d %s\n", len(data)+s.SCPShortBy, filepath.Base(path))
	if !readAck(reader) {
		return 1
	}
	if _, err := channel.Write(data); err != nil {
		return 1
	}
	if s.SCPShortBy > 0 {
		return 1
	}
	if _, err := channel.Write([]byte{0}); err != nil {
		return 1
	}
	if !readAck(reader) {
		return 1
	}
	return 0
}

func readAck(r io.ByteReader) bool {
	b, err := r.ReadByte()
	return err == nil && b == 0
}

// unquote reverses single-quote shell quoting.
func unquote(s string) string {
	s = strings.TrimPrefix(s, "'")
	s = strings.TrimSuffix(s, "'")
	return strings.ReplaceAll(s, `'\''`, "'")
}
