package remote

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"net"
	"sync"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

type execResult struct {
	stdout string
	stderr string
	status uint32
}

// testServer is an in-process SSH server that answers exec requests from a
// handler and serves the sftp subsystem over the local filesystem.
type testServer struct {
	listener net.Listener
	hostKey  ssh.Signer
	handler  func(command string) execResult

	mu       sync.Mutex
	commands []string
}

func startTestServer(handler func(command string) execResult) (*testServer, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	s := &testServer{listener: listener, hostKey: signer, handler: handler}
	go s.acceptLoop()
	return s, nil
}

func (s *testServer) port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

func (s *testServer) close() {
	s.listener.Close()
}

func (s *testServer) seen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

func (s *testServer) acceptLoop() {
	cfg := &ssh.ServerConfig{
		PasswordCallback: func(meta ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if meta.User() == "deploy" && string(pass) == "secret" {
				return nil, nil
			}
			return nil, errors.New("access denied")
		},
	}
	cfg.AddHostKey(s.hostKey)

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.serveConn(conn, cfg)
	}
}

func (s *testServer) serveConn(conn net.Conn, cfg *ssh.ServerConfig) {
	_, chans, reqs, err := ssh.NewServerConn(conn, cfg)
	if err != nil {
		conn.Close()
		return
	}
	go ssh.DiscardRequests(reqs)

	for newCh := range chans {
		if newCh.ChannelType() != "session" {
			newCh.Reject(ssh.UnknownChannelType, "unsupported")
			continue
		}
		ch, requests, err := newCh.Accept()
		if err != nil {
			continue
		}
		go s.serveSession(ch, requests)
	}
}

func (s *testServer) serveSession(ch ssh.Channel, requests <-chan *ssh.Request) {
	for req := range requests {
		switch req.Type {
		case "exec":
			var payload struct{ Command string }
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
				req.Reply(false, nil)
				continue
			}
			req.Reply(true, nil)

			s.mu.Lock()
			s.commands = append(s.commands, payload.Command)
			s.mu.Unlock()

			res := s.handler(payload.Command)
			ch.Write([]byte(res.stdout))
			ch.Stderr().Write([]byte(res.stderr))
			ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{res.status}))
			ch.Close()
			return

		case "subsystem":
			var payload struct{ Name string }
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil || payload.Name != "sftp" {
				req.Reply(false, nil)
				continue
			}
			req.Reply(true, nil)

			server, err := sftp.NewServer(ch)
			if err != nil {
				ch.Close()
				return
			}
			go func() {
				server.Serve()
				server.Close()
				ch.Close()
			}()

		default:
			if req.WantReply {
				req.Reply(false, nil)
			}
		}
	}
}

type testLogger struct {
	mu    sync.Mutex
	warns int
}

func (l *testLogger) Infof(template string, args ...interface{})  {}
func (l *testLogger) Errorf(template string, args ...interface{}) {}
func (l *testLogger) Warnf(template string, args ...interface{}) {
	l.mu.Lock()
	l.warns++
	l.mu.Unlock()
}
