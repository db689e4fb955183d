package remote

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/semmidev/stowaway/internal/domain"
)

type Logger interface {
	Infof(template string, args ...interface{})
	Warnf(template string, args ...interface{})
	Errorf(template string, args ...interface{})
}

// SSHConnector opens authenticated sessions with golang.org/x/crypto/ssh.
type SSHConnector struct {
	auth    AuthConfig
	hostKey ssh.HostKeyCallback
	timeout time.Duration
	logger  Logger
}

func NewSSHConnector(auth AuthConfig, hostKey ssh.HostKeyCallback, timeout time.Duration, logger Logger) *SSHConnector {
	return &SSHConnector{
		auth:    auth,
		hostKey: hostKey,
		timeout: timeout,
		logger:  logger,
	}
}

func (c *SSHConnector) Connect(ctx context.Context, params domain.ConnectionParams) (domain.Session, error) {
	client, err := c.dial(ctx, params)
	if err != nil {
		c.logger.Errorf("Failed to connect to %s:%d: %v", params.Host, params.Port, err)
		return nil, &domain.ConnectionError{Host: params.Host, Port: params.Port, Err: err}
	}

	c.logger.Infof("Connected to remote host %s as %s", params.Host, params.User)
	return &sshSession{client: client}, nil
}

func (c *SSHConnector) dial(ctx context.Context, params domain.ConnectionParams) (*ssh.Client, error) {
	methods, closeAgent, err := authMethods(c.auth)
	if err != nil {
		return nil, err
	}
	defer closeAgent()

	addr := net.JoinHostPort(params.Host, strconv.Itoa(params.Port))
	cfg := &ssh.ClientConfig{
		User:            params.User,
		Auth:            methods,
		HostKeyCallback: c.hostKey,
		Timeout:         c.timeout,
	}

	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	if c.timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(c.timeout))
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("handshake: %w", err)
	}
	_ = conn.SetDeadline(time.Time{})

	return ssh.NewClient(sshConn, chans, reqs), nil
}

type sshSession struct {
	client *ssh.Client
}

func (s *sshSession) Run(ctx context.Context, command string) (domain.CommandOutput, error) {
	session, err := s.client.NewSession()
	if err != nil {
		return domain.CommandOutput{}, fmt.Errorf("open session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() { done <- session.Run(command) }()

	var runErr error
	select {
	case runErr = <-done:
	case <-ctx.Done():
		_ = session.Close()
		return domain.CommandOutput{}, ctx.Err()
	}

	out := domain.CommandOutput{
		Stdout: splitLines(stdout.Bytes()),
		Stderr: splitLines(stderr.Bytes()),
	}

	var exitErr *ssh.ExitError
	switch {
	case runErr == nil:
	case errors.As(runErr, &exitErr):
		out.ExitStatus = exitErr.ExitStatus()
	default:
		return out, runErr
	}
	return out, nil
}

func (s *sshSession) OpenTransferChannel() (domain.TransferChannel, error) {
	client, err := sftp.NewClient(s.client)
	if err != nil {
		return nil, fmt.Errorf("open sftp subsystem: %w", err)
	}
	return &sftpChannel{client: client}, nil
}

func (s *sshSession) Close() error {
	return s.client.Close()
}

// splitLines returns every line of b with no length limit. Non-empty input
// always yields at least one line.
func splitLines(b []byte) []string {
	var lines []string
	reader := bufio.NewReader(bytes.NewReader(b))
	for {
		line, err := reader.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if line != "" || err == nil {
			lines = append(lines, line)
		}
		if err != nil {
			return lines
		}
	}
}
