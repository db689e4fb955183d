package domain

import (
	"fmt"
	"strings"
)

// ConnectionError reports a failure to dial, handshake or authenticate.
type ConnectionError struct {
	Host string
	Port int
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to %s:%d: %v", e.Host, e.Port, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// RemoteCommandError reports a remote command that wrote to its error stream
// or could not be executed at all.
type RemoteCommandError struct {
	Description string
	Command     string
	Stderr      []string
	ExitStatus  int
	Err         error
}

func (e *RemoteCommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Description, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Description, strings.Join(e.Stderr, " "))
}

func (e *RemoteCommandError) Unwrap() error { return e.Err }

// TransferError reports a failed file pull.
type TransferError struct {
	Op     string
	Remote string
	Local  string
	Err    error
}

func (e *TransferError) Error() string {
	if e.Local == "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Remote, e.Err)
	}
	return fmt.Sprintf("%s %s -> %s: %v", e.Op, e.Remote, e.Local, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }
