package domain

import (
	"context"
	"os"
)

type CommandOutput struct {
	Stdout     []string
	Stderr     []string
	ExitStatus int
}

type Connector interface {
	Connect(ctx context.Context, params ConnectionParams) (Session, error)
}

// Session is one authenticated connection to the remote host.
type Session interface {
	Run(ctx context.Context, command string) (CommandOutput, error)
	OpenTransferChannel() (TransferChannel, error)
	Close() error
}

// TransferChannel pulls files over a Session. It must be closed by its owner.
type TransferChannel interface {
	Stat(ctx context.Context, remotePath string) (os.FileInfo, error)
	Download(ctx context.Context, remotePath, localPath string) error
	DownloadTree(ctx context.Context, remotePath, localPath string) error
	Close() error
}

// TreeCopier copies a remote directory into localDir over its own,
// independently authenticated transfer.
type TreeCopier interface {
	CopyTree(ctx context.Context, params ConnectionParams, remotePath, localDir string) error
}
