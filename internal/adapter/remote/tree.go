package remote

import (
	"context"
	"fmt"
	"path"
	"path/filepath"

	"github.com/semmidev/stowaway/internal/domain"
)

// SFTPTreeCopier copies a remote tree over a second, separately
// authenticated SSH connection. The tree lands in localDir/<base of remote>,
// the same layout scp -r produces.
type SFTPTreeCopier struct {
	connector domain.Connector
}

func NewSFTPTreeCopier(connector domain.Connector) *SFTPTreeCopier {
	return &SFTPTreeCopier{connector: connector}
}

func (c *SFTPTreeCopier) CopyTree(ctx context.Context, params domain.ConnectionParams, remotePath, localDir string) (err error) {
	session, err := c.connector.Connect(ctx, params)
	if err != nil {
		return err
	}
	defer session.Close()

	channel, err := session.OpenTransferChannel()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := channel.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close transfer channel: %w", cerr)
		}
	}()

	dest := filepath.Join(localDir, path.Base(path.Clean(remotePath)))
	return channel.DownloadTree(ctx, remotePath, dest)
}
