package remote

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/sftp"
)

type sftpChannel struct {
	client *sftp.Client
}

func (c *sftpChannel) Stat(ctx context.Context, remotePath string) (os.FileInfo, error) {
	return c.client.Stat(remotePath)
}

func (c *sftpChannel) Download(ctx context.Context, remotePath, localPath string) error {
	src, err := c.client.Open(remotePath)
	if err != nil {
		return fmt.Errorf("failed to open remote file: %w", err)
	}
	defer src.Close()

	return writeLocal(ctx, src, localPath, 0644)
}

// DownloadTree mirrors remotePath into localPath. localPath itself is created
// if needed; symlinks and special files are skipped.
func (c *sftpChannel) DownloadTree(ctx context.Context, remotePath, localPath string) error {
	root := path.Clean(remotePath)
	walker := c.client.Walk(root)

	for walker.Step() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := walker.Err(); err != nil {
			return fmt.Errorf("failed to walk %s: %w", walker.Path(), err)
		}

		rel := strings.TrimPrefix(strings.TrimPrefix(walker.Path(), root), "/")
		dest := filepath.Join(localPath, filepath.FromSlash(rel))
		info := walker.Stat()

		switch {
		case info.IsDir():
			if err := os.MkdirAll(dest, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", dest, err)
			}
		case info.Mode().IsRegular():
			src, err := c.client.Open(walker.Path())
			if err != nil {
				return fmt.Errorf("failed to open remote file %s: %w", walker.Path(), err)
			}
			err = writeLocal(ctx, src, dest, info.Mode().Perm())
			src.Close()
			if err != nil {
				return err
			}
		}
	}

	return nil
}

func (c *sftpChannel) Close() error {
	return c.client.Close()
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *contextReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

func writeLocal(ctx context.Context, src io.Reader, localPath string, perm os.FileMode) error {
	dst, err := os.OpenFile(localPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("failed to create local file: %w", err)
	}

	// A truncated file must not be mistaken for a complete copy.
	if _, err := io.Copy(dst, &contextReader{ctx: ctx, r: src}); err != nil {
		dst.Close()
		os.Remove(localPath)
		return fmt.Errorf("failed to copy %s: %w", localPath, err)
	}

	if err := dst.Close(); err != nil {
		os.Remove(localPath)
		return fmt.Errorf("failed to close %s: %w", localPath, err)
	}
	return nil
}
