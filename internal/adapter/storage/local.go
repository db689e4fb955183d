package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStorage is the local folder fetched dumps land in. Listing and
// retention only consider files with one of the tracked extensions, so
// unrelated files in the folder are never touched.
type LocalStorage struct {
	basePath   string
	extensions []string
}

func NewLocal(basePath string, extensions ...string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}
	return &LocalStorage{basePath: basePath, extensions: extensions}, nil
}

func (l *LocalStorage) Upload(ctx context.Context, localPath string, remoteName string) error {
	destPath := filepath.Join(l.basePath, remoteName)
	if filepath.Clean(localPath) == filepath.Clean(destPath) {
		return nil
	}

	source, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer source.Close()

	dest, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create dest: %w", err)
	}

	if _, err := io.Copy(dest, source); err != nil {
		dest.Close()
		return fmt.Errorf("failed to copy: %w", err)
	}

	return dest.Close()
}

func (l *LocalStorage) List(ctx context.Context) ([]string, error) {
	entries, err := l.entries()
	if err != nil {
		return nil, err
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		files = append(files, entry.Name())
	}
	return files, nil
}

func (l *LocalStorage) Delete(ctx context.Context, remoteName string) error {
	filePath := filepath.Join(l.basePath, filepath.Base(remoteName))
	if err := os.Remove(filePath); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (l *LocalStorage) GetOldFiles(ctx context.Context, cutoffTime time.Time) ([]string, error) {
	entries, err := l.entries()
	if err != nil {
		return nil, err
	}

	var oldFiles []string
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to get file info for %s: %w", entry.Name(), err)
		}
		if info.ModTime().Before(cutoffTime) {
			oldFiles = append(oldFiles, entry.Name())
		}
	}

	return oldFiles, nil
}

func (l *LocalStorage) GetPath(filename string) string {
	return filepath.Join(l.basePath, filename)
}

func (l *LocalStorage) entries() ([]os.DirEntry, error) {
	all, err := os.ReadDir(l.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var tracked []os.DirEntry
	for _, entry := range all {
		if !entry.IsDir() && l.tracks(entry.Name()) {
			tracked = append(tracked, entry)
		}
	}
	return tracked, nil
}

func (l *LocalStorage) tracks(name string) bool {
	if len(l.extensions) == 0 {
		return true
	}
	for _, ext := range l.extensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
