package usecase

import (
	"bytes"
	"context"
	"errors"
	"os"
	"sort"
	"sync"
	"time"
)

type fakeStorage struct {
	mu        sync.Mutex
	files     map[string]time.Time
	uploaded  map[string][]byte
	uploadErr error
	oldErr    error
	listErr   error
	deleted   []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{files: map[string]time.Time{}, uploaded: map[string][]byte{}}
}

func (s *fakeStorage) Upload(ctx context.Context, localPath, remoteName string) error {
	if s.uploadErr != nil {
		return s.uploadErr
	}
	content, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploaded[remoteName] = content
	s.files[remoteName] = time.Now()
	return nil
}

func (s *fakeStorage) List(ctx context.Context) ([]string, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.files))
	for name := range s.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *fakeStorage) Delete(ctx context.Context, remoteName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[remoteName]; !ok {
		return errors.New("not found")
	}
	delete(s.files, remoteName)
	s.deleted = append(s.deleted, remoteName)
	return nil
}

func (s *fakeStorage) GetOldFiles(ctx context.Context, cutoff time.Time) ([]string, error) {
	if s.oldErr != nil {
		return nil, s.oldErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var old []string
	for name, modified := range s.files {
		if modified.Before(cutoff) {
			old = append(old, name)
		}
	}
	sort.Strings(old)
	return old, nil
}

// upperCompressor stands in for a real codec: it upper-cases the input.
type upperCompressor struct {
	err error
}

func (c upperCompressor) Compress(src, dst string) (int64, error) {
	if c.err != nil {
		return 0, c.err
	}
	content, err := os.ReadFile(src)
	if err != nil {
		return 0, err
	}
	out := bytes.ToUpper(content)
	return int64(len(out)), os.WriteFile(dst, out, 0644)
}

func (c upperCompressor) Decompress(src, dst string) error { return errors.New("not used") }
func (c upperCompressor) Extension() string                { return ".up" }
