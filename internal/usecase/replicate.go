package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/semmidev/stowaway/internal/domain"
)

type UploadTarget struct {
	Name    string
	Storage domain.Storage
}

// Replicate ships the fetched dump to offsite targets. Target failures are
// logged and never fail the run.
type Replicate struct {
	uploadTargets []UploadTarget
	compressor    domain.Compressor
	logger        Logger
	compress      bool
	tempDir       string
}

func NewReplicate(
	uploadTargets []UploadTarget,
	compressor domain.Compressor,
	logger Logger,
	compress bool,
) *Replicate {
	return &Replicate{
		uploadTargets: uploadTargets,
		compressor:    compressor,
		logger:        logger,
		compress:      compress,
		tempDir:       os.TempDir(),
	}
}

// Execute returns the number of targets that received the dump.
func (uc *Replicate) Execute(ctx context.Context, report *domain.RunReport) (int, error) {
	if len(uc.uploadTargets) == 0 || !report.Succeeded() {
		return 0, nil
	}

	filePath, filename := report.Backup.LocalPath, report.Backup.Filename
	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return 0, fmt.Errorf("stat fetched dump: %w", err)
	}

	if uc.compress {
		filePath, filename, err = uc.compressBackup(filePath, filename, fileInfo.Size())
		if err != nil {
			return 0, err
		}
		defer os.Remove(filePath)
	}

	return uc.uploadToTargets(ctx, filePath, filename), nil
}

func (uc *Replicate) compressBackup(sourcePath, filename string, originalSize int64) (string, string, error) {
	compressedFilename := filename + uc.compressor.Extension()
	compressedPath := filepath.Join(uc.tempDir, compressedFilename)

	uc.logger.Infof("Compressing %s for offsite copies...", filename)
	size, err := uc.compressor.Compress(sourcePath, compressedPath)
	if err != nil {
		return "", "", fmt.Errorf("compression: %w", err)
	}

	ratio := 100.0
	if originalSize > 0 {
		ratio = float64(size) / float64(originalSize) * 100
	}
	uc.logger.Infof("Compression complete, size: %.2f MB (%.1f%% of original)",
		float64(size)/(1024*1024), ratio)

	return compressedPath, compressedFilename, nil
}

func (uc *Replicate) uploadToTargets(ctx context.Context, filePath, filename string) int {
	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)

	for _, target := range uc.uploadTargets {
		wg.Add(1)
		go func(t UploadTarget) {
			defer wg.Done()

			uc.logger.Infof("Uploading %s to %s...", filename, t.Name)
			if err := t.Storage.Upload(ctx, filePath, filename); err != nil {
				uc.logger.Errorf("Failed to upload to %s: %v", t.Name, err)
				return
			}
			uc.logger.Infof("Successfully uploaded to %s", t.Name)

			mu.Lock()
			ok++
			mu.Unlock()
		}(target)
	}

	wg.Wait()
	return ok
}
