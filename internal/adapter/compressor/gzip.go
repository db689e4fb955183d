package compressor

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DefaultLevel favors size over speed; dumps compress well.
const DefaultLevel = gzip.BestCompression

// GzipCompressor packs fetched dumps before they are shipped offsite.
type GzipCompressor struct {
	level int
}

func NewGzip(level int) *GzipCompressor {
	if level < gzip.HuffmanOnly || level > gzip.BestCompression {
		level = DefaultLevel
	}
	return &GzipCompressor{level: level}
}

func (g *GzipCompressor) Extension() string {
	return ".gz"
}

// Compress writes a gzip copy of sourcePath to destPath and returns the
// compressed size. A partially written destination is removed on failure.
func (g *GzipCompressor) Compress(sourcePath, destPath string) (size int64, err error) {
	sourceFile, err := os.Open(sourcePath)
	if err != nil {
		return 0, fmt.Errorf("failed to open source file: %w", err)
	}
	defer sourceFile.Close()

	destFile, err := os.Create(destPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create dest file: %w", err)
	}
	defer func() {
		if err != nil {
			os.Remove(destPath)
		}
	}()

	gzipWriter, err := gzip.NewWriterLevel(destFile, g.level)
	if err != nil {
		destFile.Close()
		return 0, fmt.Errorf("failed to create gzip writer: %w", err)
	}
	gzipWriter.Name = filepath.Base(sourcePath)

	if _, err = io.Copy(gzipWriter, sourceFile); err != nil {
		destFile.Close()
		return 0, fmt.Errorf("failed to compress: %w", err)
	}
	if err = gzipWriter.Close(); err != nil {
		destFile.Close()
		return 0, fmt.Errorf("failed to finish gzip stream: %w", err)
	}
	if err = destFile.Close(); err != nil {
		return 0, fmt.Errorf("failed to close dest file: %w", err)
	}

	info, err := os.Stat(destPath)
	if err != nil {
		return 0, fmt.Errorf("failed to stat dest file: %w", err)
	}
	return info.Size(), nil
}

func (g *GzipCompressor) Decompress(sourcePath, destPath string) error {
	sourceFile, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer sourceFile.Close()

	gzipReader, err := gzip.NewReader(sourceFile)
	if err != nil {
		return fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	destFile, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create dest file: %w", err)
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, gzipReader); err != nil {
		return fmt.Errorf("failed to decompress: %w", err)
	}

	return nil
}
