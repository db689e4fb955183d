package usecase

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/semmidev/stowaway/internal/domain"
)

// RetentionTarget pairs a storage with its own expiry.
type RetentionTarget struct {
	UploadTarget
	RetentionDays int
}

// Cleanup expires old dumps on the local archive and offsite targets.
// Failures are logged per target and never abort the others.
type Cleanup struct {
	targets []RetentionTarget
	clock   Clock
	logger  Logger
}

func NewCleanup(targets []RetentionTarget, clock Clock, logger Logger) *Cleanup {
	return &Cleanup{
		targets: targets,
		clock:   clock,
		logger:  logger,
	}
}

func (uc *Cleanup) Execute(ctx context.Context) error {
	if len(uc.targets) == 0 {
		return nil
	}

	uc.logger.Infof("Starting cleanup of %d target(s)", len(uc.targets))
	now := uc.clock.Now()

	var wg sync.WaitGroup
	for _, target := range uc.targets {
		wg.Add(1)
		go func(t RetentionTarget) {
			defer wg.Done()

			cutoff := domain.RetentionPolicy{MaxAgeDays: t.RetentionDays}.Cutoff(now)
			if err := uc.cleanupTarget(ctx, t.UploadTarget, cutoff); err != nil {
				uc.logger.Errorf("Cleanup failed for %s: %v", t.Name, err)
			}
		}(target)
	}

	wg.Wait()
	uc.logger.Infof("Cleanup completed")
	return nil
}

func (uc *Cleanup) cleanupTarget(ctx context.Context, target UploadTarget, cutoff time.Time) error {
	files, err := target.Storage.GetOldFiles(ctx, cutoff)
	if err != nil {
		uc.logger.Warnf("Listing old files on %s failed, falling back to filename timestamps: %v", target.Name, err)
		files, err = uc.fallbackListFiles(ctx, target, cutoff)
		if err != nil {
			return err
		}
	}

	deleted := 0
	for _, filename := range files {
		uc.logger.Infof("Deleting old backup from %s: %s", target.Name, filename)

		if err := target.Storage.Delete(ctx, filename); err != nil {
			uc.logger.Errorf("Failed to delete %s from %s: %v", filename, target.Name, err)
		} else {
			deleted++
		}
	}

	uc.logger.Infof("Deleted %d old backup(s) from %s", deleted, target.Name)
	return nil
}

func (uc *Cleanup) fallbackListFiles(ctx context.Context, target UploadTarget, cutoff time.Time) ([]string, error) {
	files, err := target.Storage.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}

	oldFiles := make([]string, 0)
	for _, filename := range files {
		timestamp, err := extractTimestamp(filename)
		if err != nil {
			uc.logger.Warnf("Could not parse timestamp from %s: %v", filename, err)
			continue
		}

		if timestamp.Before(cutoff) {
			oldFiles = append(oldFiles, filename)
		}
	}

	return oldFiles, nil
}

var timestampPattern = regexp.MustCompile(`(\d{8})_(\d{6})`)

// extractTimestamp reads the DDMMYYYY_HHMMSS stamp out of a dump name such as
// 01012024_120000.sql.gz. The stamp is interpreted in local time, the zone it
// was written in.
func extractTimestamp(filename string) (time.Time, error) {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	matches := timestampPattern.FindStringSubmatch(base)
	if len(matches) < 3 {
		return time.Time{}, fmt.Errorf("invalid filename format: no timestamp found")
	}

	return time.ParseInLocation(domain.FilenameLayout, matches[1]+"_"+matches[2], time.Local)
}
