package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/semmidev/stowaway/internal/domain"
)

var errEmptyBackup = errors.New("remote backup is empty")

// Fetch brings the run's dump and a media snapshot to the local machine.
type Fetch struct {
	copier           domain.TreeCopier
	clock            Clock
	cleanupOnFailure bool
	logger           Logger
}

func NewFetch(copier domain.TreeCopier, clock Clock, cleanupOnFailure bool, logger Logger) *Fetch {
	return &Fetch{
		copier:           copier,
		clock:            clock,
		cleanupOnFailure: cleanupOnFailure,
		logger:           logger,
	}
}

// Backup downloads desc.RemotePath to desc.LocalPath. A missing or empty
// remote file fails before any download is attempted.
func (uc *Fetch) Backup(ctx context.Context, channel domain.TransferChannel, desc domain.BackupDescriptor) error {
	info, err := channel.Stat(ctx, desc.RemotePath)
	if err != nil {
		return uc.fail(&domain.TransferError{Op: "stat", Remote: desc.RemotePath, Err: err})
	}
	if info.Size() == 0 {
		return uc.fail(&domain.TransferError{Op: "stat", Remote: desc.RemotePath, Err: errEmptyBackup})
	}

	if err := channel.Download(ctx, desc.RemotePath, desc.LocalPath); err != nil {
		return uc.fail(&domain.TransferError{Op: "download", Remote: desc.RemotePath, Local: desc.LocalPath, Err: err})
	}

	uc.logger.Infof("DB copy downloaded to %s (%.2f MB)", desc.LocalPath, float64(info.Size())/(1024*1024))
	return nil
}

// Media copies remotePath into a new timestamped directory under localRoot.
// The copy authenticates separately from the run's session.
func (uc *Fetch) Media(ctx context.Context, params domain.ConnectionParams, remotePath, localRoot string) (domain.MediaSnapshot, error) {
	snapshot := domain.MediaSnapshot{
		RemotePath: remotePath,
		LocalRoot:  localRoot,
		LocalPath:  filepath.Join(localRoot, uc.clock.Now().Format(domain.FilenameLayout)),
	}

	if err := os.MkdirAll(localRoot, 0755); err != nil {
		return snapshot, uc.fail(&domain.TransferError{Op: "mkdir", Local: localRoot, Err: err})
	}
	if err := os.Mkdir(snapshot.LocalPath, 0755); err != nil {
		return snapshot, uc.fail(&domain.TransferError{Op: "mkdir", Local: snapshot.LocalPath, Err: err})
	}
	uc.logger.Infof("Created local folder for media copy: %s", snapshot.LocalPath)

	uc.logger.Infof("Start loading files from %s", remotePath)
	if err := uc.copier.CopyTree(ctx, params, remotePath, snapshot.LocalPath); err != nil {
		if uc.cleanupOnFailure {
			if rmErr := os.RemoveAll(snapshot.LocalPath); rmErr != nil {
				uc.logger.Warnf("Failed to remove partial media copy %s: %v", snapshot.LocalPath, rmErr)
			} else {
				uc.logger.Warnf("Removed partial media copy %s", snapshot.LocalPath)
			}
		}
		return snapshot, uc.fail(&domain.TransferError{Op: "copy tree", Remote: remotePath, Local: snapshot.LocalPath, Err: err})
	}

	uc.logger.Infof("Media files copied to %s", snapshot.LocalPath)
	return snapshot, nil
}

func (uc *Fetch) fail(err *domain.TransferError) error {
	uc.logger.Errorf("Transfer failed: %v", err)
	return err
}
