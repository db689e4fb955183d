package usecase

import (
	"context"
	"fmt"

	"github.com/semmidev/stowaway/internal/domain"
)

// DumpCommander builds the remote command that writes a full dump.
type DumpCommander interface {
	DumpCommand(outputPath string) string
	GetType() string
}

// Backup produces the remote dump for one run.
type Backup struct {
	permissions *Permissions
	dumper      DumpCommander
	runner      *CommandRunner
	logger      Logger
}

func NewBackup(permissions *Permissions, dumper DumpCommander, runner *CommandRunner, logger Logger) *Backup {
	return &Backup{
		permissions: permissions,
		dumper:      dumper,
		runner:      runner,
		logger:      logger,
	}
}

// Execute prepares folder permissions, then dumps to desc.RemotePath. Either
// failure aborts; nothing produced so far is considered usable.
func (uc *Backup) Execute(ctx context.Context, session domain.Session, remoteUser string, desc domain.BackupDescriptor, advance domain.StateFunc) error {
	if err := uc.permissions.Prepare(ctx, session, remoteUser, desc.RemoteFolder); err != nil {
		return fmt.Errorf("prepare permissions: %w", err)
	}
	advance(domain.StatePermissionsPrepared)

	uc.logger.Infof("Creating %s dump at %s", uc.dumper.GetType(), desc.RemotePath)
	cmd := uc.dumper.DumpCommand(desc.RemotePath)
	if err := uc.runner.ExecuteProducing(ctx, session, cmd, "creating copy on remote host", desc.RemotePath); err != nil {
		return fmt.Errorf("dump: %w", err)
	}

	uc.logger.Infof("DB copy saved on remote host: %s", desc.RemotePath)
	return nil
}
