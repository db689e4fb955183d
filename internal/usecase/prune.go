package usecase

import (
	"context"
	"fmt"

	"github.com/kballard/go-shellquote"

	"github.com/semmidev/stowaway/internal/domain"
)

// Prune deletes expired dumps from the remote backup folder. Deletion is
// irreversible and has no dry run.
type Prune struct {
	runner *CommandRunner
	logger Logger
}

func NewPrune(runner *CommandRunner, logger Logger) *Prune {
	return &Prune{runner: runner, logger: logger}
}

// Command builds the find invocation. The folder is always the search root.
func (uc *Prune) Command(folder string, policy domain.RetentionPolicy) string {
	return fmt.Sprintf("find %s -type f -name '*%s' -ctime +%d -delete",
		shellquote.Join(folder), domain.DumpExtension, policy.MaxAgeDays)
}

func (uc *Prune) Execute(ctx context.Context, session domain.Session, folder string, policy domain.RetentionPolicy) error {
	cmd := uc.Command(folder, policy)
	if err := uc.runner.Execute(ctx, session, cmd, "removing old copies from remote server"); err != nil {
		return err
	}

	uc.logger.Infof("Removed db copies older than %d days from %s", policy.MaxAgeDays, folder)
	return nil
}
