package usecase

import (
	"context"
	"fmt"

	"github.com/kballard/go-shellquote"

	"github.com/semmidev/stowaway/internal/domain"
)

// Permissions lets the database service account write into the remote
// backup folder. Both commands are idempotent.
type Permissions struct {
	runner         *CommandRunner
	serviceAccount string
	logger         Logger
}

func NewPermissions(runner *CommandRunner, serviceAccount string, logger Logger) *Permissions {
	return &Permissions{runner: runner, serviceAccount: serviceAccount, logger: logger}
}

func (p *Permissions) Prepare(ctx context.Context, session domain.Session, remoteUser, folder string) error {
	// Directory writes need the search bit as well as write.
	grant := shellquote.Join("chmod", "g+rwx", folder)
	if err := p.runner.Execute(ctx, session, grant, "granting group access to "+folder); err != nil {
		return err
	}

	join := shellquote.Join("sudo", "usermod", "-a", "-G", remoteUser, p.serviceAccount)
	if err := p.runner.Execute(ctx, session, join, fmt.Sprintf("adding %s to group %s", p.serviceAccount, remoteUser)); err != nil {
		return err
	}

	p.logger.Infof("Granted %s write access to %s", p.serviceAccount, folder)
	return nil
}
