package usecase

import (
	"context"

	"github.com/semmidev/stowaway/internal/domain"
)

type Logger interface {
	Infof(template string, args ...interface{})
	Errorf(template string, args ...interface{})
	Warnf(template string, args ...interface{})
}

// CommandRunner executes remote commands with one rule: any output on the
// error stream is a failure, whatever the exit status says.
type CommandRunner struct {
	settle SettlePolicy
	logger Logger
}

func NewCommandRunner(settle SettlePolicy, logger Logger) *CommandRunner {
	return &CommandRunner{settle: settle, logger: logger}
}

func (r *CommandRunner) Execute(ctx context.Context, session domain.Session, command, description string) error {
	return r.ExecuteProducing(ctx, session, command, description, "")
}

// ExecuteProducing runs a command that writes producedPath, so the settle
// policy can wait on that file rather than on a fixed delay.
func (r *CommandRunner) ExecuteProducing(ctx context.Context, session domain.Session, command, description, producedPath string) error {
	out, err := session.Run(ctx, command)
	if err != nil {
		r.logger.Errorf("Error during %s: %v", description, err)
		return &domain.RemoteCommandError{Description: description, Command: command, Err: err}
	}

	if len(out.Stderr) > 0 {
		cmdErr := &domain.RemoteCommandError{
			Description: description,
			Command:     command,
			Stderr:      out.Stderr,
			ExitStatus:  out.ExitStatus,
		}
		r.logger.Errorf("Error during %s: %v", description, cmdErr)
		return cmdErr
	}

	if out.ExitStatus != 0 {
		r.logger.Warnf("%s exited with status %d and an empty error stream", description, out.ExitStatus)
	}

	if err := r.settle.Settle(ctx, session, producedPath); err != nil {
		r.logger.Errorf("Error while waiting for %s to settle: %v", description, err)
		return err
	}

	return nil
}
