package usecase

import (
	"context"
	"fmt"

	"github.com/semmidev/stowaway/internal/domain"
)

// Plan holds everything one run needs, built once by the entry point.
type Plan struct {
	Connection      domain.ConnectionParams
	RemoteFolder    string
	LocalFolder     string
	Retention       domain.RetentionPolicy
	RemoteMediaPath string
	LocalMediaRoot  string
}

// Orchestrator runs the backup sequence:
// connect, dump, download, prune, copy media, disconnect.
// It owns the session and its transfer channel for the whole run.
type Orchestrator struct {
	plan      Plan
	connector domain.Connector
	backup    *Backup
	fetch     *Fetch
	prune     *Prune
	clock     Clock
	logger    Logger
}

func NewOrchestrator(
	plan Plan,
	connector domain.Connector,
	backup *Backup,
	fetch *Fetch,
	prune *Prune,
	clock Clock,
	logger Logger,
) *Orchestrator {
	return &Orchestrator{
		plan:      plan,
		connector: connector,
		backup:    backup,
		fetch:     fetch,
		prune:     prune,
		clock:     clock,
		logger:    logger,
	}
}

// Execute performs one run. The report is always returned; its State is
// StateDone on success and StateFailed otherwise, with FailedStep naming the
// state that could not be reached. Completed steps are never rolled back.
func (o *Orchestrator) Execute(ctx context.Context, runID string) (report *domain.RunReport, err error) {
	report = &domain.RunReport{
		RunID:     runID,
		Host:      o.plan.Connection.Host,
		State:     domain.StateDisconnected,
		StartedAt: o.clock.Now(),
	}
	// The filename is fixed here and reused by every later step.
	report.Backup = domain.NewBackupDescriptor(o.plan.RemoteFolder, o.plan.LocalFolder, report.StartedAt)

	advance := func(s domain.State) { report.State = s }
	step := domain.StateConnected

	defer func() {
		report.FinishedAt = o.clock.Now()
		if err != nil {
			report.FailedStep = step
			report.State = domain.StateFailed
			report.Err = err
			o.logger.Errorf("Run failed before reaching %s: %v", step, err)
		}
	}()

	session, err := o.connector.Connect(ctx, o.plan.Connection)
	if err != nil {
		return report, err
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			o.logger.Warnf("Failed to close session: %v", cerr)
		}
	}()

	channel, err := session.OpenTransferChannel()
	if err != nil {
		return report, &domain.ConnectionError{Host: o.plan.Connection.Host, Port: o.plan.Connection.Port, Err: fmt.Errorf("open transfer channel: %w", err)}
	}
	defer func() {
		if cerr := channel.Close(); cerr != nil {
			o.logger.Warnf("Failed to close transfer channel: %v", cerr)
		}
	}()
	advance(domain.StateConnected)

	step = domain.StatePermissionsPrepared
	err = o.backup.Execute(ctx, session, o.plan.Connection.User, report.Backup, func(s domain.State) {
		advance(s)
		step = domain.StateBackedUp
	})
	if err != nil {
		return report, err
	}
	advance(domain.StateBackedUp)

	step = domain.StateFetched
	if err = o.fetch.Backup(ctx, channel, report.Backup); err != nil {
		return report, err
	}
	advance(domain.StateFetched)

	step = domain.StatePruned
	if err = o.prune.Execute(ctx, session, o.plan.RemoteFolder, o.plan.Retention); err != nil {
		return report, err
	}
	advance(domain.StatePruned)

	step = domain.StateMediaCopied
	report.Media, err = o.fetch.Media(ctx, o.plan.Connection, o.plan.RemoteMediaPath, o.plan.LocalMediaRoot)
	if err != nil {
		return report, err
	}
	advance(domain.StateMediaCopied)

	step = domain.StateDone
	advance(domain.StateDone)
	o.logger.Infof("Run %s finished: %s and %s", runID, report.Backup.LocalPath, report.Media.LocalPath)
	return report, nil
}
