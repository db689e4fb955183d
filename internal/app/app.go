package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/semmidev/stowaway/internal/adapter/compressor"
	"github.com/semmidev/stowaway/internal/adapter/database"
	"github.com/semmidev/stowaway/internal/adapter/remote"
	"github.com/semmidev/stowaway/internal/adapter/storage"
	"github.com/semmidev/stowaway/internal/config"
	"github.com/semmidev/stowaway/internal/domain"
	"github.com/semmidev/stowaway/internal/infrastructure/logger"
	"github.com/semmidev/stowaway/internal/usecase"
)

// App wires one backup run from configuration. A process performs a single
// run; scheduling is left to cron or a systemd timer.
type App struct {
	config       *config.Config
	logger       *logger.Logger
	runID        string
	orchestrator *usecase.Orchestrator
	replicateUC  *usecase.Replicate
	cleanupUC    *usecase.Cleanup
	notifier     domain.Notifier
}

func New(cfg *config.Config) (*App, error) {
	baseLog, err := logger.New(logger.Options{
		Level:      cfg.App.LogLevel,
		File:       cfg.App.LogFile,
		MaxSizeMB:  cfg.App.MaxSizeMB,
		MaxBackups: cfg.App.MaxBackups,
		MaxAgeDays: cfg.App.MaxAgeDays,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	runID := uuid.NewString()
	log := baseLog.WithRun(runID)
	log.Infof("Starting %s for %s@%s:%d", cfg.App.Name, cfg.Connection.User, cfg.Connection.Host, cfg.Connection.Port)

	clock := usecase.SystemClock{}

	// Remote access
	policy := remote.HostKeyPolicy(cfg.Connection.HostKeyPolicy)
	hostKey, err := remote.HostKeyCallback(policy, cfg.Connection.KnownHostsFile, log)
	if err != nil {
		log.Errorf("Failed to initialize host key policy: %v", err)
		baseLog.Close()
		return nil, fmt.Errorf("failed to initialize host key policy: %w", err)
	}
	connector := remote.NewSSHConnector(remote.AuthConfig{
		UseAgent:     cfg.Connection.UseAgent,
		IdentityFile: cfg.Connection.IdentityFile,
		Passphrase:   cfg.Connection.Passphrase,
		Password:     cfg.Connection.Password,
	}, hostKey, cfg.Connection.Timeout, log)

	var copier domain.TreeCopier
	switch cfg.Media.Transport {
	case config.MediaSFTP:
		copier = remote.NewSFTPTreeCopier(connector)
	default:
		copier = remote.NewSCPCopier(policy, cfg.Connection.KnownHostsFile, cfg.Connection.IdentityFile)
	}
	log.Infof("✓ Media transport: %s", cfg.Media.Transport)

	// Remote pipeline
	runner := usecase.NewCommandRunner(settlePolicy(cfg.Settle), log)
	cluster := database.NewPostgreSQL(&cfg.Database)
	backupUC := usecase.NewBackup(
		usecase.NewPermissions(runner, cluster.ServiceAccount(), log),
		cluster,
		runner,
		log,
	)

	lp := cfg.LoadParams
	plan := usecase.Plan{
		Connection: domain.ConnectionParams{
			Host: cfg.Connection.Host,
			User: cfg.Connection.User,
			Port: cfg.Connection.Port,
		},
		RemoteFolder:    lp.RemoteDBCopyFolder,
		LocalFolder:     lp.LocalDBCopyFolder,
		Retention:       domain.RetentionPolicy{MaxAgeDays: lp.ExpirationDays},
		RemoteMediaPath: lp.RemoteMediaPath,
		LocalMediaRoot:  lp.LocalMediaPath,
	}

	// The local archive folder must exist before the dump is pulled into it.
	localStorage, err := storage.NewLocal(lp.LocalDBCopyFolder, domain.DumpExtension)
	if err != nil {
		log.Errorf("Failed to initialize local storage: %v", err)
		baseLog.Close()
		return nil, fmt.Errorf("failed to initialize local storage: %w", err)
	}

	orchestrator := usecase.NewOrchestrator(
		plan,
		connector,
		backupUC,
		usecase.NewFetch(copier, clock, cfg.Media.CleanupOnFailure, log),
		usecase.NewPrune(runner, log),
		clock,
		log,
	)

	// Offsite copies
	uploadTargets := initializeUploadTargets(cfg, log)
	replicateUC := usecase.NewReplicate(
		uploadTargets,
		compressor.NewGzip(compressor.DefaultLevel),
		log,
		cfg.Offsite.Compress,
	)

	var retention []usecase.RetentionTarget
	for _, target := range uploadTargets {
		retention = append(retention, usecase.RetentionTarget{UploadTarget: target, RetentionDays: cfg.Offsite.RetentionDays})
	}
	if lp.LocalExpirationDays > 0 {
		retention = append(retention, usecase.RetentionTarget{
			UploadTarget:  usecase.UploadTarget{Name: "local", Storage: localStorage},
			RetentionDays: lp.LocalExpirationDays,
		})
	}

	var notifier domain.Notifier
	if cfg.Notify.Telegram.Enabled {
		n, err := storage.NewTelegramNotifier(cfg.Notify.Telegram)
		if err != nil {
			log.Errorf("Failed to initialize Telegram notifier: %v", err)
		} else {
			notifier = n
			log.Infof("✓ Telegram notification enabled")
		}
	}

	return &App{
		config:       cfg,
		logger:       log,
		runID:        runID,
		orchestrator: orchestrator,
		replicateUC:  replicateUC,
		cleanupUC:    usecase.NewCleanup(retention, clock, log),
		notifier:     notifier,
	}, nil
}

func settlePolicy(cfg config.SettleConfig) usecase.SettlePolicy {
	fixed := usecase.FixedDelay{Delay: cfg.Delay}
	if cfg.Mode == config.SettleStable {
		return usecase.StableSize{
			PollInterval: cfg.PollInterval,
			Samples:      cfg.StableSamples,
			MaxWait:      cfg.MaxWait,
			Fallback:     fixed,
		}
	}
	return fixed
}

func initializeUploadTargets(cfg *config.Config, log *logger.Logger) []usecase.UploadTarget {
	var targets []usecase.UploadTarget
	ctx := context.Background()

	for _, targetCfg := range cfg.GetEnabledUploadTargets() {
		var stor domain.Storage
		var err error

		switch targetCfg.Type {
		case "gdrive":
			stor, err = storage.NewGDrive(ctx, &targetCfg)
			if err != nil {
				log.Errorf("Failed to initialize Google Drive: %v", err)
				continue
			}
			log.Infof("✓ Google Drive upload enabled")

		case "s3":
			stor, err = storage.NewS3(ctx, &targetCfg)
			if err != nil {
				log.Errorf("Failed to initialize S3: %v", err)
				continue
			}
			log.Infof("✓ AWS S3 upload enabled (bucket: %s)", targetCfg.Bucket)

		case "telegram":
			stor, err = storage.NewTelegram(&targetCfg)
			if err != nil {
				log.Errorf("Failed to initialize Telegram: %v", err)
				continue
			}
			log.Infof("✓ Telegram upload enabled")

		default:
			log.Warnf("Unknown upload target type: %s", targetCfg.Type)
			continue
		}

		targets = append(targets, usecase.UploadTarget{
			Name:    targetCfg.Type,
			Storage: stor,
		})
	}

	return targets
}

// Run performs the backup, then the offsite work, and always notifies.
// Only a failure of the backup itself is returned.
func (a *App) Run(ctx context.Context) error {
	report, err := a.orchestrator.Execute(ctx, a.runID)

	if err == nil {
		uploaded, rerr := a.replicateUC.Execute(ctx, report)
		if rerr != nil {
			a.logger.Errorf("Offsite replication failed: %v", rerr)
		} else if uploaded > 0 {
			a.logger.Infof("Dump replicated to %d offsite target(s)", uploaded)
		}

		if cerr := a.cleanupUC.Execute(ctx); cerr != nil {
			a.logger.Errorf("Cleanup failed: %v", cerr)
		}
	}

	if a.notifier != nil {
		if nerr := a.notifier.Notify(ctx, report); nerr != nil {
			a.logger.Errorf("Failed to send run notification: %v", nerr)
		}
	}

	if err != nil {
		return fmt.Errorf("backup run %s failed at %s: %w", a.runID, report.FailedStep, err)
	}

	a.logger.Infof("Backup run completed in %s", report.Duration())
	return nil
}

func (a *App) Shutdown() {
	a.logger.Infof("Shutting down...")
	a.logger.Close()
}
