package domain

import (
	"context"
	"time"
)

// Storage is an offsite or local destination for fetched dumps.
type Storage interface {
	Upload(ctx context.Context, localPath string, remoteName string) error
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, remoteName string) error
	GetOldFiles(ctx context.Context, cutoffTime time.Time) ([]string, error)
}

type Notifier interface {
	Notify(ctx context.Context, report *RunReport) error
}
