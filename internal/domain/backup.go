package domain

import (
	"path"
	"path/filepath"
	"time"
)

// FilenameLayout is the timestamp layout shared by dump files and media
// snapshot directories (DDMMYYYY_HHMMSS).
const FilenameLayout = "02012006_150405"

// DumpExtension is appended to every dump filename and matched by retention.
const DumpExtension = ".sql"

type ConnectionParams struct {
	Host string
	User string
	Port int
}

// BackupDescriptor identifies the dump produced by a single run. Filename is
// computed once and reused for both the remote and the local path.
type BackupDescriptor struct {
	RemoteFolder string
	Filename     string
	RemotePath   string
	LocalPath    string
}

// NewBackupDescriptor derives the run's dump filename from now. Remote paths
// always use forward slashes regardless of the local OS.
func NewBackupDescriptor(remoteFolder, localFolder string, now time.Time) BackupDescriptor {
	filename := now.Format(FilenameLayout) + DumpExtension
	return BackupDescriptor{
		RemoteFolder: remoteFolder,
		Filename:     filename,
		RemotePath:   path.Join(remoteFolder, filename),
		LocalPath:    filepath.Join(localFolder, filename),
	}
}

type MediaSnapshot struct {
	RemotePath string
	LocalRoot  string
	LocalPath  string
}

type RetentionPolicy struct {
	MaxAgeDays int
}

// Cutoff returns the instant before which a file counts as expired.
func (p RetentionPolicy) Cutoff(now time.Time) time.Time {
	return now.AddDate(0, 0, -p.MaxAgeDays)
}

type RunReport struct {
	RunID      string
	Host       string
	State      State
	FailedStep State
	Backup     BackupDescriptor
	Media      MediaSnapshot
	StartedAt  time.Time
	FinishedAt time.Time
	Err        error
}

func (r *RunReport) Succeeded() bool {
	return r.State == StateDone && r.Err == nil
}

func (r *RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
