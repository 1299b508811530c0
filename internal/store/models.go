package store

import "time"

// UpdateRun records one channel reconciliation
type UpdateRun struct {
	ID           int64
	Channel      string // "vanilla", "snapshot" or "legacy"
	FromVersion  string
	ToVersion    string
	Action       string // "up-to-date", "downloaded", "pinned", "declined", "missing"
	Status       string // "running", "success", "failed"
	ErrorMessage string
	StartTime    time.Time
	EndTime      time.Time
}

// Artifact tracks a downloaded server jar
type Artifact struct {
	ID           int64
	Version      string
	Path         string
	Size         int64
	SHA1         string
	SHA256       string
	DownloadedAt time.Time
	LastVerified time.Time
}

// BackupRecord describes an archive written by the backup engine
type BackupRecord struct {
	ID        int64
	Server    string
	Path      string
	Modifier  string // "", "pre-restore", "post-restore", or user supplied
	Format    string // "zstd", "xz", "zip"
	Size      int64
	CreatedAt time.Time
}

// Launch records a server start attempt
type Launch struct {
	ID           int64
	Server       string
	LaunchType   string
	ServerType   string
	Version      string
	Status       string // "started", "skipped", "failed"
	ErrorMessage string
	StartedAt    time.Time
}
