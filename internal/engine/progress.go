package engine

import (
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/BadgerOps/craftctl/internal/download"
)

// DownloadProgress is a snapshot of one artifact download.
type DownloadProgress struct {
	Version        string
	Done           int64
	Total          int64
	Percent        float64
	BytesPerSecond int64
	Elapsed        time.Duration
}

// ProgressTracker throttles download progress callbacks and forwards
// snapshots to a sink.
type ProgressTracker struct {
	mu       sync.Mutex
	interval time.Duration
	sink     func(DownloadProgress)
	now      func() time.Time

	start    map[string]time.Time
	lastEmit map[string]time.Time
}

// NewProgressTracker creates a tracker emitting at most once per interval per
// version, plus a final snapshot when the download completes.
func NewProgressTracker(interval time.Duration, sink func(DownloadProgress)) *ProgressTracker {
	return &ProgressTracker{
		interval: interval,
		sink:     sink,
		now:      time.Now,
		start:    make(map[string]time.Time),
		lastEmit: make(map[string]time.Time),
	}
}

// LogSink returns a sink that logs snapshots through logger.
func LogSink(logger *slog.Logger) func(DownloadProgress) {
	return func(p DownloadProgress) {
		attrs := []any{
			"version", p.Version,
			"done", humanize.IBytes(uint64(p.Done)),
			"rate", humanize.IBytes(uint64(p.BytesPerSecond)) + "/s",
		}
		if p.Total > 0 {
			attrs = append(attrs, "total", humanize.IBytes(uint64(p.Total)), "percent", int(p.Percent))
		}
		logger.Info("download progress", attrs...)
	}
}

// For returns the download callback for version. It plugs into
// Options.OnProgress.
func (t *ProgressTracker) For(version string) download.ProgressFunc {
	return func(done, total int64) {
		t.update(version, done, total)
	}
}

func (t *ProgressTracker) update(version string, done, total int64) {
	t.mu.Lock()
	now := t.now()
	start, ok := t.start[version]
	if !ok {
		start = now
		t.start[version] = start
	}
	complete := total > 0 && done >= total
	if !complete && now.Sub(t.lastEmit[version]) < t.interval {
		t.mu.Unlock()
		return
	}
	t.lastEmit[version] = now
	if complete {
		delete(t.start, version)
		delete(t.lastEmit, version)
	}
	t.mu.Unlock()

	p := DownloadProgress{
		Version: version,
		Done:    done,
		Total:   total,
		Elapsed: now.Sub(start),
	}
	if total > 0 {
		p.Percent = float64(done) / float64(total) * 100
	}
	if secs := p.Elapsed.Seconds(); secs > 0 {
		p.BytesPerSecond = int64(float64(done) / secs)
	}
	t.sink(p)
}
