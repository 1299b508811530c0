// Package backup archives a server's world directory and restores it,
// always taking a safety copy before world data is replaced.
package backup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/BadgerOps/craftctl/internal/safety"
	"github.com/BadgerOps/craftctl/internal/store"
)

// TimestampLayout is the archive name timestamp, second precision.
const TimestampLayout = "2006-01-02-15.04.05"

const (
	ModifierPreRestore  = "pre-restore"
	ModifierPostRestore = "post-restore"
)

var (
	// ErrWorldNotFound means the world directory to archive does not exist.
	ErrWorldNotFound = errors.New("world directory not found")
	// ErrInvalidSelection means a restore index is outside the archive list.
	ErrInvalidSelection = errors.New("invalid archive selection")
	// ErrArchiveExists means an archive with the same name was already written,
	// typically two backups with the same modifier inside one second.
	ErrArchiveExists = errors.New("archive already exists")
)

// Target identifies a server's directory. Its world lives at RootDir/Name.
type Target struct {
	Name    string
	RootDir string
}

// WorldDir is the directory holding the server's world data.
func (t Target) WorldDir() string {
	return filepath.Join(t.RootDir, t.Name)
}

// Archive is one backup file in a server's root directory.
type Archive struct {
	Server    string
	Name      string
	Path      string
	Timestamp time.Time
	Modifier  string
	Format    Format
	Size      int64
}

// Recorder keeps a history of written archives. Nil disables recording.
type Recorder interface {
	RecordBackup(b *store.BackupRecord) error
}

// Options configures an Engine.
type Options struct {
	Format   Format
	Recorder Recorder
	Logger   *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Engine writes and restores world archives.
type Engine struct {
	format   Format
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// RestoreReport describes a completed restore.
type RestoreReport struct {
	Restored    Archive
	PreRestore  *Archive
	PostRestore *Archive
	Files       int
	Bytes       int64
}

// New creates an Engine.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		format:   opts.Format,
		recorder: opts.Recorder,
		logger:   logger,
		now:      now,
	}
}

// ArchiveName builds "<server>_<timestamp>[.<modifier>]<ext>".
func ArchiveName(server string, ts time.Time, modifier string, f Format) string {
	name := server + "_" + ts.Format(TimestampLayout)
	if modifier != "" {
		name += "." + modifier
	}
	return name + f.Ext()
}

// ParseArchiveName reverses ArchiveName for the given server.
func ParseArchiveName(server, fileName string) (Archive, bool) {
	f, ok := formatOf(fileName)
	if !ok {
		return Archive{}, false
	}
	rest, ok := strings.CutPrefix(strings.TrimSuffix(fileName, f.Ext()), server+"_")
	if !ok || len(rest) < len(TimestampLayout) {
		return Archive{}, false
	}

	ts, err := time.ParseInLocation(TimestampLayout, rest[:len(TimestampLayout)], time.Local)
	if err != nil {
		return Archive{}, false
	}
	modifier := rest[len(TimestampLayout):]
	if modifier != "" {
		if modifier[0] != '.' || len(modifier) == 1 {
			return Archive{}, false
		}
		modifier = modifier[1:]
	}

	return Archive{
		Server:    server,
		Name:      fileName,
		Timestamp: ts,
		Modifier:  modifier,
		Format:    f,
	}, true
}

// Backup archives the target's world directory into its root directory.
// An existing archive with the same name is never overwritten; the call
// fails with ErrArchiveExists instead.
func (e *Engine) Backup(ctx context.Context, t Target, modifier string) (*Archive, error) {
	if modifier != "" {
		if err := safety.ValidateName(modifier); err != nil {
			return nil, fmt.Errorf("invalid backup modifier: %w", err)
		}
	}

	world := t.WorldDir()
	info, err := os.Stat(world)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrWorldNotFound, world)
		}
		return nil, fmt.Errorf("checking world directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrWorldNotFound, world)
	}

	ts := e.now()
	name := ArchiveName(t.Name, ts, modifier, e.format)
	final := filepath.Join(t.RootDir, name)

	tmp, err := os.CreateTemp(t.RootDir, "."+name+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("creating temp archive: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	files, size, err := writeArchive(ctx, tmp, e.format, world, t.Name)
	if err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("archiving %s: %w", world, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("syncing archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("closing archive: %w", err)
	}

	if err := publish(tmpPath, final); err != nil {
		return nil, err
	}

	archive := &Archive{
		Server:    t.Name,
		Name:      name,
		Path:      final,
		Timestamp: ts,
		Modifier:  modifier,
		Format:    e.format,
	}
	if st, err := os.Stat(final); err == nil {
		archive.Size = st.Size()
	}

	e.logger.Info("backup written", "server", t.Name, "archive", name, "files", files,
		"world_size", humanize.IBytes(uint64(size)), "archive_size", humanize.IBytes(uint64(archive.Size)))
	e.record(archive)
	return archive, nil
}

// publish moves tmp to final without replacing an existing file.
func publish(tmpPath, final string) error {
	err := os.Link(tmpPath, final)
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%w: %s", ErrArchiveExists, filepath.Base(final))
	}

	// Filesystems without hard links fall back to check-then-rename.
	if _, statErr := os.Lstat(final); statErr == nil {
		return fmt.Errorf("%w: %s", ErrArchiveExists, filepath.Base(final))
	}
	if err := os.Rename(tmpPath, final); err != nil {
		return fmt.Errorf("publishing archive: %w", err)
	}
	return nil
}

// List returns the archives in the target's root directory in directory
// order. Hidden files and unrecognized extensions are skipped.
func (e *Engine) List(t Target) ([]Archive, error) {
	entries, err := os.ReadDir(t.RootDir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", t.RootDir, err)
	}

	var archives []Archive
	for _, de := range entries {
		name := de.Name()
		if strings.HasPrefix(name, ".") || !de.Type().IsRegular() {
			continue
		}
		f, ok := formatOf(name)
		if !ok {
			continue
		}

		a, parsed := ParseArchiveName(t.Name, name)
		if !parsed {
			a = Archive{Server: t.Name, Name: name, Format: f}
		}
		a.Path = filepath.Join(t.RootDir, name)
		if info, err := de.Info(); err == nil {
			a.Size = info.Size()
			if a.Timestamp.IsZero() {
				a.Timestamp = info.ModTime()
			}
		}
		archives = append(archives, a)
	}
	return archives, nil
}

// Restore replaces the target's world with the archive at index in List order.
// An out-of-range index fails with ErrInvalidSelection before anything changes.
func (e *Engine) Restore(ctx context.Context, t Target, index int) (*RestoreReport, error) {
	archives, err := e.List(t)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(archives) {
		return nil, fmt.Errorf("%w: index %d, %d archives available", ErrInvalidSelection, index, len(archives))
	}
	return e.RestoreArchive(ctx, t, archives[index])
}

// RestoreArchive replaces the target's world with the contents of a.
// If a world exists it is archived as "pre-restore" before deletion, and the
// restored world is archived as "post-restore" afterwards.
func (e *Engine) RestoreArchive(ctx context.Context, t Target, a Archive) (*RestoreReport, error) {
	if _, err := verifyArchive(a.Path, t.Name); err != nil {
		return nil, fmt.Errorf("archive %s failed verification: %w", a.Name, err)
	}

	report := &RestoreReport{Restored: a}
	world := t.WorldDir()

	_, statErr := os.Stat(world)
	switch {
	case statErr == nil:
		pre, err := e.Backup(ctx, t, ModifierPreRestore)
		if err != nil {
			return nil, fmt.Errorf("pre-restore backup: %w", err)
		}
		report.PreRestore = pre

		if err := os.RemoveAll(world); err != nil {
			return report, fmt.Errorf("removing world %s: %w", world, err)
		}
		e.logger.Info("world removed", "server", t.Name, "safety_copy", pre.Name)
	case errors.Is(statErr, fs.ErrNotExist):
		e.logger.Info("no world to protect before restore", "server", t.Name)
	default:
		return nil, fmt.Errorf("checking world directory: %w", statErr)
	}

	files, size, err := extractArchive(ctx, a.Path, t.RootDir, t.Name)
	if err != nil {
		return report, fmt.Errorf("extracting %s: %w", a.Name, err)
	}
	report.Files = files
	report.Bytes = size

	post, err := e.Backup(ctx, t, ModifierPostRestore)
	if err != nil {
		return report, fmt.Errorf("post-restore backup: %w", err)
	}
	report.PostRestore = post

	e.logger.Info("world restored", "server", t.Name, "archive", a.Name, "files", files,
		"size", humanize.IBytes(uint64(size)))
	return report, nil
}

func (e *Engine) record(a *Archive) {
	if e.recorder == nil {
		return
	}
	rec := &store.BackupRecord{
		Server:    a.Server,
		Path:      a.Path,
		Modifier:  a.Modifier,
		Format:    a.Format.String(),
		Size:      a.Size,
		CreatedAt: a.Timestamp,
	}
	if err := e.recorder.RecordBackup(rec); err != nil {
		e.logger.Warn("failed to record backup", "archive", a.Name, "error", err)
	}
}
