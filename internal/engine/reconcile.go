package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BadgerOps/craftctl/internal/catalog"
	"github.com/BadgerOps/craftctl/internal/download"
	"github.com/BadgerOps/craftctl/internal/store"
	"github.com/BadgerOps/craftctl/internal/versions"
)

const (
	artifactPrefix = "minecraft_server."
	artifactSuffix = ".jar"
)

// ErrVersionRequired is returned when a legacy reconciliation has no pinned version.
var ErrVersionRequired = errors.New("legacy reconciliation requires a version")

// Catalog is the subset of the catalog client the reconciler needs.
type Catalog interface {
	FetchManifest(ctx context.Context) (*catalog.Manifest, error)
	ResolveArtifact(ctx context.Context, entry catalog.VersionEntry) (*catalog.Artifact, error)
}

// Downloader fetches one artifact to disk.
type Downloader interface {
	Download(ctx context.Context, opts download.DownloadOptions) (*download.DownloadResult, error)
}

// Confirmer answers yes/no questions.
type Confirmer interface {
	Confirm(ctx context.Context, question string, def bool) (bool, error)
}

// History records reconciliation outcomes. A nil History disables recording.
type History interface {
	CreateUpdateRun(run *store.UpdateRun) error
	UpdateUpdateRun(run *store.UpdateRun) error
	UpsertArtifact(a *store.Artifact) error
}

// Options wires a Reconciler.
type Options struct {
	VersionsDir string
	Catalog     Catalog
	Versions    *versions.Store
	Downloader  Downloader
	Confirmer   Confirmer
	History     History
	Logger      *slog.Logger
	// OnProgress, when set, receives download progress for every artifact.
	OnProgress func(version string) download.ProgressFunc
}

// Reconciler compares selected versions with the catalog and fetches artifacts.
// The manifest is fetched at most once per Reconciler and shared by every
// channel it reconciles.
type Reconciler struct {
	versionsDir string
	catalog     Catalog
	versions    *versions.Store
	downloader  Downloader
	confirmer   Confirmer
	history     History
	logger      *slog.Logger
	onProgress  func(version string) download.ProgressFunc

	manifest *catalog.Manifest
}

// NewReconciler creates a Reconciler.
func NewReconciler(opts Options) *Reconciler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		versionsDir: opts.VersionsDir,
		catalog:     opts.Catalog,
		versions:    opts.Versions,
		downloader:  opts.Downloader,
		confirmer:   opts.Confirmer,
		history:     opts.History,
		logger:      logger,
		onProgress:  opts.OnProgress,
	}
}

// ArtifactName is the jar file name for a version.
func ArtifactName(version string) string {
	return artifactPrefix + version + artifactSuffix
}

// ArtifactPath is where the jar for version lives.
func (r *Reconciler) ArtifactPath(version string) string {
	return filepath.Join(r.versionsDir, ArtifactName(version))
}

// Installed reports whether the jar for version is on disk.
func (r *Reconciler) Installed(version string) bool {
	if version == "" {
		return false
	}
	info, err := os.Stat(r.ArtifactPath(version))
	return err == nil && info.Mode().IsRegular()
}

// InstalledVersions lists the version ids with a jar in the versions directory.
func (r *Reconciler) InstalledVersions() ([]string, error) {
	entries, err := os.ReadDir(r.versionsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading versions directory: %w", err)
	}

	var ids []string
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || !strings.HasPrefix(name, artifactPrefix) || !strings.HasSuffix(name, artifactSuffix) {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(name, artifactPrefix), artifactSuffix)
		if id != "" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Manifest returns the manifest, fetching it on first use.
func (r *Reconciler) Manifest(ctx context.Context) (*catalog.Manifest, error) {
	if r.manifest != nil {
		return r.manifest, nil
	}
	m, err := r.catalog.FetchManifest(ctx)
	if err != nil {
		return nil, err
	}
	r.manifest = m
	return m, nil
}

// Reconcile brings every channel named by sel up to the catalog's latest.
// For SelectLegacy, pinned is the version to ensure is present.
func (r *Reconciler) Reconcile(ctx context.Context, sel Selector, pinned string) ([]Result, error) {
	if sel == SelectLegacy {
		res, err := r.ReconcileLegacy(ctx, pinned)
		if err != nil {
			return nil, err
		}
		return []Result{*res}, nil
	}

	// Channels are independent: a failed channel does not stop the next one.
	var results []Result
	var errs []error
	for _, ch := range sel.Channels() {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		res, err := r.ReconcileChannel(ctx, ch)
		if err != nil {
			errs = append(errs, fmt.Errorf("reconciling %s: %w", ch, err))
			continue
		}
		results = append(results, *res)
	}
	return results, errors.Join(errs...)
}

// ReconcileChannel compares the selected version of ch against the manifest's
// latest, asks whether to move, and downloads or pins accordingly. The
// version store is written only after the artifact is on disk.
func (r *Reconciler) ReconcileChannel(ctx context.Context, ch versions.Channel) (*Result, error) {
	current := r.versions.Get(ch)

	m, err := r.Manifest(ctx)
	if err != nil {
		return nil, err
	}
	latest := m.LatestFor(ch)
	if latest == "" {
		return nil, fmt.Errorf("%w: manifest has no latest %s id", catalog.ErrUnavailable, ch)
	}

	res := &Result{Channel: ch.String(), Current: current, Latest: latest, Version: current, Path: r.ArtifactPath(latest)}
	latestExists := r.Installed(latest)

	if current == latest && latestExists {
		res.Action = ActionUpToDate
		r.logger.Debug("channel up to date", "channel", ch, "version", current)
		return res, nil
	}

	run := r.beginRun(ch.String(), current)

	question := fmt.Sprintf("A newer %s version %s is available, download it?", ch, latest)
	if !r.Installed(current) {
		question = fmt.Sprintf("The %s version %s has not been downloaded, download it?", ch, latest)
	}
	ok, err := r.confirmer.Confirm(ctx, question, true)
	if err != nil {
		r.finishRun(run, res, err)
		return nil, err
	}
	if !ok {
		res.Action = ActionDeclined
		if !r.Installed(current) {
			res.Action = ActionMissing
		}
		r.logger.Info("update declined", "channel", ch, "current", current, "latest", latest)
		r.finishRun(run, res, nil)
		return res, nil
	}

	if latestExists {
		res.Action = ActionPinned
	} else {
		if err := r.fetch(ctx, m, latest, res); err != nil {
			r.finishRun(run, res, err)
			return nil, err
		}
		res.Action = ActionDownloaded
	}

	if err := r.versions.Set(ch, latest); err != nil {
		err = fmt.Errorf("recording %s version: %w", ch, err)
		r.finishRun(run, res, err)
		return nil, err
	}
	res.Version = latest

	r.logger.Info("channel updated", "channel", ch, "from", current, "to", latest, "action", res.Action)
	r.finishRun(run, res, nil)
	return res, nil
}

// ReconcileLegacy ensures the jar for a pinned legacy version is present.
// Legacy versions are not tracked in the version store.
func (r *Reconciler) ReconcileLegacy(ctx context.Context, version string) (*Result, error) {
	if version == "" {
		return nil, ErrVersionRequired
	}

	res := &Result{Channel: legacyChannel, Current: version, Latest: version, Version: version, Path: r.ArtifactPath(version)}
	if r.Installed(version) {
		res.Action = ActionUpToDate
		return res, nil
	}

	run := r.beginRun(legacyChannel, version)

	ok, err := r.confirmer.Confirm(ctx, fmt.Sprintf("The version %s has not been downloaded, download it?", version), true)
	if err != nil {
		r.finishRun(run, res, err)
		return nil, err
	}
	if !ok {
		res.Action = ActionMissing
		r.finishRun(run, res, nil)
		return res, nil
	}

	m, err := r.Manifest(ctx)
	if err != nil {
		r.finishRun(run, res, err)
		return nil, err
	}
	if err := r.fetch(ctx, m, version, res); err != nil {
		r.finishRun(run, res, err)
		return nil, err
	}
	res.Action = ActionDownloaded
	r.finishRun(run, res, nil)
	return res, nil
}

// UpdateTo installs an explicit version, skipping the latest comparison. For
// tracked channels the version store is pointed at version once its jar is
// present. An id missing from the manifest fails with catalog.ErrVersionNotFound
// before anything is written.
func (r *Reconciler) UpdateTo(ctx context.Context, sel Selector, version string) (*Result, error) {
	version = strings.TrimSpace(version)
	if version == "" {
		return nil, ErrVersionRequired
	}

	var ch versions.Channel
	tracked := false
	switch sel {
	case SelectVanilla:
		ch, tracked = versions.Vanilla, true
	case SelectSnapshot:
		ch, tracked = versions.Snapshot, true
	case SelectLegacy:
	case SelectBoth:
		return nil, fmt.Errorf("an explicit version needs a single channel, not %s", sel)
	default:
		return nil, fmt.Errorf("unknown selector %d", sel)
	}

	name := legacyChannel
	current := version
	if tracked {
		name = ch.String()
		current = r.versions.Get(ch)
	}
	res := &Result{Channel: name, Current: current, Latest: version, Version: version, Path: r.ArtifactPath(version)}

	run := r.beginRun(name, current)

	if r.Installed(version) {
		res.Action = ActionUpToDate
		if tracked && current != version {
			res.Action = ActionPinned
		}
	} else {
		m, err := r.Manifest(ctx)
		if err != nil {
			r.finishRun(run, res, err)
			return nil, err
		}
		if _, err := m.Lookup(version); err != nil {
			r.finishRun(run, res, err)
			return nil, err
		}
		if err := r.fetch(ctx, m, version, res); err != nil {
			r.finishRun(run, res, err)
			return nil, err
		}
		res.Action = ActionDownloaded
	}

	if tracked && current != version {
		if err := r.versions.Set(ch, version); err != nil {
			err = fmt.Errorf("recording %s version: %w", ch, err)
			r.finishRun(run, res, err)
			return nil, err
		}
		r.logger.Info("channel pinned", "channel", ch, "from", current, "to", version)
	}

	r.finishRun(run, res, nil)
	return res, nil
}

// fetch resolves version in m and downloads its jar to the artifact path.
func (r *Reconciler) fetch(ctx context.Context, m *catalog.Manifest, version string, res *Result) error {
	entry, err := m.Lookup(version)
	if err != nil {
		return err
	}
	artifact, err := r.catalog.ResolveArtifact(ctx, entry)
	if err != nil {
		return err
	}

	opts := download.DownloadOptions{
		URL:          artifact.URL,
		DestPath:     r.ArtifactPath(version),
		ExpectedSHA1: artifact.SHA1,
		ExpectedSize: artifact.Size,
	}
	if r.onProgress != nil {
		opts.OnProgress = r.onProgress(version)
	}

	r.logger.Info("downloading server jar", "version", version, "url", artifact.URL, "size", artifact.Size)
	dl, err := r.downloader.Download(ctx, opts)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", version, err)
	}
	res.Bytes = dl.Size

	if r.history != nil {
		rec := &store.Artifact{
			Version:      version,
			Path:         dl.Path,
			Size:         dl.Size,
			SHA1:         dl.SHA1,
			SHA256:       dl.SHA256,
			DownloadedAt: time.Now(),
			LastVerified: time.Now(),
		}
		if err := r.history.UpsertArtifact(rec); err != nil {
			r.logger.Warn("failed to record artifact", "version", version, "error", err)
		}
	}
	return nil
}

func (r *Reconciler) beginRun(channel, from string) *store.UpdateRun {
	if r.history == nil {
		return nil
	}
	run := &store.UpdateRun{
		Channel:     channel,
		FromVersion: from,
		Status:      "running",
		StartTime:   time.Now(),
	}
	if err := r.history.CreateUpdateRun(run); err != nil {
		r.logger.Warn("failed to record update run", "channel", channel, "error", err)
		return nil
	}
	return run
}

func (r *Reconciler) finishRun(run *store.UpdateRun, res *Result, runErr error) {
	if run == nil {
		return
	}
	run.EndTime = time.Now()
	run.ToVersion = res.Version
	run.Action = res.Action.String()
	run.Status = "success"
	if runErr != nil {
		run.Status = "failed"
		run.ErrorMessage = runErr.Error()
	}
	if err := r.history.UpdateUpdateRun(run); err != nil {
		r.logger.Warn("failed to finish update run", "channel", run.Channel, "error", err)
	}
}
