package store

import (
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"
)

// newTestStore creates an in-memory SQLite store for testing
func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// ============================================================================
// Store Lifecycle Tests
// ============================================================================

func TestNew(t *testing.T) {
	store := newTestStore(t)

	if store.db == nil {
		t.Error("Expected db to be initialized")
	}
	if store.logger == nil {
		t.Error("Expected logger to be initialized")
	}
}

func TestNewCreatesParentDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "state", "craftctl.db")

	store, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer store.Close()

	run := &UpdateRun{Channel: "vanilla", StartTime: time.Now(), Status: "running"}
	if err := store.CreateUpdateRun(run); err != nil {
		t.Fatalf("CreateUpdateRun() failed: %v", err)
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "craftctl.db")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	first, err := New(dbPath, logger)
	if err != nil {
		t.Fatalf("first New() failed: %v", err)
	}
	if err := first.RecordLaunch(&Launch{
		Server: "survival", LaunchType: "default", ServerType: "vanilla",
		Status: "started", StartedAt: time.Now(),
	}); err != nil {
		t.Fatal(err)
	}
	first.Close()

	second, err := New(dbPath, logger)
	if err != nil {
		t.Fatalf("reopening failed: %v", err)
	}
	defer second.Close()

	var version int
	if err := second.db.QueryRow("SELECT MAX(version) FROM migrations").Scan(&version); err != nil {
		t.Fatal(err)
	}
	if version != 2 {
		t.Errorf("schema version = %d, want 2", version)
	}

	launches, err := second.ListLaunches("", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(launches) != 1 {
		t.Errorf("launches after reopen = %d, want 1", len(launches))
	}
}

func TestClose(t *testing.T) {
	store, err := New(":memory:", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	if _, err := store.ListUpdateRuns("", 0); err == nil {
		t.Error("Expected error when using closed store, but got nil")
	}
}

// ============================================================================
// UpdateRun Tests
// ============================================================================

func TestCreateAndUpdateUpdateRun(t *testing.T) {
	store := newTestStore(t)

	run := &UpdateRun{
		Channel:     "vanilla",
		FromVersion: "1.19.4",
		StartTime:   time.Now(),
		Status:      "running",
	}
	if err := store.CreateUpdateRun(run); err != nil {
		t.Fatalf("CreateUpdateRun() failed: %v", err)
	}
	if run.ID == 0 {
		t.Fatal("Expected ID to be set after CreateUpdateRun")
	}

	run.ToVersion = "1.20.1"
	run.Action = "downloaded"
	run.Status = "success"
	run.EndTime = time.Now()
	if err := store.UpdateUpdateRun(run); err != nil {
		t.Fatalf("UpdateUpdateRun() failed: %v", err)
	}

	runs, err := store.ListUpdateRuns("vanilla", 1)
	if err != nil {
		t.Fatalf("ListUpdateRuns() failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("Expected 1 run, got %d", len(runs))
	}
	got := runs[0]
	if got.Channel != "vanilla" || got.FromVersion != "1.19.4" || got.ToVersion != "1.20.1" {
		t.Errorf("unexpected run: %+v", got)
	}
	if got.Action != "downloaded" || got.Status != "success" {
		t.Errorf("action/status = %s/%s", got.Action, got.Status)
	}
}

func TestUpdateUpdateRunNotFound(t *testing.T) {
	store := newTestStore(t)

	err := store.UpdateUpdateRun(&UpdateRun{ID: 999, Channel: "vanilla", StartTime: time.Now()})
	if err == nil {
		t.Fatal("Expected error for missing run")
	}
}

func TestListUpdateRuns(t *testing.T) {
	store := newTestStore(t)
	base := time.Now().Add(-time.Hour)

	for i, ch := range []string{"vanilla", "snapshot", "vanilla"} {
		run := &UpdateRun{Channel: ch, StartTime: base.Add(time.Duration(i) * time.Minute), Status: "success"}
		if err := store.CreateUpdateRun(run); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name    string
		channel string
		limit   int
		want    int
	}{
		{"all", "", 0, 3},
		{"vanilla only", "vanilla", 0, 2},
		{"snapshot only", "snapshot", 0, 1},
		{"limited", "", 2, 2},
		{"unknown channel", "legacy", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := store.ListUpdateRuns(tt.channel, tt.limit)
			if err != nil {
				t.Fatalf("ListUpdateRuns() failed: %v", err)
			}
			if len(runs) != tt.want {
				t.Errorf("got %d runs, want %d", len(runs), tt.want)
			}
		})
	}

	runs, _ := store.ListUpdateRuns("", 0)
	if !runs[0].StartTime.After(runs[len(runs)-1].StartTime) {
		t.Error("Expected runs ordered newest first")
	}
}

// ============================================================================
// Artifact Tests
// ============================================================================

func TestUpsertArtifact(t *testing.T) {
	store := newTestStore(t)

	a := &Artifact{
		Version:      "1.20.1",
		Path:         "/var/lib/craftctl/versions/minecraft_server.1.20.1.jar",
		Size:         1024,
		SHA1:         "abc",
		DownloadedAt: time.Now(),
	}
	if err := store.UpsertArtifact(a); err != nil {
		t.Fatalf("UpsertArtifact() failed: %v", err)
	}
	if a.ID == 0 {
		t.Fatal("Expected ID to be set")
	}
	firstID := a.ID

	a.Size = 2048
	a.SHA1 = "def"
	if err := store.UpsertArtifact(a); err != nil {
		t.Fatalf("second UpsertArtifact() failed: %v", err)
	}
	if a.ID != firstID {
		t.Errorf("ID changed on upsert: %d -> %d", firstID, a.ID)
	}

	got, err := store.GetArtifact("1.20.1")
	if err != nil {
		t.Fatalf("GetArtifact() failed: %v", err)
	}
	if got.Size != 2048 || got.SHA1 != "def" {
		t.Errorf("artifact not updated: %+v", got)
	}

	all, err := store.ListArtifacts()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("ListArtifacts() = %d entries, want 1", len(all))
	}
}

func TestArtifactVerifyAndDelete(t *testing.T) {
	store := newTestStore(t)

	if err := store.UpsertArtifact(&Artifact{Version: "1.19.4", Path: "a", Size: 10, DownloadedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	if err := store.UpsertArtifact(&Artifact{Version: "1.20.1", Path: "b", Size: 32, DownloadedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}

	total, err := store.SumArtifactSize()
	if err != nil {
		t.Fatal(err)
	}
	if total != 42 {
		t.Errorf("SumArtifactSize() = %d, want 42", total)
	}

	verifiedAt := time.Now().Truncate(time.Second)
	if err := store.MarkArtifactVerified("1.19.4", verifiedAt); err != nil {
		t.Fatalf("MarkArtifactVerified() failed: %v", err)
	}
	got, _ := store.GetArtifact("1.19.4")
	if !got.LastVerified.Equal(verifiedAt) {
		t.Errorf("LastVerified = %v, want %v", got.LastVerified, verifiedAt)
	}

	if err := store.MarkArtifactVerified("b1.7.3", verifiedAt); err == nil {
		t.Error("Expected error verifying unknown artifact")
	}

	if err := store.DeleteArtifact("1.19.4"); err != nil {
		t.Fatalf("DeleteArtifact() failed: %v", err)
	}
	if _, err := store.GetArtifact("1.19.4"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetArtifact() after delete = %v, want ErrNotFound", err)
	}
	if err := store.DeleteArtifact("1.19.4"); err == nil {
		t.Error("Expected error deleting twice")
	}
}

// ============================================================================
// Backup and Launch Tests
// ============================================================================

func TestRecordAndListBackups(t *testing.T) {
	store := newTestStore(t)
	base := time.Now().Add(-time.Hour)

	records := []BackupRecord{
		{Server: "survival", Path: "/srv/survival/survival_1.tar.zst", Format: "zstd", Size: 10, CreatedAt: base},
		{Server: "survival", Path: "/srv/survival/survival_2.pre-restore.tar.zst", Modifier: "pre-restore", Format: "zstd", CreatedAt: base.Add(time.Minute)},
		{Server: "creative", Path: "/srv/creative/creative_1.zip", Format: "zip", CreatedAt: base.Add(2 * time.Minute)},
	}
	for i := range records {
		if err := store.RecordBackup(&records[i]); err != nil {
			t.Fatalf("RecordBackup() failed: %v", err)
		}
		if records[i].ID == 0 {
			t.Error("Expected ID to be set")
		}
	}

	survival, err := store.ListBackups("survival", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(survival) != 2 {
		t.Fatalf("got %d survival backups, want 2", len(survival))
	}
	if survival[0].Modifier != "pre-restore" {
		t.Errorf("newest backup modifier = %q, want pre-restore", survival[0].Modifier)
	}

	all, _ := store.ListBackups("", 1)
	if len(all) != 1 || all[0].Server != "creative" {
		t.Errorf("ListBackups(limit 1) = %+v", all)
	}

	dup := records[0]
	if err := store.RecordBackup(&dup); err == nil {
		t.Error("Expected duplicate archive path to be rejected")
	}
}

func TestRecordAndListLaunches(t *testing.T) {
	store := newTestStore(t)

	for _, status := range []string{"skipped", "started"} {
		l := &Launch{
			Server:     "survival",
			LaunchType: "default",
			ServerType: "vanilla",
			Version:    "1.20.1",
			Status:     status,
			StartedAt:  time.Now(),
		}
		if err := store.RecordLaunch(l); err != nil {
			t.Fatalf("RecordLaunch() failed: %v", err)
		}
	}

	launches, err := store.ListLaunches("survival", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(launches) != 2 {
		t.Fatalf("got %d launches, want 2", len(launches))
	}
	if launches[0].Status != "started" {
		t.Errorf("newest launch status = %q, want started", launches[0].Status)
	}

	other, _ := store.ListLaunches("creative", 0)
	if len(other) != 0 {
		t.Errorf("expected no launches for other server, got %d", len(other))
	}
}
