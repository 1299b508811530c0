package instance

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseDefaultMarker(t *testing.T) {
	tests := []struct {
		content string
		want    DefaultMarker
	}{
		{"", DefaultMarker{ServerType: ServerVanilla}},
		{"vanilla\n", DefaultMarker{ServerType: ServerVanilla}},
		{"Snapshot", DefaultMarker{ServerType: ServerSnapshot}},
		{"custom", DefaultMarker{ServerType: ServerLegacy}},
		{"custom (ask every time)", DefaultMarker{ServerType: ServerLegacy}},
		{"custom:1.12.2", DefaultMarker{ServerType: ServerLegacy, Version: "1.12.2"}},
		{"CUSTOM: 1.8.9 \r\nignored", DefaultMarker{ServerType: ServerLegacy, Version: "1.8.9"}},
		{"1.16.5", DefaultMarker{ServerType: ServerLegacy, Version: "1.16.5"}},
		{"  \n1.16.5", DefaultMarker{ServerType: ServerVanilla}},
	}

	for _, tt := range tests {
		if got := ParseDefaultMarker(tt.content); got != tt.want {
			t.Errorf("ParseDefaultMarker(%q) = %+v, want %+v", tt.content, got, tt.want)
		}
	}
}

func TestDefaultMarkerStringRoundTrip(t *testing.T) {
	for _, m := range []DefaultMarker{
		{ServerType: ServerVanilla},
		{ServerType: ServerSnapshot},
		{ServerType: ServerLegacy},
		{ServerType: ServerLegacy, Version: "1.12.2"},
	} {
		if got := ParseDefaultMarker(m.String()); got != m {
			t.Errorf("round trip of %+v gave %+v", m, got)
		}
	}
}

func TestReadDefaultMarker(t *testing.T) {
	dir := t.TempDir()

	got, err := ReadDefaultMarker(dir)
	if err != nil {
		t.Fatalf("ReadDefaultMarker() failed: %v", err)
	}
	if got.ServerType != ServerVanilla {
		t.Errorf("missing marker = %v, want vanilla", got.ServerType)
	}

	if err := os.WriteFile(filepath.Join(dir, "default.type"), []byte("snapshot\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err = ReadDefaultMarker(dir)
	if err != nil {
		t.Fatalf("ReadDefaultMarker() failed: %v", err)
	}
	if got.ServerType != ServerSnapshot {
		t.Errorf("marker = %v, want snapshot", got.ServerType)
	}
}

func TestDiscoverLaunchTypes(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"restore.type", "default.type", "modded.type", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "backup.type"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := DiscoverLaunchTypes(dir)
	if err != nil {
		t.Fatalf("DiscoverLaunchTypes() failed: %v", err)
	}
	want := []LaunchType{LaunchDefault, LaunchRestore}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestParseLaunchType(t *testing.T) {
	tests := []struct {
		input   string
		want    LaunchType
		wantErr bool
	}{
		{"", LaunchUnspecified, false},
		{"default", LaunchDefault, false},
		{"Backup", LaunchBackup, false},
		{" restore ", LaunchRestore, false},
		{"legacy", LaunchLegacy, false},
		{"legacy (for specific version)", LaunchLegacy, false},
		{"b", LaunchUnspecified, true},
	}
	for _, tt := range tests {
		got, err := ParseLaunchType(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLaunchType(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLaunchType(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
