package safety

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestEntryPath(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "file", in: "world/level.dat", want: filepath.Join("world", "level.dat")},
		{name: "directory", in: "world/region/", want: filepath.Join("world", "region")},
		{name: "redundant segments", in: "world/./region//r.0.0.mca", want: filepath.Join("world", "region", "r.0.0.mca")},
		{name: "inner traversal", in: "world/region/../level.dat", want: filepath.Join("world", "level.dat")},
		{name: "empty", in: "", wantErr: true},
		{name: "root only", in: "/", wantErr: true},
		{name: "dot", in: "./", wantErr: true},
		{name: "absolute", in: "/etc/passwd", wantErr: true},
		{name: "parent", in: "../escape.txt", wantErr: true},
		{name: "nested parent", in: "world/../../escape", wantErr: true},
		{name: "nul", in: "world/a\x00b", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EntryPath(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsafePath) {
					t.Fatalf("EntryPath(%q) error = %v, want ErrUnsafePath", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("EntryPath(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("EntryPath(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestJoinUnder(t *testing.T) {
	root := t.TempDir()

	got, err := JoinUnder(root, "world/region/r.0.0.mca")
	if err != nil {
		t.Fatalf("JoinUnder returned error: %v", err)
	}
	if want := filepath.Join(root, "world", "region", "r.0.0.mca"); got != want {
		t.Fatalf("JoinUnder = %q, want %q", got, want)
	}

	for _, name := range []string{"../escape.txt", "/abs/path.txt", "world/../../escape"} {
		if _, err := JoinUnder(root, name); !errors.Is(err, ErrUnsafePath) {
			t.Errorf("JoinUnder(%q) error = %v, want ErrUnsafePath", name, err)
		}
	}
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"survival", false},
		{"my server 2", false},
		{"", true},
		{"   ", true},
		{".", true},
		{"..", true},
		{"a/b", true},
		{`a\b`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.name)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateName(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
		})
	}
}

func TestReadAllWithLimit(t *testing.T) {
	_, err := ReadAllWithLimit(strings.NewReader("abc"), 2)
	if !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("expected ErrBodyTooLarge, got %v", err)
	}

	data, err := ReadAllWithLimit(io.NopCloser(strings.NewReader("abc")), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "abc" {
		t.Fatalf("unexpected data: %q", string(data))
	}
}

func TestValidateHTTPURL(t *testing.T) {
	if _, err := ValidateHTTPURL("https://piston-meta.mojang.com/mc/game/version_manifest_v2.json"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, raw := range []string{"ftp://example.com/x", "https://user:pw@example.com/", "http:///nohost", "::"} {
		if _, err := ValidateHTTPURL(raw); err == nil {
			t.Errorf("expected %q to be rejected", raw)
		}
	}
}

func TestHTTPClientSetsUserAgent(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := NewHTTPClient(5 * time.Second).Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if got != UserAgent {
		t.Errorf("User-Agent = %q, want %q", got, UserAgent)
	}
}
