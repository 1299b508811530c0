package download

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sha1Hex(b []byte) string {
	sum := sha1.Sum(b)
	return hex.EncodeToString(sum[:])
}

// TestNewClient creates client with logger
func TestNewClient(t *testing.T) {
	client := NewClient(testLogger())

	if client == nil {
		t.Fatal("expected client to be non-nil")
	}
	if client.httpClient == nil {
		t.Fatal("expected httpClient to be initialized")
	}
	if client.logger == nil {
		t.Fatal("expected logger to be set")
	}
}

// TestDownloadFile serves a jar, downloads it and verifies content and hashes
func TestDownloadFile(t *testing.T) {
	testContent := []byte("pretend this is minecraft_server.jar")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/java-archive")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(testContent)
	}))
	defer server.Close()

	destPath := filepath.Join(t.TempDir(), "versions", "minecraft_server.1.20.1.jar")

	result, err := NewClient(testLogger()).Download(context.Background(), DownloadOptions{
		URL:          server.URL,
		DestPath:     destPath,
		ExpectedSHA1: sha1Hex(testContent),
		ExpectedSize: int64(len(testContent)),
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	content, err := os.ReadFile(destPath)
	if err != nil {
		t.Fatalf("failed to read downloaded file: %v", err)
	}
	if string(content) != string(testContent) {
		t.Errorf("content mismatch: expected %s, got %s", testContent, content)
	}
	if result.Size != int64(len(testContent)) {
		t.Errorf("expected size %d, got %d", len(testContent), result.Size)
	}
	if result.Path != destPath {
		t.Errorf("expected path %s, got %s", destPath, result.Path)
	}
	if result.SHA1 != sha1Hex(testContent) {
		t.Errorf("sha1 = %s, want %s", result.SHA1, sha1Hex(testContent))
	}
	if result.SHA256 == "" {
		t.Error("expected sha256 to be populated")
	}
	if _, err := os.Stat(destPath + PartialSuffix); !os.IsNotExist(err) {
		t.Errorf("partial file should not remain, stat err = %v", err)
	}
}

func TestDownloadFileChecksumMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("corrupted bytes"))
	}))
	defer server.Close()

	destPath := filepath.Join(t.TempDir(), "server.jar")

	_, err := NewClient(testLogger()).Download(context.Background(), DownloadOptions{
		URL:          server.URL,
		DestPath:     destPath,
		ExpectedSHA1: sha1Hex([]byte("the real bytes")),
	})
	if err == nil {
		t.Fatal("expected checksum mismatch error")
	}

	if _, err := os.Stat(destPath); !os.IsNotExist(err) {
		t.Errorf("destination must not exist after mismatch, stat err = %v", err)
	}
	if _, err := os.Stat(destPath + PartialSuffix); !os.IsNotExist(err) {
		t.Errorf("partial file must be removed after mismatch, stat err = %v", err)
	}
}

func TestDownloadFileSizeValidation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("short"))
	}))
	defer server.Close()

	destPath := filepath.Join(t.TempDir(), "server.jar")
	_, err := NewClient(testLogger()).Download(context.Background(), DownloadOptions{
		URL:          server.URL,
		DestPath:     destPath,
		ExpectedSize: 1024,
	})
	if err == nil {
		t.Fatal("expected size mismatch error")
	}
}

func TestDownloadFileKeepsExistingOnFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	destPath := filepath.Join(t.TempDir(), "server.jar")
	if err := os.WriteFile(destPath, []byte("previous good jar"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewClient(testLogger()).Download(context.Background(), DownloadOptions{
		URL:      server.URL,
		DestPath: destPath,
	}); err == nil {
		t.Fatal("expected error for 500 response")
	}

	content, err := os.ReadFile(destPath)
	if err != nil {
		t.Fatalf("existing file was removed: %v", err)
	}
	if string(content) != "previous good jar" {
		t.Errorf("existing file was modified: %q", content)
	}
}

func TestDownloadFileHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	_, err := NewClient(testLogger()).Download(context.Background(), DownloadOptions{
		URL:      server.URL,
		DestPath: filepath.Join(t.TempDir(), "server.jar"),
	})

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *HTTPError, got %T: %v", err, err)
	}
	if httpErr.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", httpErr.StatusCode)
	}
}

func TestDownloadFileContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("data"))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	destPath := filepath.Join(t.TempDir(), "server.jar")
	_, err := NewClient(testLogger()).Download(ctx, DownloadOptions{URL: server.URL, DestPath: destPath})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, err := os.Stat(destPath + PartialSuffix); !os.IsNotExist(err) {
		t.Errorf("partial file must be removed after cancellation, stat err = %v", err)
	}
}

func TestDownloadFileProgress(t *testing.T) {
	payload := make([]byte, 64*1024)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	var last int64
	calls := 0
	_, err := NewClient(testLogger()).Download(context.Background(), DownloadOptions{
		URL:      server.URL,
		DestPath: filepath.Join(t.TempDir(), "server.jar"),
		OnProgress: func(done, total int64) {
			calls++
			last = done
		},
	})
	if err != nil {
		t.Fatalf("download failed: %v", err)
	}
	if calls == 0 {
		t.Fatal("expected progress callback to be called")
	}
	if last != int64(len(payload)) {
		t.Errorf("final progress = %d, want %d", last, len(payload))
	}
}

func TestDownloadRejectsBadURL(t *testing.T) {
	_, err := NewClient(testLogger()).Download(context.Background(), DownloadOptions{
		URL:      "file:///etc/passwd",
		DestPath: filepath.Join(t.TempDir(), "x"),
	})
	if err == nil {
		t.Fatal("expected non-http URL to be rejected")
	}
}

func TestHashFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	if err := os.WriteFile(path, []byte("abc"), 0o644); err != nil {
		t.Fatal(err)
	}
	sum, size, err := HashFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if sum != "a9993e364706816aba3e25717850c26c9cd0d89d" {
		t.Errorf("sha1 = %s", sum)
	}
	if size != 3 {
		t.Errorf("size = %d, want 3", size)
	}
}
