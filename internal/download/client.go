package download

import (
	"context"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BadgerOps/craftctl/internal/safety"
)

// PartialSuffix is appended to the destination path while a download is in flight.
const PartialSuffix = ".part"

// ProgressFunc is called periodically to report download progress.
// bytesDownloaded is the number of bytes downloaded so far,
// totalBytes is the total size of the download (or 0 if unknown).
type ProgressFunc func(bytesDownloaded, totalBytes int64)

// DownloadOptions contains configuration for a single download.
type DownloadOptions struct {
	URL          string
	DestPath     string
	ExpectedSHA1 string // hex, empty to skip validation
	ExpectedSize int64  // 0 to skip size check
	OnProgress   ProgressFunc
}

// DownloadResult contains the result of a successful download.
type DownloadResult struct {
	Path     string
	Size     int64
	SHA1     string
	SHA256   string
	Duration time.Duration
}

// Client performs single-shot HTTP downloads into a temporary file that is
// renamed over the destination only after the body is fully written and verified.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new download client with the given logger.
func NewClient(logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: safety.NewStreamingClient(),
		logger:     logger,
	}
}

// Download fetches opts.URL into opts.DestPath. There are no retries: a failed
// attempt removes the partial file and returns the error to the caller.
func (c *Client) Download(ctx context.Context, opts DownloadOptions) (*DownloadResult, error) {
	if _, err := safety.ValidateHTTPURL(opts.URL); err != nil {
		return nil, fmt.Errorf("download url: %w", err)
	}
	if opts.DestPath == "" {
		return nil, errors.New("download destination is empty")
	}

	startTime := time.Now()

	if dir := filepath.Dir(opts.DestPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	partPath := opts.DestPath + PartialSuffix
	file, err := os.OpenFile(partPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	result, err := c.fetch(ctx, file, opts)
	if closeErr := file.Close(); closeErr != nil && err == nil {
		err = fmt.Errorf("failed to close file: %w", closeErr)
	}
	if err != nil {
		_ = os.Remove(partPath)
		c.logger.Warn("download failed", "url", opts.URL, "dest", filepath.Base(opts.DestPath), "error", err)
		return nil, err
	}

	if err := os.Rename(partPath, opts.DestPath); err != nil {
		_ = os.Remove(partPath)
		return nil, fmt.Errorf("failed to move download into place: %w", err)
	}

	result.Path = opts.DestPath
	result.Duration = time.Since(startTime)
	c.logger.Debug("download complete", "url", opts.URL, "dest", opts.DestPath, "size", result.Size, "duration", result.Duration)
	return result, nil
}

// fetch performs the request and streams the body into file, hashing as it goes.
func (c *Client) fetch(ctx context.Context, file *os.File, opts DownloadOptions) (*DownloadResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opts.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := safety.ReadAllWithLimit(resp.Body, 4096)
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}

	totalSize := resp.ContentLength
	if totalSize < 0 {
		totalSize = opts.ExpectedSize
	}

	var reader io.Reader = resp.Body
	if opts.OnProgress != nil {
		reader = &progressReader{
			reader:   resp.Body,
			callback: opts.OnProgress,
			total:    totalSize,
		}
	}

	sha1Hash := sha1.New()
	sha256Hash := sha256.New()
	written, err := io.Copy(io.MultiWriter(file, sha1Hash, sha256Hash), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to write to file: %w", err)
	}
	if err := file.Sync(); err != nil {
		return nil, fmt.Errorf("failed to sync file: %w", err)
	}

	sha1Hex := hex.EncodeToString(sha1Hash.Sum(nil))
	sha256Hex := hex.EncodeToString(sha256Hash.Sum(nil))

	// Checksum is authoritative when available; size is the fallback.
	if opts.ExpectedSHA1 != "" && !strings.EqualFold(sha1Hex, opts.ExpectedSHA1) {
		return nil, fmt.Errorf("checksum mismatch: got sha1 %s, expected %s", sha1Hex, opts.ExpectedSHA1)
	}
	if opts.ExpectedSize > 0 && written != opts.ExpectedSize {
		return nil, fmt.Errorf("size mismatch: got %d bytes, expected %d", written, opts.ExpectedSize)
	}

	return &DownloadResult{
		Size:   written,
		SHA1:   sha1Hex,
		SHA256: sha256Hex,
	}, nil
}

// HashFile computes the SHA1 hex digest and size of a file on disk.
func HashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha1.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// HTTPError represents an HTTP error response.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error %d: %s", e.StatusCode, e.Status)
}

// progressReader wraps a reader and calls a progress callback as data is read.
type progressReader struct {
	reader   io.Reader
	callback ProgressFunc
	current  int64
	total    int64
}

func (pr *progressReader) Read(p []byte) (n int, err error) {
	n, err = pr.reader.Read(p)
	if n > 0 {
		pr.current += int64(n)
		pr.callback(pr.current, pr.total)
	}
	return n, err
}
