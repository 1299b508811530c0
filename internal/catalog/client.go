// Package catalog reads the remote server version catalog: a manifest listing
// every version plus one detail document per version that names the server jar.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/BadgerOps/craftctl/internal/safety"
)

// DefaultManifestURL is Mojang's public version manifest.
const DefaultManifestURL = "https://piston-meta.mojang.com/mc/game/version_manifest_v2.json"

const defaultMaxMetadataBytes int64 = 32 * 1024 * 1024

var (
	// ErrUnavailable wraps transport failures and malformed catalog payloads.
	ErrUnavailable = errors.New("catalog unavailable")
	// ErrVersionNotFound means the id is absent from the manifest or has no server artifact.
	ErrVersionNotFound = errors.New("version not found")
)

// Options configures a Client.
type Options struct {
	ManifestURL      string
	Timeout          time.Duration
	MaxMetadataBytes int64
}

// Client fetches the manifest and version details. It never caches.
type Client struct {
	manifestURL string
	maxBytes    int64
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewClient builds a catalog client from opts, filling defaults for zero values.
func NewClient(opts Options, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ManifestURL == "" {
		opts.ManifestURL = DefaultManifestURL
	}
	if opts.MaxMetadataBytes <= 0 {
		opts.MaxMetadataBytes = defaultMaxMetadataBytes
	}
	return &Client{
		manifestURL: opts.ManifestURL,
		maxBytes:    opts.MaxMetadataBytes,
		httpClient:  safety.NewHTTPClient(opts.Timeout),
		logger:      logger,
	}
}

// FetchManifest downloads and parses the version manifest.
func (c *Client) FetchManifest(ctx context.Context) (*Manifest, error) {
	data, err := c.fetch(ctx, c.manifestURL)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: parsing manifest: %v", ErrUnavailable, err)
	}
	if m.Latest.Release == "" && m.Latest.Snapshot == "" && len(m.Versions) == 0 {
		return nil, fmt.Errorf("%w: manifest has no latest ids or versions", ErrUnavailable)
	}
	m.index()

	c.logger.Debug("manifest fetched", "url", c.manifestURL, "versions", len(m.Versions),
		"latest_release", m.Latest.Release, "latest_snapshot", m.Latest.Snapshot)
	return &m, nil
}

// ResolveArtifact fetches the entry's detail document and returns its server jar.
func (c *Client) ResolveArtifact(ctx context.Context, entry VersionEntry) (*Artifact, error) {
	if entry.URL == "" {
		return nil, fmt.Errorf("%w: %s has no detail url", ErrVersionNotFound, entry.ID)
	}

	data, err := c.fetch(ctx, entry.URL)
	if err != nil {
		return nil, err
	}

	var detail versionDetail
	if err := json.Unmarshal(data, &detail); err != nil {
		return nil, fmt.Errorf("%w: parsing detail for %s: %v", ErrUnavailable, entry.ID, err)
	}
	server := detail.Downloads.Server
	if server == nil || server.URL == "" {
		return nil, fmt.Errorf("%w: %s publishes no server artifact", ErrVersionNotFound, entry.ID)
	}
	if _, err := safety.ValidateHTTPURL(server.URL); err != nil {
		return nil, fmt.Errorf("%w: server url for %s: %v", ErrUnavailable, entry.ID, err)
	}

	c.logger.Debug("artifact resolved", "version", entry.ID, "url", server.URL, "size", server.Size)
	return server, nil
}

func (c *Client) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if _, err := safety.ValidateHTTPURL(rawURL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: executing request: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status code %d from %s", ErrUnavailable, resp.StatusCode, rawURL)
	}

	data, err := safety.ReadAllWithLimit(resp.Body, c.maxBytes)
	if err != nil {
		if errors.Is(err, safety.ErrBodyTooLarge) {
			return nil, fmt.Errorf("%w: metadata response exceeded %d bytes", ErrUnavailable, c.maxBytes)
		}
		return nil, fmt.Errorf("%w: reading response body: %v", ErrUnavailable, err)
	}
	return data, nil
}
