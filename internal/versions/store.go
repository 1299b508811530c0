package versions

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// DocumentName is the file name of the version document inside the versions directory.
const DocumentName = "versions.yaml"

// Store is the durable record of the selected version id per channel.
// The whole document is rewritten on every Set.
type Store struct {
	path   string
	logger *slog.Logger

	mu  sync.RWMutex
	doc map[string]string
}

// Open loads the version document at path. A missing document is created
// with every channel empty.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		path:   path,
		logger: logger,
		doc:    emptyDocument(),
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		loaded := make(map[string]string)
		if err := yaml.Unmarshal(data, &loaded); err != nil {
			return nil, fmt.Errorf("parsing version document %s: %w", path, err)
		}
		for k, v := range loaded {
			c, err := ParseChannel(k)
			if err != nil {
				logger.Warn("ignoring unknown channel in version document", "path", path, "key", k)
				continue
			}
			s.doc[c.String()] = v
		}
		logger.Debug("version document loaded", "path", path, "vanilla", s.doc[Vanilla.String()], "snapshot", s.doc[Snapshot.String()])
	case os.IsNotExist(err):
		if err := s.save(s.doc); err != nil {
			return nil, fmt.Errorf("creating version document: %w", err)
		}
		logger.Info("created version document", "path", path)
	default:
		return nil, fmt.Errorf("reading version document %s: %w", path, err)
	}

	return s, nil
}

// Path returns the location of the backing document.
func (s *Store) Path() string {
	return s.path
}

// Get returns the selected version id for the channel, or "" if unset.
func (s *Store) Get(c Channel) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc[c.String()]
}

// Set records versionID for the channel and persists the document before returning.
func (s *Store) Set(c Channel, versionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]string, len(s.doc))
	for k, v := range s.doc {
		next[k] = v
	}
	next[c.String()] = versionID

	if err := s.save(next); err != nil {
		return fmt.Errorf("saving %s version: %w", c, err)
	}
	previous := s.doc[c.String()]
	s.doc = next

	s.logger.Debug("version pinned", "channel", c.String(), "from", previous, "to", versionID)
	return nil
}

// All returns a copy of the channel to version mapping.
func (s *Store) All() map[Channel]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[Channel]string, len(Channels()))
	for _, c := range Channels() {
		out[c] = s.doc[c.String()]
	}
	return out
}

// save writes doc to a temp file beside the document, syncs it and renames it into place.
func (s *Store) save(doc map[string]string) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshaling version document: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replacing version document: %w", err)
	}
	return nil
}

func emptyDocument() map[string]string {
	doc := make(map[string]string, len(Channels()))
	for _, c := range Channels() {
		doc[c.String()] = ""
	}
	return doc
}
