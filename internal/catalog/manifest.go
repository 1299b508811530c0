package catalog

import (
	"fmt"

	"github.com/BadgerOps/craftctl/internal/versions"
)

// Manifest is the remote version listing. It is immutable once fetched.
type Manifest struct {
	Latest   Latest         `json:"latest"`
	Versions []VersionEntry `json:"versions"`

	byID map[string]int
}

// Latest holds the newest id per channel.
type Latest struct {
	Release  string `json:"release"`
	Snapshot string `json:"snapshot"`
}

// VersionEntry points at a version's detail document.
type VersionEntry struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	URL  string `json:"url"`
}

// versionDetail is the subset of the per-version document the client reads.
type versionDetail struct {
	ID        string `json:"id"`
	Downloads struct {
		Server *Artifact `json:"server"`
	} `json:"downloads"`
}

// Artifact is a downloadable server jar.
type Artifact struct {
	URL  string `json:"url"`
	SHA1 string `json:"sha1"`
	Size int64  `json:"size"`
}

// LatestFor returns the newest version id published for the channel.
func (m *Manifest) LatestFor(c versions.Channel) string {
	switch c {
	case versions.Vanilla:
		return m.Latest.Release
	case versions.Snapshot:
		return m.Latest.Snapshot
	default:
		return ""
	}
}

// Lookup finds the entry for id.
func (m *Manifest) Lookup(id string) (VersionEntry, error) {
	if m.byID == nil {
		m.index()
	}
	i, ok := m.byID[id]
	if !ok {
		return VersionEntry{}, fmt.Errorf("%w: %s", ErrVersionNotFound, id)
	}
	return m.Versions[i], nil
}

// index builds the id lookup. The first occurrence of a duplicated id wins.
func (m *Manifest) index() {
	m.byID = make(map[string]int, len(m.Versions))
	for i, v := range m.Versions {
		if _, seen := m.byID[v.ID]; !seen {
			m.byID[v.ID] = i
		}
	}
}
