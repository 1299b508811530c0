// Package catalogtest serves a fake version catalog for tests.
package catalogtest

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// Server is an httptest catalog serving a manifest, per-version detail
// documents and the server jars themselves.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	release  string
	snapshot string
	order    []string
	jars     map[string][]byte
	noServer map[string]bool
	requests map[string]int
	failAll  bool
}

// NewServer starts a catalog with no versions. It is closed on test cleanup.
func NewServer(t *testing.T) *Server {
	t.Helper()
	s := &Server{
		jars:     make(map[string][]byte),
		noServer: make(map[string]bool),
		requests: make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// AddVersion publishes id with jar as its server artifact.
func (s *Server) AddVersion(id string, jar []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jars[id]; !ok {
		s.order = append(s.order, id)
	}
	s.jars[id] = jar
}

// AddClientOnlyVersion publishes id with a detail document lacking a server download.
func (s *Server) AddClientOnlyVersion(id string) {
	s.AddVersion(id, nil)
	s.mu.Lock()
	s.noServer[id] = true
	s.mu.Unlock()
}

// SetLatest sets the manifest's latest release and snapshot ids.
func (s *Server) SetLatest(release, snapshot string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.release = release
	s.snapshot = snapshot
}

// FailAll makes every request return 503.
func (s *Server) FailAll(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAll = fail
}

// ManifestURL is the URL of the manifest document.
func (s *Server) ManifestURL() string {
	return s.URL + "/manifest.json"
}

// Requests returns how many times path was requested.
func (s *Server) Requests(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[path]
}

// TotalRequests returns the number of requests served.
func (s *Server) TotalRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.requests {
		n += c
	}
	return n
}

// DetailPath is the path of id's detail document.
func DetailPath(id string) string { return "/v1/packages/" + id + ".json" }

// JarPath is the path of id's server jar.
func JarPath(id string) string { return "/objects/" + id + "/server.jar" }

// SHA1 returns the hex sha1 of b.
func SHA1(b []byte) string {
	sum := sha1.Sum(b)
	return hex.EncodeToString(sum[:])
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[r.URL.Path]++

	if s.failAll {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	switch {
	case r.URL.Path == "/manifest.json":
		type entry struct {
			ID   string `json:"id"`
			Type string `json:"type"`
			URL  string `json:"url"`
		}
		doc := struct {
			Latest struct {
				Release  string `json:"release"`
				Snapshot string `json:"snapshot"`
			} `json:"latest"`
			Versions []entry `json:"versions"`
		}{}
		doc.Latest.Release = s.release
		doc.Latest.Snapshot = s.snapshot
		for i := len(s.order) - 1; i >= 0; i-- {
			id := s.order[i]
			typ := "release"
			if id == s.snapshot && id != s.release {
				typ = "snapshot"
			}
			doc.Versions = append(doc.Versions, entry{ID: id, Type: typ, URL: s.URL + DetailPath(id)})
		}
		writeJSON(w, doc)

	case strings.HasPrefix(r.URL.Path, "/v1/packages/"):
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v1/packages/"), ".json")
		jar, ok := s.jars[id]
		if !ok {
			http.NotFound(w, r)
			return
		}
		detail := map[string]any{"id": id, "downloads": map[string]any{}}
		downloads := detail["downloads"].(map[string]any)
		downloads["client"] = map[string]any{"url": s.URL + "/objects/" + id + "/client.jar", "sha1": "00", "size": 1}
		if !s.noServer[id] {
			downloads["server"] = map[string]any{
				"url":  s.URL + JarPath(id),
				"sha1": SHA1(jar),
				"size": len(jar),
			}
		}
		writeJSON(w, detail)

	case strings.HasPrefix(r.URL.Path, "/objects/") && strings.HasSuffix(r.URL.Path, "/server.jar"):
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/objects/"), "/server.jar")
		jar, ok := s.jars[id]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Length", fmt.Sprint(len(jar)))
		_, _ = w.Write(jar)

	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
