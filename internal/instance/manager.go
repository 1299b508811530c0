// Package instance manages on-disk server instances: creating them, resolving
// how they launch and starting them once their jar is reconciled.
package instance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/BadgerOps/craftctl/internal/backup"
	"github.com/BadgerOps/craftctl/internal/engine"
	"github.com/BadgerOps/craftctl/internal/prompt"
	"github.com/BadgerOps/craftctl/internal/safety"
	"github.com/BadgerOps/craftctl/internal/store"
	"github.com/BadgerOps/craftctl/internal/versions"
)

var (
	// ErrNameRequired means no usable server name was given.
	ErrNameRequired = errors.New("server name required")
	// ErrDirectoryConflict means a server directory already exists.
	ErrDirectoryConflict = errors.New("server directory already exists")
	// ErrNotStartable means the jar was still missing after the retry.
	ErrNotStartable = errors.New("server jar is not available")
)

// Reconciler is the part of the update reconciler a launch drives.
type Reconciler interface {
	Reconcile(ctx context.Context, sel engine.Selector, pinned string) ([]engine.Result, error)
	UpdateTo(ctx context.Context, sel engine.Selector, version string) (*engine.Result, error)
	ArtifactPath(version string) string
	Installed(version string) bool
	InstalledVersions() ([]string, error)
}

// Archiver backs up and restores worlds.
type Archiver interface {
	Backup(ctx context.Context, t backup.Target, modifier string) (*backup.Archive, error)
	List(t backup.Target) ([]backup.Archive, error)
	Restore(ctx context.Context, t backup.Target, index int) (*backup.RestoreReport, error)
}

// VersionSource reads the selected version of a channel.
type VersionSource interface {
	Get(c versions.Channel) string
}

// LaunchRecorder keeps a history of launches. Nil disables recording.
type LaunchRecorder interface {
	RecordLaunch(l *store.Launch) error
}

// Options wires a Manager.
type Options struct {
	ServersDir string
	Reconciler Reconciler
	Archiver   Archiver
	Versions   VersionSource
	Launcher   Launcher
	Decider    prompt.Decider
	History    LaunchRecorder
	Scaffold   Scaffold
	Logger     *slog.Logger
}

// Manager runs the create and launch workflows for servers under one directory.
type Manager struct {
	serversDir string
	reconciler Reconciler
	archiver   Archiver
	versions   VersionSource
	launcher   Launcher
	decider    prompt.Decider
	history    LaunchRecorder
	scaffold   Scaffold
	logger     *slog.Logger
	now        func() time.Time
}

// NewManager creates a Manager.
func NewManager(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		serversDir: opts.ServersDir,
		reconciler: opts.Reconciler,
		archiver:   opts.Archiver,
		versions:   opts.Versions,
		launcher:   opts.Launcher,
		decider:    opts.Decider,
		history:    opts.History,
		scaffold:   opts.Scaffold.withDefaults(),
		logger:     logger,
		now:        time.Now,
	}
}

// Instance is one named server and what its launch resolved to.
type Instance struct {
	Name       string
	RootDir    string
	LaunchType LaunchType
	ServerType ServerType
	Version    string
	State      State
}

// WorldDir is where the server keeps its world.
func (i *Instance) WorldDir() string {
	return filepath.Join(i.RootDir, i.Name)
}

// Target is the backup target for the instance.
func (i *Instance) Target() backup.Target {
	return backup.Target{Name: i.Name, RootDir: i.RootDir}
}

// RootDir is the directory of the named server.
func (m *Manager) RootDir(name string) string {
	return filepath.Join(m.serversDir, name)
}

// Target is the backup target for a named server.
func (m *Manager) Target(name string) (backup.Target, error) {
	if err := safety.ValidateName(name); err != nil {
		return backup.Target{}, err
	}
	return backup.Target{Name: name, RootDir: m.RootDir(name)}, nil
}

// Exists reports whether the named server's directory exists.
func (m *Manager) Exists(name string) (bool, error) {
	info, err := os.Stat(m.RootDir(name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("checking server %s: %w", name, err)
	}
	if !info.IsDir() {
		return false, fmt.Errorf("%s exists and is not a directory", m.RootDir(name))
	}
	return true, nil
}

// ServerInfo summarizes one server directory.
type ServerInfo struct {
	Name        string
	RootDir     string
	Default     DefaultMarker
	LaunchTypes []LaunchType
	HasWorld    bool
	Backups     int
}

// Names lists the server directories, sorted.
func (m *Manager) Names() ([]string, error) {
	entries, err := os.ReadDir(m.serversDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading servers directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && e.Name()[0] != '.' {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Servers describes every server directory.
func (m *Manager) Servers() ([]ServerInfo, error) {
	names, err := m.Names()
	if err != nil {
		return nil, err
	}

	infos := make([]ServerInfo, 0, len(names))
	for _, name := range names {
		root := m.RootDir(name)
		info := ServerInfo{Name: name, RootDir: root}

		if info.Default, err = ReadDefaultMarker(root); err != nil {
			return nil, err
		}
		if info.LaunchTypes, err = DiscoverLaunchTypes(root); err != nil {
			return nil, err
		}
		if st, err := os.Stat(filepath.Join(root, name)); err == nil && st.IsDir() {
			info.HasWorld = true
		}
		if m.archiver != nil {
			archives, err := m.archiver.List(backup.Target{Name: name, RootDir: root})
			if err != nil {
				return nil, err
			}
			info.Backups = len(archives)
		}
		infos = append(infos, info)
	}
	return infos, nil
}
