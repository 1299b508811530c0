package instance

import (
	"fmt"
	"strings"

	"github.com/BadgerOps/craftctl/internal/engine"
	"github.com/BadgerOps/craftctl/internal/versions"
)

// LaunchType is the operational mode chosen when a server starts.
type LaunchType int

const (
	LaunchUnspecified LaunchType = iota
	LaunchDefault
	LaunchBackup
	LaunchRestore
	LaunchLegacy
)

// markerTypes are the launch types advertised by a marker file.
var markerTypes = []LaunchType{LaunchBackup, LaunchRestore, LaunchDefault}

// legacyOption is the fixed menu entry for a legacy launch.
const legacyOption = "legacy (for specific version)"

// ParseLaunchType parses "default", "backup", "restore" or "legacy". An empty
// string is LaunchUnspecified.
func ParseLaunchType(s string) (LaunchType, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch {
	case v == "":
		return LaunchUnspecified, nil
	case v == "default":
		return LaunchDefault, nil
	case v == "backup":
		return LaunchBackup, nil
	case v == "restore":
		return LaunchRestore, nil
	case v == "legacy" || v == legacyOption:
		return LaunchLegacy, nil
	default:
		return LaunchUnspecified, fmt.Errorf("unknown launch type %q (want default, backup, restore or legacy)", s)
	}
}

func (l LaunchType) String() string {
	switch l {
	case LaunchUnspecified:
		return "unspecified"
	case LaunchDefault:
		return "default"
	case LaunchBackup:
		return "backup"
	case LaunchRestore:
		return "restore"
	case LaunchLegacy:
		return "legacy"
	default:
		return fmt.Sprintf("launch(%d)", int(l))
	}
}

// MarkerFile is the file whose presence advertises l, or "" for types without one.
func (l LaunchType) MarkerFile() string {
	switch l {
	case LaunchDefault, LaunchBackup, LaunchRestore:
		return l.String() + markerExt
	default:
		return ""
	}
}

// ServerType classifies which artifact line a server runs.
type ServerType int

const (
	ServerVanilla ServerType = iota
	ServerSnapshot
	ServerLegacy
)

func (s ServerType) String() string {
	switch s {
	case ServerVanilla:
		return "vanilla"
	case ServerSnapshot:
		return "snapshot"
	case ServerLegacy:
		return "legacy"
	default:
		return fmt.Sprintf("server(%d)", int(s))
	}
}

// Selector is the reconciliation selector for s.
func (s ServerType) Selector() engine.Selector {
	switch s {
	case ServerSnapshot:
		return engine.SelectSnapshot
	case ServerLegacy:
		return engine.SelectLegacy
	default:
		return engine.SelectVanilla
	}
}

// Channel returns the tracked channel for s; legacy servers have none.
func (s ServerType) Channel() (versions.Channel, bool) {
	switch s {
	case ServerVanilla:
		return versions.Vanilla, true
	case ServerSnapshot:
		return versions.Snapshot, true
	default:
		return 0, false
	}
}

// State is a step of the launch state machine.
type State int

const (
	StateUnnamed State = iota
	StateNamed
	StateNotFound
	StateFound
	StateCreated
	StateLaunchTypeUnresolved
	StateLaunchTypeResolved
	StateReconciled
	StateStarted
	// StateDeclined ends a launch whose creation was refused.
	StateDeclined
	// StateAborted ends a launch that could not or would not start.
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateUnnamed:
		return "unnamed"
	case StateNamed:
		return "named"
	case StateNotFound:
		return "not-found"
	case StateFound:
		return "found"
	case StateCreated:
		return "created"
	case StateLaunchTypeUnresolved:
		return "launch-type-unresolved"
	case StateLaunchTypeResolved:
		return "launch-type-resolved"
	case StateReconciled:
		return "reconciled"
	case StateStarted:
		return "started"
	case StateDeclined:
		return "declined"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}
