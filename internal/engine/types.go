package engine

import (
	"fmt"
	"strings"

	"github.com/BadgerOps/craftctl/internal/versions"
)

const legacyChannel = "legacy"

// Selector names the channels an update applies to.
type Selector int

const (
	SelectVanilla Selector = iota
	SelectSnapshot
	SelectBoth
	SelectLegacy
)

// ParseSelector parses "vanilla", "snapshot", "both" or "legacy".
func ParseSelector(s string) (Selector, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "vanilla":
		return SelectVanilla, nil
	case "snapshot":
		return SelectSnapshot, nil
	case "both":
		return SelectBoth, nil
	case "legacy":
		return SelectLegacy, nil
	default:
		return 0, fmt.Errorf("unknown update selector %q (want vanilla, snapshot, both or legacy)", s)
	}
}

func (s Selector) String() string {
	switch s {
	case SelectVanilla:
		return "vanilla"
	case SelectSnapshot:
		return "snapshot"
	case SelectBoth:
		return "both"
	case SelectLegacy:
		return "legacy"
	default:
		return fmt.Sprintf("selector(%d)", int(s))
	}
}

// Channels returns the tracked channels s fans out to, in order.
// SelectLegacy tracks none.
func (s Selector) Channels() []versions.Channel {
	switch s {
	case SelectVanilla:
		return []versions.Channel{versions.Vanilla}
	case SelectSnapshot:
		return []versions.Channel{versions.Snapshot}
	case SelectBoth:
		return []versions.Channel{versions.Vanilla, versions.Snapshot}
	default:
		return nil
	}
}

// Action is what a reconciliation did.
type Action int

const (
	// ActionUpToDate means nothing needed doing.
	ActionUpToDate Action = iota
	// ActionDownloaded means a jar was fetched.
	ActionDownloaded
	// ActionPinned means the jar was already present and the selection moved to it.
	ActionPinned
	// ActionDeclined means an update was refused; the previous version stays usable.
	ActionDeclined
	// ActionMissing means a download was refused and no usable jar exists.
	ActionMissing
)

func (a Action) String() string {
	switch a {
	case ActionUpToDate:
		return "up-to-date"
	case ActionDownloaded:
		return "downloaded"
	case ActionPinned:
		return "pinned"
	case ActionDeclined:
		return "declined"
	case ActionMissing:
		return "missing"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Result describes one channel's reconciliation.
type Result struct {
	Channel string
	Current string
	Latest  string
	// Version is what the channel resolves to afterwards.
	Version string
	Action  Action
	// Path is the artifact path of Latest.
	Path  string
	Bytes int64
}

// Usable reports whether the resolved version has a jar on disk.
func (r Result) Usable() bool {
	return r.Action != ActionMissing
}
