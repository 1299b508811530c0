package versions

import (
	"fmt"
	"strings"
)

// Channel is an independently tracked server version slot.
type Channel int

const (
	Vanilla Channel = iota
	Snapshot
)

// Channels returns every tracked channel in reconciliation order.
func Channels() []Channel {
	return []Channel{Vanilla, Snapshot}
}

// String returns the channel's document key.
func (c Channel) String() string {
	switch c {
	case Vanilla:
		return "vanilla"
	case Snapshot:
		return "snapshot"
	default:
		return fmt.Sprintf("channel(%d)", int(c))
	}
}

// ParseChannel maps a channel name (case-insensitive) to a Channel.
func ParseChannel(s string) (Channel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "vanilla":
		return Vanilla, nil
	case "snapshot":
		return Snapshot, nil
	default:
		return 0, fmt.Errorf("unknown version channel %q", s)
	}
}
