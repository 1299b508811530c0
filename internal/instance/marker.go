package instance

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	markerExt     = ".type"
	customKeyword = "custom"
)

// DefaultMarker is the parsed content of default.type.
type DefaultMarker struct {
	ServerType ServerType
	// Version is set for a pinned custom version.
	Version string
}

// ParseDefaultMarker classifies the first line of default.type:
// "vanilla", "snapshot", "custom", "custom:<id>", or a bare version id.
// Blank content means vanilla.
func ParseDefaultMarker(content string) DefaultMarker {
	line := content
	if i := strings.IndexAny(line, "\r\n"); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	lower := strings.ToLower(line)

	switch {
	case lower == "" || lower == "vanilla":
		return DefaultMarker{ServerType: ServerVanilla}
	case lower == "snapshot":
		return DefaultMarker{ServerType: ServerSnapshot}
	case lower == customKeyword || strings.HasPrefix(lower, customKeyword+" "):
		return DefaultMarker{ServerType: ServerLegacy}
	case strings.HasPrefix(lower, customKeyword+":"):
		return DefaultMarker{ServerType: ServerLegacy, Version: strings.TrimSpace(line[len(customKeyword)+1:])}
	default:
		return DefaultMarker{ServerType: ServerLegacy, Version: line}
	}
}

// String renders the marker as it is written to default.type.
func (d DefaultMarker) String() string {
	switch d.ServerType {
	case ServerSnapshot:
		return "snapshot"
	case ServerLegacy:
		if d.Version == "" {
			return customKeyword
		}
		return customKeyword + ":" + d.Version
	default:
		return "vanilla"
	}
}

// ReadDefaultMarker reads dir/default.type. A missing file means vanilla.
func ReadDefaultMarker(dir string) (DefaultMarker, error) {
	f, err := os.Open(filepath.Join(dir, LaunchDefault.MarkerFile()))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultMarker{ServerType: ServerVanilla}, nil
		}
		return DefaultMarker{}, fmt.Errorf("reading default marker: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	first := ""
	if sc.Scan() {
		first = sc.Text()
	}
	if err := sc.Err(); err != nil {
		return DefaultMarker{}, fmt.Errorf("reading default marker: %w", err)
	}
	return ParseDefaultMarker(first), nil
}

// DiscoverLaunchTypes returns the launch types whose marker files exist in dir,
// in directory order.
func DiscoverLaunchTypes(dir string) ([]LaunchType, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	var found []LaunchType
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != markerExt {
			continue
		}
		for _, lt := range markerTypes {
			if e.Name() == lt.MarkerFile() {
				found = append(found, lt)
			}
		}
	}
	return found, nil
}
