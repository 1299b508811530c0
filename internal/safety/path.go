package safety

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// ErrUnsafePath marks an archive entry or name that would leave its directory.
var ErrUnsafePath = errors.New("unsafe path")

// EntryPath turns a slash-separated archive entry name into a clean relative
// OS path. Trailing slashes are dropped. Absolute names, parent traversal and
// NUL bytes are rejected.
func EntryPath(name string) (string, error) {
	trimmed := strings.TrimRight(name, "/")
	switch {
	case trimmed == "":
		return "", fmt.Errorf("%w: empty entry name", ErrUnsafePath)
	case strings.ContainsRune(trimmed, 0):
		return "", fmt.Errorf("%w: NUL byte in %q", ErrUnsafePath, name)
	case strings.HasPrefix(trimmed, "/") || filepath.IsAbs(trimmed) || filepath.VolumeName(trimmed) != "":
		return "", fmt.Errorf("%w: absolute entry %q", ErrUnsafePath, name)
	}

	clean := path.Clean(filepath.ToSlash(trimmed))
	if clean == "." {
		return "", fmt.Errorf("%w: %q names the archive root", ErrUnsafePath, name)
	}
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %q climbs out of the archive", ErrUnsafePath, name)
	}
	return filepath.FromSlash(clean), nil
}

// JoinUnder places the archive entry name below root and returns the absolute
// destination, failing if it would resolve outside root.
func JoinUnder(root, name string) (string, error) {
	rel, err := EntryPath(name)
	if err != nil {
		return "", err
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve root: %w", err)
	}
	dest := filepath.Join(rootAbs, rel)
	if !within(rootAbs, dest) {
		return "", fmt.Errorf("%w: %q escapes %s", ErrUnsafePath, name, root)
	}
	return dest, nil
}

func within(root, candidate string) bool {
	rel, err := filepath.Rel(root, candidate)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// ValidateName checks that a server or version name is usable as a single
// path element: non-empty, no separators, not "." or "..".
func ValidateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("name is empty")
	case name == "." || name == "..":
		return fmt.Errorf("name %q is reserved", name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("name %q must not contain path separators", name)
	case strings.ContainsRune(name, 0):
		return fmt.Errorf("name contains a NUL byte")
	}
	return nil
}
