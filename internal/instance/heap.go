package instance

import (
	"fmt"
	"strconv"
	"strings"
)

// minHeap is the smallest heap the JVM accepts for -Xmx.
const minHeap = 2 * 1024 * 1024

// ParseHeapSize parses a JVM heap size like "2G", "512m" or "4GB" into bytes.
// Supports K, M, G and T suffixes with an optional trailing B
// (case-insensitive). A plain number is treated as bytes.
func ParseHeapSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty heap size")
	}

	s = strings.ToUpper(s)
	if len(s) > 1 && strings.HasSuffix(s, "B") {
		s = strings.TrimSuffix(s, "B")
	}

	mult := int64(1)
	switch s[len(s)-1] {
	case 'T':
		mult = 1024 * 1024 * 1024 * 1024
	case 'G':
		mult = 1024 * 1024 * 1024
	case 'M':
		mult = 1024 * 1024
	case 'K':
		mult = 1024
	}
	numStr := s
	if mult != 1 {
		numStr = s[:len(s)-1]
	}
	if numStr == "" {
		return 0, fmt.Errorf("missing number in heap size: %s", s)
	}

	n, err := strconv.ParseInt(numStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid heap size %q: %w", s, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("heap size must be positive: %s", s)
	}
	if n*mult < minHeap {
		return 0, fmt.Errorf("heap size %s is below the 2M minimum", s)
	}
	return n * mult, nil
}

// HeapFlag renders a validated heap size as a -Xmx flag, keeping the
// caller's unit ("2G" becomes "-Xmx2G", "4GB" becomes "-Xmx4G").
func HeapFlag(s string) (string, error) {
	if _, err := ParseHeapSize(s); err != nil {
		return "", err
	}
	v := strings.ToUpper(strings.TrimSpace(s))
	if len(v) > 1 && strings.HasSuffix(v, "B") {
		v = strings.TrimSuffix(v, "B")
	}
	return "-Xmx" + v, nil
}
