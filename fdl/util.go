package fdl

import (
	"fmt"
	"strconv"
	"time"
)

// parseDuration parses a short duration string of the form "<number><unit>"
// with unit in {s, m, h}, used for an Approval node's `timeout` field.
func parseDuration(s string) (time.Duration, error) {
	if len(s) < 2 {
		return 0, fmt.Errorf("fdl: invalid duration %q", s)
	}
	unit := s[len(s)-1]
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil {
		return 0, fmt.Errorf("fdl: invalid duration %q: %w", s, err)
	}
	switch unit {
	case 's':
		return time.Duration(n) * time.Second, nil
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	default:
		return 0, fmt.Errorf("fdl: unknown duration unit in %q", s)
	}
}
