package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var durationPattern = regexp.MustCompile(`^(\d+)([smhd])$`)

// ParseDuration parses a duration string with support for days (d)
// Supports: s (seconds), m (minutes), h (hours), d (days)
// Examples: "30d", "7d", "168h", "5m", "30s"
func ParseDuration(s string) (time.Duration, error) {
	matches := durationPattern.FindStringSubmatch(s)

	if matches == nil {
		// Fall back to standard Go duration parsing
		return time.ParseDuration(s)
	}

	value, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, fmt.Errorf("invalid duration value: %s", matches[1])
	}

	switch matches[2] {
	case "s":
		return time.Duration(value) * time.Second, nil
	case "m":
		return time.Duration(value) * time.Minute, nil
	case "h":
		return time.Duration(value) * time.Hour, nil
	case "d":
		return time.Duration(value) * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown time unit: %s", matches[2])
	}
}

// ParseReferenceTime parses an RFC3339 timestamp, or a duration meaning
// "that long before now" (e.g. "7d").
func ParseReferenceTime(s string, now time.Time) (time.Time, error) {
	value := strings.TrimSpace(s)
	if value == "" {
		return time.Time{}, fmt.Errorf("reference time is empty")
	}

	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts.UTC(), nil
	}

	ago, err := ParseDuration(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected RFC3339 timestamp or duration, got %q", value)
	}
	if ago < 0 {
		return time.Time{}, fmt.Errorf("reference offset must be positive, got %q", value)
	}
	return now.Add(-ago).UTC(), nil
}
