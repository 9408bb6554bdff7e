package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// MaxTTL is the longest TTL accepted from configuration.
	MaxTTL = 10 * 365 * day

	day = 24 * time.Hour

	// minutesPerHour is used for duration formatting calculations.
	minutesPerHour = 60

	// hoursPerDay is used for duration formatting calculations.
	hoursPerDay = 24
)

// TTL validation errors.
var (
	ErrInvalidTTL = errors.New("TTL must be between 0 and 10 years")
)

// ParseTTL parses a TTL string in various formats:
//   - Integer seconds: "3600".
//   - Duration string: "1h", "30m", "1h30m".
//   - Days prefix: "2d", "2d3h".
//
// The empty string is zero.
func ParseTTL(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	// Try parsing as integer seconds first
	if seconds, err := strconv.ParseInt(s, 10, 64); err == nil {
		return checkTTL(time.Duration(seconds) * time.Second)
	}

	var days time.Duration
	if i := strings.IndexByte(s, 'd'); i > 0 {
		n, err := strconv.Atoi(s[:i])
		if err != nil {
			return 0, fmt.Errorf("invalid TTL format %q: %w", s, err)
		}
		days = time.Duration(n) * day
		s = s[i+1:]
	}

	var rest time.Duration
	if s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("invalid TTL format: %w", err)
		}
		rest = d
	}

	return checkTTL(days + rest)
}

func checkTTL(d time.Duration) (time.Duration, error) {
	if d < 0 || d > MaxTTL {
		return 0, fmt.Errorf("%w: got %s", ErrInvalidTTL, d)
	}
	return d, nil
}

// FormatDuration formats a duration in a human-readable way.
// Examples: "0s", "45s", "30m", "1h30m", "2d3h".
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.0fm", d.Minutes())
	}
	if d < hoursPerDay*time.Hour {
		hours := int(d.Hours())
		minutes := int(d.Minutes()) % minutesPerHour
		if minutes == 0 {
			return fmt.Sprintf("%dh", hours)
		}
		return fmt.Sprintf("%dh%dm", hours, minutes)
	}
	days := int(d.Hours()) / hoursPerDay
	hours := int(d.Hours()) % hoursPerDay
	if hours == 0 {
		return fmt.Sprintf("%dd", days)
	}
	return fmt.Sprintf("%dd%dh", days, hours)
}
