// Package timeutil parses the human-friendly durations and clock times used
// by configuration and command flags.
package timeutil

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultSpan is the look-back used by summaries when none is provided.
	DefaultSpan = "1w"
)

var (
	spanPattern = regexp.MustCompile(`^\s*(\d+)\s*([a-z]+)`)
	unitMap     = map[string]time.Duration{
		"s":       time.Second,
		"sec":     time.Second,
		"secs":    time.Second,
		"second":  time.Second,
		"seconds": time.Second,
		"m":       time.Minute,
		"min":     time.Minute,
		"mins":    time.Minute,
		"minute":  time.Minute,
		"minutes": time.Minute,
		"h":       time.Hour,
		"hr":      time.Hour,
		"hrs":     time.Hour,
		"hour":    time.Hour,
		"hours":   time.Hour,
		"d":       24 * time.Hour,
		"day":     24 * time.Hour,
		"days":    24 * time.Hour,
		"w":       7 * 24 * time.Hour,
		"wk":      7 * 24 * time.Hour,
		"wks":     7 * 24 * time.Hour,
		"week":    7 * 24 * time.Hour,
		"weeks":   7 * 24 * time.Hour,
	}
)

// ParseSpan parses strings like "30m", "1h30m" or "1w2d6h" and returns the
// duration along with its canonical compact form. A bare integer is read as
// seconds. Zero ("0", "0s") is accepted; callers decide whether it is valid.
func ParseSpan(input string) (time.Duration, string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(input))
	if trimmed == "" {
		return 0, "", fmt.Errorf("empty duration")
	}
	if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		if n < 0 {
			return 0, "", fmt.Errorf("duration must not be negative")
		}
		d := time.Duration(n) * time.Second
		return d, FormatSpan(d), nil
	}

	remaining := trimmed
	total := time.Duration(0)
	for len(remaining) > 0 {
		matches := spanPattern.FindStringSubmatch(remaining)
		if len(matches) != 3 {
			return 0, "", fmt.Errorf("invalid duration segment %q", strings.TrimSpace(remaining))
		}
		value, err := strconv.ParseInt(matches[1], 10, 64)
		if err != nil {
			return 0, "", fmt.Errorf("invalid duration value %q: %w", matches[1], err)
		}
		base, ok := unitMap[matches[2]]
		if !ok {
			return 0, "", fmt.Errorf("unsupported duration unit %q", matches[2])
		}
		total += time.Duration(value) * base
		remaining = remaining[len(matches[0]):]
	}

	return total, FormatSpan(total), nil
}

// ParseLookback is ParseSpan that also requires a positive result, falling
// back to DefaultSpan when input is empty.
func ParseLookback(input string) (time.Duration, string, error) {
	if strings.TrimSpace(input) == "" {
		input = DefaultSpan
	}
	d, label, err := ParseSpan(input)
	if err != nil {
		return 0, "", err
	}
	if d <= 0 {
		return 0, "", fmt.Errorf("duration must be greater than zero")
	}
	return d, label, nil
}

// FormatSpan renders a duration using week/day/hour/minute/second tokens.
func FormatSpan(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}

	type unit struct {
		label string
		value time.Duration
	}
	units := []unit{
		{"w", 7 * 24 * time.Hour},
		{"d", 24 * time.Hour},
		{"h", time.Hour},
		{"m", time.Minute},
		{"s", time.Second},
	}

	var parts []string
	remaining := d
	for _, u := range units {
		if remaining < u.value {
			continue
		}
		count := remaining / u.value
		remaining -= count * u.value
		parts = append(parts, fmt.Sprintf("%d%s", count, u.label))
	}
	if len(parts) == 0 {
		return "0s"
	}
	return strings.Join(parts, "")
}

// TimeOfDay is a wall-clock time expressed as minutes after midnight.
type TimeOfDay int

// ParseTimeOfDay parses "HH:MM" in 24-hour form. "24:00" is allowed and
// means end of day.
func ParseTimeOfDay(v string) (TimeOfDay, error) {
	v = strings.TrimSpace(v)
	parts := strings.Split(v, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time of day %q, want HH:MM", v)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hour in %q: %w", v, err)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minute in %q: %w", v, err)
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("time of day %q out of range", v)
	}
	return TimeOfDay(h*60 + m), nil
}

// Of returns the time of day of t in t's location.
func Of(t time.Time) TimeOfDay {
	h, m, _ := t.Clock()
	return TimeOfDay(h*60 + m)
}

func (d TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(d)/60, int(d)%60)
}
