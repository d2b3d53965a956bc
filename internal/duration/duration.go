// Package duration parses and formats the human-facing duration grammar used
// by the timervault CLI.
//
// Supported forms (case-insensitive, surrounding whitespace ignored):
//   - "250ms" — milliseconds, integer only
//   - "1.5s"  — seconds, decimals allowed
//   - "2m"    — minutes, decimals allowed
//   - "1h" / "1.5hr" — hours, decimals allowed
//
// Parsing is purely syntactic and has no side effects; callers reject bad
// input before touching the operation log.
package duration

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
)

var ErrInvalidFormat = fmt.Errorf("invalid duration format")

// maxMS is the largest millisecond count representable as a time.Duration.
// Anything above it would silently wrap negative when converted.
const maxMS = math.MaxInt64 / int64(time.Millisecond)

// Parse converts a duration string into a time.Duration.
func Parse(raw string) (time.Duration, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return 0, fmt.Errorf("%w: empty duration string", ErrInvalidFormat)
	}

	// Split at the first alphabetic rune: number prefix, unit suffix.
	split := -1
	for i, r := range s {
		if unicode.IsLetter(r) {
			split = i
			break
		}
	}
	if split <= 0 {
		return 0, fmt.Errorf("%w: %q has no unit", ErrInvalidFormat, raw)
	}
	num, unit := s[:split], s[split:]

	if unit == "ms" {
		n, err := strconv.ParseInt(num, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q: milliseconds must be an integer", ErrInvalidFormat, raw)
		}
		if n < 0 {
			return 0, fmt.Errorf("%w: %q: duration cannot be negative", ErrInvalidFormat, raw)
		}
		if n > maxMS {
			return 0, fmt.Errorf("%w: %q: duration too large", ErrInvalidFormat, raw)
		}
		return time.Duration(n) * time.Millisecond, nil
	}

	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: invalid number %q", ErrInvalidFormat, raw, num)
	}
	if f < 0 {
		return 0, fmt.Errorf("%w: %q: duration cannot be negative", ErrInvalidFormat, raw)
	}

	var ms float64
	switch unit {
	case "s":
		ms = f * 1000
	case "m":
		ms = f * 60 * 1000
	case "h", "hr":
		ms = f * 60 * 60 * 1000
	default:
		return 0, fmt.Errorf("%w: %q: unknown time unit %q", ErrInvalidFormat, raw, unit)
	}
	if ms > float64(maxMS) {
		return 0, fmt.Errorf("%w: %q: duration too large", ErrInvalidFormat, raw)
	}

	return time.Duration(int64(ms)) * time.Millisecond, nil
}

// FormatMS renders a millisecond span for table output, e.g. "1h30m", "2.5s",
// "750ms". Spans below one second stay in milliseconds, everything else uses
// the standard duration notation truncated to milliseconds.
func FormatMS(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	if ms < 1000 {
		return strconv.FormatInt(ms, 10) + "ms"
	}
	d := time.Duration(ms) * time.Millisecond
	return d.Truncate(time.Millisecond).String()
}
