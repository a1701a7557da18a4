package param

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

var durationUnits = map[byte]time.Duration{
	'w': 7 * 24 * time.Hour,
	'd': 24 * time.Hour,
	'h': time.Hour,
	'm': time.Minute,
	's': time.Second,
}

// ParseDuration reads relative durations such as "2d3h", "1w" or "90s".
// Every number needs a unit; units may repeat and appear in any order.
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	var total time.Duration
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= '0' && c <= '9' {
			continue
		}
		unit, ok := durationUnits[c|0x20]
		if !ok {
			return 0, fmt.Errorf("duration %q: unknown unit %q", s, c)
		}
		if i == start {
			return 0, fmt.Errorf("duration %q: unit %q has no number", s, c)
		}
		n, err := strconv.ParseInt(s[start:i], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("duration %q: %w", s, err)
		}
		if n > math.MaxInt64/int64(unit) {
			return 0, fmt.Errorf("duration %q: out of range", s)
		}
		d := time.Duration(n) * unit
		if total > math.MaxInt64-d {
			return 0, fmt.Errorf("duration %q: out of range", s)
		}
		total += d
		start = i + 1
	}
	if start != len(s) {
		return 0, fmt.Errorf("duration %q: trailing number without unit", s)
	}
	return total, nil
}
