package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var durationTokenRe = regexp.MustCompile(`^(\d+)(min|sec|y|m|w|d|h)`)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTimeValue normalizes an older()/newer() operand to epoch seconds.
// Accepted forms: raw epoch digits, an absolute date, or a relative duration
// expression ("6m", "5d12h") meaning that long before now.
func (e *Engine) parseTimeValue(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty date value")
	}

	if epoch, err := strconv.ParseInt(s, 10, 64); err == nil {
		return epoch, nil
	}

	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.Unix(), nil
		}
	}

	if d, ok := parseRelativeDuration(s); ok {
		return e.clock.Now().Add(-d).Unix(), nil
	}

	return 0, fmt.Errorf("unparsable date value %q", s)
}

// parseRelativeDuration parses "2y", "6m", "5d12h30min10sec" style offsets.
// Months weigh 30.5 days, matching the historical mailing-list convention.
func parseRelativeDuration(s string) (time.Duration, bool) {
	var total time.Duration
	rest := s
	for rest != "" {
		m := durationTokenRe.FindStringSubmatch(rest)
		if m == nil {
			return 0, false
		}
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0, false
		}
		switch m[2] {
		case "y":
			total += time.Duration(n) * 365 * 24 * time.Hour
		case "m":
			total += time.Duration(n) * 732 * time.Hour // 30.5 days
		case "w":
			total += time.Duration(n) * 7 * 24 * time.Hour
		case "d":
			total += time.Duration(n) * 24 * time.Hour
		case "h":
			total += time.Duration(n) * time.Hour
		case "min":
			total += time.Duration(n) * time.Minute
		case "sec":
			total += time.Duration(n) * time.Second
		}
		rest = rest[len(m[0]):]
	}
	return total, true
}
