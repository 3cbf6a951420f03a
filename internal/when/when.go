// Package when resolves relative date and time phrases to absolute values.
// Dates are calendar dates ("2006-01-02"); times are 24-hour "HH:MM" strings.
// Unrecognized input returns ok=false and callers apply their documented
// defaults (bookings: next calendar day at 18:00; measurements: today).
package when

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical calendar-date form.
const DateLayout = "2006-01-02"

// DefaultClock is the time-of-day used when a phrase resolves to no time.
const DefaultClock = "18:00"

var (
	inDaysPattern  = regexp.MustCompile(`^in\s+(\d+)\s+days?$`)
	fromNowPattern = regexp.MustCompile(`^(\d+)\s+days?\s+from\s+now$`)
	clock24Pattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
	clock12Pattern = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?\s*(am|pm)$`)
)

// Coarse times of day use this system's fixed mapping.
var coarseClocks = map[string]string{
	"morning":   "09:00",
	"afternoon": "14:00",
	"noon":      "14:00",
	"midday":    "14:00",
	"evening":   "18:00",
	"night":     "20:00",
}

// Date maps a date phrase to an absolute calendar date relative to ref.
// Canonical "2006-01-02" input passes through unchanged.
func Date(text string, ref time.Time) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" {
		return "", false
	}

	if t, err := time.Parse(DateLayout, s); err == nil {
		return t.Format(DateLayout), true
	}

	switch s {
	case "today", "tonight":
		return ref.Format(DateLayout), true
	case "tomorrow":
		return ref.AddDate(0, 0, 1).Format(DateLayout), true
	case "day after tomorrow", "the day after tomorrow":
		return ref.AddDate(0, 0, 2).Format(DateLayout), true
	case "next week":
		return ref.AddDate(0, 0, 7).Format(DateLayout), true
	}

	if m := inDaysPattern.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		return ref.AddDate(0, 0, n).Format(DateLayout), true
	}
	if m := fromNowPattern.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		return ref.AddDate(0, 0, n).Format(DateLayout), true
	}

	return "", false
}

// Clock maps a time phrase to 24-hour "HH:MM". Recognizes the coarse
// times of day, 24-hour clock strings, and 12-hour clock strings.
func Clock(text string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" {
		return "", false
	}

	if c, ok := coarseClocks[s]; ok {
		return c, true
	}

	if m := clock24Pattern.FindStringSubmatch(s); m != nil {
		h, _ := strconv.Atoi(m[1])
		min, _ := strconv.Atoi(m[2])
		if h <= 23 && min <= 59 {
			return fmt.Sprintf("%02d:%02d", h, min), true
		}
		return "", false
	}

	if m := clock12Pattern.FindStringSubmatch(s); m != nil {
		h, _ := strconv.Atoi(m[1])
		min := 0
		if m[2] != "" {
			min, _ = strconv.Atoi(m[2])
		}
		if h < 1 || h > 12 || min > 59 {
			return "", false
		}
		if m[3] == "pm" && h != 12 {
			h += 12
		} else if m[3] == "am" && h == 12 {
			h = 0
		}
		return fmt.Sprintf("%02d:%02d", h, min), true
	}

	return "", false
}

// DateOrDefault resolves text against ref, falling back to the next
// calendar day when the phrase is not recognized.
func DateOrDefault(text string, ref time.Time) string {
	if d, ok := Date(text, ref); ok {
		return d
	}
	return ref.AddDate(0, 0, 1).Format(DateLayout)
}

// ClockOrDefault resolves text, falling back to DefaultClock.
func ClockOrDefault(text string) string {
	if c, ok := Clock(text); ok {
		return c
	}
	return DefaultClock
}
