package util

import (
	"strconv"
	"time"
)

// ParseTime accepts RFC3339, RFC3339Nano, unix seconds and unix millis.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	ts, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ts <= 0 {
		return time.Time{}, false
	}
	if ts > 1e11 {
		return time.UnixMilli(ts), true
	}
	return time.Unix(ts, 0), true
}

// ParseTimeDefault parses s or returns def when s is empty or invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// AlignMinutes widens [from, to] to whole minutes so both candle buckets at
// the edges are included.
func AlignMinutes(from, to time.Time) (time.Time, time.Time) {
	from = from.Truncate(time.Minute)
	if t := to.Truncate(time.Minute); !t.Equal(to) {
		to = t.Add(time.Minute)
	}
	return from, to
}
