package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTime(t *testing.T) {
	ref := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	tests := []struct {
		name string
		in   string
		want time.Time
		ok   bool
	}{
		{"rfc3339", "2024-10-10T10:10:10Z", ref, true},
		{"unix seconds", strconv.FormatInt(ref.Unix(), 10), ref, true},
		{"unix millis", strconv.FormatInt(ref.UnixMilli(), 10), ref, true},
		{"empty", "", time.Time{}, false},
		{"garbage", "yesterday", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTime(tt.in)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && !got.Equal(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	if got := ParseTimeDefault("", def); !got.Equal(def) {
		t.Fatalf("expected default, got %v", got)
	}
}

func TestAlignMinutes(t *testing.T) {
	from := time.Date(2024, 1, 1, 10, 0, 30, 0, time.UTC)
	to := time.Date(2024, 1, 1, 10, 5, 10, 0, time.UTC)
	f, e := AlignMinutes(from, to)
	if !f.Equal(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)) || !e.Equal(time.Date(2024, 1, 1, 10, 6, 0, 0, time.UTC)) {
		t.Fatalf("aligned = %v .. %v", f, e)
	}
	exact := time.Date(2024, 1, 1, 10, 5, 0, 0, time.UTC)
	if _, e := AlignMinutes(from, exact); !e.Equal(exact) {
		t.Fatalf("exact end moved to %v", e)
	}
}
