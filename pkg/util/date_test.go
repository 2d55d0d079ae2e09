package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseTimestampStripsZone(t *testing.T) {
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	want := time.Date(2025, 3, 4, 9, 15, 0, 0, time.UTC)
	for _, s := range []string{"2025-03-04 09:15 KST", "2025-03-04 09:15:00 KST", "2025-03-04 09:15:00", "2025-03-04T09:15:00Z"} {
		if got := ParseTimestamp(s, now); !got.Equal(want) {
			t.Fatalf("%q: got %v want %v", s, got, want)
		}
	}
}

func TestParseTimestampMinutePrefix(t *testing.T) {
	now := time.Now()
	got := ParseTimestamp("2025-03-04 09:15:00.123+junk", now)
	if !got.Equal(time.Date(2025, 3, 4, 9, 15, 0, 0, time.UTC)) {
		t.Fatalf("unexpected %v", got)
	}
}

func TestParseTimestampFallsBackToNow(t *testing.T) {
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := ParseTimestamp("not a time", now); !got.Equal(now) {
		t.Fatalf("expected now, got %v", got)
	}
}

func TestFormatKST(t *testing.T) {
	ts := time.Date(2025, 3, 4, 20, 30, 45, 0, time.UTC)
	if got := FormatKST(ts); got != "2025-03-05 05:30" {
		t.Fatalf("unexpected %s", got)
	}
	if got := FormatISO(ts); got != "2025-03-04T20:30:45.000Z" {
		t.Fatalf("unexpected %s", got)
	}
}

func TestLookback(t *testing.T) {
	cases := map[string]time.Duration{"1m": 3 * time.Hour, "5m": 15 * time.Hour, "15m": 45 * time.Hour, "1h": 3 * time.Hour}
	for in, want := range cases {
		if got := Lookback(in); got != want {
			t.Fatalf("%s: got %v want %v", in, got, want)
		}
	}
}
