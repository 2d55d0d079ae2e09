package util

import (
	"regexp"
	"strconv"
	"time"
)

// KST is the upstream query timezone (UTC+9, no DST).
var KST = time.FixedZone("KST", 9*60*60)

const (
	kstLayout = "2006-01-02 15:04"
	isoLayout = "2006-01-02T15:04:05.000Z"
)

var (
	zoneSuffix   = regexp.MustCompile(` [A-Z]{3,4}$`)
	minutePrefix = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})[ T](\d{2}):(\d{2})`)
)

// ParseTime tries RFC3339, RFC3339Nano, and unix seconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0), true
	}
	return time.Time{}, false
}

// ParseTimestamp parses an upstream bar timestamp. A trailing zone code such
// as " KST" is stripped first; zone-less wall times are read as UTC. Anything
// unparseable yields now.
func ParseTimestamp(s string, now time.Time) time.Time {
	clean := zoneSuffix.ReplaceAllString(s, "")
	if t, ok := ParseTime(clean); ok {
		return t
	}
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02T15:04:05", kstLayout} {
		if t, err := time.ParseInLocation(layout, clean, time.UTC); err == nil {
			return t
		}
	}
	if m := minutePrefix.FindStringSubmatch(clean); m != nil {
		if t, err := time.ParseInLocation(kstLayout, m[1]+"-"+m[2]+"-"+m[3]+" "+m[4]+":"+m[5], time.UTC); err == nil {
			return t
		}
	}
	return now
}

// FormatKST renders t as the minute-resolution KST wall time used in queries.
func FormatKST(t time.Time) string {
	return t.In(KST).Format(kstLayout)
}

// FormatISO renders t in UTC with millisecond precision.
func FormatISO(t time.Time) string {
	return t.UTC().Format(isoLayout)
}

// IntervalMinutes maps a bar interval to minutes; unknown intervals are 1m.
func IntervalMinutes(interval string) int {
	switch interval {
	case "5m":
		return 5
	case "15m":
		return 15
	default:
		return 1
	}
}

// Lookback is the query window for interval: 180 bars.
func Lookback(interval string) time.Duration {
	return time.Duration(IntervalMinutes(interval)*180) * time.Minute
}

// FileStamp formats t for export file names.
func FileStamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15-04-05")
}
