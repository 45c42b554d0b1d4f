package ui

import (
	"time"

	"github.com/dustin/go-humanize"
)

// FormatRate formats a bytes-per-second rate, e.g. "1.2 MB/s".
func FormatRate(bytesPerSecond float64) string {
	if bytesPerSecond < 0 {
		bytesPerSecond = 0
	}
	return humanize.Bytes(uint64(bytesPerSecond)) + "/s"
}

// FormatBytes formats a byte counter, e.g. "3.4 GB".
func FormatBytes(n uint64) string {
	return humanize.Bytes(n)
}

// FormatAge formats how long ago t was, e.g. "3 seconds ago". The zero time
// renders as "never".
func FormatAge(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}

// Optional renders a missing optional field as "-".
func Optional(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
