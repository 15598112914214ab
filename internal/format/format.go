// Package format renders durations, sizes and counts for the terminal.
package format

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// DurationHuman formats a duration for human display.
// Examples: "2h", "30m", "1h30m", "45s"
func DurationHuman(d time.Duration) string {
	if d >= time.Hour {
		hours := d / time.Hour
		minutes := (d % time.Hour) / time.Minute
		if minutes > 0 {
			return fmt.Sprintf("%dh%dm", hours, minutes)
		}
		return fmt.Sprintf("%dh", hours)
	}
	if d >= time.Minute {
		minutes := d / time.Minute
		if seconds := (d % time.Minute) / time.Second; seconds > 0 {
			return fmt.Sprintf("%dm%ds", minutes, seconds)
		}
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%ds", d/time.Second)
}

// Size formats a size in bytes with binary units, e.g. "41 MiB".
func Size(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}

// Percent formats a progress percentage without decimals.
func Percent(p float64) string {
	return fmt.Sprintf("%3.0f%%", min(max(p, 0), 100))
}

// Parts formats a part count, e.g. "1 part", "3 parts".
func Parts(n int) string {
	if n == 1 {
		return "1 part"
	}
	return humanize.Comma(int64(n)) + " parts"
}
