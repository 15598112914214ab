package split

import (
	"fmt"
	"time"
)

// Segment is one planned part.
type Segment struct {
	Index  int // 1-based
	Start  time.Duration
	Length time.Duration
}

// PartCount returns ceil(duration/segment), or 0 when either is not positive.
func PartCount(duration, segment time.Duration) int {
	if duration <= 0 || segment <= 0 {
		return 0
	}
	n := duration / segment
	if duration%segment != 0 {
		n++
	}
	return int(n)
}

// Plan cuts duration into consecutive segments of the given length; the last one
// holds the remainder. Lengths sum to duration.
func Plan(duration, segment time.Duration) []Segment {
	n := PartCount(duration, segment)
	segments := make([]Segment, 0, n)
	for i := 1; i <= n; i++ {
		start := time.Duration(i-1) * segment
		segments = append(segments, Segment{
			Index:  i,
			Start:  start,
			Length: min(segment, duration-start),
		})
	}
	return segments
}

// FormatTime renders d as M:SS below one hour and H:MM:SS otherwise.
// Fractional seconds are dropped.
func FormatTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// formatFFmpegTime formats a duration for FFmpeg -ss/-t arguments.
func formatFFmpegTime(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := d.Seconds() - float64(h*3600+m*60)
	return fmt.Sprintf("%02d:%02d:%06.3f", h, m, s)
}
