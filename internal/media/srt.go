package media

import (
	"fmt"
	"io"
	"strings"

	"clipforge/internal/jobs"
)

// WriteSRT renders transcript segments as SubRip captions. Segment times
// are absolute; offset shifts them so a clip's captions start at zero.
func WriteSRT(w io.Writer, segments []jobs.Segment, offset float64) error {
	index := 1
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		start := seg.Start - offset
		end := seg.End - offset
		if end <= 0 {
			continue
		}
		if start < 0 {
			start = 0
		}
		if _, err := fmt.Fprintf(w, "%d\n%s --> %s\n%s\n\n",
			index, srtTimestamp(start), srtTimestamp(end), text); err != nil {
			return fmt.Errorf("write srt cue %d: %w", index, err)
		}
		index++
	}
	return nil
}

// srtTimestamp formats seconds as HH:MM:SS,mmm.
func srtTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	millis := int64(seconds*1000 + 0.5)
	h := millis / 3600000
	millis -= h * 3600000
	m := millis / 60000
	millis -= m * 60000
	s := millis / 1000
	ms := millis % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
