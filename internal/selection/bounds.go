package selection

import "math"

// Bounds derives the per-job duration limits and the clip target from the
// job configuration and the source video length.

const (
	defaultMaxDuration = 60.0
	maxDurationFloor   = 10.0
	maxDurationCeil    = 180.0
	minDurationFloor   = 5.0
)

// DurationBounds resolves the clip duration window. maxRaw and minRaw come
// from the job configuration; ok flags report whether each was present.
func DurationBounds(maxRaw float64, maxOK bool, minRaw float64, minOK bool) (minDuration, maxDuration float64) {
	maxDuration = defaultMaxDuration
	if maxOK && maxRaw > 0 {
		maxDuration = maxRaw
	}
	maxDuration = clamp(maxDuration, maxDurationFloor, maxDurationCeil)

	if minOK && minRaw > 0 {
		minDuration = minRaw
	} else {
		minDuration = math.Max(10, math.Round(maxDuration*0.6))
	}
	minDuration = clamp(minDuration, minDurationFloor, maxDuration)
	return minDuration, maxDuration
}

// TargetClips estimates how many clips a video of the given length should
// yield. Unknown durations fall back to a small fixed target; known ones
// scale with length, bounded by the configured window.
func TargetClips(videoDuration, maxClipDuration float64, minTarget, maxTarget int) int {
	if minTarget <= 0 {
		minTarget = 10
	}
	if maxTarget <= 0 {
		maxTarget = 40
	}
	if videoDuration <= 0 {
		return 6
	}
	spacing := math.Max(15.0, maxClipDuration*1.8)
	target := int(videoDuration / spacing)
	if target < minTarget {
		return minTarget
	}
	if target > maxTarget {
		return maxTarget
	}
	return target
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
