package pipeline

import (
	"math/rand"
	"sort"
)

// clipDuration is the fixed length of each preview clip.
const clipDuration = 2.0

// PreviewPlan is the sampling decision for the preview stage.
type PreviewPlan struct {
	// CopyWhole is set when the source fits inside the requested length and
	// should be copied instead of re-encoded.
	CopyWhole bool
	// Offsets are the ascending clip start times, seconds.
	Offsets []float64
}

// planPreview decides how to cut a preview of length seconds out of a source
// of the given duration. Offsets are real-valued and may repeat; they are not
// frame-aligned.
func planPreview(duration float64, length int, rng *rand.Rand) PreviewPlan {
	if duration <= float64(length) {
		return PreviewPlan{CopyWhole: true}
	}
	numClips := length / int(clipDuration)
	if numClips < 1 {
		// A requested length under one clip still yields a single clip.
		numClips = 1
	}
	available := duration - clipDuration
	offsets := make([]float64, numClips)
	for i := range offsets {
		offsets[i] = rng.Float64() * available
	}
	sort.Float64s(offsets)
	return PreviewPlan{Offsets: offsets}
}

// CollagePlan is the sampling decision for the collage stage.
type CollagePlan struct {
	// Timestamps are the ascending frame times, seconds.
	Timestamps []float64
	// Frames is the effective frame count after duration clamping.
	Frames int
	// Clamped is set when the sub-second branch had to pull the timestamp
	// inside the actual duration.
	Clamped bool
}

// planCollage picks frames timestamps for a source of the given duration.
// Very short sources collapse to fewer frames; comfortable sources sample
// away from the first and last five seconds.
func planCollage(duration float64, frames int, rng *rand.Rand) CollagePlan {
	switch {
	case duration < 1:
		ts := 0.5
		clamped := false
		if ts > duration {
			ts = duration / 2
			clamped = true
		}
		return CollagePlan{Timestamps: []float64{ts}, Frames: 1, Clamped: clamped}

	case duration < float64(frames):
		n := int(duration)
		if n < 1 {
			n = 1
		}
		ts := make([]float64, n)
		for i := range ts {
			ts[i] = duration * (float64(i) + 0.5) / float64(n)
		}
		return CollagePlan{Timestamps: ts, Frames: n}

	case duration > 10:
		safe := duration - 10
		ts := make([]float64, frames)
		for i := range ts {
			ts[i] = 5 + rng.Float64()*safe
		}
		sort.Float64s(ts)
		return CollagePlan{Timestamps: ts, Frames: frames}

	default:
		margin := duration * 0.1
		safe := duration - 2*margin
		ts := make([]float64, frames)
		for i := range ts {
			ts[i] = margin + rng.Float64()*safe
		}
		sort.Float64s(ts)
		return CollagePlan{Timestamps: ts, Frames: frames}
	}
}

// gridFor maps a requested frame count to its fixed collage grid.
func gridFor(frames int) (cols, rows int) {
	switch frames {
	case 4:
		return 2, 2
	case 6:
		return 3, 2
	case 9:
		return 3, 3
	case 12:
		return 4, 3
	default:
		return 2, 2
	}
}
