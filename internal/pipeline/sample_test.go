package pipeline

import (
	"math/rand"
	"sort"
	"testing"
)

func testRng() *rand.Rand {
	return rand.New(rand.NewSource(42))
}

func TestPlanPreview_ShortSourceCopied(t *testing.T) {
	p := planPreview(3, 6, testRng())
	if !p.CopyWhole {
		t.Error("3s source with 6s preview should copy the whole source")
	}
	if len(p.Offsets) != 0 {
		t.Errorf("copy plan should carry no offsets, got %v", p.Offsets)
	}
}

func TestPlanPreview_ClipCountAndBounds(t *testing.T) {
	p := planPreview(20, 6, testRng())
	if p.CopyWhole {
		t.Fatal("20s source must not be copied whole for a 6s preview")
	}
	if len(p.Offsets) != 3 {
		t.Fatalf("expected 3 clips for 6s preview, got %d", len(p.Offsets))
	}
	for _, off := range p.Offsets {
		if off < 0 || off > 18 {
			t.Errorf("offset %v outside [0, 18]", off)
		}
	}
	if !sort.Float64sAreSorted(p.Offsets) {
		t.Errorf("offsets not ascending: %v", p.Offsets)
	}
}

func TestPlanPreview_OneSecondYieldsSingleClip(t *testing.T) {
	p := planPreview(20, 1, testRng())
	if p.CopyWhole {
		t.Fatal("20s source must not be copied whole for a 1s preview")
	}
	if len(p.Offsets) != 1 {
		t.Fatalf("sub-clip length should round up to one clip, got %d", len(p.Offsets))
	}
	if off := p.Offsets[0]; off < 0 || off > 18 {
		t.Errorf("offset %v outside [0, 18]", off)
	}
}

func TestPlanPreview_OddLengthFloors(t *testing.T) {
	p := planPreview(60, 7, testRng())
	if len(p.Offsets) != 3 {
		t.Errorf("7s preview should floor to 3 clips, got %d", len(p.Offsets))
	}
}

func TestPlanCollage_LongSourceAvoidsEdges(t *testing.T) {
	p := planCollage(30, 9, testRng())
	if p.Frames != 9 || len(p.Timestamps) != 9 {
		t.Fatalf("expected 9 frames, got %d", len(p.Timestamps))
	}
	for _, ts := range p.Timestamps {
		if ts < 5 || ts > 25 {
			t.Errorf("timestamp %v outside [5, 25]", ts)
		}
	}
	if !sort.Float64sAreSorted(p.Timestamps) {
		t.Errorf("timestamps not ascending: %v", p.Timestamps)
	}
}

func TestPlanCollage_SubSecondSourceClamps(t *testing.T) {
	p := planCollage(0.4, 9, testRng())
	if p.Frames != 1 || len(p.Timestamps) != 1 {
		t.Fatalf("sub-second source must force one frame, got %d", len(p.Timestamps))
	}
	if p.Timestamps[0] != 0.2 {
		t.Errorf("timestamp = %v, want 0.2 (clamped to D/2)", p.Timestamps[0])
	}
	if !p.Clamped {
		t.Error("clamp flag not set")
	}

	// A sub-second source long enough for the default 0.5s seek is not
	// clamped.
	p = planCollage(0.8, 4, testRng())
	if p.Timestamps[0] != 0.5 || p.Clamped {
		t.Errorf("0.8s source: got %v clamped=%v, want 0.5 unclamped", p.Timestamps[0], p.Clamped)
	}
}

func TestPlanCollage_ShortSourceReducesFrames(t *testing.T) {
	p := planCollage(3.7, 9, testRng())
	if p.Frames != 3 || len(p.Timestamps) != 3 {
		t.Fatalf("3.7s source with 9 requested should floor to 3 frames, got %d", len(p.Timestamps))
	}
	// Evenly spaced interval centers.
	want := []float64{3.7 * 0.5 / 3, 3.7 * 1.5 / 3, 3.7 * 2.5 / 3}
	for i, ts := range p.Timestamps {
		if diff := ts - want[i]; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("timestamp[%d] = %v, want %v", i, ts, want[i])
		}
	}
}

func TestPlanCollage_MidRangeUsesMargin(t *testing.T) {
	p := planCollage(8, 4, testRng())
	if p.Frames != 4 {
		t.Fatalf("frames = %d", p.Frames)
	}
	for _, ts := range p.Timestamps {
		if ts < 0.8 || ts > 7.2 {
			t.Errorf("timestamp %v outside [0.8, 7.2]", ts)
		}
	}
}

func TestGridFor(t *testing.T) {
	cases := []struct {
		frames, cols, rows int
	}{
		{4, 2, 2},
		{6, 3, 2},
		{9, 3, 3},
		{12, 4, 3},
		{1, 2, 2},
		{7, 2, 2},
	}
	for _, tc := range cases {
		cols, rows := gridFor(tc.frames)
		if cols != tc.cols || rows != tc.rows {
			t.Errorf("gridFor(%d) = %dx%d, want %dx%d", tc.frames, cols, rows, tc.cols, tc.rows)
		}
	}
}
