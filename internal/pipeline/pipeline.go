// Package pipeline applies the ordered watermark, preview and collage
// transforms to a downloaded media file. Stage failures downgrade to
// warnings; whatever artifacts were produced are returned alongside them.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"io"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/ssd-technologies/medialink/internal/toolchain"
)

// Stage names a pipeline stage for warnings, progress and metrics.
type Stage string

const (
	StageWatermark Stage = "watermark"
	StagePreview   Stage = "preview"
	StageCollage   Stage = "collage"
)

// StageError is a recovered per-stage failure, reported as a warning.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// WatermarkRequest enables the watermark stage.
type WatermarkRequest struct {
	Text    string
	Anchor  Anchor
	Opacity float64
}

// PreviewRequest enables the trimmed-preview stage.
type PreviewRequest struct {
	Length int // seconds
}

// CollageRequest enables the frame-grid stage.
type CollageRequest struct {
	Frames  int
	Quality int // JPEG quality
}

// Request selects which stages run. A nil stage is skipped.
type Request struct {
	Watermark *WatermarkRequest
	Preview   *PreviewRequest
	Collage   *CollageRequest
}

// NeedsProcessing reports whether any stage is enabled; when false the
// caller can skip the download entirely.
func (r Request) NeedsProcessing() bool {
	return r.Watermark != nil || r.Preview != nil || r.Collage != nil
}

// Result carries the produced artifacts and any recovered stage failures.
type Result struct {
	// SourcePath is the video the preview/collage stages read: the
	// watermarked copy when that stage succeeded, otherwise the original.
	SourcePath  string
	PreviewPath string
	CollagePath string
	Warnings    []*StageError
}

// ProgressFunc receives coarse stage transitions for status reporting.
type ProgressFunc func(stage Stage)

// cell size every collage frame is resized to.
const (
	cellWidth  = 640
	cellHeight = 480
)

// Pipeline runs transform stages over a toolchain.
type Pipeline struct {
	tc toolchain.Toolchain
}

// New creates a pipeline over the given toolchain.
func New(tc toolchain.Toolchain) *Pipeline {
	return &Pipeline{tc: tc}
}

// Run executes the enabled stages in fixed order against the file at src,
// writing artifacts into workDir. Stage failures never abort the run; they
// accumulate as warnings.
func (p *Pipeline) Run(ctx context.Context, src, workDir string, req Request, progress ProgressFunc) Result {
	res := Result{SourcePath: src}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	if req.Watermark != nil {
		emit(progress, StageWatermark)
		start := time.Now()
		out, err := p.watermark(ctx, src, workDir, req.Watermark)
		if err != nil {
			observeStage(StageWatermark, "error", time.Since(start))
			log.Printf("[pipeline] watermark failed: %v", err)
			res.Warnings = append(res.Warnings, &StageError{Stage: StageWatermark, Err: err})
		} else {
			observeStage(StageWatermark, "success", time.Since(start))
			res.SourcePath = out
		}
	}

	if req.Preview != nil {
		emit(progress, StagePreview)
		start := time.Now()
		out, err := p.preview(ctx, res.SourcePath, workDir, req.Preview.Length, rng)
		if err != nil {
			observeStage(StagePreview, "error", time.Since(start))
			log.Printf("[pipeline] preview failed: %v", err)
			res.Warnings = append(res.Warnings, &StageError{Stage: StagePreview, Err: err})
		} else {
			observeStage(StagePreview, "success", time.Since(start))
			res.PreviewPath = out
		}
	}

	if req.Collage != nil {
		emit(progress, StageCollage)
		start := time.Now()
		out, warn, err := p.collage(ctx, res.SourcePath, workDir, req.Collage, rng)
		if warn != nil {
			res.Warnings = append(res.Warnings, warn)
		}
		if err != nil {
			observeStage(StageCollage, "error", time.Since(start))
			log.Printf("[pipeline] collage failed: %v", err)
			res.Warnings = append(res.Warnings, &StageError{Stage: StageCollage, Err: err})
		} else {
			observeStage(StageCollage, "success", time.Since(start))
			res.CollagePath = out
		}
	}

	return res
}

func emit(progress ProgressFunc, s Stage) {
	if progress != nil {
		progress(s)
	}
}

// watermark re-encodes src with the text composite and remuxes the original
// audio back in. If the remux fails the muted re-encode is used instead.
func (p *Pipeline) watermark(ctx context.Context, src, workDir string, req *WatermarkRequest) (string, error) {
	info, err := p.tc.Probe(ctx, src)
	if err != nil {
		return "", fmt.Errorf("probe: %w", err)
	}
	wm, err := NewWatermarker(req.Text, req.Anchor, req.Opacity, info.Width, info.Height)
	if err != nil {
		return "", err
	}

	muted := filepath.Join(workDir, "watermarked_noaudio.mp4")
	if err := p.tc.TranscodeFrames(ctx, src, muted, wm.Apply); err != nil {
		os.Remove(muted)
		return "", fmt.Errorf("transcode: %w", err)
	}

	out := filepath.Join(workDir, "watermarked.mp4")
	if err := p.tc.RemuxAudio(ctx, muted, src, out); err != nil {
		// Losing the audio beats losing the watermark.
		log.Printf("[pipeline] audio remux failed, keeping muted video: %v", err)
		os.Remove(out)
		return muted, nil
	}
	os.Remove(muted)
	return out, nil
}

// preview cuts random fixed-length clips out of src and joins them. Sources
// shorter than the requested length are copied whole.
func (p *Pipeline) preview(ctx context.Context, src, workDir string, length int, rng *rand.Rand) (string, error) {
	info, err := p.tc.Probe(ctx, src)
	if err != nil {
		return "", fmt.Errorf("probe: %w", err)
	}

	out := filepath.Join(workDir, "preview.mp4")
	plan := planPreview(info.Duration, length, rng)
	if plan.CopyWhole {
		if err := copyFile(src, out); err != nil {
			return "", fmt.Errorf("copy short source: %w", err)
		}
		return out, nil
	}

	clips := make([]string, len(plan.Offsets))
	defer func() {
		for _, c := range clips {
			if c != "" {
				os.Remove(c)
			}
		}
	}()
	for i, off := range plan.Offsets {
		clip := filepath.Join(workDir, fmt.Sprintf("clip_%d.mp4", i))
		if err := p.tc.ExtractClip(ctx, src, off, clipDuration, clip); err != nil {
			return "", fmt.Errorf("extract clip %d: %w", i, err)
		}
		clips[i] = clip
	}

	if err := p.tc.Concat(ctx, clips, out); err != nil {
		return "", fmt.Errorf("concat: %w", err)
	}
	return out, nil
}

// collage samples frames, tiles them into the fixed grid and encodes a JPEG.
// Individual frame grabs may fail; falling short of the plan aborts the
// stage with a partial-result warning instead of producing a sparse grid.
func (p *Pipeline) collage(ctx context.Context, src, workDir string, req *CollageRequest, rng *rand.Rand) (string, *StageError, error) {
	info, err := p.tc.Probe(ctx, src)
	if err != nil {
		return "", nil, fmt.Errorf("probe: %w", err)
	}

	plan := planCollage(info.Duration, req.Frames, rng)
	var warn *StageError
	if plan.Clamped {
		warn = &StageError{
			Stage: StageCollage,
			Err:   fmt.Errorf("sub-second source (%.2fs), frame timestamp clamped to midpoint", info.Duration),
		}
	}

	frames := make([]image.Image, 0, plan.Frames)
	for _, ts := range plan.Timestamps {
		img, err := p.tc.GrabFrame(ctx, src, ts)
		if err != nil {
			log.Printf("[pipeline] frame grab at %.2fs failed: %v", ts, err)
			continue
		}
		frames = append(frames, img)
	}
	if len(frames) < plan.Frames {
		return "", warn, fmt.Errorf("extracted %d of %d frames, skipping grid", len(frames), plan.Frames)
	}

	grid := composeCollage(frames, plan.Frames)
	out := filepath.Join(workDir, "collage.jpg")
	if err := encodeJPEG(grid, out, req.Quality); err != nil {
		return "", warn, fmt.Errorf("encode collage: %w", err)
	}
	return out, warn, nil
}

// copyFile copies src to dest without transformation.
func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	return out.Close()
}
