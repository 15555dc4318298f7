// Package toolchain abstracts the external transcode/decode programs the
// transform pipeline drives. The pipeline depends only on this capability
// set, never on a specific binary's invocation syntax.
package toolchain

import (
	"context"
	"image"
)

// Info describes the primary video stream of a media file.
type Info struct {
	Width    int
	Height   int
	FPS      float64
	Duration float64 // seconds
}

// FrameTransform mutates one decoded frame in place. It must not retain the
// image between calls.
type FrameTransform func(*image.RGBA)

// Toolchain is the capability set the pipeline requires.
type Toolchain interface {
	// Probe returns stream info for the file at path.
	Probe(ctx context.Context, path string) (Info, error)

	// ExtractClip re-encodes the [start, start+duration) subclip into dest.
	ExtractClip(ctx context.Context, src string, start, duration float64, dest string) error

	// Concat joins clips in order into a single re-encoded output.
	Concat(ctx context.Context, clips []string, dest string) error

	// GrabFrame decodes the single frame nearest timestamp.
	GrabFrame(ctx context.Context, src string, timestamp float64) (image.Image, error)

	// TranscodeFrames decodes src frame by frame, applies transform to each,
	// and re-encodes the result (without audio) into dest.
	TranscodeFrames(ctx context.Context, src, dest string, transform FrameTransform) error

	// RemuxAudio copies the video stream of videoIn and marries it to the
	// audio of audioSource, trimming to the shorter of the two.
	RemuxAudio(ctx context.Context, videoIn, audioSource, dest string) error
}
