package pipeline

import (
	"bytes"
	"image"
	"testing"
)

// gradientFrame builds a deterministic non-uniform frame.
func gradientFrame(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := img.PixOffset(x, y)
			img.Pix[i+0] = uint8(x)
			img.Pix[i+1] = uint8(y)
			img.Pix[i+2] = uint8(x + y)
			img.Pix[i+3] = 255
		}
	}
	return img
}

func TestWatermark_OpacityZeroIsIdentity(t *testing.T) {
	frame := gradientFrame(320, 240)
	want := append([]uint8(nil), frame.Pix...)

	wm, err := NewWatermarker("@channel", AnchorBottomRight, 0.0, 320, 240)
	if err != nil {
		t.Fatalf("NewWatermarker: %v", err)
	}
	wm.Apply(frame)

	if !bytes.Equal(frame.Pix, want) {
		t.Error("opacity 0.0 must reproduce the original frame exactly")
	}
}

func TestWatermark_OpacityOneIsDrawnOverlay(t *testing.T) {
	frame := gradientFrame(320, 240)

	// Reference overlay: same frame with the text drawn directly.
	wm, err := NewWatermarker("@channel", AnchorCenter, 1.0, 320, 240)
	if err != nil {
		t.Fatalf("NewWatermarker: %v", err)
	}
	overlay := gradientFrame(320, 240)
	wm.drawText(overlay)

	wm.Apply(frame)

	if !bytes.Equal(frame.Pix, overlay.Pix) {
		t.Error("opacity 1.0 must reproduce the drawn overlay pixel for pixel")
	}
}

func TestWatermark_ActuallyMarksPixels(t *testing.T) {
	frame := gradientFrame(320, 240)
	before := append([]uint8(nil), frame.Pix...)

	wm, err := NewWatermarker("WATERMARK", AnchorCenter, 0.8, 320, 240)
	if err != nil {
		t.Fatalf("NewWatermarker: %v", err)
	}
	wm.Apply(frame)

	if bytes.Equal(frame.Pix, before) {
		t.Error("watermark at 0.8 opacity changed nothing")
	}
}

func TestWatermark_UntouchedPixelsPassThrough(t *testing.T) {
	frame := gradientFrame(320, 240)
	before := append([]uint8(nil), frame.Pix...)

	// Text in the top-left corner must leave the bottom-right corner alone
	// at any opacity.
	wm, err := NewWatermarker("x", AnchorTopLeft, 0.5, 320, 240)
	if err != nil {
		t.Fatalf("NewWatermarker: %v", err)
	}
	wm.Apply(frame)

	i := frame.PixOffset(319, 239)
	j := frame.PixOffset(319, 239)
	for k := 0; k < 4; k++ {
		if frame.Pix[i+k] != before[j+k] {
			t.Fatalf("far corner pixel changed: %v -> %v", before[j:j+4], frame.Pix[i:i+4])
		}
	}
}

func TestWatermark_MismatchedFrameSizeIgnored(t *testing.T) {
	wm, err := NewWatermarker("x", AnchorCenter, 1.0, 640, 480)
	if err != nil {
		t.Fatalf("NewWatermarker: %v", err)
	}
	frame := gradientFrame(320, 240)
	before := append([]uint8(nil), frame.Pix...)
	wm.Apply(frame)
	if !bytes.Equal(frame.Pix, before) {
		t.Error("frame of the wrong size must pass through unchanged")
	}
}

func TestNewWatermarker_Validation(t *testing.T) {
	if _, err := NewWatermarker("", AnchorCenter, 0.5, 100, 100); err == nil {
		t.Error("empty text accepted")
	}
	if _, err := NewWatermarker("x", AnchorCenter, 1.5, 100, 100); err == nil {
		t.Error("opacity 1.5 accepted")
	}
}
