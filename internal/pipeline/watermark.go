package pipeline

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Anchor names one of the nine watermark positions.
type Anchor string

const (
	AnchorTopLeft      Anchor = "top-left"
	AnchorTopCenter    Anchor = "top-center"
	AnchorTopRight     Anchor = "top-right"
	AnchorCenterLeft   Anchor = "center-left"
	AnchorCenter       Anchor = "center"
	AnchorCenterRight  Anchor = "center-right"
	AnchorBottomLeft   Anchor = "bottom-left"
	AnchorBottomCenter Anchor = "bottom-center"
	AnchorBottomRight  Anchor = "bottom-right"
)

// watermarkMargin is the constant distance between text and frame edge.
const watermarkMargin = 20

// Watermarker is a pure frame transform: it composites outlined text onto
// each frame at a fixed anchor, alpha-blended against the original. One
// instance is prepared for a single frame size and reused for every frame.
type Watermarker struct {
	text    string
	opacity float64

	face    font.Face
	dot     fixed.Point26_6
	outline int
	bounds  image.Rectangle
	scratch []uint8
}

// NewWatermarker prepares a watermark transform for frames of the given
// size. Font scale and outline thickness derive from the frame height.
func NewWatermarker(text string, anchor Anchor, opacity float64, width, height int) (*Watermarker, error) {
	if text == "" {
		return nil, fmt.Errorf("watermark: empty text")
	}
	if opacity < 0 || opacity > 1 {
		return nil, fmt.Errorf("watermark: opacity %v out of range", opacity)
	}

	fnt, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("watermark: parse font: %w", err)
	}
	size := float64(height) / 20
	if size < 12 {
		size = 12
	}
	face, err := opentype.NewFace(fnt, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("watermark: build face: %w", err)
	}

	textWidth := font.MeasureString(face, text).Ceil()
	metrics := face.Metrics()
	ascent := metrics.Ascent.Ceil()

	var x, y int
	switch anchor {
	case AnchorTopLeft, AnchorCenterLeft, AnchorBottomLeft:
		x = watermarkMargin
	case AnchorTopCenter, AnchorCenter, AnchorBottomCenter:
		x = (width - textWidth) / 2
	default: // right column, also the fallback for unknown anchors
		x = width - textWidth - watermarkMargin
	}
	switch anchor {
	case AnchorTopLeft, AnchorTopCenter, AnchorTopRight:
		y = watermarkMargin + ascent
	case AnchorCenterLeft, AnchorCenter, AnchorCenterRight:
		y = (height + ascent) / 2
	default: // bottom row
		y = height - watermarkMargin
	}

	outline := height / 400
	if outline < 1 {
		outline = 1
	}

	return &Watermarker{
		text:    text,
		opacity: opacity,
		face:    face,
		dot:     fixed.P(x, y),
		outline: outline,
		bounds:  image.Rect(0, 0, width, height),
		scratch: make([]uint8, width*height*4),
	}, nil
}

// Apply composites the watermark onto frame in place:
//
//	out = opacity*overlay + (1-opacity)*original
//
// where overlay is the frame with outlined text drawn on it. Pixels the text
// does not touch come through exactly unchanged.
func (w *Watermarker) Apply(frame *image.RGBA) {
	if !frame.Rect.Eq(w.bounds) {
		return // prepared for a different frame size, leave untouched
	}

	copy(w.scratch, frame.Pix)
	w.drawText(frame)

	// Fixed-point blend. alpha 1.0 reproduces the overlay exactly and 0.0
	// the original, including when overlay == original.
	a := uint32(w.opacity * 65536)
	inv := 65536 - a
	orig := w.scratch
	pix := frame.Pix
	for i := range pix {
		pix[i] = uint8((uint32(pix[i])*a + uint32(orig[i])*inv) >> 16)
	}
}

// drawText draws the black outline then the white fill at the prepared dot.
func (w *Watermarker) drawText(dst *image.RGBA) {
	d := font.Drawer{
		Dst:  dst,
		Face: w.face,
	}
	o := fixed.I(w.outline)
	d.Src = image.NewUniform(color.Black)
	for _, off := range []fixed.Point26_6{
		{X: -o, Y: -o}, {X: 0, Y: -o}, {X: o, Y: -o},
		{X: -o, Y: 0}, {X: o, Y: 0},
		{X: -o, Y: o}, {X: 0, Y: o}, {X: o, Y: o},
	} {
		d.Dot = fixed.Point26_6{X: w.dot.X + off.X, Y: w.dot.Y + off.Y}
		d.DrawString(w.text)
	}
	d.Src = image.NewUniform(color.White)
	d.Dot = w.dot
	d.DrawString(w.text)
}
