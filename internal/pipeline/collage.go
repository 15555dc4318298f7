package pipeline

import (
	"image"
	"image/jpeg"
	"os"

	xdraw "golang.org/x/image/draw"
)

// composeCollage resizes the first n frames to the fixed cell size and tiles
// them row-major into the grid for n.
func composeCollage(frames []image.Image, n int) *image.RGBA {
	cols, rows := gridFor(n)
	canvas := image.NewRGBA(image.Rect(0, 0, cellWidth*cols, cellHeight*rows))

	for idx, frame := range frames[:n] {
		col := idx % cols
		row := idx / cols
		cell := image.Rect(
			col*cellWidth, row*cellHeight,
			(col+1)*cellWidth, (row+1)*cellHeight,
		)
		xdraw.CatmullRom.Scale(canvas, cell, frame, frame.Bounds(), xdraw.Src, nil)
	}
	return canvas
}

// encodeJPEG writes img to path at the given quality.
func encodeJPEG(img image.Image, path string, quality int) error {
	if quality <= 0 || quality > 100 {
		quality = 85
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: quality}); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}
