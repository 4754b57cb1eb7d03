package vision

import (
	"bytes"
	"fmt"
	"image"

	_ "image/jpeg"
	_ "image/png"
)

// GridSize is the fixed edge length of the measurement grid. Every
// source image is resampled onto GridSize x GridSize before feature
// extraction so image resolution never changes a verdict.
const GridSize = 128

// #region grid
// Grid is the resampled RGB view the extractor measures.
type Grid struct {
	pix [GridSize * GridSize]Pixel
}

// At returns the sample at grid coordinates (x, y).
func (g *Grid) At(x, y int) Pixel {
	return g.pix[y*GridSize+x]
}

func (g *Grid) set(x, y int, p Pixel) {
	g.pix[y*GridSize+x] = p
}
// #endregion grid

// #region decode
// Decode parses encoded image bytes (JPEG or PNG) and resamples the
// result onto the measurement grid with nearest-neighbor sampling.
func Decode(data []byte) (*Grid, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("decode image: empty input")
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return Resample(img), nil
}
// #endregion decode

// #region resample
// Resample maps a decoded image onto the fixed grid. Images smaller
// than the grid repeat samples, larger ones are thinned.
func Resample(img image.Image) *Grid {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	g := &Grid{}
	if w <= 0 || h <= 0 {
		return g
	}
	for y := 0; y < GridSize; y++ {
		srcY := b.Min.Y + y*h/GridSize
		for x := 0; x < GridSize; x++ {
			srcX := b.Min.X + x*w/GridSize
			r, gc, bc, _ := img.At(srcX, srcY).RGBA()
			g.set(x, y, Pixel{R: uint8(r >> 8), G: uint8(gc >> 8), B: uint8(bc >> 8)})
		}
	}
	return g
}
// #endregion resample
