// Package framebuffer holds the pixel intensity grid scanned out by the
// matrix drive engine.
//
// Writers never lock. The drive engine reads the grid from its refill
// handler while producers draw into it, so a frame may be observed half
// drawn; that shows up as a one-line artifact and is accepted.
package framebuffer

import (
	"image"
	"image/color"
)

const (
	// Rows is the number of logical pixel rows
	Rows = 48
	// Cols is the number of logical pixel columns
	Cols = 64
)

// Array is the raw intensity grid, indexed [y][x]
type Array [Rows][Cols]uint8

// Buffer is one frame of pixel intensities (0-255)
type Buffer struct {
	pix Array
}

// New returns a blank frame buffer
func New() *Buffer {
	return &Buffer{}
}

// Array returns the backing grid for bulk readers such as the waveform builder
func (b *Buffer) Array() *Array {
	return &b.pix
}

// Current lets a single Buffer stand in wherever a Pair is accepted
func (b *Buffer) Current() *Buffer {
	return b
}

// Width returns the number of columns
func (b *Buffer) Width() int { return Cols }

// Height returns the number of rows
func (b *Buffer) Height() int { return Rows }

// SetPixel sets the intensity at (x, y). Points outside the grid are ignored.
func (b *Buffer) SetPixel(x, y int, level uint8) {
	if !inside(x, y) {
		return
	}
	b.pix[y][x] = level
}

// Pixel returns the intensity at (x, y), or 0 outside the grid
func (b *Buffer) Pixel(x, y int) uint8 {
	if !inside(x, y) {
		return 0
	}
	return b.pix[y][x]
}

// Fill sets every pixel to level
func (b *Buffer) Fill(level uint8) {
	for y := range b.pix {
		row := &b.pix[y]
		for x := range row {
			row[x] = level
		}
	}
}

// FillRect sets the pixels of the w x h box at (x, y) to level, clipped to the grid
func (b *Buffer) FillRect(x, y, w, h int, level uint8) {
	var fx, fy int
	if !Clip(&fx, &fy, &x, &y, &w, &h) {
		return
	}
	for yy := y; yy < y+h; yy++ {
		row := &b.pix[yy]
		for xx := x; xx < x+w; xx++ {
			row[xx] = level
		}
	}
}

// CopyFrom copies another frame into b
func (b *Buffer) CopyFrom(src *Buffer) {
	b.pix = src.pix
}

// Clip intersects the w x h box at (x, y) with the grid.
//
// fx and fy are offsets into the source being drawn (a glyph or an image) and
// advance by however much the box was cut on the left and top. It reports
// whether anything of the box remains.
func Clip(fx, fy, x, y, w, h *int) bool {
	if *x < 0 {
		*fx -= *x
		*w += *x
		*x = 0
	}
	if *y < 0 {
		*fy -= *y
		*h += *y
		*y = 0
	}
	if *x+*w > Cols {
		*w = Cols - *x
	}
	if *y+*h > Rows {
		*h = Rows - *y
	}
	return *w > 0 && *h > 0
}

// ColorModel implements image.Image
func (b *Buffer) ColorModel() color.Model {
	return color.GrayModel
}

// Bounds implements image.Image
func (b *Buffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, Cols, Rows)
}

// At implements image.Image
func (b *Buffer) At(x, y int) color.Color {
	return color.Gray{Y: b.Pixel(x, y)}
}

// Set implements draw.Image
func (b *Buffer) Set(x, y int, c color.Color) {
	b.SetPixel(x, y, color.GrayModel.Convert(c).(color.Gray).Y)
}

func inside(x, y int) bool {
	return x >= 0 && x < Cols && y >= 0 && y < Rows
}
