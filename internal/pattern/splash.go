package pattern

import (
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	"github.com/fkcurrie/dotmatrix-golang/pkg/framebuffer"
)

// DefaultSplash is a clock face
const DefaultSplash = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 64 48">
  <circle cx="32" cy="24" r="21" fill="none" stroke="#fff" stroke-width="3"/>
  <path d="M32 24 L32 9" stroke="#aaa" stroke-width="3" stroke-linecap="round"/>
  <path d="M32 24 L43 30" stroke="#fff" stroke-width="2" stroke-linecap="round"/>
  <circle cx="32" cy="24" r="2.5" fill="#fff"/>
</svg>`

// Splash is a still image rasterized from SVG
type Splash struct {
	img *framebuffer.Buffer
}

// NewSplash rasterizes an SVG document scaled to the whole matrix
func NewSplash(r io.Reader) (*Splash, error) {
	icon, err := oksvg.ReadIconStream(r, oksvg.WarnErrorMode)
	if err != nil {
		return nil, errors.Wrap(err, "parsing splash SVG")
	}

	img := framebuffer.New()
	w, h := img.Width(), img.Height()
	icon.SetTarget(0, 0, float64(w), float64(h))
	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1)
	return &Splash{img: img}, nil
}

// NewDefaultSplash rasterizes DefaultSplash
func NewDefaultSplash() (*Splash, error) {
	return NewSplash(strings.NewReader(DefaultSplash))
}

// Step draws the image into dst
func (s *Splash) Step(dst *framebuffer.Buffer) {
	dst.CopyFrom(s.img)
}

// Solid fills the matrix with one level
type Solid struct {
	Level uint8
}

// Step draws the fill into dst
func (s Solid) Step(dst *framebuffer.Buffer) {
	dst.Fill(s.Level)
}
