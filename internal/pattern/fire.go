// Package pattern draws animations into the frame buffer.
package pattern

import (
	"math/rand"

	"github.com/fkcurrie/dotmatrix-golang/pkg/framebuffer"
)

// Fire field geometry. The matrix shows a window of the field so the
// flames never touch its side walls.
const (
	FireWidth   = 160
	FireHeight  = 60
	FireWindowX = 10
)

// Fire is a heat-diffusion flame animation. Heat is injected along the
// bottom row by a random walk per column and rises with blur.
type Fire struct {
	heat [FireHeight][FireWidth]uint8
	// per-column source level and its velocity
	sv, ssv [FireWidth]int
	rnd     *rand.Rand
}

// NewFire seeds the random source of the flame
func NewFire(seed int64) *Fire {
	return &Fire{rnd: rand.New(rand.NewSource(seed))}
}

// Step advances the flame and draws it into dst
func (f *Fire) Step(dst *framebuffer.Buffer) {
	f.advance()
	pix := dst.Array()
	for y := 0; y < framebuffer.Rows; y++ {
		copy(pix[y][:], f.heat[y][FireWindowX:FireWindowX+framebuffer.Cols])
	}
}

func (f *Fire) advance() {
	const bottom = FireHeight - 1
	for x := 0; x < FireWidth; x++ {
		f.sv[x] += f.ssv[x]
		if f.sv[x] < 0 {
			f.sv[x] = 0
			f.ssv[x] += 4
		}
		if f.sv[x] > 255 {
			f.sv[x] = 255
			f.ssv[x] -= 4
		}
		f.ssv[x] += f.rnd.Intn(10) - 5
		f.heat[bottom][x] = uint8(f.sv[x])
	}

	h := &f.heat
	for y := 0; y < bottom; y++ {
		for x := 1; x < FireWidth-1; x++ {
			// hot spots rise faster
			if y < FireHeight-3 && h[y+3][x] > 50 {
				h[y][x] = uint8((int(h[y+2][x-1]) + int(h[y+3][x])*6 + int(h[y+2][x+1]) +
					int(h[y+1][x-1]) + int(h[y+2][x])*6 + int(h[y+1][x+1])) / 16)
				continue
			}
			h[y][x] = uint8((int(h[y+1][x-1]) + int(h[y+1][x])*2 + int(h[y+1][x+1])) / 4)
		}
	}
}
