package render

import (
	"bytes"
	"errors"
	"fmt"
)

// ErrSizeMismatch is returned when two surfaces of different dimensions are
// composed.
var ErrSizeMismatch = errors.New("surface size mismatch")

// Color is a non-premultiplied RGBA pixel.
type Color struct {
	R, G, B, A uint8
}

// Transparent is the zero color.
var Transparent = Color{}

// RGB returns an opaque color.
func RGB(r, g, b uint8) Color {
	return Color{R: r, G: g, B: b, A: 0xff}
}

// Surface is a Width x Height RGBA pixel buffer, row-major, four bytes per
// pixel.
type Surface struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewSurface allocates a fully transparent surface.
func NewSurface(width, height int) *Surface {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Surface{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height*4),
	}
}

func (s *Surface) offset(x, y int) (int, bool) {
	if x < 0 || y < 0 || x >= s.Width || y >= s.Height {
		return 0, false
	}
	return (y*s.Width + x) * 4, true
}

// Set writes one pixel. Out-of-bounds writes are ignored.
func (s *Surface) Set(x, y int, c Color) {
	i, ok := s.offset(x, y)
	if !ok {
		return
	}
	s.Pix[i], s.Pix[i+1], s.Pix[i+2], s.Pix[i+3] = c.R, c.G, c.B, c.A
}

// Pixel reads one pixel. Out-of-bounds reads return Transparent.
func (s *Surface) Pixel(x, y int) Color {
	i, ok := s.offset(x, y)
	if !ok {
		return Transparent
	}
	return Color{R: s.Pix[i], G: s.Pix[i+1], B: s.Pix[i+2], A: s.Pix[i+3]}
}

// Fill sets every pixel to c and returns s.
func (s *Surface) Fill(c Color) *Surface {
	for i := 0; i < len(s.Pix); i += 4 {
		s.Pix[i], s.Pix[i+1], s.Pix[i+2], s.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return s
}

// Clone returns a deep copy of s.
func (s *Surface) Clone() *Surface {
	out := &Surface{Width: s.Width, Height: s.Height, Pix: make([]uint8, len(s.Pix))}
	copy(out.Pix, s.Pix)
	return out
}

// Equal reports whether both surfaces have the same size and pixels.
func (s *Surface) Equal(o *Surface) bool {
	if s == nil || o == nil {
		return s == o
	}
	return s.Width == o.Width && s.Height == o.Height && bytes.Equal(s.Pix, o.Pix)
}

// Draw paints src over s. A source pixel with zero alpha leaves the
// destination untouched; any other source pixel replaces it. The operation
// is associative, so any grouping of a stack yields the same result.
func (s *Surface) Draw(src *Surface) error {
	if s.Width != src.Width || s.Height != src.Height {
		return fmt.Errorf("%w: %dx%d over %dx%d", ErrSizeMismatch, src.Width, src.Height, s.Width, s.Height)
	}
	for i := 0; i < len(src.Pix); i += 4 {
		if src.Pix[i+3] == 0 {
			continue
		}
		copy(s.Pix[i:i+4], src.Pix[i:i+4])
	}
	return nil
}

// Merge returns a new surface with src painted over dst. Neither input is
// modified.
func Merge(dst, src *Surface) (*Surface, error) {
	out := dst.Clone()
	if err := out.Draw(src); err != nil {
		return nil, err
	}
	return out, nil
}
