package render

// FrameSize returns the dimensions of an encoded frame for target after
// rotation.
func FrameSize(target Target, o Orientation) (width, height int) {
	if o == Rotate90 || o == Rotate270 {
		return target.Height, target.Width
	}
	return target.Width, target.Height
}

// EncodeRGB packs s into row-major RGB bytes, rotated clockwise by o. Alpha
// is dropped, so transparent pixels come out black. A nil surface encodes
// as an all-black frame of the target size.
func EncodeRGB(s *Surface, target Target, o Orientation) []byte {
	w, h := FrameSize(target, o)
	out := make([]byte, w*h*3)
	if s == nil {
		return out
	}

	for y := range target.Height {
		for x := range target.Width {
			c := s.Pixel(x, y)
			if c.A == 0 {
				continue
			}
			dx, dy := x, y
			switch o {
			case Rotate90:
				dx, dy = target.Height-1-y, x
			case Rotate180:
				dx, dy = target.Width-1-x, target.Height-1-y
			case Rotate270:
				dx, dy = y, target.Width-1-x
			}
			i := (dy*w + dx) * 3
			out[i], out[i+1], out[i+2] = c.R, c.G, c.B
		}
	}
	return out
}

// DecodeRGB reads one pixel of an encoded frame of the given width.
func DecodeRGB(frame []byte, width, x, y int) Color {
	i := (y*width + x) * 3
	if x < 0 || y < 0 || x >= width || i+2 >= len(frame) {
		return Transparent
	}
	return RGB(frame[i], frame[i+1], frame[i+2])
}
