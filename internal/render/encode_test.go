package render

import "testing"

func TestEncodeRGB_Orientation(t *testing.T) {
	// 3x2 surface with a single red pixel at (0,0) and a green one at (2,1).
	tgt := Target{Width: 3, Height: 2}
	s := NewSurface(3, 2)
	s.Set(0, 0, RGB(255, 0, 0))
	s.Set(2, 1, RGB(0, 255, 0))

	tests := []struct {
		name         string
		o            Orientation
		w, h         int
		redX, redY   int
		greenX, grnY int
	}{
		{"0", Rotate0, 3, 2, 0, 0, 2, 1},
		{"90", Rotate90, 2, 3, 1, 0, 0, 2},
		{"180", Rotate180, 3, 2, 2, 1, 0, 0},
		{"270", Rotate270, 2, 3, 0, 2, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := FrameSize(tgt, tt.o)
			if w != tt.w || h != tt.h {
				t.Fatalf("FrameSize = %dx%d, want %dx%d", w, h, tt.w, tt.h)
			}
			frame := EncodeRGB(s, tgt, tt.o)
			if len(frame) != w*h*3 {
				t.Fatalf("len(frame) = %d, want %d", len(frame), w*h*3)
			}
			if got := DecodeRGB(frame, w, tt.redX, tt.redY); got != RGB(255, 0, 0) {
				t.Errorf("red pixel = %+v", got)
			}
			if got := DecodeRGB(frame, w, tt.greenX, tt.grnY); got != RGB(0, 255, 0) {
				t.Errorf("green pixel = %+v", got)
			}

			lit := 0
			for i := 0; i < len(frame); i += 3 {
				if frame[i] != 0 || frame[i+1] != 0 || frame[i+2] != 0 {
					lit++
				}
			}
			if lit != 2 {
				t.Errorf("lit pixels = %d, want 2", lit)
			}
		})
	}
}

func TestEncodeRGB_NilSurface(t *testing.T) {
	frame := EncodeRGB(nil, Target{Width: 4, Height: 2}, Rotate0)
	if len(frame) != 24 {
		t.Fatalf("len(frame) = %d, want 24", len(frame))
	}
	for i, b := range frame {
		if b != 0 {
			t.Fatalf("byte %d = %d, want black frame", i, b)
		}
	}
}

func TestDecodeRGB_OutOfRange(t *testing.T) {
	frame := make([]byte, 12)
	if got := DecodeRGB(frame, 2, 5, 0); got != Transparent {
		t.Errorf("DecodeRGB out of range = %+v", got)
	}
}
