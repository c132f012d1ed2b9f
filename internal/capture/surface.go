// Package capture drives the decode-draw-capture loop that turns an
// expanded chunk stream into a compressed video-only blob at a fixed frame
// rate, with drift-corrected timing.
package capture

import "github.com/voidwire/smear/media"

// Surface is the fixed-size RGBA raster every decoded frame is drawn into
// before capture. Decoded frames may have any coded size; Draw stretches
// them to cover the surface exactly, so memory use stays O(1) frames
// regardless of source dimensions.
type Surface struct {
	width  int
	height int
	pixels []byte
}

// NewSurface allocates a black, opaque surface of the given dimensions.
func NewSurface(width, height int) *Surface {
	s := &Surface{
		width:  width,
		height: height,
		pixels: make([]byte, width*height*4),
	}
	for i := 3; i < len(s.pixels); i += 4 {
		s.pixels[i] = 0xff
	}
	return s
}

// Draw stretches frame over the whole surface with nearest-neighbor
// sampling. Frames with missing or short pixel data are ignored, leaving the
// previous raster in place, which mirrors how a stalled decoder holds its
// last picture.
func (s *Surface) Draw(frame *media.RasterFrame) {
	if frame == nil || frame.Width <= 0 || frame.Height <= 0 {
		return
	}
	if len(frame.Pixels) < frame.Width*frame.Height*4 {
		return
	}

	for y := 0; y < s.height; y++ {
		srcY := y * frame.Height / s.height
		srcRow := srcY * frame.Width * 4
		dstRow := y * s.width * 4
		for x := 0; x < s.width; x++ {
			srcOff := srcRow + (x*frame.Width/s.width)*4
			copy(s.pixels[dstRow+x*4:dstRow+x*4+4], frame.Pixels[srcOff:srcOff+4])
		}
	}
}

// Pixels exposes the surface raster for the capture sink. The slice is
// reused across frames; sinks must copy or consume it before the next Draw.
func (s *Surface) Pixels() []byte {
	return s.pixels
}
