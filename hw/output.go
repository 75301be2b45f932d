package hw

import (
	"image"

	"arcore/hw/video"
)

// VideoOut is the video output of the machine during one video clock.
type VideoOut struct {
	Beam  video.Beam
	RGB   uint32 // 0xRRGGBB
	Blank bool   // system display forced blank
}

// Screen collects the visible pixels of the video output into frames. It
// alternates between two images so that the last complete frame stays valid
// while the next one is drawn.
type Screen struct {
	width, height int

	bufs    [2]*image.RGBA
	cur     int
	started bool
	frames  uint64

	onFrame func(*image.RGBA)
}

func newScreen(width, height int) *Screen {
	s := &Screen{width: width, height: height}
	for i := range s.bufs {
		s.bufs[i] = image.NewRGBA(image.Rect(0, 0, width, height))
	}
	return s
}

func (s *Screen) reset() {
	s.cur = 0
	s.started = false
	s.frames = 0
	for _, b := range s.bufs {
		clear(b.Pix)
	}
}

func (s *Screen) put(b video.Beam, rgb uint32) {
	if b.NewFrame {
		if s.started {
			s.frames++
			if s.onFrame != nil {
				s.onFrame(s.bufs[s.cur])
			}
			s.cur ^= 1
		}
		s.started = true
	}
	if !b.Visible() || b.H >= s.width || b.V >= s.height {
		return
	}
	img := s.bufs[s.cur]
	off := img.PixOffset(b.H, b.V)
	img.Pix[off+0] = uint8(rgb >> 16)
	img.Pix[off+1] = uint8(rgb >> 8)
	img.Pix[off+2] = uint8(rgb)
	img.Pix[off+3] = 0xFF
}

// Frames returns the number of complete frames.
func (s *Screen) Frames() uint64 { return s.frames }

// Last returns the last complete frame, or nil if there is none yet. The
// image is overwritten two frames later.
func (s *Screen) Last() *image.RGBA {
	if s.frames == 0 {
		return nil
	}
	return s.bufs[s.cur^1]
}
