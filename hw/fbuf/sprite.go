package fbuf

import (
	"arcore/emu/log"
	"arcore/hw/video"
)

// Sprite is the sprite frame buffer. While disabled it accepts no swap and
// the display holds the last committed page.
type Sprite struct {
	pages
	enabled bool
}

// NewSprite returns a sprite frame buffer with two pages of the given
// geometry.
func NewSprite(cfg Config) *Sprite {
	return &Sprite{pages: newPages("sprite", cfg)}
}

// SetEnabled sets the enable input, as seen in the producer domain.
func (s *Sprite) SetEnabled(en bool) { s.enabled = en }

// Enabled returns the enable input of the producer domain.
func (s *Sprite) Enabled() bool { return s.enabled }

// Swap requests the commit of the back page. It is ignored while disabled.
func (s *Sprite) Swap() {
	if !s.enabled {
		s.stats.Dropped++
		log.ModFbuf.DebugZ("swap ignored, buffer disabled").
			String("fb", s.name).
			End()
		return
	}
	s.swap()
}

// TickDisplay runs one video clock and returns the sprite pixel at the
// beam. The enable input doesn't affect the display: the last committed
// page is shown, blank until the first commit.
func (s *Sprite) TickDisplay(b video.Beam) uint16 {
	return s.tickDisplay(b, true)
}
