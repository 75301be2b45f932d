package fbuf

import (
	"arcore/hw/cdc"
	"arcore/hw/video"
)

// System is the system frame buffer. Its display addressing follows the
// rotation option and its output can be forced blank.
type System struct {
	pages
	blankReq *cdc.Freeze[bool] // force blank requested by the producer
	blank    bool
}

// NewSystem returns a system frame buffer with two pages of the given
// geometry.
func NewSystem(cfg Config) *System {
	return &System{
		pages:    newPages("system", cfg),
		blankReq: cdc.NewFreeze("system.blank", false),
		blank:    true,
	}
}

// SetForceBlank sets the force blank request of the producer.
func (s *System) SetForceBlank(blank bool) { s.blankReq.Set(blank) }

// Swap requests the commit of the back page.
func (s *System) Swap() { s.swap() }

// PowerUp puts the frame buffer in its initial state.
func (s *System) PowerUp() {
	s.pages.PowerUp()
	s.blankReq.Force(false)
	s.blank = true
}

// ForceBlank reports whether the output was forced blank at the last video
// clock: when disabled, when no page was committed or on request of the
// producer.
func (s *System) ForceBlank() bool { return s.blank }

// TickDisplay runs one video clock and returns the system pixel at the
// beam. enabled is the enable input as seen in the video domain.
func (s *System) TickDisplay(b video.Beam, enabled bool) uint16 {
	s.blankReq.Tick()
	px := s.tickDisplay(b, enabled && !s.blankReq.Get())
	s.blank = !enabled || s.blankReq.Get() || s.commit.Get() < 0
	if s.blank {
		return 0
	}
	return px
}
