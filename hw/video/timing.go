// Package video implements the video timing generator. It runs in the video
// (pixel clock) domain and produces the beam position and blanking/sync
// signals every other part of the display pipeline is timed from.
package video

import (
	"fmt"

	"arcore/emu/log"
)

// TimingConfig describes the raster. Positions are in pixel clocks (H) and
// lines (V), counted from the first visible pixel/line.
type TimingConfig struct {
	HVisible   int `toml:"h_visible"`
	HSyncStart int `toml:"h_sync_start"`
	HSyncEnd   int `toml:"h_sync_end"`
	HTotal     int `toml:"h_total"`
	VVisible   int `toml:"v_visible"`
	VSyncStart int `toml:"v_sync_start"`
	VSyncEnd   int `toml:"v_sync_end"`
	VTotal     int `toml:"v_total"`
	PixelClock int `toml:"pixel_clock"` // Hz
}

// DefaultTiming is a 320x240 raster close to 15.6kHz/55Hz.
func DefaultTiming() TimingConfig {
	return TimingConfig{
		HVisible:   320,
		HSyncStart: 336,
		HSyncEnd:   368,
		HTotal:     416,
		VVisible:   240,
		VSyncStart: 248,
		VSyncEnd:   251,
		VTotal:     274,
		PixelClock: 6_250_000,
	}
}

// Check verifies the timing consistency.
func (c TimingConfig) Check() error {
	if c.HVisible <= 0 || c.VVisible <= 0 {
		return fmt.Errorf("empty visible area %dx%d", c.HVisible, c.VVisible)
	}
	if !(c.HVisible <= c.HSyncStart && c.HSyncStart < c.HSyncEnd && c.HSyncEnd <= c.HTotal) {
		return fmt.Errorf("invalid horizontal timing %+v", c)
	}
	if !(c.VVisible <= c.VSyncStart && c.VSyncStart < c.VSyncEnd && c.VSyncEnd <= c.VTotal) {
		return fmt.Errorf("invalid vertical timing %+v", c)
	}
	if c.PixelClock <= 0 {
		return fmt.Errorf("invalid pixel clock %d", c.PixelClock)
	}
	return nil
}

// FrameRate returns the refresh rate in Hz.
func (c TimingConfig) FrameRate() float64 {
	return float64(c.PixelClock) / float64(c.HTotal*c.VTotal)
}

// Beam is the timing reference for one pixel clock.
type Beam struct {
	H, V   int
	HBlank bool
	VBlank bool
	HSync  bool
	VSync  bool

	NewLine  bool // first pixel of a line
	NewFrame bool // first pixel of a frame

	Rotated bool // display rotation option
}

// Visible reports whether the beam is in the active display area.
func (b Beam) Visible() bool { return !b.HBlank && !b.VBlank }

// Timing is the video timing generator.
type Timing struct {
	cfg TimingConfig

	h, v    int
	frame   uint64
	rotated bool
}

// NewTiming returns a generator for cfg. It panics if cfg is invalid.
func NewTiming(cfg TimingConfig) *Timing {
	if err := cfg.Check(); err != nil {
		panic(err)
	}
	return &Timing{cfg: cfg}
}

func (t *Timing) Config() TimingConfig { return t.cfg }

// Frame returns the number of frames started.
func (t *Timing) Frame() uint64 { return t.frame }

// Reset moves the beam to the top-left corner.
func (t *Timing) Reset() {
	t.h, t.v = 0, 0
}

// SetRotated sets the display rotation option, sampled in the video domain.
func (t *Timing) SetRotated(rot bool) {
	if rot != t.rotated {
		log.ModVideo.InfoZ("rotation changed").Bool("rotated", rot).End()
	}
	t.rotated = rot
}

// Tick returns the beam for the current pixel clock and advances it.
func (t *Timing) Tick() Beam {
	c := &t.cfg
	b := Beam{
		H:        t.h,
		V:        t.v,
		HBlank:   t.h >= c.HVisible,
		VBlank:   t.v >= c.VVisible,
		HSync:    t.h >= c.HSyncStart && t.h < c.HSyncEnd,
		VSync:    t.v >= c.VSyncStart && t.v < c.VSyncEnd,
		NewLine:  t.h == 0,
		NewFrame: t.h == 0 && t.v == 0,
		Rotated:  t.rotated,
	}
	if b.NewFrame {
		t.frame++
	}

	t.h++
	if t.h == c.HTotal {
		t.h = 0
		t.v++
		if t.v == c.VTotal {
			t.v = 0
		}
	}
	return b
}
