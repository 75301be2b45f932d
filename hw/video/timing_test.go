package video

import "testing"

func smallTiming() TimingConfig {
	return TimingConfig{
		HVisible: 4, HSyncStart: 5, HSyncEnd: 6, HTotal: 8,
		VVisible: 3, VSyncStart: 3, VSyncEnd: 4, VTotal: 5,
		PixelClock: 1_000_000,
	}
}

func TestTimingFrame(t *testing.T) {
	tm := NewTiming(smallTiming())

	var visible, hsync, vsync, lines, frames int
	for range 8 * 5 {
		b := tm.Tick()
		if b.Visible() {
			visible++
		}
		if b.HSync {
			hsync++
		}
		if b.VSync {
			vsync++
		}
		if b.NewLine {
			lines++
		}
		if b.NewFrame {
			frames++
		}
	}

	if visible != 4*3 {
		t.Errorf("visible pixels = %d, want 12", visible)
	}
	if hsync != 5 {
		t.Errorf("hsync pixels = %d, want 5", hsync)
	}
	if vsync != 8 {
		t.Errorf("vsync pixels = %d, want 8", vsync)
	}
	if lines != 5 || frames != 1 {
		t.Errorf("lines = %d, frames = %d, want 5, 1", lines, frames)
	}

	// Back to the origin.
	if b := tm.Tick(); !b.NewFrame || b.H != 0 || b.V != 0 {
		t.Errorf("beam = %+v, want new frame at 0,0", b)
	}
	if tm.Frame() != 2 {
		t.Errorf("Frame() = %d, want 2", tm.Frame())
	}
}

func TestTimingRotation(t *testing.T) {
	tm := NewTiming(smallTiming())
	if tm.Tick().Rotated {
		t.Fatalf("rotated by default")
	}
	tm.SetRotated(true)
	if !tm.Tick().Rotated {
		t.Fatalf("rotation option not reported in the beam")
	}
}

func TestTimingCheck(t *testing.T) {
	if err := DefaultTiming().Check(); err != nil {
		t.Fatalf("default timing: %v", err)
	}
	bad := smallTiming()
	bad.HSyncEnd = 9
	if err := bad.Check(); err == nil {
		t.Errorf("Check() = nil for hsync past htotal")
	}
	if rate := DefaultTiming().FrameRate(); rate < 50 || rate > 60 {
		t.Errorf("FrameRate() = %f, want between 50 and 60", rate)
	}
}
