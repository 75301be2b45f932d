package fbuf

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"arcore/hw/loader"
	"arcore/hw/memsys"
	"arcore/hw/video"
)

const (
	testW = 8
	testH = 4
)

type rig struct {
	t   *testing.T
	mem *memsys.Subsystem
	tm  *video.Timing
	spr *Sprite
	sys *System

	enabled bool // enable input, identical in both domains
	beam    video.Beam
	sprPx   uint16
	sysPx   uint16
}

func newRig(t *testing.T) *rig {
	t.Helper()

	cfg := Config{Width: testW, Height: testH, Burst: 4}
	layout := memsys.Layout{
		DDRSize:   0x100,
		SDRAMSize: 0x1000,
		Regions: []memsys.Region{
			{Name: memsys.RegionSpriteFB, Backend: memsys.SDRAM, Base: 0x000, Size: cfg.RegionSize()},
			{Name: memsys.RegionSystemFB, Backend: memsys.SDRAM, Base: 0x200, Size: cfg.RegionSize()},
		},
	}
	sdram := memsys.SDRAMConfig(layout.SDRAMSize)
	sdram.InitClocks = 2
	sdram.RefreshEvery = 50
	mem, err := memsys.New(layout, memsys.NewDDR(layout.DDRSize), memsys.NewBurst(sdram))
	if err != nil {
		t.Fatal(err)
	}

	r := &rig{
		t:   t,
		mem: mem,
		tm: video.NewTiming(video.TimingConfig{
			HVisible: testW, HSyncStart: 40, HSyncEnd: 48, HTotal: 64,
			VVisible: testW, VSyncStart: 9, VSyncEnd: 10, VTotal: 12,
			PixelClock: 1_000_000,
		}),
		spr: NewSprite(cfg),
		sys: NewSystem(cfg),
	}
	r.setEnabled(true)
	mem.Attach("sprite.prod", memsys.RegionSpriteFB, r.spr.ProducerPort())
	mem.Attach("sprite.disp", memsys.RegionSpriteFB, r.spr.DisplayPort())
	mem.Attach("system.prod", memsys.RegionSystemFB, r.sys.ProducerPort())
	mem.Attach("system.disp", memsys.RegionSystemFB, r.sys.DisplayPort())
	return r
}

// tick runs all domains for one clock, in machine order.
func (r *rig) tick() {
	r.mem.Tick(loader.Edges{})

	r.spr.TickProducer()
	r.sys.TickProducer()

	r.beam = r.tm.Tick()
	r.sprPx = r.spr.TickDisplay(r.beam)
	r.sysPx = r.sys.TickDisplay(r.beam, r.enabled)
}

func (r *rig) setEnabled(en bool) {
	r.enabled = en
	r.spr.SetEnabled(en)
}

func (r *rig) run(n int) {
	for range n {
		r.tick()
	}
}

// settle waits for all producer writes and swaps to complete.
func (r *rig) settle() {
	r.t.Helper()
	for range 10000 {
		r.tick()
		if r.spr.Pending() == 0 && !r.spr.SwapPending() && r.sys.Pending() == 0 && !r.sys.SwapPending() {
			return
		}
	}
	r.t.Fatalf("producers did not settle")
}

// frame returns the visible pixels of a whole frame, starting after the
// next complete frame so that every domain has seen the current inputs.
func (r *rig) frame(system bool) [][]uint16 {
	r.t.Helper()

	frames := 0
	for frames < 2 {
		r.tick()
		if r.beam.NewFrame {
			frames++
		}
	}
	tc := r.tm.Config()
	img := make([][]uint16, tc.VVisible)
	for y := range img {
		img[y] = make([]uint16, tc.HVisible)
	}
	for {
		if r.beam.Visible() {
			px := r.sprPx
			if system {
				px = r.sysPx
			}
			img[r.beam.V][r.beam.H] = px
		}
		r.tick()
		if r.beam.NewFrame {
			return img
		}
	}
}

func uniform(c uint16, rows int) [][]uint16 {
	img := make([][]uint16, testW)
	for y := range img {
		img[y] = make([]uint16, testW)
		if y < rows {
			for x := range img[y] {
				img[y][x] = c
			}
		}
	}
	return img
}

func fillPage(fb interface{ Fill(x, y, n int, c uint16) }, c uint16) {
	for y := range testH {
		fb.Fill(0, y, testW, c)
	}
}

func TestSpriteSwapIgnoredWhileDisabled(t *testing.T) {
	r := newRig(t)
	r.setEnabled(false)

	fillPage(r.spr, 0x1234)
	r.spr.Swap()
	r.settle()

	if got := r.spr.Committed(); got != -1 {
		t.Errorf("Committed() = %d, want -1", got)
	}
	if st := r.spr.Stats(); st.Swaps != 0 || st.Dropped != 1 {
		t.Errorf("stats = %+v, want 0 swaps 1 dropped", st)
	}
	if diff := cmp.Diff(uniform(0, 0), r.frame(false)); diff != "" {
		t.Errorf("disabled sprite buffer not blank (-want +got):\n%s", diff)
	}

	// Same sequence once enabled.
	r.setEnabled(true)
	r.run(10)
	fillPage(r.spr, 0x1234)
	r.spr.Swap()
	r.settle()

	if got := r.spr.Committed(); got != 0 {
		t.Errorf("Committed() = %d, want 0", got)
	}
	if diff := cmp.Diff(uniform(0x1234, testH), r.frame(false)); diff != "" {
		t.Errorf("sprite frame mismatch (-want +got):\n%s", diff)
	}
}

func TestSpriteHoldsLastCommittedPage(t *testing.T) {
	r := newRig(t)

	fillPage(r.spr, 0x00AA)
	r.spr.Swap()
	r.settle()

	r.setEnabled(false)
	r.run(10)
	fillPage(r.spr, 0x00BB)
	r.spr.Swap()
	r.settle()

	if diff := cmp.Diff(uniform(0x00AA, testH), r.frame(false)); diff != "" {
		t.Errorf("disabled sprite buffer doesn't hold the last committed page (-want +got):\n%s", diff)
	}

	r.setEnabled(true)
	if diff := cmp.Diff(uniform(0x00AA, testH), r.frame(false)); diff != "" {
		t.Errorf("sprite buffer doesn't show the last committed page (-want +got):\n%s", diff)
	}
	if st := r.spr.Stats(); st.Swaps != 1 || st.Dropped != 1 {
		t.Errorf("stats = %+v, want 1 swap 1 dropped", st)
	}
}

func TestSwapWaitsForWrites(t *testing.T) {
	r := newRig(t)

	fillPage(r.sys, 0x0F0F)
	r.sys.Swap()
	for r.sys.Pending() > 0 {
		if got := r.sys.Committed(); got != -1 {
			t.Fatalf("page %d committed with %d writes pending", got, r.sys.Pending())
		}
		r.tick()
	}
	r.settle()
	if got := r.sys.Committed(); got != 0 {
		t.Fatalf("Committed() = %d, want 0", got)
	}

	// Next frame is drawn in the other page.
	fillPage(r.sys, 0x0A0A)
	r.sys.Swap()
	r.settle()
	if got := r.sys.Committed(); got != 1 {
		t.Fatalf("Committed() = %d, want 1", got)
	}
	if diff := cmp.Diff(uniform(0x0A0A, testH), r.frame(true)); diff != "" {
		t.Errorf("system frame mismatch (-want +got):\n%s", diff)
	}
}

func TestSystemForceBlank(t *testing.T) {
	r := newRig(t)

	// Nothing committed yet.
	r.run(10)
	if !r.sys.ForceBlank() {
		t.Errorf("ForceBlank() = false before the first frame")
	}

	fillPage(r.sys, 0x7777)
	r.sys.Swap()
	r.settle()
	r.run(10)
	if r.sys.ForceBlank() {
		t.Errorf("ForceBlank() = true with a committed frame")
	}
	if diff := cmp.Diff(uniform(0x7777, testH), r.frame(true)); diff != "" {
		t.Errorf("system frame mismatch (-want +got):\n%s", diff)
	}

	// Requested by the producer.
	r.sys.SetForceBlank(true)
	r.run(10)
	if !r.sys.ForceBlank() {
		t.Errorf("ForceBlank() = false on producer request")
	}
	if diff := cmp.Diff(uniform(0, 0), r.frame(true)); diff != "" {
		t.Errorf("system frame not blank (-want +got):\n%s", diff)
	}
	r.sys.SetForceBlank(false)

	// Disabled.
	r.setEnabled(false)
	r.run(10)
	if !r.sys.ForceBlank() {
		t.Errorf("ForceBlank() = false while disabled")
	}
	if diff := cmp.Diff(uniform(0, 0), r.frame(true)); diff != "" {
		t.Errorf("system frame not blank (-want +got):\n%s", diff)
	}
}

func TestBlankFrameDropsLineFetch(t *testing.T) {
	r := newRig(t)
	fillPage(r.sys, 0x4321)
	r.sys.Swap()
	r.settle()
	r.frame(true)

	// Get to the last visible line with a fetch still in progress.
	last := r.tm.Config().VVisible - 1
	for !(r.beam.NewLine && r.beam.V == last) {
		r.tick()
	}
	r.setEnabled(false)
	r.sys.startFetch(2)

	for r.sys.showing >= 0 {
		r.tick()
	}
	if r.sys.fetching || len(r.sys.inflight) != 0 {
		t.Fatalf("fetching=%t with %d reads in flight after a blank frame started", r.sys.fetching, len(r.sys.inflight))
	}

	issued, _ := r.sys.DisplayPort().Stats()
	r.frame(true)
	if got, _ := r.sys.DisplayPort().Stats(); got != issued {
		t.Errorf("%d display reads issued during a blank frame", got-issued)
	}
}

func TestSystemRotation(t *testing.T) {
	r := newRig(t)

	for y := range testH {
		for x := range testW {
			r.sys.Plot(x, y, uint16(y<<8|x))
		}
	}
	r.sys.Swap()
	r.settle()

	want := make([][]uint16, testW)
	for v := range want {
		want[v] = make([]uint16, testW)
		for h := range testH {
			want[v][h] = uint16(h<<8 | v)
		}
	}

	r.tm.SetRotated(true)
	if diff := cmp.Diff(want, r.frame(true)); diff != "" {
		t.Errorf("rotated frame mismatch (-want +got):\n%s", diff)
	}
	if st := r.sys.Stats(); st.Late != 0 {
		t.Errorf("%d late line fetches", st.Late)
	}
}
