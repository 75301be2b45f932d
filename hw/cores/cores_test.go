package cores

import (
	"encoding/binary"
	"image"
	"testing"

	"github.com/google/go-cmp/cmp"

	"arcore/hw"
	"arcore/hw/clock"
	"arcore/hw/fbuf"
	"arcore/hw/loader"
	"arcore/hw/memsys"
	"arcore/hw/video"
)

func TestRGB565(t *testing.T) {
	tests := []struct {
		c    uint16
		want uint32
	}{
		{0x0000, 0x000000},
		{0xFFFF, 0xFFFFFF},
		{0xF800, 0xFF0000},
		{0x07E0, 0x00FF00},
		{0x001F, 0x0000FF},
		{0x8410, 0x848284},
	}
	for _, tt := range tests {
		if got := RGB565(tt.c); got != tt.want {
			t.Errorf("RGB565(%04x) = %06x, want %06x", tt.c, got, tt.want)
		}
	}
}

func TestOverlay(t *testing.T) {
	var o Overlay
	if got := o.Pixel(video.Beam{}, 0xF800, 0); got != 0xFF0000 {
		t.Errorf("system pixel = %06x, want ff0000", got)
	}
	if got := o.Pixel(video.Beam{}, 0xF800, 0x001F); got != 0x0000FF {
		t.Errorf("sprite over system = %06x, want 0000ff", got)
	}
}

// serve answers the read requests on port from rom, one per call.
func serve(port *memsys.Port, rom []byte) {
	port.TickDst()
	req, ok := port.Accept()
	if !ok {
		return
	}
	data := make([]uint16, max(req.Len, 1))
	for i := range data {
		off := (int(req.Addr) + 2*i) % len(rom)
		data[i] = binary.LittleEndian.Uint16(rom[off:])
	}
	port.Respond(memsys.Response{Addr: req.Addr, Data: data})
}

func TestPCM(t *testing.T) {
	rom := make([]byte, 0x40)
	copy(rom[0x10:], []byte{0x01, 0x7F, 0xFF, 0x81, PCMEnd, 0x55})

	bus := &hw.SoundBus{ROM: &memsys.Client{Port: memsys.NewPort("sound", 1, false)}}
	pcm := &PCM{Divider: 2, BlockSize: 0x10}
	pcm.Reset()

	var got []int16
	tick := func() {
		serve(bus.ROM.Port, rom)
		bus.ROM.Tick()
		s := pcm.Tick(bus)
		bus.Strobe = false
		if len(got) == 0 || got[len(got)-1] != s {
			got = append(got, s)
		}
	}

	for range 10 {
		tick()
	}
	if diff := cmp.Diff([]int16{0}, got); diff != "" {
		t.Fatalf("output without command (-want +got):\n%s", diff)
	}

	bus.Cmd, bus.Strobe = 1, true
	for range 100 {
		tick()
	}
	want := []int16{0, 0x0100, 0x7F00, -0x0100, -0x7F00, 0}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("pcm output mismatch (-want +got):\n%s", diff)
	}
	if pcm.Played() != 4 {
		t.Errorf("Played() = %d, want 4", pcm.Played())
	}
}

func testMachineConfig() hw.Config {
	layout := memsys.Layout{
		DDRSize:   0x1000,
		SDRAMSize: 0x1000,
		Regions: []memsys.Region{
			{Name: memsys.RegionProgramROM, Backend: memsys.DDR, Base: 0x000, Size: 0x100, Load: "rom"},
			{Name: memsys.RegionSoundROM, Backend: memsys.DDR, Base: 0x100, Size: 0x40, Load: "rom"},
			{Name: memsys.RegionTile0, Backend: memsys.DDR, Base: 0x200, Size: 0x20, Load: "rom"},
			{Name: memsys.RegionTile1, Backend: memsys.DDR, Base: 0x220, Size: 0x20, Load: "rom"},
			{Name: memsys.RegionTile2, Backend: memsys.DDR, Base: 0x240, Size: 0x20, Load: "rom"},
			{Name: memsys.RegionSpriteROM, Backend: memsys.DDR, Base: 0x300, Size: 0x40, Load: "rom"},
			{Name: memsys.RegionNVRAM, Backend: memsys.SDRAM, Base: 0x000, Size: 0x40, Load: "nvram"},
			{Name: memsys.RegionSpriteFB, Backend: memsys.SDRAM, Base: 0x100, Size: 0x100, Clear: true},
			{Name: memsys.RegionSystemFB, Backend: memsys.SDRAM, Base: 0x200, Size: 0x100, Clear: true},
		},
	}
	ddr := memsys.DDRConfig(layout.DDRSize)
	ddr.InitClocks = 4
	sdram := memsys.SDRAMConfig(layout.SDRAMSize)
	sdram.InitClocks = 2
	sdram.RefreshEvery = 50

	return hw.Config{
		Clocks: hw.Clocks{Sys: 8_000_000, CPU: 4_000_000},
		Timing: video.TimingConfig{
			HVisible: 8, HSyncStart: 40, HSyncEnd: 48, HTotal: 64,
			VVisible: 8, VSyncStart: 9, VSyncEnd: 10, VTotal: 12,
			PixelClock: 1_000_000,
		},
		Layout:     layout,
		Frame:      fbuf.Config{Width: 8, Height: 8, Burst: 4},
		DDR:        ddr,
		SDRAM:      sdram,
		CPU:        &Painter{TileSize: 4, SpriteSize: 2},
		Sound:      &PCM{Divider: 4, BlockSize: 0x10},
		Compositor: Overlay{},
	}
}

func TestPainterOnMachine(t *testing.T) {
	cfg := testMachineConfig()
	painter := cfg.CPU.(*Painter)
	m, err := hw.New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	var sound bool
	m.OnSample(func(s int16) { sound = sound || s != 0 })

	rom := make([]byte, 0x1E0)
	for i := range rom {
		rom[i] = byte(i)
	}
	f := &loader.Feeder{Spacing: 1, Gap: 2}
	f.Queue(loader.Session{Index: loader.ROM, Data: rom})
	m.Feed(f)
	if !m.RunWhile(func() bool { return !m.Ready() || m.CPUInReset() }, 5*clock.Millisecond) {
		t.Fatalf("machine not started")
	}
	m.RunFrames(8)

	if painter.Boots() != 0 {
		t.Errorf("Boots() = %d, want 0", painter.Boots())
	}
	if got := m.Memory().RegionBytes(memsys.RegionNVRAM)[:2]; !cmp.Equal(got, []byte{1, 0}) {
		t.Errorf("NVRAM boot count = %v, want [1 0]", got)
	}
	if painter.Frames() < 4 {
		t.Errorf("painter saw %d frames, want at least 4", painter.Frames())
	}
	if !sound {
		t.Errorf("no audio output")
	}

	// Background: program ROM words, 2 tiles per row, 4 rows per tile.
	img := m.Screen().Last()
	bg := map[uint32]bool{
		RGB565(0x0100): true, RGB565(0x0302): true,
		RGB565(0x0504): true, RGB565(0x0706): true,
	}
	block := RGB565(0xA1A0) // sprite ROM word 0
	var nbg, nblock int
	for y := range 8 {
		for x := range 8 {
			c := rgbAt(img, x, y)
			switch {
			case c == block:
				nblock++
			case bg[c]:
				nbg++
			default:
				t.Errorf("unexpected color %06x at (%d,%d)", c, x, y)
			}
		}
	}
	if nblock != 4 || nbg != 60 {
		t.Errorf("%d block pixels, %d background pixels, want 4 and 60", nblock, nbg)
	}
	if st := m.Stats(); st.Sprite.Swaps < 4 || st.System.Swaps != 1 {
		t.Errorf("sprite swaps = %d, system swaps = %d", st.Sprite.Swaps, st.System.Swaps)
	}
}

func rgbAt(img *image.RGBA, x, y int) uint32 {
	off := img.PixOffset(x, y)
	return uint32(img.Pix[off])<<16 | uint32(img.Pix[off+1])<<8 | uint32(img.Pix[off+2])
}
