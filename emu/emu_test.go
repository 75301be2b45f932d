package emu

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-audio/wav"
	"github.com/go-faster/jx"
	"github.com/google/go-cmp/cmp"

	"arcore/hw"
	"arcore/hw/clock"
	"arcore/hw/memsys"
	"arcore/hw/video"
	"arcore/romset"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Clocks = hw.Clocks{Sys: 8_000_000, CPU: 4_000_000}
	cfg.Video.Timing = video.TimingConfig{
		HVisible: 8, HSyncStart: 40, HSyncEnd: 48, HTotal: 64,
		VVisible: 8, VSyncStart: 9, VSyncEnd: 10, VTotal: 12,
		PixelClock: 1_000_000,
	}
	cfg.Video.Burst = 4
	cfg.Memory = memsys.Layout{
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
	cfg.Loader = LoaderConfig{Spacing: 1, Gap: 2}
	cfg.Cores = CoresConfig{
		CPU:        "painter",
		Sound:      "pcm",
		Compositor: "overlay",
		TileSize:   4,
		SpriteSize: 2,
		PCMDivider: 4,
		PCMBlock:   0x10,
	}
	return cfg
}

func seq(n int, start byte) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = start + byte(i)
	}
	return buf
}

func testRomSet() *romset.RomSet {
	game := uint8(2)
	return &romset.RomSet{
		Name: "test",
		Game: &game,
		Parts: []romset.Part{
			romset.NewPart(memsys.RegionProgramROM, 0, seq(0x100, 0)),
			romset.NewPart(memsys.RegionSoundROM, 0, seq(0x40, 0)),
			romset.NewPart(memsys.RegionTile0, 0, seq(0x20, 0x40)),
			romset.NewPart(memsys.RegionSpriteROM, 0, seq(0x40, 0xA0)),
			romset.NewPart(memsys.RegionNVRAM, 0, []byte{0x10, 0}),
		},
	}
}

func TestLaunchAndRun(t *testing.T) {
	e, err := Launch(testRomSet(), testConfig())
	if err != nil {
		t.Fatal(err)
	}

	wavPath := filepath.Join(t.TempDir(), "out.wav")
	f, err := os.Create(wavPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.RecordAudio(f); err != nil {
		t.Fatal(err)
	}

	if !e.WaitReady(5 * clock.Millisecond) {
		t.Fatalf("machine not started")
	}
	e.Run(8)

	st := e.Status()
	if st.Stats.Frames < 8 {
		t.Errorf("frames = %d, want at least 8", st.Stats.Frames)
	}
	if got := st.Stats.Game; got.Index != 2 || !got.Latched {
		t.Errorf("game config = %+v, want index 2 latched", got)
	}
	if st.Stats.System.Swaps != 1 || st.Stats.Sprite.Swaps == 0 {
		t.Errorf("system swaps = %d, sprite swaps = %d", st.Stats.System.Swaps, st.Stats.Sprite.Swaps)
	}
	if got := e.Machine.Memory().RegionBytes(memsys.RegionNVRAM)[:2]; !cmp.Equal(got, []byte{0x11, 0}) {
		t.Errorf("NVRAM boot count = %v, want [0x11 0]", got)
	}

	frame := e.Frame()
	if frame == nil || frame.Bounds() != image.Rect(0, 0, 16, 16) {
		t.Fatalf("unexpected frame %v", frame)
	}

	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	st = e.Status()
	if st.AudioSamples == 0 || st.AudioPeak == 0 {
		t.Errorf("audio samples = %d, peak = %d", st.AudioSamples, st.AudioPeak)
	}

	rf, err := os.Open(wavPath)
	if err != nil {
		t.Fatal(err)
	}
	defer rf.Close()
	dec := wav.NewDecoder(rf)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatal(err)
	}
	if dec.SampleRate != 48000 || dec.NumChans != 1 {
		t.Errorf("wav format: %d Hz, %d channels", dec.SampleRate, dec.NumChans)
	}
	if uint64(len(buf.Data)) != st.AudioSamples {
		t.Errorf("wav holds %d samples, want %d", len(buf.Data), st.AudioSamples)
	}
}

func TestPowerCycleDownloadsAgain(t *testing.T) {
	cfg := testConfig()
	cfg.Audio.Disable = true
	e, err := Launch(testRomSet(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !e.WaitReady(5 * clock.Millisecond) {
		t.Fatalf("machine not started")
	}
	e.Run(2)

	e.Restart()
	e.handleReset()
	if e.Machine.Ready() {
		t.Fatalf("machine ready right after power cycle")
	}
	if !e.WaitReady(5 * clock.Millisecond) {
		t.Fatalf("machine not restarted")
	}
	// NVRAM content is downloaded again, then incremented by the boot.
	e.Run(2)
	if got := e.Machine.Memory().RegionBytes(memsys.RegionNVRAM)[:2]; !cmp.Equal(got, []byte{0x11, 0}) {
		t.Errorf("NVRAM boot count = %v, want [0x11 0]", got)
	}
}

func TestRunStops(t *testing.T) {
	cfg := testConfig()
	cfg.Audio.Disable = true
	e, err := Launch(testRomSet(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	e.Stop()
	e.Run(0)
	if got := e.Machine.Screen().Frames(); got != 0 {
		t.Errorf("ran %d frames after Stop", got)
	}
}

func TestLaunchErrors(t *testing.T) {
	cfg := testConfig()
	cfg.Cores.CPU = "z80"
	if _, err := Launch(testRomSet(), cfg); err == nil || !strings.Contains(err.Error(), "z80") {
		t.Errorf("got error %v, want unknown cpu core", err)
	}

	rs := testRomSet()
	rs.Parts = append(rs.Parts, romset.NewPart("nowhere", 0, []byte{1}))
	if _, err := Launch(rs, testConfig()); err == nil {
		t.Errorf("want error for a part outside of the layout")
	}
}

func TestLaunchWrapsPowerUpError(t *testing.T) {
	cfg := testConfig()
	for i, r := range cfg.Memory.Regions {
		if r.Name == memsys.RegionSpriteFB {
			// Too small for two 8x8 pages.
			cfg.Memory.Regions[i].Size = 0x80
		}
	}
	_, err := Launch(testRomSet(), cfg)
	if err == nil || !strings.HasPrefix(err.Error(), "power up failed") {
		t.Fatalf("got error %v, want power up failure", err)
	}
	if errors.Unwrap(err) == nil {
		t.Errorf("power up error %q doesn't wrap its cause", err)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	const desc = `
[audio]
sample_rate = 22050

[options]
fallback_game = 3

[[variants]]
index = 3
name = "three"
flags = 0x21
`
	if err := os.WriteFile(path, []byte(desc), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := LoadConfigOrDefault(path)
	if err != nil {
		t.Fatal(err)
	}

	want := DefaultConfig()
	want.Audio.SampleRate = 22050
	want.Options.FallbackGame = 3
	want.Variants = got.Variants
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	if len(got.Variants) != 1 || got.Variants[0].Flags != 0x21 {
		t.Errorf("variants = %+v", got.Variants)
	}

	// Saved then reloaded.
	out := filepath.Join(dir, "saved.toml")
	if err := SaveConfig(got, out); err != nil {
		t.Fatal(err)
	}
	again, err := LoadConfigOrDefault(out)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(got, again); diff != "" {
		t.Errorf("saved config mismatch (-want +got):\n%s", diff)
	}

	if _, err := LoadConfigOrDefault(filepath.Join(dir, "missing.toml")); err == nil {
		t.Errorf("want error for a missing explicit config")
	}
}

func TestConfigCheck(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Video.Scale = 0
	cfg.Audio.SampleRate = 0
	if err := cfg.Check(); err != nil {
		t.Fatal(err)
	}
	if cfg.Video.Scale != 1 || !cfg.Audio.Disable {
		t.Errorf("scale = %d, audio disabled = %t", cfg.Video.Scale, cfg.Audio.Disable)
	}

	cfg.Video.Timing.HTotal = 10
	if err := cfg.Check(); err == nil {
		t.Errorf("want error for invalid timing")
	}
}

func TestAudioResampling(t *testing.T) {
	const (
		clockRate  = 1_000_000
		sampleRate = 10_000
	)
	a, err := NewAudio(clockRate, sampleRate)
	if err != nil {
		t.Fatal(err)
	}

	// 0.1s of a 500Hz square wave.
	for i := range clockRate / 10 {
		s := int16(8000)
		if (i/1000)%2 == 1 {
			s = -8000
		}
		a.Sample(s)
	}
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}

	if got := a.Samples(); got < sampleRate/10-2 || got > sampleRate/10+2 {
		t.Errorf("Samples() = %d, want about %d", got, sampleRate/10)
	}
	if a.Peak() < 4000 {
		t.Errorf("Peak() = %d, want at least 4000", a.Peak())
	}

	if _, err := NewAudio(clockRate, 0); err == nil {
		t.Errorf("want error for a zero sample rate")
	}
}

func TestKeyboard(t *testing.T) {
	kb := &Keyboard{HoldFrames: 2, DIP: 0x5A, keys: make(chan byte, 16)}
	e := &Emulator{}

	for _, b := range []byte("d\x1b[A 5") {
		kb.keys <- b
	}

	want := hw.Inputs{
		P1:    1<<BtnRight | 1<<BtnUp | 1<<BtnFire,
		Coins: 1,
		DIP:   0x5A,
	}
	for i := range 2 {
		if got := kb.Poll(e); got != want {
			t.Errorf("frame %d: got %+v, want %+v", i, got, want)
		}
	}
	if got := kb.Poll(e); got != (hw.Inputs{DIP: 0x5A}) {
		t.Errorf("controls still held: %+v", got)
	}

	// Opposite directions cancel each other.
	kb.keys <- 'a'
	kb.keys <- 'd'
	if got := kb.Poll(e); got.P1 != 1<<BtnRight {
		t.Errorf("P1 = %#02x, want right only", got.P1)
	}

	kb.keys <- 'p'
	kb.Poll(e)
	if !e.Paused() {
		t.Errorf("not paused")
	}
	kb.keys <- 'q'
	kb.Poll(e)
	if !e.shouldStop() {
		t.Errorf("not stopped")
	}
}

func TestScreenshot(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 2, 2))
	red := color.RGBA{0xff, 0, 0, 0xff}
	src.SetRGBA(1, 0, red)

	img := Screenshot(src, 3, "")
	if img.Bounds() != image.Rect(0, 0, 6, 6) {
		t.Fatalf("bounds = %v", img.Bounds())
	}
	for y := range 6 {
		for x := range 6 {
			want := color.RGBA{}
			if x >= 3 && y < 3 {
				want = red
			}
			if got := img.RGBAAt(x, y); got != want {
				t.Errorf("pixel (%d,%d) = %v, want %v", x, y, got, want)
			}
		}
	}

	big := image.NewRGBA(image.Rect(0, 0, 64, 32))
	labeled := Screenshot(big, 1, "A")
	if bytes.Equal(labeled.Pix, big.Pix) {
		t.Errorf("label not drawn")
	}

	path := filepath.Join(t.TempDir(), "shot.png")
	if err := SaveAsPNG(img, path); err != nil {
		t.Fatal(err)
	}
}

func TestWriteStatus(t *testing.T) {
	st := Status{
		RomSet: "demo",
		Stats: hw.Stats{
			Frames: 12,
			Ready:  true,
			Memory: memsys.Stats{
				ClientOps: map[string]uint64{"tile0": 3, "cpu_rom": 5},
			},
		},
		AudioSamples: 100,
	}

	var buf bytes.Buffer
	if err := WriteStatus(&buf, st); err != nil {
		t.Fatal(err)
	}

	var (
		romset string
		frames uint64
		ready  bool
		ops    []string
	)
	err := jx.DecodeBytes(buf.Bytes()).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "romset":
			romset, err = d.Str()
		case "frames":
			frames, err = d.UInt64()
		case "ready":
			ready, err = d.Bool()
		case "memory":
			return d.Obj(func(d *jx.Decoder, key string) error {
				if key != "client_ops" {
					return d.Skip()
				}
				return d.Obj(func(d *jx.Decoder, key string) error {
					ops = append(ops, key)
					return d.Skip()
				})
			})
		default:
			return d.Skip()
		}
		return err
	})
	if err != nil {
		t.Fatalf("invalid status json: %v\n%s", err, buf.String())
	}

	if romset != "demo" || frames != 12 || !ready {
		t.Errorf("romset = %q, frames = %d, ready = %t", romset, frames, ready)
	}
	if diff := cmp.Diff([]string{"cpu_rom", "tile0"}, ops); diff != "" {
		t.Errorf("client ops keys mismatch (-want +got):\n%s", diff)
	}
}

func TestRemoteInputsAndLastStatus(t *testing.T) {
	cfg := testConfig()
	cfg.Audio.Disable = true
	e, err := Launch(testRomSet(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if got := e.LastStatus(); got.RomSet != "test" || got.Stats.Frames != 0 {
		t.Errorf("status after launch = %q with %d frames", got.RomSet, got.Stats.Frames)
	}
	if !e.WaitReady(5 * clock.Millisecond) {
		t.Fatalf("machine not started")
	}

	e.SetRemoteInputs(hw.Inputs{P1: 1})
	e.Run(3)
	if e.remote.Load() != nil {
		t.Errorf("remote inputs not consumed by the loop")
	}

	var frames uint64
	err = jx.DecodeBytes(e.StatusJSON()).Obj(func(d *jx.Decoder, key string) error {
		if key != "frames" {
			return d.Skip()
		}
		var err error
		frames, err = d.UInt64()
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if frames < 3 {
		t.Errorf("published status has %d frames, want at least 3", frames)
	}
}
