// Package hw composes the machine: the memory subsystem and loader in the
// system domain, the CPU and sound cores in the CPU domain, the video timing
// and frame buffer displays in the video domain. Domains only exchange data
// through the crossing primitives of package cdc.
package hw

import (
	"fmt"
	"image"

	"arcore/emu/log"
	"arcore/hw/cdc"
	"arcore/hw/clock"
	"arcore/hw/fbuf"
	"arcore/hw/gamecfg"
	"arcore/hw/hwio"
	"arcore/hw/loader"
	"arcore/hw/memsys"
	"arcore/hw/video"
)

// Clocks are the frequencies of the system and CPU domains, in Hz. The video
// domain runs at the pixel clock of the video timing.
type Clocks struct {
	Sys uint64 `toml:"sys"`
	CPU uint64 `toml:"cpu"`
}

// Options are the user options of the machine.
type Options struct {
	FallbackGame uint8 `toml:"fallback_game"` // game index used when the loader provides none
	Rotate       bool  `toml:"rotate"`        // rotated display
}

// Config describes the machine.
type Config struct {
	Clocks Clocks
	Timing video.TimingConfig
	Layout memsys.Layout
	Frame  fbuf.Config // page geometry of both frame buffers

	// Backend models, derived from the layout if zero.
	DDR, SDRAM memsys.BurstConfig

	Variants []gamecfg.Variant

	// Cores. A nil CPU or sound core does nothing, a nil compositor shows
	// the system frame buffer only.
	CPU        CPUCore
	Sound      SoundCore
	Compositor Compositor
}

// DefaultConfig returns the reference board configuration, without cores.
func DefaultConfig() Config {
	return Config{
		Clocks: Clocks{Sys: 96_000_000, CPU: 48_000_000},
		Timing: video.DefaultTiming(),
		Layout: memsys.DefaultLayout(),
		Frame:  fbuf.Config{Width: 320, Height: 240, Burst: 16},
	}
}

// Client port depths.
const (
	romDepth   = 2
	soundDepth = 2
)

// Machine is the whole machine.
type Machine struct {
	cfg Config

	sched *clock.Scheduler
	sysD  *clock.Domain
	cpuD  *clock.Domain
	vidD  *clock.Domain

	// Host inputs, sampled by the system domain.
	ldr      loader.Signals
	feeder   *loader.Feeder
	opts     Options
	extReset bool

	// System domain.
	obs      loader.Observer
	latch    *gamecfg.Latch
	mem      *memsys.Subsystem
	activity bool

	// Crossings.
	readyCPU   *cdc.Freeze[bool]
	readyVideo *cdc.Freeze[bool]
	resetCPU   *cdc.Freeze[bool]
	cfgCPU     *cdc.Freeze[gamecfg.Config]
	rotCPU     *cdc.Freeze[bool]
	rotVideo   *cdc.Freeze[bool]
	inputs     *cdc.Freeze[Inputs]
	vblankCPU  *cdc.Freeze[bool]

	// CPU domain.
	cpu       CPUCore
	snd       SoundCore
	regs      *gamecfg.Regs
	ctrl      *Control
	inputDev  *hwio.Device
	io        *hwio.Table
	bus       CPUBus
	sbus      SoundBus
	sound     soundLatch
	clients   []*memsys.Client
	inReset   bool
	cpuResets uint64
	sample    int16
	onSample  func(int16)

	// Video domain.
	timing *video.Timing
	spr    *fbuf.Sprite
	sys    *fbuf.System
	comp   Compositor
	out    VideoOut
	screen *Screen
}

// New builds a machine and powers it up.
func New(cfg Config) (*Machine, error) {
	if cfg.Clocks.Sys == 0 || cfg.Clocks.CPU == 0 {
		return nil, fmt.Errorf("invalid clocks %+v", cfg.Clocks)
	}
	if err := cfg.Timing.Check(); err != nil {
		return nil, fmt.Errorf("invalid video timing: %w", err)
	}
	if err := cfg.Frame.Check(); err != nil {
		return nil, fmt.Errorf("invalid frame buffer: %w", err)
	}
	for _, name := range []string{memsys.RegionSpriteFB, memsys.RegionSystemFB} {
		r, ok := cfg.Layout.Region(name)
		if !ok {
			return nil, fmt.Errorf("memory layout has no %s region", name)
		}
		if r.Size < cfg.Frame.RegionSize() {
			return nil, fmt.Errorf("region %s too small for 2 pages (%#x < %#x)", name, r.Size, cfg.Frame.RegionSize())
		}
	}
	if cfg.DDR.Size == 0 {
		cfg.DDR = memsys.DDRConfig(cfg.Layout.DDRSize)
	}
	if cfg.SDRAM.Size == 0 {
		cfg.SDRAM = memsys.SDRAMConfig(cfg.Layout.SDRAMSize)
	}
	mem, err := memsys.New(cfg.Layout, memsys.NewBurst(cfg.DDR), memsys.NewBurst(cfg.SDRAM))
	if err != nil {
		return nil, err
	}

	m := &Machine{
		cfg:    cfg,
		mem:    mem,
		cpu:    cfg.CPU,
		snd:    cfg.Sound,
		comp:   cfg.Compositor,
		timing: video.NewTiming(cfg.Timing),
		spr:    fbuf.NewSprite(cfg.Frame),
		sys:    fbuf.NewSystem(cfg.Frame),
		screen: newScreen(cfg.Timing.HVisible, cfg.Timing.VVisible),

		readyCPU:   cdc.NewFreeze("ready.cpu", false),
		readyVideo: cdc.NewFreeze("ready.video", false),
		resetCPU:   cdc.NewFreeze("reset.cpu", false),
		cfgCPU:     cdc.NewFreeze("gamecfg.cpu", gamecfg.Config{}),
		rotCPU:     cdc.NewFreeze("rotate.cpu", false),
		rotVideo:   cdc.NewFreeze("rotate.video", false),
		inputs:     cdc.NewFreeze("inputs.cpu", Inputs{}),
		vblankCPU:  cdc.NewFreeze("vblank.cpu", false),
	}
	if m.cpu == nil {
		m.cpu = idleCPU{}
	}
	if m.snd == nil {
		m.snd = silentSound{}
	}
	if m.comp == nil {
		m.comp = sysOnly{}
	}

	m.initBus()
	m.initMemory()

	m.sched = new(clock.Scheduler)
	m.sysD = m.sched.Add("sys", cfg.Clocks.Sys, m.stepSys)
	m.cpuD = m.sched.Add("cpu", cfg.Clocks.CPU, m.stepCPU)
	m.vidD = m.sched.Add("video", uint64(cfg.Timing.PixelClock), m.stepVideo)

	m.PowerCycle()
	return m, nil
}

func (m *Machine) initMemory() {
	client := func(name, region string, depth int) *memsys.Client {
		c := &memsys.Client{Port: memsys.NewPort(name, depth, true)}
		m.mem.Attach(name, region, c.Port)
		m.clients = append(m.clients, c)
		return c
	}

	m.bus = CPUBus{
		IO:        m.io,
		ROM:       client("cpu_rom", memsys.RegionProgramROM, romDepth),
		NVRAM:     client("nvram", memsys.RegionNVRAM, 1),
		SpriteROM: client("sprite_rom", memsys.RegionSpriteROM, 1),
		Sprite:    m.spr,
		System:    m.sys,
	}
	for i, r := range []string{memsys.RegionTile0, memsys.RegionTile1, memsys.RegionTile2} {
		m.bus.Tiles[i] = client(fmt.Sprintf("tile%d", i), r, 1)
	}
	m.sbus.ROM = client("sound_rom", memsys.RegionSoundROM, soundDepth)

	m.mem.Attach("sprite.prod", memsys.RegionSpriteFB, m.spr.ProducerPort())
	m.mem.Attach("sprite.disp", memsys.RegionSpriteFB, m.spr.DisplayPort())
	m.mem.Attach("system.prod", memsys.RegionSystemFB, m.sys.ProducerPort())
	m.mem.Attach("system.disp", memsys.RegionSystemFB, m.sys.DisplayPort())
}

// PowerCycle turns the machine off and on: readiness is lost, the game
// configuration latch is re-armed and the control registers get their reset
// values. Memory contents are kept, a new download is needed to become ready.
func (m *Machine) PowerCycle() {
	log.ModEmu.InfoZ("power cycle").End()

	m.ldr = loader.Signals{}
	m.feeder = nil
	m.extReset = false
	m.obs = loader.Observer{}
	m.latch = gamecfg.NewLatch(m.cfg.Variants)
	m.mem.PowerUp()
	m.activity = false
	hwio.ResetRegs(m.ctrl)

	m.readyCPU.Force(false)
	m.readyVideo.Force(false)
	m.resetCPU.Force(false)
	m.cfgCPU.Force(gamecfg.Config{})
	m.rotCPU.Force(m.opts.Rotate)
	m.rotVideo.Force(m.opts.Rotate)
	m.inputs.Force(m.inputs.Source())
	m.vblankCPU.Force(false)

	for _, c := range m.clients {
		c.Reset()
	}
	m.spr.PowerUp()
	m.sys.PowerUp()
	m.inReset = false
	m.enterReset()

	m.timing.Reset()
	m.out = VideoOut{}
	m.screen.reset()
}

// Loader sets the loader lines. They are held until changed, and sampled by
// every system clock.
func (m *Machine) Loader(s loader.Signals) { m.ldr = s }

// Feed plays the sessions queued in f on the loader lines, one step per
// system clock. The lines go back to those set with Loader once f is done.
func (m *Machine) Feed(f *loader.Feeder) { m.feeder = f }

// Feeding reports whether a Feeder is still playing.
func (m *Machine) Feeding() bool { return m.feeder != nil }

// SetOptions sets the user options.
func (m *Machine) SetOptions(opts Options) { m.opts = opts }

// Options returns the user options.
func (m *Machine) Options() Options { return m.opts }

// SetInputs sets the state of the player controls.
func (m *Machine) SetInputs(in Inputs) { m.inputs.Set(in) }

// SetReset sets the external reset.
func (m *Machine) SetReset(reset bool) {
	if reset != m.extReset {
		log.ModEmu.InfoZ("external reset").Bool("asserted", reset).End()
	}
	m.extReset = reset
}

// OnFrame registers a function called with each complete frame. The image
// is reused by the machine after the next frame.
func (m *Machine) OnFrame(fn func(*image.RGBA)) { m.screen.onFrame = fn }

// OnSample registers a function called with the audio sample of each CPU
// clock.
func (m *Machine) OnSample(fn func(int16)) { m.onSample = fn }

// Scheduler returns the scheduler driving the clock domains.
func (m *Machine) Scheduler() *clock.Scheduler { return m.sched }

// Config returns the machine configuration.
func (m *Machine) Config() Config { return m.cfg }

// Step runs the domains having an edge at the next instant.
func (m *Machine) Step() clock.Time { return m.sched.Step() }

// RunFor runs the machine for dur.
func (m *Machine) RunFor(dur clock.Time) { m.sched.RunFor(dur) }

// RunWhile runs the machine as long as cond is true, and at most for limit.
// It reports whether cond became false.
func (m *Machine) RunWhile(cond func() bool, limit clock.Time) bool {
	return m.sched.RunWhile(cond, limit)
}

// RunFrames runs the machine until n more frames are complete.
func (m *Machine) RunFrames(n int) {
	end := m.screen.Frames() + uint64(n)
	frame := clock.Time(m.cfg.Timing.HTotal*m.cfg.Timing.VTotal) * m.vidD.Period
	m.sched.RunWhile(func() bool { return m.screen.Frames() < end }, clock.Time(n+1)*frame)
}

// Outputs.

// Video returns the video output of the last video clock.
func (m *Machine) Video() VideoOut { return m.out }

// Audio returns the audio output of the last CPU clock.
func (m *Machine) Audio() int16 { return m.sample }

// Screen returns the frames of the video output.
func (m *Machine) Screen() *Screen { return m.screen }

// Ready reports memory readiness, in the system domain.
func (m *Machine) Ready() bool { return m.mem.Ready() }

// CPUInReset reports whether the CPU domain is held in reset.
func (m *Machine) CPUInReset() bool { return m.inReset }

// GameConfig returns the state of the game configuration latch.
func (m *Machine) GameConfig() gamecfg.Config { return m.latch.Config() }

// Variant returns the board variant selected by the latch.
func (m *Machine) Variant() gamecfg.Variant { return m.latch.Variant() }

// Memory gives access to the memory subsystem (host and debug only).
func (m *Machine) Memory() *memsys.Subsystem { return m.mem }

// Domain steps.

func (m *Machine) stepSys() {
	s := m.ldr
	if m.feeder != nil {
		s = m.feeder.Next()
		if m.feeder.Done() {
			m.feeder = nil
		}
	}
	e := m.obs.Tick(s)
	m.latch.Tick(e, m.opts.FallbackGame)

	m.mem.SetReset(m.extReset)
	m.mem.Tick(e)
	m.activity = m.obs.Active()

	ready := m.mem.Ready()
	m.readyCPU.Set(ready)
	m.readyVideo.Set(ready)
	m.resetCPU.Set(m.extReset)
	m.cfgCPU.Set(m.latch.Config())
	m.rotCPU.Set(m.opts.Rotate)
	m.rotVideo.Set(m.opts.Rotate)
}

func (m *Machine) stepCPU() {
	m.readyCPU.Tick()
	m.resetCPU.Tick()
	m.cfgCPU.Tick()
	m.rotCPU.Tick()
	m.inputs.Tick()
	m.vblankCPU.Tick()

	for _, c := range m.clients {
		c.Tick()
	}

	ready := m.readyCPU.Get()
	m.spr.SetEnabled(ready)
	reset := m.resetCPU.Get() || !ready
	switch {
	case reset && !m.inReset:
		m.enterReset()
	case !reset && m.inReset:
		m.inReset = false
		log.ModCPU.InfoZ("reset released").End()
	}

	if !m.inReset {
		m.regs.Load(m.cfgCPU.Get(), m.rotCPU.Get())
		m.cpu.Tick(&m.bus)

		m.sbus.Cmd, m.sbus.Strobe = m.sound.cmd, m.sound.strobe
		m.sound.strobe = false
		m.sample = m.snd.Tick(&m.sbus)
	}
	m.spr.TickProducer()
	m.sys.TickProducer()

	if m.onSample != nil {
		m.onSample(m.sample)
	}
}

func (m *Machine) enterReset() {
	if !m.inReset {
		log.ModCPU.InfoZ("reset asserted").End()
	}
	m.inReset = true
	m.cpuResets++

	for _, c := range m.clients {
		c.Reset()
	}
	m.spr.ResetProducer()
	m.sys.ResetProducer()
	m.ctrl.BLANK.Value = 0
	m.sys.SetForceBlank(false)
	m.sound = soundLatch{}
	m.sbus.Cmd, m.sbus.Strobe = 0, false
	m.sample = 0

	m.cpu.Reset()
	m.snd.Reset()
}

func (m *Machine) stepVideo() {
	m.readyVideo.Tick()
	m.rotVideo.Tick()

	ready := m.readyVideo.Get()
	m.timing.SetRotated(m.rotVideo.Get())
	b := m.timing.Tick()

	spr := m.spr.TickDisplay(b)
	sys := m.sys.TickDisplay(b, ready)
	var rgb uint32
	if b.Visible() {
		rgb = m.comp.Pixel(b, sys, spr)
	}
	m.vblankCPU.Set(b.VBlank)

	m.out = VideoOut{Beam: b, RGB: rgb, Blank: m.sys.ForceBlank()}
	m.screen.put(b, rgb)
}
