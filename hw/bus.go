package hw

import (
	"arcore/emu/log"
	"arcore/hw/fbuf"
	"arcore/hw/gamecfg"
	"arcore/hw/hwio"
	"arcore/hw/memsys"
)

// CPU I/O map.
const (
	IOConfig  = 0x00 // game configuration registers (gamecfg.Regs)
	IOInputs  = 0x10 // player inputs, one byte per Inputs field
	IOControl = 0x20 // machine control registers (Control)
)

// Bits of the control registers.
const (
	StatusVBlank      = 0 // STATUS: video in vertical blank
	StatusSpriteSwap  = 1 // STATUS: sprite swap pending
	StatusSystemSwap  = 2 // STATUS: system swap pending
	StatusSpriteReady = 3 // STATUS: sprite buffer accepts swaps

	SwapSprite = 0 // SWAP: commit sprite back page
	SwapSystem = 1 // SWAP: commit system back page

	BlankForce = 0 // BLANK: force system display blank
)

// Inputs is the state of the player controls. The machine doesn't interpret
// it, it is read by the CPU core at IOInputs.
type Inputs struct {
	P1, P2 uint8
	Coins  uint8
	DIP    uint8
}

func (in Inputs) byte(i uint16) uint8 {
	switch i {
	case 0:
		return in.P1
	case 1:
		return in.P2
	case 2:
		return in.Coins
	case 3:
		return in.DIP
	}
	return 0xFF
}

// Control is the bank of machine control registers, in the CPU domain.
type Control struct {
	STATUS hwio.Reg8 `hwio:"offset=0x0,readonly,rcb"`
	SNDCMD hwio.Reg8 `hwio:"offset=0x1,writeonly,wcb"`
	BLANK  hwio.Reg8 `hwio:"offset=0x2,rwmask=0x01,wcb"`
	SWAP   hwio.Reg8 `hwio:"offset=0x3,writeonly,wcb"`

	m *Machine
}

// STATUS: $20
func (c *Control) ReadSTATUS(_ uint8, _ bool) uint8 {
	var val uint8
	if c.m.vblankCPU.Get() {
		hwio.SetBit8(&val, StatusVBlank)
	}
	if c.m.spr.SwapPending() {
		hwio.SetBit8(&val, StatusSpriteSwap)
	}
	if c.m.sys.SwapPending() {
		hwio.SetBit8(&val, StatusSystemSwap)
	}
	if c.m.spr.Enabled() {
		hwio.SetBit8(&val, StatusSpriteReady)
	}
	return val
}

// SNDCMD: $21
func (c *Control) WriteSNDCMD(_, val uint8) {
	c.m.sound.cmd = val
	c.m.sound.strobe = true
	log.ModSound.DebugZ("sound command").Hex8("cmd", val).End()
}

// BLANK: $22
func (c *Control) WriteBLANK(_, val uint8) {
	c.m.sys.SetForceBlank(hwio.GetBit8(val, BlankForce))
}

// SWAP: $23
func (c *Control) WriteSWAP(_, val uint8) {
	if hwio.GetBit8(val, SwapSprite) {
		c.m.spr.Swap()
	}
	if hwio.GetBit8(val, SwapSystem) {
		c.m.sys.Swap()
	}
}

// CPUBus is the view of the machine given to the CPU core.
type CPUBus struct {
	IO *hwio.Table // configuration, inputs and control registers

	ROM       *memsys.Client // program ROM
	NVRAM     *memsys.Client
	Tiles     [3]*memsys.Client
	SpriteROM *memsys.Client

	Sprite *fbuf.Sprite // sprite frame buffer, producer side
	System *fbuf.System // system frame buffer, producer side
}

// SoundBus is the view of the machine given to the sound core.
type SoundBus struct {
	ROM *memsys.Client // sound ROM

	Cmd    uint8 // last command written by the CPU
	Strobe bool  // Cmd was written since the previous tick
}

type soundLatch struct {
	cmd    uint8
	strobe bool
}

func (m *Machine) initBus() {
	m.regs = gamecfg.NewRegs()
	m.ctrl = &Control{m: m}
	hwio.MustInitRegs(m.ctrl)

	m.inputDev = &hwio.Device{
		Name:  "inputs",
		Size:  4,
		Flags: hwio.ReadOnlyFlag,
		ReadCb: func(addr uint16, _ bool) uint8 {
			return m.inputs.Get().byte(addr - IOInputs)
		},
	}

	m.io = hwio.NewTable("cpu")
	m.io.Unmapped = &hwio.Device{
		Name:   "open bus",
		ReadCb: func(uint16, bool) uint8 { return 0xFF },
	}
	m.io.MapBank(IOConfig, m.regs, 0)
	m.io.MapDevice(IOInputs, m.inputDev)
	m.io.MapBank(IOControl, m.ctrl, 0)
}
