// Package cores provides small reference cores for the machine: they drive
// the memory ports, registers and frame buffers the way real cores do, to
// exercise the machine without emulating a real CPU or sound chip.
package cores

import (
	"arcore/emu/log"
	"arcore/hw"
	"arcore/hw/fbuf"
	"arcore/hw/hwio"
	"arcore/hw/memsys"
)

type painterState uint8

const (
	pNVRead painterState = iota
	pNVReadWait
	pNVWrite
	pNVWriteWait
	pConfig
	pSpriteColor
	pSpriteColorWait
	pBgFetch
	pBgFetchWait
	pBgFill
	pBgCommit
	pRun
)

// Max pending frame buffer writes before the painter waits.
const maxPending = 8

type rect struct{ x, y, w, h int }

// Painter is a CPU core. After reset it counts the boot in NVRAM word 0,
// paints the program ROM as a tiled background into the system frame
// buffer, then moves a block in the sprite frame buffer, swapping pages at
// every vertical blank. Player 1 inputs move the block (bits 0-3) and start
// a sound (bit 4).
type Painter struct {
	TileSize   int // background tile size (default 8)
	SpriteSize int // sprite block size (default 16)

	state painterState
	boots uint16
	game  uint8
	color uint16

	tiles []uint16 // current background tile row
	ty    int
	row   int

	pos    rect
	dx, dy int
	drawn  [2]rect // block drawn in each sprite page
	page   int     // sprite back page
	swap   bool    // sprite frame drawn, waiting for vblank
	vblank bool
	prevIn uint8
	frames uint64
}

// Boots returns the boot count read from NVRAM.
func (p *Painter) Boots() uint16 { return p.boots }

// Frames returns the number of vertical blanks seen since reset.
func (p *Painter) Frames() uint64 { return p.frames }

func (p *Painter) Reset() {
	p.state = pNVRead
	p.tiles = p.tiles[:0]
	p.ty, p.row = 0, 0
	p.pos = rect{}
	p.dx, p.dy = 1, 1
	p.drawn = [2]rect{}
	p.page = 0
	p.swap = false
	p.vblank = false
	p.prevIn = 0
	p.frames = 0
}

func (p *Painter) tileSize() int {
	if p.TileSize <= 0 {
		return 8
	}
	return p.TileSize
}

func (p *Painter) Tick(bus *hw.CPUBus) {
	switch p.state {
	case pNVRead:
		if bus.NVRAM.Issue(memsys.Request{Addr: 0}) {
			p.state = pNVReadWait
		}
	case pNVReadWait:
		if r, ok := bus.NVRAM.Response(); ok {
			p.boots = r.Data[0]
			p.state = pNVWrite
		}
	case pNVWrite:
		if bus.NVRAM.Issue(memsys.Request{Addr: 0, Write: true, Data: p.boots + 1}) {
			p.state = pNVWriteWait
		}
	case pNVWriteWait:
		if _, ok := bus.NVRAM.Response(); ok {
			p.state = pConfig
		}

	case pConfig:
		p.game = bus.IO.Read8(hw.IOConfig+0, false)
		bus.IO.Write8(hw.IOControl+2, 1<<hw.BlankForce)
		bus.IO.Write8(hw.IOControl+1, 1)
		log.ModCPU.InfoZ("painter started").
			Uint("game", uint(p.game)).
			Hex8("variant", bus.IO.Read8(hw.IOConfig+1, false)).
			Uint("boots", uint(p.boots)).
			End()
		p.state = pSpriteColor

	case pSpriteColor:
		if bus.SpriteROM.Issue(memsys.Request{Addr: uint32(p.game%4) * 2}) {
			p.state = pSpriteColorWait
		}
	case pSpriteColorWait:
		if r, ok := bus.SpriteROM.Response(); ok {
			p.color = r.Data[0]
			if p.color == 0 {
				p.color = 0xFFFF
			}
			p.state = pBgFetch
		}

	case pBgFetch:
		ts := p.tileSize()
		n := (bus.System.Config().Width + ts - 1) / ts
		if bus.ROM.Issue(memsys.Request{Addr: uint32(p.ty*n) * 2, Len: n}) {
			p.state = pBgFetchWait
		}
	case pBgFetchWait:
		if r, ok := bus.ROM.Response(); ok {
			p.tiles = append(p.tiles[:0], r.Data...)
			p.row = 0
			p.state = pBgFill
		}
	case pBgFill:
		p.fillBackground(bus.System)
	case pBgCommit:
		bus.IO.Write8(hw.IOControl+3, 1<<hw.SwapSystem)
		bus.IO.Write8(hw.IOControl+2, 0)
		p.state = pRun

	case pRun:
		p.run(bus)
	}
}

func (p *Painter) fillBackground(sys *fbuf.System) {
	if sys.Pending() >= maxPending {
		return
	}
	ts := p.tileSize()
	y := p.ty*ts + p.row
	for i, c := range p.tiles {
		sys.Fill(i*ts, y, ts, c)
	}
	p.row++

	h := sys.Config().Height
	if p.row < ts && y+1 < h {
		return
	}
	p.ty++
	p.state = pBgFetch
	if p.ty*ts >= h {
		p.state = pBgCommit
	}
}

func (p *Painter) blockSize(sprite *fbuf.Sprite) int {
	n := p.SpriteSize
	if n <= 0 {
		n = 16
	}
	cfg := sprite.Config()
	return min(n, cfg.Width, cfg.Height)
}

func (p *Painter) run(bus *hw.CPUBus) {
	status := bus.IO.Read8(hw.IOControl+0, false)
	vblank := hwio.GetBit8(status, hw.StatusVBlank)
	in := bus.IO.Read8(hw.IOInputs, false)

	if in&^p.prevIn&0x10 != 0 {
		bus.IO.Write8(hw.IOControl+1, 2)
	}
	p.prevIn = in

	if vblank && !p.vblank {
		p.frames++
		if p.swap {
			bus.IO.Write8(hw.IOControl+3, 1<<hw.SwapSprite)
			p.page ^= 1
			p.swap = false
		}
	}
	p.vblank = vblank

	if p.swap || bus.Sprite.SwapPending() || bus.Sprite.Pending() >= maxPending {
		return
	}
	p.move(bus.Sprite, in)

	// Erase the block drawn two frames ago in this page, then draw.
	old := p.drawn[p.page]
	for y := old.y; y < old.y+old.h; y++ {
		bus.Sprite.Fill(old.x, y, old.w, 0)
	}
	for y := p.pos.y; y < p.pos.y+p.pos.h; y++ {
		bus.Sprite.Fill(p.pos.x, y, p.pos.w, p.color)
	}
	p.drawn[p.page] = p.pos
	p.swap = true
}

func (p *Painter) move(sprite *fbuf.Sprite, in uint8) {
	n := p.blockSize(sprite)
	cfg := sprite.Config()
	p.pos.w, p.pos.h = n, n

	dx, dy := p.dx, p.dy
	if in&0x0F != 0 {
		dx, dy = 0, 0
		if in&0x01 != 0 {
			dx = -1
		}
		if in&0x02 != 0 {
			dx = 1
		}
		if in&0x04 != 0 {
			dy = -1
		}
		if in&0x08 != 0 {
			dy = 1
		}
	}
	x, y := p.pos.x+dx, p.pos.y+dy
	if x < 0 || x > cfg.Width-n {
		p.dx = -p.dx
		x = min(max(x, 0), cfg.Width-n)
	}
	if y < 0 || y > cfg.Height-n {
		p.dy = -p.dy
		y = min(max(y, 0), cfg.Height-n)
	}
	p.pos.x, p.pos.y = x, y
}
