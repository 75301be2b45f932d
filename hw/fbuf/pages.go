// Package fbuf implements the sprite and system frame buffers.
//
// Both are double buffered in SDRAM: a producer (the CPU core, in the CPU
// domain) draws into the back page through its memory port and requests a
// swap; the swap commits once every write has been acknowledged and the
// committed page index crosses to the video domain, where the display side
// fetches each line ahead of the beam.
package fbuf

import (
	"fmt"

	"arcore/emu/log"
	"arcore/hw/cdc"
	"arcore/hw/memsys"
	"arcore/hw/video"
)

// Port depths.
const (
	ProducerDepth = 2
	DisplayDepth  = 4
)

// Config is the geometry of a frame buffer page.
type Config struct {
	Width  int `toml:"width"`
	Height int `toml:"height"`
	Burst  int `toml:"burst"` // words per display read request
}

// PageBytes returns the size of one page.
func (c Config) PageBytes() uint32 { return uint32(c.Width * c.Height * 2) }

// RegionSize returns the memory needed by the two pages.
func (c Config) RegionSize() uint32 { return 2 * c.PageBytes() }

// Check verifies the configuration.
func (c Config) Check() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("invalid page size %dx%d", c.Width, c.Height)
	}
	if c.Burst <= 0 {
		return fmt.Errorf("invalid burst length %d", c.Burst)
	}
	return nil
}

// Stats are the frame buffer counters.
type Stats struct {
	Writes  uint64 // words written by the producer
	Swaps   uint64 // committed swaps
	Dropped uint64 // swaps ignored while disabled
	Frames  uint64 // frames displayed from a committed page
	Late    uint64 // line fetches not complete when the next one started
}

type fetchSlot struct {
	buf, pos int
}

// pages is the double-buffer model shared by both frame buffers.
type pages struct {
	name string
	cfg  Config

	// producer domain
	prod    memsys.Client
	queue   []memsys.Request
	writing int // writes issued and not acknowledged
	back    int // page being drawn
	swapReq bool
	commit  *cdc.Freeze[int] // committed page, -1 if none

	// display domain
	disp     memsys.Client
	line     [2][]uint16
	lineRow  [2]int
	showing  int  // page displayed by the current frame, -1 if none
	rotated  bool // transposed addressing for the current frame
	row0     bool // first row of the next frame requested
	fetching bool
	fetchRow int
	fetchBuf int
	fetchPos int
	inflight []fetchSlot

	stats Stats
}

func newPages(name string, cfg Config) pages {
	if err := cfg.Check(); err != nil {
		panic(fmt.Sprintf("fbuf: %s: %v", name, err))
	}
	n := max(cfg.Width, cfg.Height)
	return pages{
		name:    name,
		cfg:     cfg,
		prod:    memsys.Client{Port: memsys.NewPort(name+".prod", ProducerDepth, true)},
		disp:    memsys.Client{Port: memsys.NewPort(name+".disp", DisplayDepth, true)},
		commit:  cdc.NewFreeze(name+".commit", -1),
		line:    [2][]uint16{make([]uint16, n), make([]uint16, n)},
		lineRow: [2]int{-1, -1},
		showing: -1,
	}
}

// ProducerPort is the memory port of the producer side.
func (p *pages) ProducerPort() *memsys.Port { return p.prod.Port }

// DisplayPort is the memory port of the display side.
func (p *pages) DisplayPort() *memsys.Port { return p.disp.Port }

// Config returns the page geometry.
func (p *pages) Config() Config { return p.cfg }

// Stats returns the frame buffer counters.
func (p *pages) Stats() Stats { return p.stats }

// PowerUp puts the frame buffer in its initial state: nothing committed,
// nothing in flight. Memory ports must have been cleared.
func (p *pages) PowerUp() {
	p.ResetProducer()
	p.back = 0
	p.commit.Force(-1)

	p.disp.Reset()
	p.lineRow = [2]int{-1, -1}
	p.showing = -1
	p.row0 = false
	p.fetching = false
	p.inflight = p.inflight[:0]
	p.stats = Stats{}
}

func (p *pages) addr(page, x, y int) uint32 {
	return uint32(page)*p.cfg.PageBytes() + uint32(y*p.cfg.Width+x)*2
}

// Producer domain.

// Fill writes n pixels of color c from (x,y) in the back page. The span is
// clipped to the row.
func (p *pages) Fill(x, y, n int, c uint16) {
	if x < 0 || y < 0 || x >= p.cfg.Width || y >= p.cfg.Height || n <= 0 {
		return
	}
	n = min(n, p.cfg.Width-x)
	p.queue = append(p.queue, memsys.Request{
		Addr:  p.addr(p.back, x, y),
		Write: true,
		Data:  c,
		Len:   n,
	})
}

// Plot writes a single pixel in the back page.
func (p *pages) Plot(x, y int, c uint16) { p.Fill(x, y, 1, c) }

// Pending returns the number of writes not yet acknowledged.
func (p *pages) Pending() int { return len(p.queue) + p.writing }

// SwapPending reports whether a swap waits for its writes.
func (p *pages) SwapPending() bool { return p.swapReq }

// Committed returns the last committed page, as seen by the producer.
func (p *pages) Committed() int { return p.commit.Source() }

func (p *pages) swap() { p.swapReq = true }

// ResetProducer drops the queued writes and any pending swap.
func (p *pages) ResetProducer() {
	p.prod.Reset()
	clear(p.queue)
	p.queue = p.queue[:0]
	p.writing = 0
	p.swapReq = false
}

// TickProducer runs one producer clock.
func (p *pages) TickProducer() {
	p.prod.Tick()
	for {
		if _, ok := p.prod.Response(); !ok {
			break
		}
		p.writing--
	}
	if len(p.queue) > 0 && p.prod.Issue(p.queue[0]) {
		p.stats.Writes += uint64(p.queue[0].Len)
		p.queue = p.queue[1:]
		p.writing++
	}
	if p.swapReq && p.Pending() == 0 {
		p.swapReq = false
		p.commit.Set(p.back)
		p.back ^= 1
		p.stats.Swaps++
		log.ModFbuf.DebugZ("page committed").
			String("fb", p.name).
			Int("page", p.commit.Source()).
			End()
	}
}

// Display domain.

func (p *pages) rows() int {
	if p.rotated {
		return p.cfg.Width
	}
	return p.cfg.Height
}

func (p *pages) cols() int {
	if p.rotated {
		return p.cfg.Height
	}
	return p.cfg.Width
}

// stopFetch drops the line fetch in progress, if any.
func (p *pages) stopFetch() {
	p.disp.Reset()
	p.inflight = p.inflight[:0]
	p.fetching = false
}

func (p *pages) startFetch(row int) {
	if p.fetching {
		p.stats.Late++
		p.stopFetch()
	}
	buf := row & 1
	clear(p.line[buf])
	p.lineRow[buf] = row
	p.fetching = true
	p.fetchRow = row
	p.fetchBuf = buf
	p.fetchPos = 0
}

func (p *pages) fetch() {
	for {
		r, ok := p.disp.Response()
		if !ok {
			break
		}
		slot := p.inflight[0]
		p.inflight = p.inflight[1:]
		copy(p.line[slot.buf][slot.pos:], r.Data)
	}
	if !p.fetching {
		return
	}
	if p.fetchPos == p.cols() {
		if len(p.inflight) == 0 {
			p.fetching = false
		}
		return
	}

	var req memsys.Request
	if p.rotated {
		// Column-major: one word per request.
		req = memsys.Request{Addr: p.addr(p.showing, p.fetchRow, p.fetchPos), Len: 1}
	} else {
		n := min(p.cfg.Burst, p.cols()-p.fetchPos)
		req = memsys.Request{Addr: p.addr(p.showing, p.fetchPos, p.fetchRow), Len: n}
	}
	if p.disp.Issue(req) {
		p.inflight = append(p.inflight, fetchSlot{buf: p.fetchBuf, pos: p.fetchPos})
		p.fetchPos += req.Len
	}
}

// tickDisplay runs one video clock and returns the pixel at the beam.
// visible is false when the output must be blank for this frame.
func (p *pages) tickDisplay(b video.Beam, visible bool) uint16 {
	p.disp.Tick()
	p.commit.Tick()

	if b.NewFrame {
		p.row0 = false
		if p.showing >= 0 {
			p.stats.Frames++
		}
	}
	if b.NewLine {
		switch {
		case b.VBlank && !p.row0:
			// Sample the page and addressing for the whole next frame.
			p.row0 = true
			p.showing, p.rotated = -1, b.Rotated
			p.lineRow = [2]int{-1, -1}
			if visible {
				p.showing = p.commit.Get()
			}
			if p.showing >= 0 {
				p.startFetch(0)
			} else {
				p.stopFetch()
			}
		case !b.VBlank && p.showing >= 0 && b.V+1 < p.rows():
			p.startFetch(b.V + 1)
		}
	}
	p.fetch()

	if !visible || !b.Visible() || p.showing < 0 {
		return 0
	}
	buf := b.V & 1
	if p.lineRow[buf] != b.V || b.H >= p.cols() {
		return 0
	}
	return p.line[buf][b.H]
}
