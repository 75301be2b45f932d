// Package memsys is the memory subsystem of the machine.
//
// It owns the DDR and SDRAM backends and every memory client port (program
// ROM, NVRAM, tile ROMs, sprite ROM, sound ROM, frame buffers), multiplexes
// the ports onto the backends, writes the download streams to memory, and
// reports readiness once the initialization following a ROM download is
// complete. It is clocked in the system domain.
package memsys

import (
	"fmt"

	"arcore/emu/log"
	"arcore/hw/loader"
)

//go:generate go tool stringer -type=State

// State of the memory initialization sequence.
type State uint8

const (
	Idle     State = iota // no ROM downloaded yet
	Loading               // ROM download in progress
	Draining              // waiting for downloaded data to reach the backends
	Clearing              // zeroing the regions flagged for clearing
	Ready                 // memory usable by all clients
)

// Tags of the ops not issued by clients.
const (
	tagLoad  = -1
	tagClear = -2
)

const clearBurst = 8 // words per clear op

type region struct {
	Region
	backend *backendSlot
}

type client struct {
	name   string
	port   *Port
	region *region
}

type backendSlot struct {
	Backend
	rr      int  // next client index to consider
	load    []Op // pending download writes
	clear   []Op // pending clear writes
	pending int  // load and clear ops submitted, not yet done
}

type streamSeg struct {
	start  uint32 // offset in stream
	region *region
}

// Stats are the memory subsystem counters.
type Stats struct {
	LoadBytes    uint64 // download bytes written to memory
	LoadDropped  uint64 // download bytes outside any region
	ClearWords   uint64 // words zeroed by initialization
	Inits        uint64 // number of completed initializations
	ClientOps    map[string]uint64
	BackendsBusy map[string]uint64 // clocks during which a backend refused ops
}

// Subsystem is the memory arbiter.
type Subsystem struct {
	layout   Layout
	backends []*backendSlot
	regions  map[string]*region
	streams  map[loader.TargetIndex][]streamSeg
	clients  []*client

	state     State
	romLoaded bool // a ROM download completed since power-up
	reset     bool

	// partial download word, waiting for its high byte
	partial      bool
	partialAddr  uint32
	partialLo    uint8
	partialIndex loader.TargetIndex

	stats Stats
}

// New returns the memory subsystem for layout, using the given backends.
func New(layout Layout, ddr, sdram Backend) (*Subsystem, error) {
	if err := layout.Check(); err != nil {
		return nil, fmt.Errorf("invalid memory layout: %w", err)
	}
	if ddr.Size() < layout.DDRSize || sdram.Size() < layout.SDRAMSize {
		return nil, fmt.Errorf("backends too small for layout")
	}

	m := &Subsystem{
		layout:  layout,
		regions: make(map[string]*region),
		streams: make(map[loader.TargetIndex][]streamSeg),
		stats: Stats{
			ClientOps:    make(map[string]uint64),
			BackendsBusy: make(map[string]uint64),
		},
	}
	slots := map[string]*backendSlot{
		DDR:   {Backend: ddr},
		SDRAM: {Backend: sdram},
	}
	m.backends = []*backendSlot{slots[DDR], slots[SDRAM]}

	for _, r := range layout.Regions {
		reg := &region{Region: r, backend: slots[r.Backend]}
		m.regions[r.Name] = reg
		if idx, ok := r.LoadIndex(); ok {
			segs := m.streams[idx]
			var start uint32
			if n := len(segs); n > 0 {
				start = segs[n-1].start + segs[n-1].region.Size
			}
			m.streams[idx] = append(segs, streamSeg{start: start, region: reg})
		}
	}
	return m, nil
}

// Attach connects a client port to the named region. It panics if the
// region doesn't exist.
func (m *Subsystem) Attach(name, regionName string, port *Port) {
	r, ok := m.regions[regionName]
	if !ok {
		panic(fmt.Sprintf("memsys: client %q: unknown region %q", name, regionName))
	}
	m.clients = append(m.clients, &client{name: name, port: port, region: r})
	log.ModMem.DebugZ("client attached").
		String("client", name).
		String("region", regionName).
		String("backend", r.backend.Name()).
		End()
}

// Ready reports whether memory is initialized. This is the readiness token
// gating the rest of the machine.
func (m *Subsystem) Ready() bool { return m.state == Ready }

// State returns the state of the initialization sequence.
func (m *Subsystem) State() State { return m.state }

// Stats returns a copy of the counters.
func (m *Subsystem) Stats() Stats {
	s := m.stats
	s.ClientOps = make(map[string]uint64, len(m.clients))
	for _, c := range m.clients {
		_, done := c.port.Stats()
		s.ClientOps[c.name] = done
	}
	s.BackendsBusy = make(map[string]uint64, len(m.stats.BackendsBusy))
	for k, v := range m.stats.BackendsBusy {
		s.BackendsBusy[k] = v
	}
	return s
}

// Layout returns the memory layout.
func (m *Subsystem) Layout() Layout { return m.layout }

// RegionBytes gives direct access to the contents of a region (host and
// debug only).
func (m *Subsystem) RegionBytes(name string) []byte {
	r, ok := m.regions[name]
	if !ok {
		return nil
	}
	return r.backend.Bytes()[r.Base : r.Base+r.Size]
}

// SetReset sets the state of the external reset. While reset is held the
// memory is reported not ready; when released, the initialization following
// the last ROM download is run again.
func (m *Subsystem) SetReset(reset bool) {
	if reset == m.reset {
		return
	}
	m.reset = reset
	if !reset {
		return
	}
	for _, b := range m.backends {
		b.clear = b.clear[:0]
	}
	if m.state == Clearing || m.state == Ready {
		m.setState(Draining)
	}
}

// PowerUp resets the backends and forgets any downloaded ROM.
func (m *Subsystem) PowerUp() {
	for _, b := range m.backends {
		b.Reset()
		b.load = b.load[:0]
		b.clear = b.clear[:0]
		b.pending = 0
		b.rr = 0
	}
	for _, c := range m.clients {
		c.port.Clear()
	}
	m.partial = false
	m.romLoaded = false
	m.reset = false
	m.state = Idle
}

func (m *Subsystem) setState(s State) {
	if s == m.state {
		return
	}
	log.ModMem.InfoZ("memory state").
		Stringer("from", m.state).
		Stringer("to", s).
		End()
	m.state = s
}

// Tick runs one system clock. e are the loader events of this clock.
func (m *Subsystem) Tick(e loader.Edges) {
	for _, b := range m.backends {
		b.Tick()
		for {
			d, ok := b.Poll()
			if !ok {
				break
			}
			m.complete(b, d)
		}
	}
	for _, c := range m.clients {
		c.port.TickDst()
	}

	m.download(e)

	for _, b := range m.backends {
		m.schedule(b)
	}

	m.advance()
}

func (m *Subsystem) complete(b *backendSlot, d Done) {
	switch d.Tag {
	case tagLoad, tagClear:
		b.pending--
		return
	}
	c := m.clients[d.Tag]
	c.port.Respond(Response{
		Addr:  d.Addr - c.region.Base,
		Write: d.Write,
		Data:  d.Data,
	})
}

func (m *Subsystem) download(e loader.Edges) {
	switch {
	case e.Start && e.Index == loader.ROM:
		m.setState(Loading)
	case e.End:
		m.flushPartial()
		if e.Index == loader.ROM {
			m.romLoaded = true
			m.setState(Draining)
		}
	}

	if !e.Write {
		return
	}
	if _, ok := m.streams[e.Index]; !ok {
		return
	}

	if m.partial && (e.Index != m.partialIndex || e.Addr != m.partialAddr+1 || e.Addr&1 == 0) {
		m.flushPartial()
	}
	if e.Addr&1 == 0 {
		m.partial = true
		m.partialAddr = e.Addr
		m.partialLo = e.Data
		m.partialIndex = e.Index
		return
	}
	lo, nbytes := uint8(0), uint64(1)
	if m.partial {
		lo, nbytes = m.partialLo, 2
	}
	m.partial = false
	m.queueLoad(e.Index, e.Addr&^1, uint16(lo)|uint16(e.Data)<<8, nbytes)
}

func (m *Subsystem) flushPartial() {
	if !m.partial {
		return
	}
	m.partial = false
	m.queueLoad(m.partialIndex, m.partialAddr, uint16(m.partialLo), 1)
}

func (m *Subsystem) queueLoad(idx loader.TargetIndex, off uint32, word uint16, nbytes uint64) {
	segs := m.streams[idx]
	for _, s := range segs {
		if off >= s.start && off < s.start+s.region.Size {
			b := s.region.backend
			b.load = append(b.load, Op{
				Tag:   tagLoad,
				Addr:  s.region.Base + off - s.start,
				Write: true,
				Data:  word,
			})
			m.stats.LoadBytes += nbytes
			return
		}
	}
	if m.stats.LoadDropped == 0 {
		log.ModMem.WarnZ("download data outside of any region").
			Stringer("index", idx).
			Hex32("offset", off).
			End()
	}
	m.stats.LoadDropped += nbytes
}

// schedule submits at most one op to b: download writes first, then clears,
// then client requests in round-robin order.
func (m *Subsystem) schedule(b *backendSlot) {
	if !b.Ready() {
		return
	}
	if b.Busy() {
		m.stats.BackendsBusy[b.Name()]++
		return
	}

	switch {
	case len(b.load) > 0:
		if b.Submit(b.load[0]) {
			b.load = b.load[1:]
			b.pending++
		}
		return
	case len(b.clear) > 0:
		if b.Submit(b.clear[0]) {
			m.stats.ClearWords += uint64(max(b.clear[0].Len, 1))
			b.clear = b.clear[1:]
			b.pending++
		}
		return
	}

	n := len(m.clients)
	for i := range n {
		idx := (b.rr + i) % n
		c := m.clients[idx]
		if c.region.backend != b {
			continue
		}
		if _, ok := c.port.Pending(); !ok {
			continue
		}
		req, _ := c.port.Accept()
		b.Submit(Op{
			Tag:   idx,
			Addr:  c.region.Base + m.clientOffset(c, req),
			Write: req.Write,
			Data:  req.Data,
			Len:   req.words(),
		})
		b.rr = (idx + 1) % n
		return
	}
}

// clientOffset returns the offset of req within its client region. Requests
// beyond the region wrap around it.
func (m *Subsystem) clientOffset(c *client, req Request) uint32 {
	off := req.Addr &^ 1
	if off+uint32(2*req.words()) > c.region.Size {
		log.ModMem.DebugZ("client access wraps around region").
			String("client", c.name).
			Hex32("addr", req.Addr).
			End()
		off %= c.region.Size
	}
	return off
}

func (m *Subsystem) advance() {
	switch m.state {
	case Draining:
		if m.reset || m.partial || !m.backendsIdle() {
			return
		}
		for _, b := range m.backends {
			for _, r := range m.layout.Regions {
				if !r.Clear || m.regions[r.Name].backend != b {
					continue
				}
				for off := uint32(0); off < r.Size; off += 2 * clearBurst {
					n := min(clearBurst, int(r.Size-off)/2)
					b.clear = append(b.clear, Op{Tag: tagClear, Addr: r.Base + off, Write: true, Len: n})
				}
			}
		}
		m.setState(Clearing)

	case Clearing:
		if m.backendsIdle() {
			m.stats.Inits++
			m.setState(Ready)
		}
	}
}

func (m *Subsystem) backendsIdle() bool {
	for _, b := range m.backends {
		if !b.Ready() || len(b.load) > 0 || len(b.clear) > 0 || b.pending > 0 {
			return false
		}
	}
	return true
}
