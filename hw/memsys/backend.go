package memsys

import (
	"arcore/emu/log"
)

// Op is an operation submitted by the arbiter to a backend. Addresses are
// absolute byte addresses.
type Op struct {
	Tag   int
	Addr  uint32
	Write bool
	Data  uint16
	Len   int
}

// Done is a completed Op.
type Done struct {
	Tag   int
	Addr  uint32
	Write bool
	Data  []uint16
}

// Backend is a physical memory controller, clocked in the system domain.
type Backend interface {
	Name() string
	Size() int

	// Ready reports whether initialization/calibration is over.
	Ready() bool
	// Busy reports whether Submit would refuse an op this clock.
	Busy() bool
	Submit(op Op) bool
	Tick()
	// Poll returns completed ops in submission order.
	Poll() (Done, bool)

	// Reset restarts initialization. Memory contents are kept.
	Reset()

	// Bytes gives direct access to the memory contents (host and debug
	// only).
	Bytes() []byte
}

// BurstConfig parameterizes the burst memory model.
type BurstConfig struct {
	Name       string
	Size       int // bytes, even
	Latency    int // clocks from submit to completion of the first word
	MaxPending int // ops accepted before the controller is busy
	InitClocks int // clocks before the controller is ready after reset

	RefreshEvery  int // 0 disables refresh
	RefreshClocks int
}

// DDRConfig returns the parameters of the DDR controller: long latency,
// pipelined, calibration after reset.
func DDRConfig(size int) BurstConfig {
	return BurstConfig{
		Name:       "ddr",
		Size:       size,
		Latency:    8,
		MaxPending: 4,
		InitClocks: 256,
	}
}

// SDRAMConfig returns the parameters of the SDRAM controller: short latency,
// one op at a time, periodic refresh.
func SDRAMConfig(size int) BurstConfig {
	return BurstConfig{
		Name:          "sdram",
		Size:          size,
		Latency:       3,
		MaxPending:    1,
		InitClocks:    128,
		RefreshEvery:  780,
		RefreshClocks: 8,
	}
}

type pendingOp struct {
	op        Op
	remaining int
}

// Burst is a burst memory controller model.
type Burst struct {
	cfg BurstConfig
	mem []byte

	pending []pendingOp
	done    []Done

	initLeft    int
	refreshIn   int
	refreshLeft int
}

func NewBurst(cfg BurstConfig) *Burst {
	if cfg.Size <= 0 || cfg.Size%2 != 0 {
		panic("memsys: backend size must be positive and even")
	}
	b := &Burst{
		cfg: cfg,
		mem: make([]byte, cfg.Size),
	}
	b.Reset()
	return b
}

func NewDDR(size int) *Burst   { return NewBurst(DDRConfig(size)) }
func NewSDRAM(size int) *Burst { return NewBurst(SDRAMConfig(size)) }

func (b *Burst) Name() string     { return b.cfg.Name }
func (b *Burst) Size() int        { return b.cfg.Size }
func (b *Burst) Bytes() []byte    { return b.mem }
func (b *Burst) Ready() bool      { return b.initLeft == 0 }
func (b *Burst) Pending() int     { return len(b.pending) }
func (b *Burst) refreshing() bool { return b.refreshLeft > 0 }

func (b *Burst) Reset() {
	clear(b.pending)
	b.pending = b.pending[:0]
	b.done = b.done[:0]
	b.initLeft = b.cfg.InitClocks
	b.refreshIn = b.cfg.RefreshEvery
	b.refreshLeft = 0
}

func (b *Burst) Busy() bool {
	return !b.Ready() || b.refreshing() || len(b.pending) >= max(b.cfg.MaxPending, 1)
}

func (b *Burst) Submit(op Op) bool {
	if b.Busy() {
		return false
	}
	op.Addr &^= 1
	n := max(op.Len, 1)
	if int(op.Addr)+2*n > b.cfg.Size {
		// Accesses wrap around the end of the memory.
		log.ModMem.ErrorZ("backend access out of range").
			String("backend", b.cfg.Name).
			Hex32("addr", op.Addr).
			Int("len", n).
			End()
	}
	b.pending = append(b.pending, pendingOp{op: op, remaining: b.cfg.Latency + n - 1})
	return true
}

func (b *Burst) Tick() {
	if b.initLeft > 0 {
		b.initLeft--
		if b.initLeft == 0 {
			log.ModMem.InfoZ("backend ready").String("backend", b.cfg.Name).End()
		}
		return
	}

	for i := range b.pending {
		if b.pending[i].remaining > 0 {
			b.pending[i].remaining--
		}
	}
	for len(b.pending) > 0 && b.pending[0].remaining == 0 {
		b.done = append(b.done, b.execute(b.pending[0].op))
		b.pending[0] = pendingOp{}
		b.pending = b.pending[1:]
	}

	if b.cfg.RefreshEvery == 0 {
		return
	}
	if b.refreshLeft > 0 {
		b.refreshLeft--
		return
	}
	if b.refreshIn > 0 {
		b.refreshIn--
	}
	if b.refreshIn == 0 && len(b.pending) == 0 {
		b.refreshLeft = b.cfg.RefreshClocks
		b.refreshIn = b.cfg.RefreshEvery
	}
}

func (b *Burst) execute(op Op) Done {
	n := max(op.Len, 1)
	d := Done{Tag: op.Tag, Addr: op.Addr, Write: op.Write}
	if op.Write {
		for i := range n {
			a := b.wrap(op.Addr, i)
			b.mem[a] = uint8(op.Data)
			b.mem[a+1] = uint8(op.Data >> 8)
		}
		return d
	}
	d.Data = make([]uint16, n)
	for i := range n {
		a := b.wrap(op.Addr, i)
		d.Data[i] = uint16(b.mem[a]) | uint16(b.mem[a+1])<<8
	}
	return d
}

func (b *Burst) wrap(addr uint32, word int) int {
	return (int(addr) + 2*word) % b.cfg.Size
}

func (b *Burst) Poll() (Done, bool) {
	if len(b.done) == 0 {
		return Done{}, false
	}
	d := b.done[0]
	b.done[0] = Done{}
	b.done = b.done[1:]
	return d, true
}
