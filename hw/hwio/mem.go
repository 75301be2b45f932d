package hwio

import "arcore/emu/log"

type MemFlags int

const (
	MemFlagReadWrite MemFlags = 0
	MemFlag8ReadOnly MemFlags = (1 << iota) // read-only accesses
	MemFlagNoROLog                          // skip logging attempts to write when configured to readonly
)

// Mem is a linear memory area that can be mapped into a Table. Data length
// must be a power of 2; accesses beyond are mirrored up to VSize.
type Mem struct {
	Name  string   // name of the memory area (for debugging)
	Data  []byte   // actual memory buffer
	VSize int      // virtual size of the memory (can be bigger than physical size)
	Flags MemFlags // flags determining how the memory can be accessed
}

func (m *Mem) mask() uint16 { return uint16(len(m.Data) - 1) }

func (m *Mem) Read8(addr uint16, _ bool) uint8 {
	return m.Data[addr&m.mask()]
}

func (m *Mem) Write8(addr uint16, val uint8) {
	switch {
	case m.Flags&MemFlag8ReadOnly == 0:
		m.Data[addr&m.mask()] = val
	case m.Flags&MemFlagNoROLog != 0:
		return
	default:
		log.ModHwIo.ErrorZ("Write8 to readonly memory").
			String("name", m.Name).
			Hex8("val", val).
			Hex16("addr", addr).
			End()
	}
}
