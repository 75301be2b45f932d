package hwio

import (
	"fmt"
	"sort"

	"arcore/emu/log"
)

// log unmapped accesses (useful for debugging but verbose when the core
// probes holes in the register map)
const logUnmapped = false

type BankIO8 interface {
	// Read8 reads a byte from the given address. If peek is true, the read
	// shouldn't have any side effects (debugging/tracing).
	Read8(addr uint16, peek bool) uint8
	Write8(addr uint16, val uint8)
}

func Write16(b BankIO8, addr uint16, val uint16) {
	lo := uint8(val & 0xff)
	hi := uint8(val >> 8)
	b.Write8(addr, lo)
	b.Write8(addr+1, hi)
}

func Read16(b BankIO8, addr uint16) uint16 {
	lo := b.Read8(addr, false)
	hi := b.Read8(addr+1, false)
	return uint16(hi)<<8 | uint16(lo)
}

type mapping struct {
	begin, end uint16 // inclusive
	io         BankIO8
}

// Table dispatches accesses to the devices mapped in a 16-bit address space.
type Table struct {
	Name string

	// Unmapped, if set, receives accesses that hit no mapping.
	Unmapped BankIO8

	maps []mapping // sorted by begin, non overlapping
}

func NewTable(name string) *Table {
	t := new(Table)
	t.Name = name
	t.Reset()
	return t
}

func (t *Table) Reset() {
	t.maps = t.maps[:0]
}

// Map a register bank (that is, a structure containing mulitple Reg8/Mem/Device
// fields). For this function to work, registers must have a struct tag "hwio",
// containing the following fields:
//
//	offset=0x12     Byte-offset within the register bank at which this
//	                register is mapped. There is no default value: if this
//	                option is missing, the register is assumed not to be
//	                part of the bank, and is ignored by this call.
//
//	bank=NN         Ordinal bank number (if not specified, default to zero).
//	                This option allows for a structure to expose multiple
//	                banks, as regs can be grouped by bank by specified the
//	                bank number.
func (t *Table) MapBank(addr uint16, bank any, bankNum int) {
	regs, err := bankGetRegs(bank, bankNum)
	if err != nil {
		panic(err)
	}

	for _, reg := range regs {
		switch r := reg.regPtr.(type) {
		case *Mem:
			t.MapMem(addr+reg.offset, r)
		case *Reg8:
			t.MapReg8(addr+reg.offset, r)
		case *Device:
			t.MapDevice(addr+reg.offset, r)
		default:
			panic(fmt.Errorf("invalid reg type: %T", r))
		}
	}
}

func (t *Table) mapBus8(addr, size uint16, io BankIO8) {
	end := addr + size - 1
	if end < addr {
		panic(fmt.Errorf("%s: mapping at %04x overflows address space", t.Name, addr))
	}
	i := sort.Search(len(t.maps), func(i int) bool { return t.maps[i].end >= addr })
	if i < len(t.maps) && t.maps[i].begin <= end {
		panic(fmt.Errorf("%s: mapping %04x-%04x overlaps %04x-%04x",
			t.Name, addr, end, t.maps[i].begin, t.maps[i].end))
	}
	t.maps = append(t.maps, mapping{})
	copy(t.maps[i+1:], t.maps[i:])
	t.maps[i] = mapping{begin: addr, end: end, io: io}
}

func (t *Table) MapReg8(addr uint16, io *Reg8) {
	t.mapBus8(addr, 1, io)
}

func (t *Table) MapDevice(addr uint16, io *Device) {
	t.mapBus8(addr, uint16(io.Size), io)
}

func (t *Table) MapMem(addr uint16, mem *Mem) {
	log.ModHwIo.DebugZ("mapping mem").
		Hex16("addr", addr).
		Hex16("size", uint16(mem.VSize)).
		String("area", mem.Name).
		String("bus", t.Name).
		End()

	if len(mem.Data)&(len(mem.Data)-1) != 0 {
		panic("memory buffer size is not pow2")
	}
	vsize := mem.VSize
	if vsize == 0 {
		vsize = len(mem.Data)
	}
	t.mapBus8(addr, uint16(vsize), mem)
}

func (t *Table) Unmap(begin, end uint16) {
	kept := t.maps[:0]
	for _, m := range t.maps {
		if m.end < begin || m.begin > end {
			kept = append(kept, m)
		}
	}
	t.maps = kept
}

func (t *Table) search(addr uint16) BankIO8 {
	i := sort.Search(len(t.maps), func(i int) bool { return t.maps[i].end >= addr })
	if i < len(t.maps) && t.maps[i].begin <= addr {
		return t.maps[i].io
	}
	return nil
}

// Read8 searches in the table for the device mapped at the given address and
// forward the read to it.
func (t *Table) Read8(addr uint16, peek bool) uint8 {
	io := t.search(addr)
	if io == nil {
		if logUnmapped && !peek {
			log.ModHwIo.ErrorZ("unmapped Read8").
				String("name", t.Name).
				Hex16("addr", addr).
				End()
		}
		if t.Unmapped != nil {
			return t.Unmapped.Read8(addr, peek)
		}
		return 0
	}
	return io.Read8(addr, peek)
}

// Peek8 is a convenience function.
func (t *Table) Peek8(addr uint16) uint8 {
	return t.Read8(addr, true)
}

func (t *Table) Write8(addr uint16, val uint8) {
	io := t.search(addr)
	if io == nil {
		if logUnmapped {
			log.ModHwIo.ErrorZ("unmapped Write8").
				String("name", t.Name).
				Hex16("addr", addr).
				Hex8("val", val).
				End()
		}
		if t.Unmapped != nil {
			t.Unmapped.Write8(addr, val)
		}
		return
	}
	io.Write8(addr, val)
}
