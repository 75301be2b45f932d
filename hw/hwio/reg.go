package hwio

import (
	"fmt"

	"arcore/emu/log"
)

type RWFlags uint8

const (
	ReadWriteFlag RWFlags = 0
	ReadOnlyFlag  RWFlags = (1 << iota)
	WriteOnlyFlag
)

// Reg8 is an 8-bit hardware register. Bits set in RoMask are preserved on
// writes.
type Reg8 struct {
	Name       string
	Value      uint8
	RoMask     uint8
	ResetValue uint8

	Flags   RWFlags
	ReadCb  func(val uint8, peek bool) uint8
	WriteCb func(old uint8, val uint8)
}

func (reg Reg8) String() string {
	s := fmt.Sprintf("%s{%02x", reg.Name, reg.Value)
	if reg.ReadCb != nil {
		s += ",r!"
	}
	if reg.WriteCb != nil {
		s += ",w!"
	}
	return s + "}"
}

// Reset restores the reset value, write callbacks aren't called.
func (reg *Reg8) Reset() { reg.Value = reg.ResetValue }

func (reg *Reg8) write(val uint8) {
	old := reg.Value
	reg.Value = (reg.Value & reg.RoMask) | (val &^ reg.RoMask)
	if reg.WriteCb != nil {
		reg.WriteCb(old, reg.Value)
	}
}

func (reg *Reg8) Write8(addr uint16, val uint8) {
	if reg.Flags&ReadOnlyFlag != 0 {
		log.ModHwIo.ErrorZ("invalid Write8 to readonly reg").
			String("name", reg.Name).
			Hex16("addr", addr).
			Hex8("val", val).
			End()
		return
	}
	reg.write(val)
}

func (reg *Reg8) Read8(addr uint16, peek bool) uint8 {
	if reg.Flags&WriteOnlyFlag != 0 {
		if !peek {
			log.ModHwIo.ErrorZ("invalid Read8 from writeonly reg").
				String("name", reg.Name).
				Hex16("addr", addr).
				End()
		}
		return 0
	}
	if reg.ReadCb != nil {
		return reg.ReadCb(reg.Value, peek)
	}
	return reg.Value
}
