package gamecfg

import "arcore/hw/hwio"

// Revision of the register file layout, readable by the CPU.
const Revision = 0x01

// Flag bits of the FLAGS register.
const (
	FlagLatched = 0
	FlagRotated = 1
)

// Regs is the configuration register file as seen by the CPU core. It is a
// read-only copy of the latched configuration, refreshed in the CPU domain
// from the value crossing from the system domain.
type Regs struct {
	GAME     hwio.Reg8 `hwio:"offset=0x0,readonly"`
	VARIANT  hwio.Reg8 `hwio:"offset=0x1,readonly"`
	FLAGS    hwio.Reg8 `hwio:"offset=0x2,readonly"`
	REVISION hwio.Reg8 `hwio:"offset=0x3,readonly,reset=0x01"`
}

// Size of the register bank.
const RegsSize = 4

func NewRegs() *Regs {
	r := new(Regs)
	hwio.MustInitRegs(r)
	return r
}

// Load copies cfg and the display rotation option into the registers.
func (r *Regs) Load(cfg Config, rotated bool) {
	r.GAME.Value = cfg.Index
	r.VARIANT.Value = cfg.Flags
	hwio.PutBit(&r.FLAGS.Value, FlagLatched, cfg.Latched)
	hwio.PutBit(&r.FLAGS.Value, FlagRotated, rotated)
}
