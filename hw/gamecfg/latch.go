// Package gamecfg selects the hardware variant to emulate.
//
// The selection is made by the Latch from the loader stream: a write to the
// game-config target during a session stores the game index, and if a
// session ends without any such write ever having happened, the index falls
// back to the options value. The result is exposed to the CPU core through
// the Regs register file.
package gamecfg

import (
	"arcore/emu/log"
	"arcore/hw/loader"
)

// Mask selects the bits of a loader data byte holding the game index.
const Mask = 0xFF

// Variant describes a board variant: the feature bits enabled for a game
// index.
type Variant struct {
	Index uint8  `toml:"index"`
	Name  string `toml:"name"`
	Flags uint8  `toml:"flags"`
}

// Config is a selected game configuration.
type Config struct {
	Index   uint8
	Flags   uint8 // variant feature bits
	Latched bool
}

// Latch is the game-configuration latch. It lives in the system domain.
type Latch struct {
	latched bool
	cfg     Config

	variants map[uint8]Variant
}

// NewLatch returns an unset latch using the given variant table.
func NewLatch(variants []Variant) *Latch {
	l := &Latch{variants: make(map[uint8]Variant, len(variants))}
	for _, v := range variants {
		l.variants[v.Index] = v
	}
	return l
}

// Tick processes the loader events of one system clock. fallback is the
// game index from the options at this clock.
func (l *Latch) Tick(e loader.Edges, fallback uint8) {
	switch {
	case e.Write && e.Index == loader.GameConfig:
		l.set(e.Data&Mask, "loader")
	case e.End && !l.latched:
		l.set(fallback, "options")
	}
}

func (l *Latch) set(idx uint8, src string) {
	if !l.latched || idx != l.cfg.Index {
		log.ModCfg.InfoZ("game config latched").
			Uint("index", uint(idx)).
			String("source", src).
			String("variant", l.variants[idx].Name).
			End()
	}
	l.latched = true
	l.cfg = Config{
		Index:   idx,
		Flags:   l.variants[idx].Flags,
		Latched: true,
	}
}

// Latched reports whether a configuration has been selected.
func (l *Latch) Latched() bool { return l.latched }

// Config returns the current configuration. It is the zero Config until
// latched.
func (l *Latch) Config() Config { return l.cfg }

// Variant returns the variant for the latched index.
func (l *Latch) Variant() Variant { return l.variants[l.cfg.Index] }
