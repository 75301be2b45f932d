package hw

import (
	"arcore/hw/clock"
	"arcore/hw/fbuf"
	"arcore/hw/gamecfg"
	"arcore/hw/memsys"
)

// Status is the state of the board LEDs.
type Status struct {
	Power    bool
	Activity bool // download in progress
	User     bool // memory ready
}

// Status returns the board LEDs.
func (m *Machine) Status() Status {
	return Status{
		Power:    false,
		Activity: m.activity,
		User:     m.mem.Ready(),
	}
}

// Stats is a snapshot of the machine counters.
type Stats struct {
	Time       clock.Time
	SysTicks   uint64
	CPUTicks   uint64
	VideoTicks uint64
	Frames     uint64

	Ready     bool
	MemState  memsys.State
	CPUReset  bool
	CPUResets uint64

	Game    gamecfg.Config
	Variant string

	Memory memsys.Stats
	Sprite fbuf.Stats
	System fbuf.Stats
}

// Stats returns the machine counters.
func (m *Machine) Stats() Stats {
	return Stats{
		Time:       m.sched.Now(),
		SysTicks:   m.sysD.Ticks(),
		CPUTicks:   m.cpuD.Ticks(),
		VideoTicks: m.vidD.Ticks(),
		Frames:     m.screen.Frames(),
		Ready:      m.mem.Ready(),
		MemState:   m.mem.State(),
		CPUReset:   m.inReset,
		CPUResets:  m.cpuResets,
		Game:       m.latch.Config(),
		Variant:    m.latch.Variant().Name,
		Memory:     m.mem.Stats(),
		Sprite:     m.spr.Stats(),
		System:     m.sys.Stats(),
	}
}
