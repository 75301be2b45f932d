// Package loader models the download stream through which the host delivers
// game configuration, ROM, NVRAM and video data to the machine.
package loader

import "arcore/emu/log"

//go:generate go tool stringer -type=TargetIndex

// TargetIndex selects the destination of a download session.
type TargetIndex uint8

const (
	ROM TargetIndex = iota
	GameConfig
	NVRAM
	VideoData
)

// Signals is the state of the loader lines during one system clock.
type Signals struct {
	Active bool        // download active
	Index  TargetIndex // session target
	Write  bool        // write strobe, one clock wide
	Addr   uint32
	Data   uint8
}

// Edges are the events decoded from the loader lines in one clock.
type Edges struct {
	Start bool        // Active rose
	End   bool        // Active fell
	Index TargetIndex // current session index (of the ending session on End)
	Write bool        // write strobe during an active session
	Addr  uint32
	Data  uint8
}

// Observer decodes the loader lines. It belongs to the system domain.
type Observer struct {
	active bool
	index  TargetIndex
}

// Tick decodes the signals of the current clock.
func (o *Observer) Tick(s Signals) Edges {
	var e Edges

	switch {
	case s.Active && !o.active:
		e.Start = true
		o.index = s.Index
		log.ModLoader.InfoZ("download started").Stringer("index", s.Index).End()
	case !s.Active && o.active:
		e.End = true
		log.ModLoader.InfoZ("download ended").Stringer("index", o.index).End()
	case s.Active:
		o.index = s.Index
	}
	o.active = s.Active
	e.Index = o.index

	if s.Active && s.Write {
		e.Write = true
		e.Addr = s.Addr
		e.Data = s.Data
	}
	return e
}

// Active reports whether a session is in progress.
func (o *Observer) Active() bool { return o.active }
