package emu

import (
	"io"
	"maps"
	"slices"
	"time"

	"github.com/go-faster/jx"

	"arcore/hw"
	"arcore/hw/fbuf"
)

// Status reports the state of an emulation run.
type Status struct {
	RomSet  string
	Elapsed time.Duration // host time
	Stats   hw.Stats
	Board   hw.Status

	AudioSamples uint64
	AudioPeak    int16
}

// Status returns the current status of the emulator.
func (e *Emulator) Status() Status {
	st := Status{
		RomSet:  e.rs.Name,
		Elapsed: time.Since(e.start),
		Stats:   e.Machine.Stats(),
		Board:   e.Machine.Status(),
	}
	if e.audio != nil {
		st.AudioSamples = e.audio.Samples()
		st.AudioPeak = e.audio.Peak()
	}
	return st
}

// Encode writes st as a JSON object.
func (st *Status) Encode(e *jx.Encoder) {
	s := &st.Stats
	e.Obj(func(e *jx.Encoder) {
		e.Field("romset", func(e *jx.Encoder) { e.Str(st.RomSet) })
		e.Field("elapsed_ms", func(e *jx.Encoder) { e.Int64(st.Elapsed.Milliseconds()) })
		e.Field("time_ps", func(e *jx.Encoder) { e.UInt64(uint64(s.Time)) })
		e.Field("ticks", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("sys", func(e *jx.Encoder) { e.UInt64(s.SysTicks) })
				e.Field("cpu", func(e *jx.Encoder) { e.UInt64(s.CPUTicks) })
				e.Field("video", func(e *jx.Encoder) { e.UInt64(s.VideoTicks) })
			})
		})
		e.Field("frames", func(e *jx.Encoder) { e.UInt64(s.Frames) })
		e.Field("ready", func(e *jx.Encoder) { e.Bool(s.Ready) })
		e.Field("mem_state", func(e *jx.Encoder) { e.Str(s.MemState.String()) })
		e.Field("cpu_reset", func(e *jx.Encoder) { e.Bool(s.CPUReset) })
		e.Field("cpu_resets", func(e *jx.Encoder) { e.UInt64(s.CPUResets) })
		e.Field("leds", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("power", func(e *jx.Encoder) { e.Bool(st.Board.Power) })
				e.Field("activity", func(e *jx.Encoder) { e.Bool(st.Board.Activity) })
				e.Field("user", func(e *jx.Encoder) { e.Bool(st.Board.User) })
			})
		})
		e.Field("game", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("index", func(e *jx.Encoder) { e.UInt64(uint64(s.Game.Index)) })
				e.Field("flags", func(e *jx.Encoder) { e.UInt64(uint64(s.Game.Flags)) })
				e.Field("latched", func(e *jx.Encoder) { e.Bool(s.Game.Latched) })
				e.Field("variant", func(e *jx.Encoder) { e.Str(s.Variant) })
			})
		})
		e.Field("memory", func(e *jx.Encoder) {
			m := &s.Memory
			e.Obj(func(e *jx.Encoder) {
				e.Field("load_bytes", func(e *jx.Encoder) { e.UInt64(m.LoadBytes) })
				e.Field("load_dropped", func(e *jx.Encoder) { e.UInt64(m.LoadDropped) })
				e.Field("clear_words", func(e *jx.Encoder) { e.UInt64(m.ClearWords) })
				e.Field("inits", func(e *jx.Encoder) { e.UInt64(m.Inits) })
				e.Field("client_ops", func(e *jx.Encoder) { encodeCounters(e, m.ClientOps) })
				e.Field("backends_busy", func(e *jx.Encoder) { encodeCounters(e, m.BackendsBusy) })
			})
		})
		e.Field("sprite", func(e *jx.Encoder) { encodeFbuf(e, s.Sprite) })
		e.Field("system", func(e *jx.Encoder) { encodeFbuf(e, s.System) })
		e.Field("audio", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("samples", func(e *jx.Encoder) { e.UInt64(st.AudioSamples) })
				e.Field("peak", func(e *jx.Encoder) { e.Int64(int64(st.AudioPeak)) })
			})
		})
	})
}

func encodeCounters(e *jx.Encoder, m map[string]uint64) {
	e.Obj(func(e *jx.Encoder) {
		for _, k := range slices.Sorted(maps.Keys(m)) {
			e.Field(k, func(e *jx.Encoder) { e.UInt64(m[k]) })
		}
	})
}

func encodeFbuf(e *jx.Encoder, s fbuf.Stats) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("writes", func(e *jx.Encoder) { e.UInt64(s.Writes) })
		e.Field("swaps", func(e *jx.Encoder) { e.UInt64(s.Swaps) })
		e.Field("dropped", func(e *jx.Encoder) { e.UInt64(s.Dropped) })
		e.Field("frames", func(e *jx.Encoder) { e.UInt64(s.Frames) })
		e.Field("late", func(e *jx.Encoder) { e.UInt64(s.Late) })
	})
}

// WriteStatus writes st as indented JSON into w.
func WriteStatus(w io.Writer, st Status) error {
	var e jx.Encoder
	e.SetIdent(2)
	st.Encode(&e)
	_, err := w.Write(append(e.Bytes(), '\n'))
	return err
}

// StatusJSON returns the last published status as compact JSON.
func (e *Emulator) StatusJSON() []byte {
	var enc jx.Encoder
	st := e.LastStatus()
	st.Encode(&enc)
	return enc.Bytes()
}
