// Package emu drives a machine from the host: it downloads a ROM set, runs
// the emulation loop, feeds the player controls and collects the video and
// audio outputs.
package emu

import (
	"fmt"
	"image"
	"io"
	"sync/atomic"
	"time"

	"arcore/emu/log"
	"arcore/hw"
	"arcore/hw/clock"
	"arcore/hw/loader"
	"arcore/romset"
)

// Input provides the player controls. Poll is called by the emulation loop
// once per frame, paused or not.
type Input interface {
	Poll(e *Emulator) hw.Inputs
}

// resetPulse is the duration of the external reset pulse of a soft reset.
const resetPulse = 10 * clock.Microsecond

type Emulator struct {
	Machine *hw.Machine

	cfg      Config
	rs       *romset.RomSet
	sessions []loader.Session
	audio    *Audio
	input    Input
	start    time.Time

	// These are accessed concurrently by the emulator loop and the input.
	quit    atomic.Bool
	paused  atomic.Bool
	reset   atomic.Bool
	restart atomic.Bool

	remote atomic.Pointer[hw.Inputs] // set by remote control, consumed by the loop
	last   atomic.Pointer[Status]    // published by the loop after each frame
}

// Launch creates the machine described by cfg and starts the download of the
// ROM set. It doesn't run the emulation loop, call Run for that.
func Launch(rs *romset.RomSet, cfg Config) (*Emulator, error) {
	if err := cfg.Check(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	sessions, err := rs.Sessions(cfg.Memory)
	if err != nil {
		return nil, err
	}
	hwcfg, err := cfg.Machine()
	if err != nil {
		return nil, err
	}
	m, err := hw.New(hwcfg)
	if err != nil {
		return nil, fmt.Errorf("power up failed: %w", err)
	}
	m.SetOptions(cfg.Options)

	e := &Emulator{
		Machine:  m,
		cfg:      cfg,
		rs:       rs,
		sessions: sessions,
		start:    time.Now(),
	}

	if cfg.Audio.Disable {
		log.ModEmu.WarnZ("Audio disabled").End()
	} else {
		e.audio, err = NewAudio(cfg.Clocks.CPU, cfg.Audio.SampleRate)
		if err != nil {
			return nil, err
		}
		m.OnSample(e.audio.Sample)
		log.ModEmu.InfoZ("Audio enabled").Int("rate", cfg.Audio.SampleRate).End()
	}

	e.download()
	e.publish()
	return e, nil
}

func (e *Emulator) download() {
	e.Machine.SetInputs(hw.Inputs{DIP: e.cfg.Input.DIP})

	f := &loader.Feeder{Spacing: e.cfg.Loader.Spacing, Gap: e.cfg.Loader.Gap}
	f.Queue(e.sessions...)
	e.Machine.Feed(f)

	var n int
	for _, s := range e.sessions {
		n += len(s.Data)
	}
	log.ModLoader.InfoZ("Download started").
		String("romset", e.rs.Name).
		Int("sessions", len(e.sessions)).
		Size("bytes", n).
		End()
}

// RecordAudio writes the audio output as a wav file into w.
func (e *Emulator) RecordAudio(w io.WriteSeeker) error {
	if e.audio == nil {
		return fmt.Errorf("audio is disabled")
	}
	e.audio.Record(w)
	return nil
}

// SetInput sets the provider of the player controls.
func (e *Emulator) SetInput(in Input) { e.input = in }

// WaitReady runs the machine until the CPU leaves reset, for at most limit
// of emulated time. It reports whether the CPU started.
func (e *Emulator) WaitReady(limit clock.Time) bool {
	m := e.Machine
	return m.RunWhile(func() bool { return !m.Ready() || m.CPUInReset() }, limit)
}

func (e *Emulator) RunOneFrame() {
	e.Machine.RunFrames(1)
}

// Run runs the emulation loop until Stop is called or, if frames is
// positive, until that many frames have been emulated.
func (e *Emulator) Run(frames int) {
	for n := 0; frames <= 0 || n < frames; {
		if e.input != nil {
			e.Machine.SetInputs(e.input.Poll(e))
		} else if in := e.remote.Swap(nil); in != nil {
			e.Machine.SetInputs(*in)
		}
		if e.shouldStop() {
			break
		}
		// Handle pause.
		if e.isPaused() {
			// Don't burn cpu while paused.
			time.Sleep(100 * time.Millisecond)
			continue
		}
		e.RunOneFrame()
		n++
		e.handleReset()
		e.publish()
	}
	log.ModEmu.InfoZ("Emulation loop exited").End()
}

// Frame returns the last complete frame, scaled per the video config, or nil
// if no frame is complete yet.
func (e *Emulator) Frame() *image.RGBA {
	last := e.Machine.Screen().Last()
	if last == nil {
		return nil
	}
	var label string
	if e.cfg.Video.Label {
		label = fmt.Sprintf("%s #%d", e.rs.Name, e.Machine.Screen().Frames())
	}
	return Screenshot(last, e.cfg.Video.Scale, label)
}

// Close terminates the audio recording, if any.
func (e *Emulator) Close() error {
	if e.audio == nil {
		return nil
	}
	return e.audio.Close()
}

// SetPause, Stop, Reset and Restart allows to control
// the emulator loop in a concurrent-safe way.

func (e *Emulator) SetPause(pause bool) { e.paused.CompareAndSwap(!pause, pause) }
func (e *Emulator) Paused() bool        { return e.paused.Load() }
func (e *Emulator) Reset()              { e.reset.Store(true) }
func (e *Emulator) Restart()            { e.restart.Store(true) }
func (e *Emulator) Stop() {
	e.quit.Store(true)
}

// SetRemoteInputs sets the player controls applied at the start of the next
// frame. It has no effect when an Input is set.
func (e *Emulator) SetRemoteInputs(in hw.Inputs) { e.remote.Store(&in) }

// LastStatus returns the status published after the last emulated frame. It's
// safe to call while the loop runs.
func (e *Emulator) LastStatus() Status { return *e.last.Load() }

func (e *Emulator) publish() {
	st := e.Status()
	e.last.Store(&st)
}

func (e *Emulator) isPaused() bool {
	return e.paused.Load()
}

func (e *Emulator) shouldStop() bool {
	return e.quit.Load()
}

func (e *Emulator) handleReset() {
	if e.reset.CompareAndSwap(true, false) {
		log.ModEmu.InfoZ("Performing soft reset").End()
		e.Machine.SetReset(true)
		e.Machine.RunFor(resetPulse)
		e.Machine.SetReset(false)
	} else if e.restart.CompareAndSwap(true, false) {
		log.ModEmu.InfoZ("Performing power cycle").End()
		e.Machine.PowerCycle()
		e.download()
	}
}
