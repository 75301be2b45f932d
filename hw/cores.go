package hw

import "arcore/hw/video"

// CPUCore is the main CPU. It is clocked in the CPU domain and held in reset
// while memory is not ready.
type CPUCore interface {
	// Reset is called when the core enters reset. Tick isn't called until
	// reset is released.
	Reset()
	Tick(bus *CPUBus)
}

// SoundCore produces the audio output. It is clocked in the CPU domain and
// shares the CPU reset.
type SoundCore interface {
	Reset()
	// Tick returns the audio sample at this clock.
	Tick(bus *SoundBus) int16
}

// Compositor mixes the frame buffer pixels into the displayed color.
type Compositor interface {
	// Pixel returns the 0xRRGGBB color displayed at the beam position, from
	// the system and sprite frame buffer pixels.
	Pixel(b video.Beam, sys, spr uint16) uint32
}

type idleCPU struct{}

func (idleCPU) Reset()       {}
func (idleCPU) Tick(*CPUBus) {}

type silentSound struct{}

func (silentSound) Reset()               {}
func (silentSound) Tick(*SoundBus) int16 { return 0 }

type sysOnly struct{}

func (sysOnly) Pixel(_ video.Beam, sys, _ uint16) uint32 { return uint32(sys) }
