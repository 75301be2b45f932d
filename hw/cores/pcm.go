package cores

import (
	"arcore/emu/log"
	"arcore/hw"
	"arcore/hw/memsys"
)

// PCMEnd marks the end of a sample in sound ROM.
const PCMEnd = 0x80

// PCM is a sound core playing signed 8-bit samples from sound ROM. Command n
// plays the sample starting at byte n*BlockSize, command 0 stops playback.
type PCM struct {
	Divider   int    // CPU clocks per sample
	BlockSize uint32 // sound ROM bytes per command

	playing bool
	addr    uint32 // next sound ROM address to fetch
	buf     []byte
	req     bool // fetch in flight
	count   int
	out     int16
	played  uint64
}

// fetch size, in words
const pcmBurst = 4

func (p *PCM) Reset() {
	p.stop()
	p.req = false
	p.count = 0
}

func (p *PCM) stop() {
	p.playing = false
	p.buf = p.buf[:0]
	p.out = 0
}

// Played returns the number of samples played since creation.
func (p *PCM) Played() uint64 { return p.played }

func (p *PCM) Tick(bus *hw.SoundBus) int16 {
	if bus.Strobe {
		p.stop()
		if p.req {
			// Drop the data of the previous sample.
			bus.ROM.Reset()
			p.req = false
		}
		if bus.Cmd != 0 {
			p.playing = true
			p.addr = uint32(bus.Cmd) * p.BlockSize
			log.ModSound.DebugZ("pcm start").
				Hex8("cmd", bus.Cmd).
				Hex32("addr", p.addr).
				End()
		}
	}

	if r, ok := bus.ROM.Response(); ok {
		p.req = false
		for _, w := range r.Data {
			p.buf = append(p.buf, byte(w), byte(w>>8))
		}
		p.addr += uint32(2 * len(r.Data))
	}
	if p.playing && !p.req && len(p.buf) < 2*pcmBurst {
		if bus.ROM.Issue(memsys.Request{Addr: p.addr, Len: pcmBurst}) {
			p.req = true
		}
	}

	p.count++
	if p.count < max(p.Divider, 1) {
		return p.out
	}
	p.count = 0
	if !p.playing || len(p.buf) == 0 {
		return p.out
	}
	b := p.buf[0]
	p.buf = p.buf[1:]
	if b == PCMEnd {
		p.stop()
		return 0
	}
	p.out = int16(int8(b)) << 8
	p.played++
	return p.out
}
