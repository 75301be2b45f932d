package emu

import (
	"fmt"
	"io"
	"math"

	"github.com/arl/blip"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"arcore/emu/log"
)

// audio is resampled in chunks of 1/chunkRate second
const chunkRate = 100

const bitsPerSample = 16

// Audio resamples the sound core output, one sample per CPU clock, to the
// host sample rate.
type Audio struct {
	buf        *blip.Buffer
	sampleRate int
	chunk      int // CPU clocks per chunk

	time uint64 // clocks since the start of the chunk
	prev int16
	out  []int16

	enc  *wav.Encoder
	ibuf audio.IntBuffer

	samples uint64
	peak    int16
}

// NewAudio returns an Audio converting samples produced at clockRate Hz to
// sampleRate Hz.
func NewAudio(clockRate uint64, sampleRate int) (*Audio, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	if clockRate/uint64(sampleRate) >= blip.MaxRatio {
		return nil, fmt.Errorf("clock rate %d too high for sample rate %d", clockRate, sampleRate)
	}

	maxSamples := 2 * sampleRate / chunkRate
	a := &Audio{
		buf:        blip.NewBuffer(maxSamples),
		sampleRate: sampleRate,
		chunk:      max(int(clockRate/chunkRate), 1),
		out:        make([]int16, maxSamples),
	}
	a.buf.SetRates(float64(clockRate), float64(sampleRate))
	a.ibuf = audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		SourceBitDepth: bitsPerSample,
	}
	return a, nil
}

// Record writes the resampled output as a mono 16-bit wav file into w.
func (a *Audio) Record(w io.WriteSeeker) {
	a.enc = wav.NewEncoder(w, a.sampleRate, bitsPerSample, 1, 1)
}

// Sample adds the output of one CPU clock.
func (a *Audio) Sample(s int16) {
	if s != a.prev {
		a.buf.AddDelta(a.time, int32(s)-int32(a.prev))
		a.prev = s
	}
	a.time++
	if a.time >= uint64(a.chunk) {
		a.flush()
	}
}

func (a *Audio) flush() {
	a.buf.EndFrame(int(a.time))
	a.time = 0

	n := a.buf.ReadSamples(a.out, a.buf.SamplesAvailable(), blip.Mono)
	for _, s := range a.out[:n] {
		if s < 0 {
			s = -max(s, -math.MaxInt16)
		}
		a.peak = max(a.peak, s)
	}
	a.samples += uint64(n)

	if a.enc == nil || n == 0 {
		return
	}
	a.ibuf.Data = a.ibuf.Data[:0]
	for _, s := range a.out[:n] {
		a.ibuf.Data = append(a.ibuf.Data, int(s))
	}
	if err := a.enc.Write(&a.ibuf); err != nil {
		log.ModSound.WarnZ("failed to write audio").Error("err", err).End()
		a.enc = nil
	}
}

// Samples returns the number of output samples produced.
func (a *Audio) Samples() uint64 { return a.samples }

// Peak returns the peak amplitude of the output.
func (a *Audio) Peak() int16 { return a.peak }

// Close flushes pending samples and terminates the recording.
func (a *Audio) Close() error {
	if a.time > 0 {
		a.flush()
	}
	if a.enc == nil {
		return nil
	}
	enc := a.enc
	a.enc = nil
	return enc.Close()
}
