package romset

import (
	"bytes"
	"fmt"

	"github.com/go-audio/wav"

	"arcore/hw/cores"
)

// decodeWav converts a wav file into signed 8-bit PCM, taking the first
// channel only. The sample is terminated by cores.PCMEnd, which is never
// produced by the conversion itself.
func decodeWav(buf []byte) ([]byte, error) {
	dec := wav.NewDecoder(bytes.NewReader(buf))
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("wav: not a valid wav file")
	}

	ibuf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wav: %w", err)
	}

	nchans := max(int(dec.NumChans), 1)
	depth := int(dec.BitDepth)
	if depth < 8 || depth > 32 {
		return nil, fmt.Errorf("wav: unsupported bit depth %d", depth)
	}

	pcm := make([]byte, 0, len(ibuf.Data)/nchans+1)
	for i := 0; i < len(ibuf.Data); i += nchans {
		pcm = append(pcm, pcm8(ibuf.Data[i], depth))
	}
	return append(pcm, cores.PCMEnd), nil
}

// pcm8 scales a sample of the given bit depth to a signed 8-bit value.
func pcm8(s, depth int) byte {
	if depth == 8 {
		// 8-bit wav samples are unsigned.
		s -= 128
	} else {
		s >>= depth - 8
	}
	s = min(max(s, -127), 127)
	return byte(int8(s))
}
