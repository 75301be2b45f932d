package cores

import "arcore/hw/video"

// Overlay is a compositor showing non-zero sprite pixels over the system
// frame buffer. Pixels are RGB565.
type Overlay struct{}

func (Overlay) Pixel(_ video.Beam, sys, spr uint16) uint32 {
	if spr != 0 {
		return RGB565(spr)
	}
	return RGB565(sys)
}

// RGB565 converts an RGB565 color to 0xRRGGBB.
func RGB565(c uint16) uint32 {
	r := uint32(c>>11) & 0x1F
	g := uint32(c>>5) & 0x3F
	b := uint32(c) & 0x1F
	r = r<<3 | r>>2
	g = g<<2 | g>>4
	b = b<<3 | b>>2
	return r<<16 | g<<8 | b
}
