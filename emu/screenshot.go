package emu

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Screenshot returns a copy of frame scaled by scale, with label printed in
// the top left corner if non empty.
func Screenshot(frame *image.RGBA, scale int, label string) *image.RGBA {
	scale = max(scale, 1)
	b := frame.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*scale, b.Dy()*scale))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), frame, b, draw.Src, nil)

	if label != "" {
		face := basicfont.Face7x13
		d := font.Drawer{
			Dst:  dst,
			Src:  image.NewUniform(color.RGBA{0xff, 0xff, 0x00, 0xff}),
			Face: face,
			Dot:  fixed.P(2, face.Ascent+1),
		}
		d.DrawString(label)
	}
	return dst
}

// SaveAsPNG writes img as a png file at path.
func SaveAsPNG(img image.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("error encoding %s: %v", path, err)
	}
	return f.Close()
}
