// Package video turns a PPU frame buffer into a standard image for saving
// to disk, replacing a hand-rolled ASCII PPM writer with a real encoder.
package video

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"gones/internal/neserr"
)

const (
	width  = 256
	height = 240
)

// ToImage converts a packed 0x00RRGGBB frame buffer into an *image.RGBA.
func ToImage(frameBuffer [width * height]uint32) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			pixel := frameBuffer[y*width+x]
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(pixel >> 16),
				G: uint8(pixel >> 8),
				B: uint8(pixel),
				A: 0xFF,
			})
		}
	}
	return img
}

// SavePNG encodes a frame buffer as a PNG file at path.
func SavePNG(frameBuffer [width * height]uint32, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", neserr.ErrIO, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := png.Encode(w, ToImage(frameBuffer)); err != nil {
		return fmt.Errorf("%w: %v", neserr.ErrIO, err)
	}
	return w.Flush()
}
