package hdrfile

import (
	"bytes"
	"image"

	"github.com/vearutop/uhdr"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
)

// decodeTIFF reads an 8 or 16-bit TIFF whose samples are linear light.
func decodeTIFF(data []byte) (*uhdr.OwnedRawImage, error) {
	src, err := tiff.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	b := src.Bounds()
	rgba := image.NewRGBA64(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), src, b.Min, draw.Src)

	var lut [65536]uint16
	img := newHalfImage(b.Dx(), b.Dy())
	for i := 0; i < b.Dx()*b.Dy(); i++ {
		for c := 0; c < 3; c++ {
			v := uint16(rgba.Pix[i*8+c*2])<<8 | uint16(rgba.Pix[i*8+c*2+1])
			if lut[v] == 0 && v != 0 {
				lut[v] = float32ToHalf(float32(v) / 0xFFFF)
			}
			setHalf(img, i, c, lut[v])
		}
	}
	return img, nil
}
