// Package hdrfile reads linear HDR source files into half-float raw images.
package hdrfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"

	"github.com/vearutop/uhdr"
)

var (
	tiffLE = []byte{'I', 'I', 0x2A, 0}
	tiffBE = []byte{'M', 'M', 0, 0x2A}
)

// ErrUnknownFormat is returned for data that is neither OpenEXR nor TIFF.
var ErrUnknownFormat = errors.New("unknown hdr file format")

// Decode reads an OpenEXR or TIFF image. The result is FormatRGBAHalfFloat
// with linear transfer, BT.709 primaries and full range, 1.0 being SDR white.
func Decode(data []byte) (*uhdr.OwnedRawImage, error) {
	switch {
	case len(data) >= 4 && binary.LittleEndian.Uint32(data) == exrMagic:
		return decodeEXR(data)
	case bytes.HasPrefix(data, tiffLE), bytes.HasPrefix(data, tiffBE):
		return decodeTIFF(data)
	default:
		return nil, ErrUnknownFormat
	}
}

// ReadFile decodes the HDR image at path.
func ReadFile(path string) (*uhdr.OwnedRawImage, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

const halfOne = 0x3C00

// newHalfImage allocates an opaque black half-float image.
func newHalfImage(w, h int) *uhdr.OwnedRawImage {
	img := uhdr.NewRawImage(uhdr.FormatRGBAHalfFloat, uint32(w), uint32(h))
	img.Gamut = uhdr.GamutBT709
	img.Transfer = uhdr.TransferLinear
	img.Range = uhdr.RangeFull
	p := img.Planes[uhdr.PlanePacked]
	for i := 6; i < len(p); i += 8 {
		binary.LittleEndian.PutUint16(p[i:], halfOne)
	}
	return img
}

// setHalf stores channel c of pixel i.
func setHalf(img *uhdr.OwnedRawImage, i, c int, h uint16) {
	binary.LittleEndian.PutUint16(img.Planes[uhdr.PlanePacked][i*8+c*2:], h)
}

// float32ToHalf converts to IEEE 754 binary16, rounding half up.
func float32ToHalf(f float32) uint16 {
	bits := math.Float32bits(f)
	sign := uint16(bits>>16) & 0x8000
	exp := int32(bits>>23&0xFF) - 127 + 15
	mant := bits & 0x7FFFFF

	switch {
	case bits&0x7FFFFFFF == 0:
		return sign
	case bits&0x7F800000 == 0x7F800000:
		if mant != 0 {
			return sign | 0x7E00
		}
		return sign | 0x7C00
	case exp >= 0x1F:
		return sign | 0x7C00
	case exp <= 0:
		if exp < -10 {
			return sign
		}
		mant |= 0x800000
		shift := uint32(14 - exp)
		h := uint16(mant >> shift)
		if (mant>>(shift-1))&1 != 0 {
			h++
		}
		return sign | h
	}

	h := sign | uint16(exp)<<10 | uint16(mant>>13)
	if mant&0x1000 != 0 {
		h++
	}
	return h
}
