package jpegr

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/vearutop/uhdr"
)

// linearImage holds linear RGB triplets where 1.0 is SDR white.
type linearImage struct {
	w, h  int
	gamut uhdr.ColorGamut
	pix   []float32
}

func newLinearImage(w, h int, g uhdr.ColorGamut) *linearImage {
	return &linearImage{w: w, h: h, gamut: g, pix: make([]float32, w*h*3)}
}

func (im *linearImage) at(x, y int) rgb {
	i := (y*im.w + x) * 3
	return rgb{im.pix[i], im.pix[i+1], im.pix[i+2]}
}

func (im *linearImage) set(x, y int, v rgb) {
	i := (y*im.w + x) * 3
	im.pix[i], im.pix[i+1], im.pix[i+2] = v.r, v.g, v.b
}

// convert returns the image in another gamut, clipping negative components.
func (im *linearImage) convert(to uhdr.ColorGamut) *linearImage {
	if im.gamut == to {
		return im
	}
	conv := gamutConverter(im.gamut, to)
	out := newLinearImage(im.w, im.h, to)
	for y := 0; y < im.h; y++ {
		for x := 0; x < im.w; x++ {
			out.set(x, y, conv(im.at(x, y)).clamp(0, math.MaxFloat32))
		}
	}
	return out
}

var sdrSubsampling = map[uhdr.PixelFormat]image.YCbCrSubsampleRatio{
	uhdr.FormatYCbCr444: image.YCbCrSubsampleRatio444,
	uhdr.FormatYCbCr422: image.YCbCrSubsampleRatio422,
	uhdr.FormatYCbCr420: image.YCbCrSubsampleRatio420,
	uhdr.FormatYCbCr440: image.YCbCrSubsampleRatio440,
	uhdr.FormatYCbCr411: image.YCbCrSubsampleRatio411,
	uhdr.FormatYCbCr410: image.YCbCrSubsampleRatio410,
}

func isSDRFormat(f uhdr.PixelFormat) bool {
	_, ok := sdrSubsampling[f]
	return ok || f == uhdr.FormatYCbCr400 || f == uhdr.FormatRGB888 || f == uhdr.FormatRGBA8888
}

func isHDRFormat(f uhdr.PixelFormat) bool {
	switch f {
	case uhdr.FormatYCbCrP010, uhdr.FormatYCbCr444P10, uhdr.FormatRGBA1010102, uhdr.FormatRGBAHalfFloat:
		return true
	default:
		return false
	}
}

func expandLimitedLuma(v byte) byte {
	return uint8(clampf((float32(v)-16)*255/219+0.5, 0, 255))
}

func expandLimitedChroma(v byte) byte {
	return uint8(clampf((float32(v)-128)*255/224+128.5, 0, 255))
}

// sdrImage wraps 8-bit raw planes into an sRGB-encoded image.
func sdrImage(img *uhdr.OwnedRawImage) (image.Image, error) {
	w, h := int(img.Width), int(img.Height)
	rect := image.Rect(0, 0, w, h)
	limited := img.Range == uhdr.RangeLimited

	if ratio, ok := sdrSubsampling[img.Format]; ok {
		out := image.NewYCbCr(rect, ratio)
		copy(out.Y, img.Planes[uhdr.PlaneY])
		copy(out.Cb, img.Planes[uhdr.PlaneU])
		copy(out.Cr, img.Planes[uhdr.PlaneV])
		if limited {
			for i, v := range out.Y {
				out.Y[i] = expandLimitedLuma(v)
			}
			for i := range out.Cb {
				out.Cb[i] = expandLimitedChroma(out.Cb[i])
				out.Cr[i] = expandLimitedChroma(out.Cr[i])
			}
		}
		return out, nil
	}

	switch img.Format {
	case uhdr.FormatYCbCr400:
		out := image.NewGray(rect)
		copy(out.Pix, img.Planes[uhdr.PlaneY])
		if limited {
			for i, v := range out.Pix {
				out.Pix[i] = expandLimitedLuma(v)
			}
		}
		return out, nil
	case uhdr.FormatRGB888:
		out := image.NewRGBA(rect)
		src := img.Planes[uhdr.PlanePacked]
		for i := 0; i < w*h; i++ {
			copy(out.Pix[i*4:i*4+3], src[i*3:i*3+3])
			out.Pix[i*4+3] = 0xFF
		}
		return out, nil
	case uhdr.FormatRGBA8888:
		out := image.NewRGBA(rect)
		src := img.Planes[uhdr.PlanePacked]
		for i := 0; i < w*h; i++ {
			copy(out.Pix[i*4:i*4+3], src[i*4:i*4+3])
			out.Pix[i*4+3] = 0xFF
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s is not an sdr format", img.Format)
	}
}

// linearizeSDR decodes an sRGB-encoded image into linear light.
func linearizeSDR(img image.Image, g uhdr.ColorGamut) *linearImage {
	b := img.Bounds()
	out := newLinearImage(b.Dx(), b.Dy(), g)
	var lut [256]float32
	for i := range lut {
		lut[i] = srgbInvOetf(float32(i) / 255)
	}
	for y := 0; y < out.h; y++ {
		for x := 0; x < out.w; x++ {
			r, gg, bb, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			out.set(x, y, rgb{lut[r>>8], lut[gg>>8], lut[bb>>8]})
		}
	}
	return out
}

func le16(b []byte, i int) uint16 { return binary.LittleEndian.Uint16(b[i*2:]) }

// decodeHDR converts HDR raw planes into linear light.
func decodeHDR(img *uhdr.OwnedRawImage) (*linearImage, error) {
	w, h := int(img.Width), int(img.Height)
	out := newLinearImage(w, h, img.Gamut)
	limited := img.Range == uhdr.RangeLimited

	// Normalizes 10-bit samples, chroma centered on zero.
	norm := func(y, u, v uint16) (float32, float32, float32) {
		if limited {
			return (float32(y) - 64) / 876, (float32(u) - 512) / 896, (float32(v) - 512) / 896
		}
		return float32(y) / 1023, float32(u)/1023 - 0.5, float32(v)/1023 - 0.5
	}

	switch img.Format {
	case uhdr.FormatYCbCrP010:
		luma, chroma := img.Planes[uhdr.PlaneY], img.Planes[uhdr.PlaneUV]
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				c := (y/2)*(w/2) + x/2
				yy, u, v := norm(le16(luma, y*w+x)>>6, le16(chroma, c*2)>>6, le16(chroma, c*2+1)>>6)
				out.set(x, y, hdrInvOetf(yuvToRGB(yy, u, v, img.Gamut).clamp(0, 1), img.Transfer))
			}
		}
	case uhdr.FormatYCbCr444P10:
		py, pu, pv := img.Planes[uhdr.PlaneY], img.Planes[uhdr.PlaneU], img.Planes[uhdr.PlaneV]
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				i := y*w + x
				yy, u, v := norm(le16(py, i)&0x3FF, le16(pu, i)&0x3FF, le16(pv, i)&0x3FF)
				out.set(x, y, hdrInvOetf(yuvToRGB(yy, u, v, img.Gamut).clamp(0, 1), img.Transfer))
			}
		}
	case uhdr.FormatRGBA1010102:
		p := img.Planes[uhdr.PlanePacked]
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				v := binary.LittleEndian.Uint32(p[(y*w+x)*4:])
				e := rgb{
					float32(v&0x3FF) / 1023,
					float32((v>>10)&0x3FF) / 1023,
					float32((v>>20)&0x3FF) / 1023,
				}
				out.set(x, y, hdrInvOetf(e, img.Transfer))
			}
		}
	case uhdr.FormatRGBAHalfFloat:
		p := img.Planes[uhdr.PlanePacked]
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				i := (y*w + x) * 4
				v := rgb{halfToFloat32(le16(p, i)), halfToFloat32(le16(p, i+1)), halfToFloat32(le16(p, i+2))}
				out.set(x, y, v.clamp(0, math.MaxFloat32))
			}
		}
	default:
		return nil, errors.New(img.Format.String() + " is not an hdr format")
	}
	return out, nil
}

// halfToFloat32 converts an IEEE 754 binary16 value.
func halfToFloat32(h uint16) float32 {
	sign := uint32(h>>15) & 0x1
	exp := int32(h>>10) & 0x1F
	mant := int32(h & 0x03FF)

	switch {
	case exp == 0 && mant == 0:
		return math.Float32frombits(sign << 31)
	case exp == 0:
		for mant&0x0400 == 0 {
			mant <<= 1
			exp--
		}
		exp++
		mant &= 0x03FF
	case exp == 31:
		return math.Float32frombits((sign << 31) | 0x7F800000 | (uint32(mant) << 13))
	}

	return math.Float32frombits((sign << 31) | (uint32(exp+127-15) << 23) | (uint32(mant) << 13))
}
