package jpegr

import (
	"errors"
	"image"
	"image/color"
	"math"

	"github.com/nfnt/resize"
	"github.com/vearutop/uhdr"
)

const (
	gainmapOffset = 1.0 / 64.0

	minLog2Gain = -14.3
	maxLog2Gain = 15.6
)

type gainmapConfig struct {
	scale        int
	gamma        float32
	multiChannel bool
	// minBoost and maxBoost are zero unless overridden.
	minBoost, maxBoost float32
	// peakNits bounds the computed max boost and sets the display headroom.
	peakNits      float32
	interpolation resize.InterpolationFunction
}

// generateGainmap computes the gain map taking sdr to hdr. Both images must
// share dimensions and gamut.
func generateGainmap(sdr, hdr *linearImage, cfg gainmapConfig) (image.Image, uhdr.GainmapMetadata, error) {
	if sdr.w != hdr.w || sdr.h != hdr.h {
		return nil, uhdr.GainmapMetadata{}, errors.New("sdr and hdr dimensions must match")
	}
	channels := 1
	if cfg.multiChannel {
		channels = 3
	}

	gains := make([]float32, sdr.w*sdr.h*channels)
	var lo, hi [3]float32
	for c := 0; c < channels; c++ {
		lo[c], hi[c] = math.MaxFloat32, -math.MaxFloat32
	}

	for y := 0; y < sdr.h; y++ {
		for x := 0; x < sdr.w; x++ {
			s, h := sdr.at(x, y), hdr.at(x, y)
			i := (y*sdr.w + x) * channels
			if cfg.multiChannel {
				gains[i] = computeGain(s.r, h.r)
				gains[i+1] = computeGain(s.g, h.g)
				gains[i+2] = computeGain(s.b, h.b)
			} else {
				gains[i] = computeGain(s.maxComponent(), h.maxComponent())
			}
			for c := 0; c < channels; c++ {
				lo[c] = min(lo[c], gains[i+c])
				hi[c] = max(hi[c], gains[i+c])
			}
		}
	}

	peakLog2 := float32(maxLog2Gain)
	if cfg.peakNits > sdrWhiteNits {
		peakLog2 = log2f(cfg.peakNits / sdrWhiteNits)
	}
	for c := 0; c < channels; c++ {
		if cfg.maxBoost > 0 {
			lo[c], hi[c] = log2f(cfg.minBoost), log2f(cfg.maxBoost)
			continue
		}
		lo[c] = clampf(lo[c], minLog2Gain, maxLog2Gain)
		hi[c] = clampf(hi[c], minLog2Gain, min(peakLog2, maxLog2Gain))
		if hi[c]-lo[c] < 1e-6 {
			hi[c] = lo[c] + 0.1
		}
	}

	rect := image.Rect(0, 0, sdr.w, sdr.h)
	var gm image.Image
	if cfg.multiChannel {
		out := image.NewRGBA(rect)
		for y := 0; y < sdr.h; y++ {
			for x := 0; x < sdr.w; x++ {
				i := (y*sdr.w + x) * 3
				out.SetRGBA(x, y, color.RGBA{
					R: affineMapGain(gains[i], lo[0], hi[0], cfg.gamma),
					G: affineMapGain(gains[i+1], lo[1], hi[1], cfg.gamma),
					B: affineMapGain(gains[i+2], lo[2], hi[2], cfg.gamma),
					A: 0xFF,
				})
			}
		}
		gm = out
	} else {
		out := image.NewGray(rect)
		for i, g := range gains {
			out.Pix[i] = affineMapGain(g, lo[0], hi[0], cfg.gamma)
		}
		gm = out
	}

	if cfg.scale > 1 {
		w := uint(max(sdr.w/cfg.scale, 1))
		h := uint(max(sdr.h/cfg.scale, 1))
		gm = resize.Resize(w, h, gm, cfg.interpolation)
	}

	meta := uhdr.GainmapMetadata{HDRCapacityMin: 1, UseBaseColorGamut: true}
	for c := 0; c < 3; c++ {
		src := c
		if channels == 1 {
			src = 0
		}
		meta.MinContentBoost[c] = exp2f(lo[src])
		meta.MaxContentBoost[c] = exp2f(hi[src])
		meta.Gamma[c] = cfg.gamma
		meta.OffsetSDR[c] = gainmapOffset
		meta.OffsetHDR[c] = gainmapOffset
		meta.HDRCapacityMax = max(meta.HDRCapacityMax, meta.MaxContentBoost[c])
	}
	if cfg.peakNits > 0 {
		meta.HDRCapacityMax = cfg.peakNits / sdrWhiteNits
	}
	meta.HDRCapacityMax = max(meta.HDRCapacityMax, meta.HDRCapacityMin)

	return gm, meta, nil
}

func computeGain(sdr, hdr float32) float32 {
	return log2f((hdr + gainmapOffset) / (sdr + gainmapOffset))
}

func affineMapGain(gainLog2, minLog2, maxLog2, gamma float32) uint8 {
	mapped := clampf((gainLog2-minLog2)/(maxLog2-minLog2), 0, 1)
	if gamma != 1 {
		mapped = powf(mapped, gamma)
	}
	return uint8(mapped*255 + 0.5)
}

// applyGain renders sdr towards hdr with the given gain map value in [0, 1]
// and display weight in [0, 1].
func applyGain(sdr rgb, gain rgb, meta *uhdr.GainmapMetadata, weight float32) rgb {
	g := [3]float32{gain.r, gain.g, gain.b}
	e := [3]float32{sdr.r, sdr.g, sdr.b}
	for c := 0; c < 3; c++ {
		v := g[c]
		if meta.Gamma[c] != 1 {
			v = powf(v, 1/meta.Gamma[c])
		}
		logBoost := log2f(meta.MinContentBoost[c])*(1-v) + log2f(meta.MaxContentBoost[c])*v
		e[c] = (e[c]+meta.OffsetSDR[c])*exp2f(logBoost*weight) - meta.OffsetHDR[c]
	}
	return rgb{e[0], e[1], e[2]}
}

// tonemap renders linear HDR into sRGB-encoded BT.709 SDR.
func tonemap(hdr *linearImage, peakNits float32) *image.RGBA {
	src := hdr.convert(uhdr.GamutBT709)
	headroom := max(peakNits/sdrWhiteNits, 1)
	out := image.NewRGBA(image.Rect(0, 0, hdr.w, hdr.h))
	for y := 0; y < hdr.h; y++ {
		for x := 0; x < hdr.w; x++ {
			v := src.at(x, y)
			m := v.maxComponent()
			if m > 0 {
				// Extended Reinhard on the max component, white point at headroom.
				v = v.scale(m * (1 + m/(headroom*headroom)) / (1 + m) / m)
			}
			v = v.clamp(0, 1)
			i := out.PixOffset(x, y)
			out.Pix[i] = uint8(srgbOetf(v.r)*255 + 0.5)
			out.Pix[i+1] = uint8(srgbOetf(v.g)*255 + 0.5)
			out.Pix[i+2] = uint8(srgbOetf(v.b)*255 + 0.5)
			out.Pix[i+3] = 0xFF
		}
	}
	return out
}
