package jpegr

import (
	"math"

	"github.com/vearutop/uhdr"
)

// sdrWhiteNits is the luminance of SDR reference white, linear 1.0.
const sdrWhiteNits = 203.0

const (
	pqMaxNits  = 10000.0
	hlgMaxNits = 1000.0
)

type rgb struct {
	r, g, b float32
}

func (v rgb) scale(s float32) rgb { return rgb{v.r * s, v.g * s, v.b * s} }

func (v rgb) clamp(lo, hi float32) rgb {
	return rgb{clampf(v.r, lo, hi), clampf(v.g, lo, hi), clampf(v.b, lo, hi)}
}

func (v rgb) maxComponent() float32 { return max(v.r, v.g, v.b) }

func clampf(v, lo, hi float32) float32 {
	if v < lo || math.IsNaN(float64(v)) {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func log2f(v float32) float32 { return float32(math.Log2(float64(v))) }
func exp2f(v float32) float32 { return float32(math.Exp2(float64(v))) }
func powf(v, e float32) float32 {
	return float32(math.Pow(float64(v), float64(e)))
}

func srgbInvOetf(v float32) float32 {
	if v <= 0.04045 {
		return v / 12.92
	}
	return powf((v+0.055)/1.055, 2.4)
}

func srgbOetf(v float32) float32 {
	if v <= 0.0031308 {
		return 12.92 * v
	}
	return 1.055*powf(v, 1.0/2.4) - 0.055
}

// SMPTE ST 2084 constants.
const (
	pqM1 = 2610.0 / 16384.0
	pqM2 = 2523.0 / 4096.0 * 128.0
	pqC1 = 3424.0 / 4096.0
	pqC2 = 2413.0 / 4096.0 * 32.0
	pqC3 = 2392.0 / 4096.0 * 32.0
)

// pqInvOetf maps a PQ signal to linear light where 1.0 is 10000 nits.
func pqInvOetf(e float32) float32 {
	if e <= 0 {
		return 0
	}
	p := powf(e, 1/pqM2)
	return powf(max(p-pqC1, 0)/(pqC2-pqC3*p), 1/pqM1)
}

func pqOetf(v float32) float32 {
	if v <= 0 {
		return 0
	}
	p := powf(v, pqM1)
	return powf((pqC1+pqC2*p)/(1+pqC3*p), pqM2)
}

// ARIB STD-B67 constants.
const (
	hlgA = 0.17883277
	hlgB = 0.28466892
	hlgC = 0.55991073
)

// hlgInvOetf maps an HLG signal to scene light in [0, 1].
func hlgInvOetf(e float32) float32 {
	if e <= 0.5 {
		return e * e / 3
	}
	return float32((math.Exp((float64(e)-hlgC)/hlgA) + hlgB) / 12)
}

func hlgOetf(v float32) float32 {
	if v <= 1.0/12.0 {
		return float32(math.Sqrt(3 * float64(v)))
	}
	return float32(hlgA*math.Log(12*float64(v)-hlgB) + hlgC)
}

// hlgOotf maps BT.2100 scene light to display light where 1.0 is the
// nominal 1000 nits peak.
func hlgOotf(v rgb) rgb {
	const gamma = 1.2
	y := bt2100Luminance(v)
	if y <= 0 {
		return rgb{}
	}
	return v.scale(powf(y, gamma-1))
}

func bt709Luminance(v rgb) float32 { return 0.2126*v.r + 0.7152*v.g + 0.0722*v.b }
func p3Luminance(v rgb) float32 { return 0.2289746*v.r + 0.6917385*v.g + 0.0792869*v.b }
func bt2100Luminance(v rgb) float32 { return 0.2627*v.r + 0.677998*v.g + 0.059302*v.b }

func luminance(v rgb, g uhdr.ColorGamut) float32 {
	switch g {
	case uhdr.GamutDisplayP3:
		return p3Luminance(v)
	case uhdr.GamutBT2100:
		return bt2100Luminance(v)
	default:
		return bt709Luminance(v)
	}
}

// hdrInvOetf maps an HDR signal to linear light where 1.0 is SDR white.
func hdrInvOetf(v rgb, t uhdr.ColorTransfer) rgb {
	switch t {
	case uhdr.TransferPQ:
		return rgb{pqInvOetf(v.r), pqInvOetf(v.g), pqInvOetf(v.b)}.scale(pqMaxNits / sdrWhiteNits)
	case uhdr.TransferHLG:
		return hlgOotf(rgb{hlgInvOetf(v.r), hlgInvOetf(v.g), hlgInvOetf(v.b)}).scale(hlgMaxNits / sdrWhiteNits)
	default:
		return v
	}
}

// peakNits is the nominal peak luminance of a transfer.
func peakNits(t uhdr.ColorTransfer) float32 {
	switch t {
	case uhdr.TransferPQ:
		return pqMaxNits
	case uhdr.TransferHLG:
		return hlgMaxNits
	default:
		return 4 * sdrWhiteNits
	}
}

type mat3 [9]float32

func (m *mat3) apply(v rgb) rgb {
	return rgb{
		m[0]*v.r + m[1]*v.g + m[2]*v.b,
		m[3]*v.r + m[4]*v.g + m[5]*v.b,
		m[6]*v.r + m[7]*v.g + m[8]*v.b,
	}
}

// Linear RGB to CIE XYZ, D65.
var (
	bt709ToXYZ = mat3{
		0.4123908, 0.35758433, 0.1804808,
		0.212639, 0.71516865, 0.07219232,
		0.019330818, 0.11919478, 0.95053214,
	}
	p3ToXYZ = mat3{
		0.48657095, 0.2656677, 0.19821729,
		0.22897457, 0.69173855, 0.07928691,
		0, 0.04511338, 1.0439444,
	}
	bt2100ToXYZ = mat3{
		0.636958, 0.1446169, 0.168881,
		0.2627002, 0.6779981, 0.0593017,
		0, 0.0280727, 1.0609851,
	}
	xyzToBT709 = mat3{
		3.24097, -1.5373832, -0.49861076,
		-0.96924365, 1.8759675, 0.041555058,
		0.05563008, -0.20397696, 1.0569715,
	}
	xyzToP3 = mat3{
		2.493497, -0.9313836, -0.4027108,
		-0.829489, 1.7626641, 0.023624685,
		0.03584583, -0.07617239, 0.9568845,
	}
	xyzToBT2100 = mat3{
		1.7166512, -0.3556708, -0.2533663,
		-0.6666844, 1.6164812, 0.0157685,
		0.0176399, -0.0427706, 0.9421031,
	}
)

func toXYZ(g uhdr.ColorGamut) *mat3 {
	switch g {
	case uhdr.GamutDisplayP3:
		return &p3ToXYZ
	case uhdr.GamutBT2100:
		return &bt2100ToXYZ
	default:
		return &bt709ToXYZ
	}
}

func fromXYZ(g uhdr.ColorGamut) *mat3 {
	switch g {
	case uhdr.GamutDisplayP3:
		return &xyzToP3
	case uhdr.GamutBT2100:
		return &xyzToBT2100
	default:
		return &xyzToBT709
	}
}

// gamutConverter returns a function converting linear RGB between gamuts.
func gamutConverter(from, to uhdr.ColorGamut) func(rgb) rgb {
	if from == to {
		return func(v rgb) rgb { return v }
	}
	a, b := toXYZ(from), fromXYZ(to)
	return func(v rgb) rgb { return b.apply(a.apply(v)) }
}

// yuvToRGB converts full-range YCbCr with centered chroma to nonlinear RGB
// using the matrix coefficients of the gamut.
func yuvToRGB(y, u, v float32, g uhdr.ColorGamut) rgb {
	switch g {
	case uhdr.GamutBT2100:
		return rgb{y + 1.4746*v, y - 0.16455312684*u - 0.57135312684*v, y + 1.8814*u}
	case uhdr.GamutDisplayP3:
		return rgb{y + 1.402*v, y - 0.344136*u - 0.714136*v, y + 1.772*u}
	default:
		return rgb{y + 1.5748*v, y - 0.1873*u - 0.4681*v, y + 1.8556*u}
	}
}
