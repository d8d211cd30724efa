package uhdr

import "strconv"

// PixelFormat identifies the memory layout of a raw image.
type PixelFormat int32

const (
	// FormatUnspecified carries no pixel data, all planes are empty.
	FormatUnspecified PixelFormat = -1
	// FormatYCbCrP010 is 10-bit 4:2:0 in 16-bit little-endian words, with luma
	// in PlaneY and interleaved Cb/Cr pairs in PlaneUV.
	FormatYCbCrP010 PixelFormat = 0
	// FormatYCbCr420 is 8-bit planar 4:2:0.
	FormatYCbCr420 PixelFormat = 1
	// FormatYCbCr400 is 8-bit monochrome, only PlaneY is populated.
	FormatYCbCr400 PixelFormat = 2
	// FormatRGBA8888 is packed 8-bit RGBA.
	FormatRGBA8888 PixelFormat = 3
	// FormatRGBAHalfFloat is packed RGBA with IEEE 754 half precision samples.
	FormatRGBAHalfFloat PixelFormat = 4
	// FormatRGBA1010102 is packed 32-bit words, 10 bits per color and 2 bits alpha,
	// red in the least significant bits.
	FormatRGBA1010102 PixelFormat = 5
	// FormatYCbCr444 is 8-bit planar 4:4:4.
	FormatYCbCr444 PixelFormat = 6
	// FormatYCbCr422 is 8-bit planar 4:2:2.
	FormatYCbCr422 PixelFormat = 7
	// FormatYCbCr440 is 8-bit planar 4:4:0.
	FormatYCbCr440 PixelFormat = 8
	// FormatYCbCr411 is 8-bit planar 4:1:1.
	FormatYCbCr411 PixelFormat = 9
	// FormatYCbCr410 is 8-bit planar 4:1:0.
	FormatYCbCr410 PixelFormat = 10
	// FormatRGB888 is packed 8-bit RGB.
	FormatRGB888 PixelFormat = 11
	// FormatYCbCr444P10 is 10-bit planar 4:4:4 in 16-bit little-endian words.
	FormatYCbCr444P10 PixelFormat = 12

	formatCount = 13
)

// FormatFamily groups pixel formats that share a plane arrangement.
type FormatFamily int

const (
	// FamilyNone has no planes.
	FamilyNone FormatFamily = iota
	// FamilyPlanar has one plane per channel.
	FamilyPlanar
	// FamilySemiPlanar has a luma plane and one interleaved chroma plane.
	FamilySemiPlanar
	// FamilyPacked keeps all channels in a single plane.
	FamilyPacked
)

// Subsampling is the horizontal and vertical divisor of a plane relative to
// the image dimensions.
type Subsampling struct {
	DX, DY int
}

// FormatInfo describes the planes of a pixel format.
type FormatInfo struct {
	Family FormatFamily
	// Planes is the number of populated plane slots, starting from slot 0.
	Planes      int
	Subsampling [3]Subsampling
	// Samples is the number of samples stored per plane element.
	Samples        [3]int
	BytesPerSample int
}

var fullRes = Subsampling{DX: 1, DY: 1}

var formatInfoTable = [formatCount]FormatInfo{
	FormatYCbCrP010: {
		Family:         FamilySemiPlanar,
		Planes:         2,
		Subsampling:    [3]Subsampling{fullRes, {DX: 2, DY: 2}},
		Samples:        [3]int{1, 2},
		BytesPerSample: 2,
	},
	FormatYCbCr420:    planar8(2, 2),
	FormatYCbCr422:    planar8(2, 1),
	FormatYCbCr440:    planar8(1, 2),
	FormatYCbCr444:    planar8(1, 1),
	FormatYCbCr411:    planar8(4, 1),
	FormatYCbCr410:    planar8(4, 2),
	FormatYCbCr400: {
		Family:         FamilyPlanar,
		Planes:         1,
		Subsampling:    [3]Subsampling{fullRes},
		Samples:        [3]int{1},
		BytesPerSample: 1,
	},
	FormatYCbCr444P10: {
		Family:         FamilyPlanar,
		Planes:         3,
		Subsampling:    [3]Subsampling{fullRes, fullRes, fullRes},
		Samples:        [3]int{1, 1, 1},
		BytesPerSample: 2,
	},
	FormatRGB888:        packed(1, 3),
	FormatRGBA8888:      packed(1, 4),
	FormatRGBA1010102:   packed(4, 1),
	FormatRGBAHalfFloat: packed(2, 4),
}

func planar8(dx, dy int) FormatInfo {
	c := Subsampling{DX: dx, DY: dy}
	return FormatInfo{
		Family:         FamilyPlanar,
		Planes:         3,
		Subsampling:    [3]Subsampling{fullRes, c, c},
		Samples:        [3]int{1, 1, 1},
		BytesPerSample: 1,
	}
}

func packed(bytesPerSample, samples int) FormatInfo {
	return FormatInfo{
		Family:         FamilyPacked,
		Planes:         1,
		Subsampling:    [3]Subsampling{fullRes},
		Samples:        [3]int{samples},
		BytesPerSample: bytesPerSample,
	}
}

// Formats lists every pixel format with pixel data, in tag order.
func Formats() []PixelFormat {
	out := make([]PixelFormat, 0, formatCount)
	for f := PixelFormat(0); f < formatCount; f++ {
		out = append(out, f)
	}
	return out
}

// Info returns the catalog entry of the format.
// FormatUnspecified reports an empty FamilyNone entry, unknown tags report false.
func (f PixelFormat) Info() (FormatInfo, bool) {
	if f == FormatUnspecified {
		return FormatInfo{Family: FamilyNone}, true
	}
	if f < 0 || f >= formatCount {
		return FormatInfo{}, false
	}
	return formatInfoTable[f], true
}

// Family returns the plane arrangement of a known format.
func (f PixelFormat) Family() FormatFamily {
	info, _ := f.Info()
	return info.Family
}

// BytesPerPixel returns the number of bytes a single pixel occupies in
// PlaneY (or PlanePacked).
func (f PixelFormat) BytesPerPixel() int {
	info, ok := f.Info()
	if !ok {
		return 0
	}
	return info.BytesPerSample * info.Samples[0]
}

func (f PixelFormat) String() string {
	switch f {
	case FormatUnspecified:
		return "unspecified"
	case FormatYCbCrP010:
		return "p010"
	case FormatYCbCr420:
		return "yuv420"
	case FormatYCbCr400:
		return "yuv400"
	case FormatRGBA8888:
		return "rgba8888"
	case FormatRGBAHalfFloat:
		return "rgbahalffloat"
	case FormatRGBA1010102:
		return "rgba1010102"
	case FormatYCbCr444:
		return "yuv444"
	case FormatYCbCr422:
		return "yuv422"
	case FormatYCbCr440:
		return "yuv440"
	case FormatYCbCr411:
		return "yuv411"
	case FormatYCbCr410:
		return "yuv410"
	case FormatRGB888:
		return "rgb888"
	case FormatYCbCr444P10:
		return "yuv444p10"
	default:
		return "format(" + strconv.Itoa(int(f)) + ")"
	}
}

// ParsePixelFormat maps a format name produced by PixelFormat.String back to its tag.
func ParsePixelFormat(s string) (PixelFormat, bool) {
	if s == FormatUnspecified.String() {
		return FormatUnspecified, true
	}
	for _, f := range Formats() {
		if f.String() == s {
			return f, true
		}
	}
	return FormatUnspecified, false
}
