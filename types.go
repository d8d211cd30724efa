package uhdr

import "strconv"

// ColorGamut identifies a color gamut tag understood by the codec.
type ColorGamut int32

const (
	GamutUnspecified ColorGamut = -1
	GamutBT709       ColorGamut = 0
	GamutDisplayP3   ColorGamut = 1
	GamutBT2100      ColorGamut = 2
)

func (g ColorGamut) String() string {
	switch g {
	case GamutUnspecified:
		return "unspecified"
	case GamutBT709:
		return "bt709"
	case GamutDisplayP3:
		return "display-p3"
	case GamutBT2100:
		return "bt2100"
	default:
		return "gamut(" + strconv.Itoa(int(g)) + ")"
	}
}

// ColorTransfer identifies a transfer function tag understood by the codec.
type ColorTransfer int32

const (
	TransferUnspecified ColorTransfer = -1
	TransferHLG         ColorTransfer = 0
	TransferPQ          ColorTransfer = 1
	TransferLinear      ColorTransfer = 2
	TransferSRGB        ColorTransfer = 3
)

func (t ColorTransfer) String() string {
	switch t {
	case TransferUnspecified:
		return "unspecified"
	case TransferHLG:
		return "hlg"
	case TransferPQ:
		return "pq"
	case TransferLinear:
		return "linear"
	case TransferSRGB:
		return "srgb"
	default:
		return "transfer(" + strconv.Itoa(int(t)) + ")"
	}
}

// ColorRange identifies the sample value range.
type ColorRange int32

const (
	RangeUnspecified ColorRange = -1
	RangeLimited     ColorRange = 0
	RangeFull        ColorRange = 1
)

func (r ColorRange) String() string {
	switch r {
	case RangeUnspecified:
		return "unspecified"
	case RangeLimited:
		return "limited"
	case RangeFull:
		return "full"
	default:
		return "range(" + strconv.Itoa(int(r)) + ")"
	}
}

// ImageLabel is the intent label of an image supplied to an encoder session.
type ImageLabel int32

const (
	LabelSDR     ImageLabel = 0
	LabelHDR     ImageLabel = 1
	LabelBase    ImageLabel = 2
	LabelGainMap ImageLabel = 3
)

func (l ImageLabel) String() string {
	switch l {
	case LabelSDR:
		return "sdr"
	case LabelHDR:
		return "hdr"
	case LabelBase:
		return "base"
	case LabelGainMap:
		return "gainmap"
	default:
		return "label(" + strconv.Itoa(int(l)) + ")"
	}
}

// Plane slots of a raw image.
// Semi-planar formats keep interleaved chroma in PlaneUV, packed formats keep
// all samples in PlanePacked.
const (
	PlaneY      = 0
	PlaneU      = 1
	PlaneUV     = 1
	PlaneV      = 2
	PlanePacked = 0
)
