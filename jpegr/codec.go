// Package jpegr is a pure Go codec producing JPEG/R (UltraHDR) images.
//
// Codec implements uhdr.Codec, so it can back a uhdr.Encoder session:
//
//	enc := jpegr.NewEncoder()
//	defer enc.Close()
//
// An HDR rendition, optionally paired with an SDR one, is encoded into an
// SDR JPEG base image with a gain map JPEG, ISO 21496-1 and XMP gain map
// metadata and a Multi-Picture Format index.
package jpegr

import (
	"errors"
	"fmt"
	"math"

	"github.com/nfnt/resize"
	"github.com/vearutop/uhdr"
)

const (
	defaultQuality      = 95
	defaultScaleFactor  = 1
	maxScaleFactor      = 128
	defaultGainmapGamma = 1
	minTargetPeakNits   = sdrWhiteNits
	maxTargetPeakNits   = pqMaxNits
)

// Options configures a Codec.
type Options struct {
	// Interpolation is the filter used to downscale the gain map, default resize.Bilinear.
	Interpolation resize.InterpolationFunction
}

// compressedInput is a copied encoded image with its color metadata.
type compressedInput struct {
	data     []byte
	gamut    uhdr.ColorGamut
	transfer uhdr.ColorTransfer
	rng      uhdr.ColorRange
}

// Codec is a JPEG/R encoder handle. It copies every input it accepts and
// owns its output until Reset or Release. Codec is not safe for concurrent use.
type Codec struct {
	opt Options

	sdrRaw      *uhdr.OwnedRawImage
	hdrRaw      *uhdr.OwnedRawImage
	sdrJPEG     *compressedInput
	baseJPEG    *compressedInput
	gainmapJPEG *compressedInput
	gainmapMeta *uhdr.GainmapMetadata
	exif        []byte

	baseQuality    int
	gainmapQuality int
	scale          int
	gamma          float32
	multiChannel   bool
	minBoost       float32
	maxBoost       float32
	targetPeak     float32

	out      *uhdr.CompressedImageDescriptor
	outBytes []byte
	released bool
}

var _ uhdr.Codec = (*Codec)(nil)

// New creates a codec handle with default settings.
func New(opts ...func(o *Options)) *Codec {
	c := &Codec{opt: Options{Interpolation: resize.Bilinear}}
	for _, applyOpt := range opts {
		applyOpt(&c.opt)
	}
	c.Reset()
	return c
}

// NewEncoder starts a uhdr.Encoder session over a new codec handle.
func NewEncoder(opts ...func(o *Options)) *uhdr.Encoder {
	return uhdr.NewEncoder(New(opts...))
}

func codecErr(code uhdr.ErrorCode, format string, args ...any) error {
	return &uhdr.Error{Code: code, Detail: fmt.Sprintf(format, args...), HasDetail: true}
}

func invalidParam(format string, args ...any) error {
	return codecErr(uhdr.CodecInvalidParam, format, args...)
}

func toStatus(err error) uhdr.Status {
	if err == nil {
		return uhdr.OKStatus()
	}
	var e *uhdr.Error
	if errors.As(err, &e) {
		return uhdr.NewStatus(e.Code, e.Detail)
	}
	return uhdr.NewStatus(uhdr.CodecError, err.Error())
}

// configurable reports whether setters are accepted in the current state.
func (c *Codec) configurable() error {
	if c.released {
		return codecErr(uhdr.CodecInvalidOperation, "codec is released")
	}
	if c.out != nil {
		return codecErr(uhdr.CodecInvalidOperation, "encode already called, reset the codec to reconfigure")
	}
	return nil
}

func (c *Codec) set(fn func() error) uhdr.Status {
	if err := c.configurable(); err != nil {
		return toStatus(err)
	}
	return toStatus(fn())
}

// SetRawImage copies an uncompressed SDR or HDR rendition.
func (c *Codec) SetRawImage(d *uhdr.RawImageDescriptor, label uhdr.ImageLabel) uhdr.Status {
	return c.set(func() error {
		if d == nil {
			return invalidParam("raw image is missing")
		}
		if label != uhdr.LabelSDR && label != uhdr.LabelHDR {
			return invalidParam("raw image label %s, want sdr or hdr", label)
		}
		if err := validateRaw(d, label); err != nil {
			return err
		}

		img := uhdr.MutRawImageFromDescriptor(d).Borrow().ToOwned()
		if label == uhdr.LabelSDR {
			c.sdrRaw, c.sdrJPEG = img, nil
		} else {
			c.hdrRaw = img
		}
		return nil
	})
}

func validateRaw(d *uhdr.RawImageDescriptor, label uhdr.ImageLabel) error {
	info, ok := d.Format.Info()
	if !ok || d.Format == uhdr.FormatUnspecified {
		return invalidParam("unsupported pixel format %s", d.Format)
	}
	if label == uhdr.LabelSDR && !isSDRFormat(d.Format) {
		return invalidParam("pixel format %s is not accepted for sdr intent", d.Format)
	}
	if label == uhdr.LabelHDR && !isHDRFormat(d.Format) {
		return invalidParam("pixel format %s is not accepted for hdr intent", d.Format)
	}
	if d.Width == 0 || d.Height == 0 {
		return invalidParam("invalid dimensions %dx%d", d.Width, d.Height)
	}
	for i := 0; i < info.Planes; i++ {
		s := info.Subsampling[i]
		if d.Width%uint32(s.DX) != 0 || d.Height%uint32(s.DY) != 0 {
			return invalidParam("dimensions %dx%d are not divisible by chroma subsampling %dx%d",
				d.Width, d.Height, s.DX, s.DY)
		}
	}

	if d.Gamut < uhdr.GamutBT709 || d.Gamut > uhdr.GamutBT2100 {
		return invalidParam("unsupported color gamut %s", d.Gamut)
	}
	switch {
	case label == uhdr.LabelSDR && d.Transfer != uhdr.TransferSRGB:
		return invalidParam("sdr transfer %s, want srgb", d.Transfer)
	case label == uhdr.LabelHDR && d.Format == uhdr.FormatRGBAHalfFloat && d.Transfer != uhdr.TransferLinear:
		return invalidParam("half float transfer %s, want linear", d.Transfer)
	case label == uhdr.LabelHDR && d.Format != uhdr.FormatRGBAHalfFloat &&
		d.Transfer != uhdr.TransferHLG && d.Transfer != uhdr.TransferPQ:
		return invalidParam("hdr transfer %s, want hlg or pq", d.Transfer)
	}
	if d.Range != uhdr.RangeFull && d.Range != uhdr.RangeLimited {
		return invalidParam("unsupported color range %s", d.Range)
	}

	// Planes are tightly packed.
	want := uhdr.DefaultStrides(d.Format, d.Width)
	for i := 0; i < info.Planes; i++ {
		if d.Stride[i] != want[i] {
			return invalidParam("plane %d stride %d, want %d", i, d.Stride[i], want[i])
		}
	}
	for i, n := range uhdr.PlaneExtents(d.Format, d.Width, d.Height, d.Stride) {
		if n > 0 && d.Planes[i] == nil {
			return invalidParam("plane %d is missing", i)
		}
	}
	return nil
}

func copyCompressed(d *uhdr.CompressedImageDescriptor) (*compressedInput, error) {
	if d == nil || d.Data == nil || d.DataSize <= 0 {
		return nil, invalidParam("compressed image is empty")
	}
	if d.DataSize > d.Capacity {
		return nil, invalidParam("compressed image size %d exceeds capacity %d", d.DataSize, d.Capacity)
	}
	return &compressedInput{
		data:     append([]byte(nil), uhdr.CompressedImageFromDescriptor(d).Bytes()...),
		gamut:    d.Gamut,
		transfer: d.Transfer,
		rng:      d.Range,
	}, nil
}

// SetCompressedImage copies an encoded SDR rendition or base image.
func (c *Codec) SetCompressedImage(d *uhdr.CompressedImageDescriptor, label uhdr.ImageLabel) uhdr.Status {
	return c.set(func() error {
		switch label {
		case uhdr.LabelSDR, uhdr.LabelBase:
		case uhdr.LabelHDR:
			return codecErr(uhdr.CodecUnsupportedFeature, "compressed hdr input is not supported")
		default:
			return invalidParam("compressed image label %s, want sdr or base", label)
		}
		in, err := copyCompressed(d)
		if err != nil {
			return err
		}
		if label == uhdr.LabelSDR {
			c.sdrJPEG, c.sdrRaw = in, nil
		} else {
			c.baseJPEG = in
		}
		return nil
	})
}

// SetGainmapImage copies an encoded gain map and its metadata.
func (c *Codec) SetGainmapImage(d *uhdr.CompressedImageDescriptor, md *uhdr.GainmapMetadataDescriptor) uhdr.Status {
	return c.set(func() error {
		if md == nil {
			return invalidParam("gain map metadata is missing")
		}
		in, err := copyCompressed(d)
		if err != nil {
			return err
		}
		meta := uhdr.GainmapMetadataFromDescriptor(md)
		if err := validateMetadata(meta); err != nil {
			return err
		}
		c.gainmapJPEG, c.gainmapMeta = in, &meta
		return nil
	})
}

func validateMetadata(m uhdr.GainmapMetadata) error {
	for i := 0; i < 3; i++ {
		if !isFinite(m.MinContentBoost[i]) || !isFinite(m.MaxContentBoost[i]) ||
			m.MinContentBoost[i] <= 0 || m.MaxContentBoost[i] < m.MinContentBoost[i] {
			return invalidParam("content boost range [%v, %v] is invalid", m.MinContentBoost[i], m.MaxContentBoost[i])
		}
		if !isFinite(m.Gamma[i]) || m.Gamma[i] <= 0 {
			return invalidParam("gain map gamma %v is invalid", m.Gamma[i])
		}
		if !isFinite(m.OffsetSDR[i]) || !isFinite(m.OffsetHDR[i]) {
			return invalidParam("gain map offsets are invalid")
		}
	}
	if !isFinite(m.HDRCapacityMin) || !isFinite(m.HDRCapacityMax) ||
		m.HDRCapacityMin < 1 || m.HDRCapacityMax < m.HDRCapacityMin {
		return invalidParam("hdr capacity range [%v, %v] is invalid", m.HDRCapacityMin, m.HDRCapacityMax)
	}
	return nil
}

func isFinite(v float32) bool { return !math.IsInf(float64(v), 0) && !math.IsNaN(float64(v)) }

// SetGainmapScaleFactor sets the gain map downscale factor, 1 to 128.
func (c *Codec) SetGainmapScaleFactor(factor int32) uhdr.Status {
	return c.set(func() error {
		if factor < 1 || factor > maxScaleFactor {
			return invalidParam("gain map scale factor %d, want [1, %d]", factor, maxScaleFactor)
		}
		c.scale = int(factor)
		return nil
	})
}

// SetGainmapGamma sets the gain map encoding gamma.
func (c *Codec) SetGainmapGamma(gamma float32) uhdr.Status {
	return c.set(func() error {
		if !isFinite(gamma) || gamma <= 0 {
			return invalidParam("gain map gamma %v, want finite and positive", gamma)
		}
		c.gamma = gamma
		return nil
	})
}

// SetMinMaxContentBoost overrides the content boost range computed from the inputs.
func (c *Codec) SetMinMaxContentBoost(minBoost, maxBoost float32) uhdr.Status {
	return c.set(func() error {
		if !isFinite(minBoost) || !isFinite(maxBoost) || minBoost <= 0 || maxBoost <= minBoost {
			return invalidParam("content boost range [%v, %v], want 0 < min < max", minBoost, maxBoost)
		}
		c.minBoost, c.maxBoost = minBoost, maxBoost
		return nil
	})
}

// SetTargetDisplayPeakBrightness sets the peak brightness in nits of the
// display the HDR rendition is targeted at.
func (c *Codec) SetTargetDisplayPeakBrightness(nits float32) uhdr.Status {
	return c.set(func() error {
		if !isFinite(nits) || nits < minTargetPeakNits || nits > maxTargetPeakNits {
			return invalidParam("target display peak brightness %v, want [%v, %v]", nits, minTargetPeakNits, maxTargetPeakNits)
		}
		c.targetPeak = nits
		return nil
	})
}

// SetQuality sets the JPEG quality of the base or gain map image.
func (c *Codec) SetQuality(quality int32, label uhdr.ImageLabel) uhdr.Status {
	return c.set(func() error {
		if quality < 0 || quality > 100 {
			return invalidParam("quality %d, want [0, 100]", quality)
		}
		switch label {
		case uhdr.LabelBase:
			c.baseQuality = int(quality)
		case uhdr.LabelGainMap:
			c.gainmapQuality = int(quality)
		default:
			return invalidParam("quality label %s, want base or gainmap", label)
		}
		return nil
	})
}

// SetExifData copies an EXIF block to embed into the primary image.
func (c *Codec) SetExifData(d *uhdr.CompressedImageDescriptor) uhdr.Status {
	return c.set(func() error {
		in, err := copyCompressed(d)
		if err != nil {
			return invalidParam("exif data is empty")
		}
		if len(in.data)+len(exifSig)+2 > 0xFFFF {
			return invalidParam("exif data of %d bytes does not fit a segment", len(in.data))
		}
		c.exif = exifPayload(in.data)
		return nil
	})
}

// SetUsingMultiChannelGainmap selects a per-channel gain map.
func (c *Codec) SetUsingMultiChannelGainmap(enable bool) uhdr.Status {
	return c.set(func() error {
		c.multiChannel = enable
		return nil
	})
}

// Encode runs the pipeline selected by the configured inputs.
func (c *Codec) Encode() uhdr.Status {
	if err := c.configurable(); err != nil {
		return toStatus(err)
	}
	out, gamut, err := c.encode()
	if err != nil {
		return toStatus(err)
	}

	c.outBytes = out
	d := uhdr.NewCompressedImage(out).Descriptor()
	d.Gamut = gamut
	d.Transfer = uhdr.TransferSRGB
	d.Range = uhdr.RangeFull
	c.out = d
	return uhdr.OKStatus()
}

// EncodedStream returns the output of the last successful Encode, or nil.
func (c *Codec) EncodedStream() *uhdr.CompressedImageDescriptor {
	if c.released {
		return nil
	}
	return c.out
}

// Reset drops inputs, settings and output.
func (c *Codec) Reset() {
	*c = Codec{
		opt:            c.opt,
		released:       c.released,
		baseQuality:    defaultQuality,
		gainmapQuality: defaultQuality,
		scale:          defaultScaleFactor,
		gamma:          defaultGainmapGamma,
	}
}

// Release frees the handle. Later calls fail with an invalid operation.
func (c *Codec) Release() {
	c.Reset()
	c.released = true
}
