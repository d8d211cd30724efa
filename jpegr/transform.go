package jpegr

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"math"

	"github.com/nfnt/resize"
	"github.com/vearutop/uhdr"
)

// TransformOptions controls re-encoding of an existing JPEG/R container.
type TransformOptions struct {
	PrimaryQuality int
	GainmapQuality int
	// Interpolation is the resampling filter, default resize.Bilinear.
	Interpolation resize.InterpolationFunction
}

// TransformResult holds the rewritten container and its component images.
type TransformResult struct {
	Container []byte
	Primary   []byte
	Gainmap   []byte
}

func transformOptions(opts []func(o *TransformOptions)) TransformOptions {
	opt := TransformOptions{
		PrimaryQuality: 85,
		GainmapQuality: 75,
		Interpolation:  resize.Bilinear,
	}
	for _, applyOpt := range opts {
		applyOpt(&opt)
	}
	return opt
}

// Resize scales a JPEG/R container to width x height. The gain map keeps
// its size ratio to the primary image and the metadata is carried over.
func Resize(data []byte, width, height uint, opts ...func(o *TransformOptions)) (*TransformResult, error) {
	if width == 0 || height == 0 {
		return nil, errors.New("invalid target dimensions")
	}
	opt := transformOptions(opts)

	sr, err := Split(data)
	if err != nil {
		return nil, fmt.Errorf("split: %w", err)
	}
	primary, gainmap, err := decodeParts(sr)
	if err != nil {
		return nil, err
	}

	pb, gb := primary.Bounds(), gainmap.Bounds()
	gw := max(uint(gb.Dx())*width/uint(pb.Dx()), 1)
	gh := max(uint(gb.Dy())*height/uint(pb.Dy()), 1)

	return finishTransform(sr, opt,
		resize.Resize(width, height, primary, opt.Interpolation),
		resize.Resize(gw, gh, gainmap, opt.Interpolation),
		sr.Metadata)
}

// Rebase replaces the primary image of a JPEG/R container with sdr and
// recomputes the gain map so that the HDR rendition is preserved.
// sdr must have the dimensions of the original primary image.
func Rebase(data []byte, sdr image.Image, opts ...func(o *TransformOptions)) (*TransformResult, error) {
	if sdr == nil {
		return nil, errors.New("new sdr image is nil")
	}
	opt := transformOptions(opts)

	sr, err := Split(data)
	if err != nil {
		return nil, fmt.Errorf("split: %w", err)
	}
	primary, gainmap, err := decodeParts(sr)
	if err != nil {
		return nil, err
	}
	pb, sb := primary.Bounds(), sdr.Bounds()
	if pb.Dx() != sb.Dx() || pb.Dy() != sb.Dy() {
		return nil, fmt.Errorf("new sdr image is %dx%d, primary image is %dx%d", sb.Dx(), sb.Dy(), pb.Dx(), pb.Dy())
	}

	gamut := gamutFromICC(sr.ICCProfile)
	hdr := reconstructHDR(linearizeSDR(primary, gamut), gainmap, &sr.Metadata)

	gb := gainmap.Bounds()
	_, gray := gainmap.(*image.Gray)
	gm, meta, err := generateGainmap(linearizeSDR(sdr, gamut), hdr, gainmapConfig{
		scale:         max(pb.Dx()/max(gb.Dx(), 1), 1),
		gamma:         sr.Metadata.Gamma[0],
		multiChannel:  !gray,
		peakNits:      sr.Metadata.HDRCapacityMax * sdrWhiteNits,
		interpolation: opt.Interpolation,
	})
	if err != nil {
		return nil, err
	}
	return finishTransform(sr, opt, sdr, gm, meta)
}

func decodeParts(sr *SplitResult) (primary, gainmap image.Image, err error) {
	if primary, err = jpeg.Decode(bytes.NewReader(sr.PrimaryJPEG)); err != nil {
		return nil, nil, fmt.Errorf("decode primary image: %w", err)
	}
	if gainmap, err = jpeg.Decode(bytes.NewReader(sr.GainmapJPEG)); err != nil {
		return nil, nil, fmt.Errorf("decode gain map image: %w", err)
	}
	return primary, gainmap, nil
}

// reconstructHDR applies the gain map at full display weight, sampling it
// with nearest neighbor.
func reconstructHDR(sdr *linearImage, gainmap image.Image, meta *uhdr.GainmapMetadata) *linearImage {
	gb := gainmap.Bounds()
	out := newLinearImage(sdr.w, sdr.h, sdr.gamut)
	for y := 0; y < sdr.h; y++ {
		gy := gb.Min.Y + y*gb.Dy()/sdr.h
		for x := 0; x < sdr.w; x++ {
			gx := gb.Min.X + x*gb.Dx()/sdr.w
			r, g, b, _ := gainmap.At(gx, gy).RGBA()
			gain := rgb{float32(r) / 0xFFFF, float32(g) / 0xFFFF, float32(b) / 0xFFFF}
			out.set(x, y, applyGain(sdr.at(x, y), gain, meta, 1).clamp(0, math.MaxFloat32))
		}
	}
	return out
}

func finishTransform(sr *SplitResult, opt TransformOptions, primary, gainmap image.Image,
	meta uhdr.GainmapMetadata,
) (*TransformResult, error) {
	primaryJPEG, err := encodeJPEG(primary, opt.PrimaryQuality)
	if err != nil {
		return nil, fmt.Errorf("encode primary image: %w", err)
	}
	gainmapJPEG, err := encodeJPEG(gainmap, opt.GainmapQuality)
	if err != nil {
		return nil, fmt.Errorf("encode gain map image: %w", err)
	}
	container, err := assembleContainer(containerParts{
		primary: primaryJPEG,
		gainmap: gainmapJPEG,
		meta:    meta,
		exif:    sr.Exif,
		icc:     sr.ICCProfile,
	})
	if err != nil {
		return nil, err
	}
	return &TransformResult{Container: container, Primary: primaryJPEG, Gainmap: gainmapJPEG}, nil
}
