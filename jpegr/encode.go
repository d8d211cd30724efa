package jpegr

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/vearutop/uhdr"
	"golang.org/x/image/draw"
)

func (c *Codec) encode() ([]byte, uhdr.ColorGamut, error) {
	switch {
	case c.baseJPEG != nil || c.gainmapJPEG != nil:
		return c.encodeWithGainmap()
	case c.hdrRaw != nil:
		return c.encodeHDR()
	case c.sdrRaw != nil || c.sdrJPEG != nil:
		return c.encodeSDR()
	default:
		return nil, uhdr.GamutUnspecified, codecErr(uhdr.CodecInvalidOperation, "no input image configured")
	}
}

// encodeWithGainmap assembles an already encoded base image and gain map.
func (c *Codec) encodeWithGainmap() ([]byte, uhdr.ColorGamut, error) {
	if c.baseJPEG == nil || c.gainmapJPEG == nil {
		return nil, uhdr.GamutUnspecified, codecErr(uhdr.CodecInvalidOperation,
			"base image and gain map image must be configured together")
	}
	hdr, err := readJPEGHeader(c.baseJPEG)
	if err != nil {
		return nil, uhdr.GamutUnspecified, invalidParam("base image: %v", err)
	}
	if _, err := headerSegments(c.gainmapJPEG.data); err != nil {
		return nil, uhdr.GamutUnspecified, invalidParam("gain map image: %v", err)
	}

	icc := hdr.icc
	if icc == nil {
		icc = baseICCProfile(hdr.gamut)
	}

	out, err := assembleContainer(containerParts{
		primary: c.baseJPEG.data,
		gainmap: c.gainmapJPEG.data,
		meta:    *c.gainmapMeta,
		exif:    firstNonEmpty(c.exif, hdr.exif),
		icc:     icc,
	})
	return out, hdr.gamut, err
}

// encodeHDR derives a gain map from the HDR rendition and an SDR rendition
// that is either configured or tone mapped from HDR.
func (c *Codec) encodeHDR() ([]byte, uhdr.ColorGamut, error) {
	hdr, err := decodeHDR(c.hdrRaw)
	if err != nil {
		return nil, uhdr.GamutUnspecified, invalidParam("hdr image: %v", err)
	}
	peak := c.targetPeak
	if peak == 0 {
		peak = peakNits(c.hdrRaw.Transfer)
	}

	var (
		sdr     image.Image
		primary []byte
		gamut   = uhdr.GamutBT709
		exif    = c.exif
		icc     []byte
	)
	switch {
	case c.sdrRaw != nil:
		if sdr, err = sdrImage(c.sdrRaw); err != nil {
			return nil, uhdr.GamutUnspecified, invalidParam("sdr image: %v", err)
		}
		gamut = c.sdrRaw.Gamut
	case c.sdrJPEG != nil:
		hdr, err := readJPEGHeader(c.sdrJPEG)
		if err != nil {
			return nil, uhdr.GamutUnspecified, invalidParam("sdr image: %v", err)
		}
		if sdr, err = decodeJPEG(c.sdrJPEG.data); err != nil {
			return nil, uhdr.GamutUnspecified, invalidParam("sdr image: %v", err)
		}
		primary, gamut, icc = c.sdrJPEG.data, hdr.gamut, hdr.icc
		exif = firstNonEmpty(exif, hdr.exif)
	default:
		sdr = tonemap(hdr, peak)
	}

	if b := sdr.Bounds(); b.Dx() != hdr.w || b.Dy() != hdr.h {
		return nil, uhdr.GamutUnspecified, invalidParam("sdr image is %dx%d, hdr image is %dx%d",
			b.Dx(), b.Dy(), hdr.w, hdr.h)
	}

	gm, meta, err := generateGainmap(linearizeSDR(sdr, gamut), hdr.convert(gamut), gainmapConfig{
		scale:         c.scale,
		gamma:         c.gamma,
		multiChannel:  c.multiChannel,
		minBoost:      c.minBoost,
		maxBoost:      c.maxBoost,
		peakNits:      peak,
		interpolation: c.opt.Interpolation,
	})
	if err != nil {
		return nil, uhdr.GamutUnspecified, err
	}

	if primary == nil {
		if primary, err = encodeJPEG(sdr, c.baseQuality); err != nil {
			return nil, uhdr.GamutUnspecified, fmt.Errorf("base image: %w", err)
		}
	}
	gmJPEG, err := encodeJPEG(gm, c.gainmapQuality)
	if err != nil {
		return nil, uhdr.GamutUnspecified, fmt.Errorf("gain map image: %w", err)
	}
	if icc == nil {
		icc = baseICCProfile(gamut)
	}

	out, err := assembleContainer(containerParts{
		primary: primary,
		gainmap: gmJPEG,
		meta:    meta,
		exif:    exif,
		icc:     icc,
	})
	return out, gamut, err
}

// encodeSDR produces a plain JPEG without a gain map.
func (c *Codec) encodeSDR() ([]byte, uhdr.ColorGamut, error) {
	if c.sdrJPEG != nil {
		hdr, err := readJPEGHeader(c.sdrJPEG)
		if err != nil {
			return nil, uhdr.GamutUnspecified, invalidParam("sdr image: %v", err)
		}
		if len(c.exif) == 0 {
			return append([]byte(nil), c.sdrJPEG.data...), hdr.gamut, nil
		}
		out, err := insertAppSegments(c.sdrJPEG.data, []segment{{marker: markerAPP1, payload: c.exif}})
		return out, hdr.gamut, err
	}

	img, err := sdrImage(c.sdrRaw)
	if err != nil {
		return nil, uhdr.GamutUnspecified, invalidParam("sdr image: %v", err)
	}
	base, err := encodeJPEG(img, c.baseQuality)
	if err != nil {
		return nil, uhdr.GamutUnspecified, fmt.Errorf("base image: %w", err)
	}

	var segs []segment
	if len(c.exif) > 0 {
		segs = append(segs, segment{marker: markerAPP1, payload: c.exif})
	}
	for _, s := range iccSegments(baseICCProfile(c.sdrRaw.Gamut)) {
		segs = append(segs, segment{marker: markerAPP2, payload: s})
	}
	out, err := insertAppSegments(base, segs)
	return out, c.sdrRaw.Gamut, err
}

type jpegHeader struct {
	gamut uhdr.ColorGamut
	exif  []byte
	icc   []byte
}

// readJPEGHeader collects the EXIF and ICC segments of a compressed input
// and resolves its gamut, falling back to the embedded profile.
func readJPEGHeader(in *compressedInput) (jpegHeader, error) {
	segs, err := headerSegments(in.data)
	if err != nil {
		return jpegHeader{}, err
	}
	h := jpegHeader{
		gamut: in.gamut,
		exif:  findSegment(segs, markerAPP1, exifSig),
		icc:   collectICCProfile(segs),
	}
	if h.gamut == uhdr.GamutUnspecified {
		h.gamut = gamutFromICC(h.icc)
	}
	return h, nil
}

// gamutFromICC guesses primaries from profile description text.
func gamutFromICC(profile []byte) uhdr.ColorGamut {
	lower := bytes.ToLower(profile)
	switch {
	case bytes.Contains(lower, []byte("display p3")), bytes.Contains(lower, []byte("dci-p3")):
		return uhdr.GamutDisplayP3
	case bytes.Contains(lower, []byte("bt.2020")), bytes.Contains(lower, []byte("bt2020")),
		bytes.Contains(lower, []byte("rec2020")), bytes.Contains(lower, []byte("bt.2100")):
		return uhdr.GamutBT2100
	default:
		return uhdr.GamutBT709
	}
}

func decodeJPEG(data []byte) (*image.RGBA, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out, nil
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: max(quality, 1)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func firstNonEmpty(a, b []byte) []byte {
	if len(a) > 0 {
		return a
	}
	return b
}
