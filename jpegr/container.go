package jpegr

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/vearutop/uhdr"
)

// containerParts are the pieces of a JPEG/R container.
type containerParts struct {
	primary []byte
	gainmap []byte
	meta    uhdr.GainmapMetadata
	exif    []byte
	icc     []byte
}

// assembleContainer writes the primary image followed by the gain map image.
//
// Primary header: EXIF, XMP directory, ISO version, MPF, ICC.
// Gain map header: XMP hdrgm attributes, ISO metadata.
func assembleContainer(p containerParts) ([]byte, error) {
	primary, err := stripAppSegments(p.primary)
	if err != nil {
		return nil, fmt.Errorf("primary image: %w", err)
	}
	gainmap, err := stripAppSegments(p.gainmap)
	if err != nil {
		return nil, fmt.Errorf("gain map image: %w", err)
	}

	iso, err := buildISOPayload(p.meta)
	if err != nil {
		return nil, err
	}
	secondaryXMP := buildGainmapXMP(p.meta)
	secondarySize := len(gainmap) + appSize(secondaryXMP) + appSize(iso)

	iccSegs := iccSegments(p.icc)
	iccSize := 0
	for _, s := range iccSegs {
		iccSize += appSize(s)
	}

	var out bytes.Buffer
	out.Grow(len(primary) + secondarySize + 4096)
	out.WriteByte(markerStart)
	out.WriteByte(markerSOI)
	if len(p.exif) > 0 {
		writeAppSegment(&out, markerAPP1, p.exif)
	}
	writeAppSegment(&out, markerAPP1, buildPrimaryXMP(secondarySize))
	writeAppSegment(&out, markerAPP2, isoVersionPayload())

	mpfHeader := out.Len() + 4 + len(mpfSig)
	primarySize := out.Len() + 4 + mpfSize() + iccSize + len(primary) - 2
	writeAppSegment(&out, markerAPP2, generateMpf(primarySize, secondarySize, primarySize-mpfHeader))
	for _, s := range iccSegs {
		writeAppSegment(&out, markerAPP2, s)
	}
	out.Write(primary[2:])

	if out.Len() != primarySize {
		return nil, errors.New("primary image size mismatch")
	}

	out.WriteByte(markerStart)
	out.WriteByte(markerSOI)
	writeAppSegment(&out, markerAPP1, secondaryXMP)
	writeAppSegment(&out, markerAPP2, iso)
	out.Write(gainmap[2:])

	return out.Bytes(), nil
}

// insertAppSegments inserts segments right after SOI.
func insertAppSegments(jpegData []byte, segs []segment) ([]byte, error) {
	if len(jpegData) < 2 || jpegData[0] != markerStart || jpegData[1] != markerSOI {
		return nil, errors.New("invalid jpeg")
	}
	var out bytes.Buffer
	out.Grow(len(jpegData) + 1024)
	out.WriteByte(markerStart)
	out.WriteByte(markerSOI)
	for _, s := range segs {
		writeAppSegment(&out, s.marker, s.payload)
	}
	out.Write(jpegData[2:])
	return out.Bytes(), nil
}

// exifPayload prefixes raw EXIF data with its APP1 signature when missing.
func exifPayload(exif []byte) []byte {
	if len(exif) == 0 || bytes.HasPrefix(exif, exifSig) {
		return exif
	}
	return append(append([]byte{}, exifSig...), exif...)
}
