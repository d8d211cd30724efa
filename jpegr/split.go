package jpegr

import (
	"errors"

	"github.com/vearutop/uhdr"
)

// SplitResult holds the parts of a JPEG/R container.
type SplitResult struct {
	PrimaryJPEG []byte
	GainmapJPEG []byte
	Metadata    uhdr.GainmapMetadata
	// ISO is set when the metadata was read from the ISO 21496-1 block,
	// otherwise it comes from XMP.
	ISO bool
	// ICCProfile is the profile embedded into the primary image, if any.
	ICCProfile []byte
	// Exif is the APP1 EXIF payload of the primary image, if any.
	Exif []byte
}

// Split extracts the primary image, the gain map image and gain map
// metadata from a JPEG/R container. ISO metadata takes precedence over XMP.
func Split(data []byte) (*SplitResult, error) {
	ranges, err := scanJPEGs(data)
	if err != nil {
		return nil, err
	}
	if len(ranges) < 2 {
		return nil, errors.New("gain map image not found")
	}

	res := &SplitResult{
		PrimaryJPEG: append([]byte(nil), data[ranges[0][0]:ranges[0][1]]...),
		GainmapJPEG: append([]byte(nil), data[ranges[1][0]:ranges[1][1]]...),
	}

	primarySegs, err := headerSegments(res.PrimaryJPEG)
	if err != nil {
		return nil, err
	}
	res.ICCProfile = collectICCProfile(primarySegs)
	if exif := findSegment(primarySegs, markerAPP1, exifSig); exif != nil {
		res.Exif = append([]byte(nil), exif...)
	}

	segs, err := headerSegments(res.GainmapJPEG)
	if err != nil {
		return nil, err
	}
	switch iso, xmp := findSegment(segs, markerAPP2, isoPrefix), findSegment(segs, markerAPP1, xmpPrefix); {
	case iso != nil:
		res.Metadata, err = parseISOPayload(iso)
		res.ISO = true
	case xmp != nil:
		res.Metadata, err = parseXMP(xmp)
	default:
		err = errors.New("no gain map metadata found")
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}
