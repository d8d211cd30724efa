package jpegr

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

// IsUltraHDR reports whether r holds a JPEG followed by a gain map image
// carrying XMP or ISO gain map metadata. It reads only up to the gain map header.
func IsUltraHDR(r io.Reader) (bool, error) {
	br := bufio.NewReader(r)
	for i := 0; i < 2; i++ {
		found, err := findSOI(br)
		if err != nil || !found {
			return false, err
		}
		if i == 0 {
			if err := skipJPEG(br); err != nil {
				return false, err
			}
		}
	}
	return hasGainmapHeader(br)
}

func findSOI(br *bufio.Reader) (bool, error) {
	var prev byte
	for {
		b, err := br.ReadByte()
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if prev == markerStart && b == markerSOI {
			return true, nil
		}
		prev = b
	}
}

func skipJPEG(br *bufio.Reader) error {
	for {
		marker, err := readMarker(br)
		if err != nil {
			return err
		}
		switch marker {
		case markerEOI:
			return nil
		case markerSOS:
			return skipScanToEOI(br)
		default:
			if err := discardSegment(br); err != nil {
				return err
			}
		}
	}
}

func hasGainmapHeader(br *bufio.Reader) (bool, error) {
	for {
		marker, err := readMarker(br)
		if err != nil {
			return false, err
		}
		switch marker {
		case markerEOI, markerSOS:
			return false, nil
		case markerAPP1, markerAPP2:
			prefix := xmpPrefix
			if marker == markerAPP2 {
				prefix = isoPrefix
			}
			match, err := segmentHasPrefix(br, prefix)
			if err != nil || match {
				return match, err
			}
		default:
			if err := discardSegment(br); err != nil {
				return false, err
			}
		}
	}
}

func readMarker(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		if b != markerStart {
			continue
		}
		for {
			m, err := br.ReadByte()
			if err != nil {
				return 0, err
			}
			if m != markerStart {
				return m, nil
			}
		}
	}
}

func readSegmentLength(br *bufio.Reader) (int, error) {
	hi, err := br.ReadByte()
	if err != nil {
		return 0, err
	}
	lo, err := br.ReadByte()
	if err != nil {
		return 0, err
	}
	n := int(hi)<<8 | int(lo)
	if n < 2 {
		return 0, errors.New("invalid segment length")
	}
	return n - 2, nil
}

func discardSegment(br *bufio.Reader) error {
	n, err := readSegmentLength(br)
	if err != nil {
		return err
	}
	_, err = br.Discard(n)
	return err
}

func segmentHasPrefix(br *bufio.Reader, prefix []byte) (bool, error) {
	n, err := readSegmentLength(br)
	if err != nil {
		return false, err
	}
	buf := make([]byte, min(n, len(prefix)))
	if _, err := io.ReadFull(br, buf); err != nil {
		return false, err
	}
	if _, err := br.Discard(n - len(buf)); err != nil {
		return false, err
	}
	return bytes.HasPrefix(buf, prefix), nil
}

func skipScanToEOI(br *bufio.Reader) error {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return err
		}
		if b != markerStart {
			continue
		}
		m, err := br.ReadByte()
		for err == nil && m == markerStart {
			m, err = br.ReadByte()
		}
		if err != nil {
			return err
		}
		if m == markerEOI {
			return nil
		}
	}
}
