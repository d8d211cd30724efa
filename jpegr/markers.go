package jpegr

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	markerStart = 0xFF
	markerSOI   = 0xD8
	markerEOI   = 0xD9
	markerSOS   = 0xDA
	markerAPP0  = 0xE0
	markerAPP1  = 0xE1
	markerAPP2  = 0xE2
	markerAPP15 = 0xEF
	markerCOM   = 0xFE
	markerTEM   = 0x01
)

const (
	xmpNamespace = "http://ns.adobe.com/xap/1.0/"
	isoNamespace = "urn:iso:std:iso:ts:21496:-1"
)

var (
	xmpPrefix = append([]byte(xmpNamespace), 0)
	isoPrefix = append([]byte(isoNamespace), 0)
	exifSig   = []byte{'E', 'x', 'i', 'f', 0, 0}
	iccSig    = []byte{'I', 'C', 'C', '_', 'P', 'R', 'O', 'F', 'I', 'L', 'E', 0}
)

func isRST(m byte) bool { return m >= 0xD0 && m <= 0xD7 }

// segment is a marker segment of a JPEG header.
type segment struct {
	marker  byte
	payload []byte
}

// headerSegments returns the marker segments preceding the first scan.
// Payloads alias data.
func headerSegments(data []byte) ([]segment, error) {
	if len(data) < 4 || data[0] != markerStart || data[1] != markerSOI {
		return nil, errors.New("invalid jpeg")
	}
	var segs []segment
	pos := 2
	for pos+3 < len(data) {
		if data[pos] != markerStart {
			pos++
			continue
		}
		for pos < len(data) && data[pos] == markerStart {
			pos++
		}
		if pos >= len(data) {
			break
		}
		marker := data[pos]
		pos++
		if marker == markerSOS || marker == markerEOI {
			break
		}
		if isRST(marker) || marker == markerTEM {
			continue
		}
		if pos+1 >= len(data) {
			return nil, errors.New("truncated marker")
		}
		segLen := int(binary.BigEndian.Uint16(data[pos:]))
		if segLen < 2 || pos+segLen > len(data) {
			return nil, errors.New("invalid segment length")
		}
		segs = append(segs, segment{marker: marker, payload: data[pos+2 : pos+segLen]})
		pos += segLen
	}
	return segs, nil
}

func findSegment(segs []segment, marker byte, prefix []byte) []byte {
	for _, s := range segs {
		if s.marker == marker && bytes.HasPrefix(s.payload, prefix) {
			return s.payload
		}
	}
	return nil
}

// findJPEGEnd returns the offset just past the EOI of the JPEG starting at start.
func findJPEGEnd(data []byte, start int) (int, error) {
	if start+1 >= len(data) || data[start] != markerStart || data[start+1] != markerSOI {
		return 0, errors.New("not a jpeg soi")
	}
	pos := start + 2
	inScan := false
	for pos+1 < len(data) {
		if !inScan {
			if data[pos] != markerStart {
				pos++
				continue
			}
			for pos < len(data) && data[pos] == markerStart {
				pos++
			}
			if pos >= len(data) {
				break
			}
			marker := data[pos]
			pos++
			switch {
			case marker == markerEOI:
				return pos, nil
			case marker == markerSOI, isRST(marker), marker == markerTEM:
				continue
			}
			if pos+1 >= len(data) {
				return 0, errors.New("truncated marker segment")
			}
			segLen := int(binary.BigEndian.Uint16(data[pos:]))
			if segLen < 2 {
				return 0, errors.New("invalid marker length")
			}
			pos += segLen
			inScan = marker == markerSOS
			continue
		}

		if data[pos] != markerStart {
			pos++
			continue
		}
		next := data[pos+1]
		switch {
		case next == 0x00, isRST(next):
			pos += 2
		case next == markerEOI:
			return pos + 2, nil
		case next == markerStart:
			pos++
		default:
			// A marker between scans of a progressive image.
			inScan = false
		}
	}
	return 0, errors.New("no eoi found")
}

// scanJPEGs returns the byte ranges of the primary and gain map images,
// following MPF when present and falling back to a linear SOI scan.
func scanJPEGs(data []byte) ([][2]int, error) {
	if ranges, ok := scanJPEGsByMPF(data); ok {
		return ranges, nil
	}
	var ranges [][2]int
	for i := 0; i+1 < len(data); {
		if data[i] == markerStart && data[i+1] == markerSOI {
			end, err := findJPEGEnd(data, i)
			if err != nil {
				return nil, err
			}
			ranges = append(ranges, [2]int{i, end})
			i = end
			continue
		}
		i++
	}
	if len(ranges) == 0 {
		return nil, errors.New("no jpeg images found")
	}
	return ranges, nil
}

func scanJPEGsByMPF(data []byte) ([][2]int, bool) {
	segs, err := headerSegments(data)
	if err != nil {
		return nil, false
	}
	for _, s := range segs {
		if s.marker == markerAPP2 && bytes.HasPrefix(s.payload, mpfSig) {
			info, err := parseMPF(s.payload)
			if err != nil {
				return nil, false
			}
			// Offsets are relative to the TIFF header following the signature.
			tiffHeader := payloadOffset(data, s.payload) + len(mpfSig)
			secondaryStart := tiffHeader + info.secondaryOffset
			secondaryEnd := secondaryStart + info.secondarySize
			if info.primarySize > len(data) || secondaryEnd > len(data) || secondaryStart+1 >= len(data) {
				return nil, false
			}
			if data[secondaryStart] != markerStart || data[secondaryStart+1] != markerSOI {
				return nil, false
			}
			return [][2]int{{0, info.primarySize}, {secondaryStart, secondaryEnd}}, true
		}
	}
	return nil, false
}

// payloadOffset returns the offset of sub within data. sub must alias data.
func payloadOffset(data, sub []byte) int {
	return cap(data) - cap(sub)
}

func writeAppSegment(out *bytes.Buffer, marker byte, payload []byte) {
	out.WriteByte(markerStart)
	out.WriteByte(marker)
	length := uint16(len(payload) + 2)
	out.WriteByte(byte(length >> 8))
	out.WriteByte(byte(length))
	out.Write(payload)
}

func appSize(payload []byte) int {
	if len(payload) == 0 {
		return 0
	}
	return 4 + len(payload)
}

// stripAppSegments removes APP0-APP15 and COM segments from a JPEG header.
func stripAppSegments(jpegData []byte) ([]byte, error) {
	if len(jpegData) < 4 || jpegData[0] != markerStart || jpegData[1] != markerSOI {
		return nil, errors.New("invalid jpeg")
	}
	var out bytes.Buffer
	out.Grow(len(jpegData))
	out.WriteByte(markerStart)
	out.WriteByte(markerSOI)
	pos := 2
	for pos+3 < len(jpegData) {
		if jpegData[pos] != markerStart {
			out.WriteByte(jpegData[pos])
			pos++
			continue
		}
		for pos < len(jpegData) && jpegData[pos] == markerStart {
			pos++
		}
		if pos >= len(jpegData) {
			break
		}
		marker := jpegData[pos]
		pos++
		if marker == markerSOS || marker == markerEOI {
			out.WriteByte(markerStart)
			out.WriteByte(marker)
			out.Write(jpegData[pos:])
			return out.Bytes(), nil
		}
		if isRST(marker) {
			out.WriteByte(markerStart)
			out.WriteByte(marker)
			continue
		}
		if pos+1 >= len(jpegData) {
			return nil, errors.New("truncated marker")
		}
		segLen := int(binary.BigEndian.Uint16(jpegData[pos:]))
		if segLen < 2 || pos+segLen > len(jpegData) {
			return nil, errors.New("invalid segment length")
		}
		if marker == markerCOM || (marker >= markerAPP0 && marker <= markerAPP15) {
			pos += segLen
			continue
		}
		out.WriteByte(markerStart)
		out.WriteByte(marker)
		out.Write(jpegData[pos : pos+segLen])
		pos += segLen
	}
	return out.Bytes(), nil
}
