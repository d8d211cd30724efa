package hdrfile

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/vearutop/uhdr"
)

const exrMagic = 20000630

// OpenEXR version flags.
const (
	exrTiled     = 0x200
	exrDeep      = 0x800
	exrMultipart = 0x1000
)

const (
	exrCompressionNone = 0
	exrCompressionZips = 2
	exrCompressionZip  = 3
)

const (
	exrPixelUint  = 0
	exrPixelHalf  = 1
	exrPixelFloat = 2
)

type exrChannel struct {
	name      string
	pixelType int32
	xSampling int32
	ySampling int32
	// targets are the RGB slots the channel feeds, none for alpha and others.
	targets []int
}

func (ch exrChannel) sampleSize() int {
	if ch.pixelType == exrPixelHalf {
		return 2
	}
	return 4
}

type exrHeader struct {
	channels    []exrChannel
	minX, minY  int32
	maxX, maxY  int32
	compression byte
}

func (h *exrHeader) width() int  { return int(h.maxX-h.minX) + 1 }
func (h *exrHeader) height() int { return int(h.maxY-h.minY) + 1 }

// linesPerBlock is the scanline count of a chunk for the compression.
func (h *exrHeader) linesPerBlock() int {
	if h.compression == exrCompressionZip {
		return 16
	}
	return 1
}

func (h *exrHeader) lineBytes() int {
	n := 0
	for _, ch := range h.channels {
		n += h.width() * ch.sampleSize()
	}
	return n
}

// decodeEXR reads a single-part scanline OpenEXR file.
func decodeEXR(data []byte) (*uhdr.OwnedRawImage, error) {
	r := bytes.NewReader(data)
	hdr, err := readEXRHeader(r)
	if err != nil {
		return nil, err
	}

	w, h := hdr.width(), hdr.height()
	blockLines := hdr.linesPerBlock()
	offsets := make([]uint64, (h+blockLines-1)/blockLines)
	for i := range offsets {
		if offsets[i], err = readU64(r); err != nil {
			return nil, fmt.Errorf("exr offset table: %w", err)
		}
	}

	img := newHalfImage(w, h)
	for _, off := range offsets {
		if off == 0 {
			continue
		}
		if _, err := r.Seek(int64(off), io.SeekStart); err != nil {
			return nil, err
		}
		y, err := readI32(r)
		if err != nil {
			return nil, err
		}
		size, err := readI32(r)
		if err != nil {
			return nil, err
		}
		if size < 0 || int64(size) > int64(r.Len()) {
			return nil, errors.New("exr chunk size out of range")
		}
		chunk := make([]byte, size)
		if _, err := io.ReadFull(r, chunk); err != nil {
			return nil, err
		}

		startY := int(y - hdr.minY)
		if startY < 0 || startY >= h {
			return nil, fmt.Errorf("exr scanline %d out of data window", y)
		}
		lines := min(blockLines, h-startY)
		pixels, err := exrDecompress(hdr.compression, chunk, lines*hdr.lineBytes())
		if err != nil {
			return nil, err
		}
		hdr.storeLines(img, startY, lines, pixels)
	}
	return img, nil
}

func readEXRHeader(r *bytes.Reader) (*exrHeader, error) {
	magic, err := readU32(r)
	if err != nil {
		return nil, err
	}
	if magic != exrMagic {
		return nil, errors.New("not an OpenEXR file")
	}
	version, err := readU32(r)
	if err != nil {
		return nil, err
	}
	switch {
	case version&exrTiled != 0:
		return nil, errors.New("tiled OpenEXR is not supported")
	case version&(exrDeep|exrMultipart) != 0:
		return nil, errors.New("deep or multipart OpenEXR is not supported")
	}

	hdr := &exrHeader{compression: exrCompressionNone}
	var hasWindow bool
	for {
		name, err := readNullString(r)
		if err != nil {
			return nil, err
		}
		if name == "" {
			break
		}
		typ, err := readNullString(r)
		if err != nil {
			return nil, err
		}
		size, err := readI32(r)
		if err != nil {
			return nil, err
		}
		if size < 0 || int64(size) > int64(r.Len()) {
			return nil, fmt.Errorf("exr attribute %s has invalid size %d", name, size)
		}
		payload := make([]byte, size)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}

		switch {
		case name == "channels" && typ == "chlist":
			if hdr.channels, err = parseEXRChannels(payload); err != nil {
				return nil, err
			}
		case name == "dataWindow" && typ == "box2i" && len(payload) == 16:
			hdr.minX = int32(binary.LittleEndian.Uint32(payload[0:]))
			hdr.minY = int32(binary.LittleEndian.Uint32(payload[4:]))
			hdr.maxX = int32(binary.LittleEndian.Uint32(payload[8:]))
			hdr.maxY = int32(binary.LittleEndian.Uint32(payload[12:]))
			hasWindow = true
		case name == "compression" && typ == "compression" && len(payload) == 1:
			hdr.compression = payload[0]
		}
	}

	if !hasWindow || hdr.maxX < hdr.minX || hdr.maxY < hdr.minY {
		return nil, errors.New("exr data window is missing or empty")
	}
	switch hdr.compression {
	case exrCompressionNone, exrCompressionZips, exrCompressionZip:
	default:
		return nil, fmt.Errorf("exr compression %d is not supported", hdr.compression)
	}
	hasColor := false
	for _, ch := range hdr.channels {
		if ch.xSampling != 1 || ch.ySampling != 1 {
			return nil, fmt.Errorf("exr channel %s is subsampled", ch.name)
		}
		hasColor = hasColor || len(ch.targets) > 0
	}
	if !hasColor {
		return nil, errors.New("exr has no R, G, B or Y channel")
	}
	return hdr, nil
}

func parseEXRChannels(data []byte) ([]exrChannel, error) {
	r := bytes.NewReader(data)
	var channels []exrChannel
	for {
		name, err := readNullString(r)
		if err != nil {
			return nil, err
		}
		if name == "" {
			return channels, nil
		}
		ch := exrChannel{name: name}
		if ch.pixelType, err = readI32(r); err != nil {
			return nil, err
		}
		if ch.pixelType < exrPixelUint || ch.pixelType > exrPixelFloat {
			return nil, fmt.Errorf("exr channel %s has pixel type %d", name, ch.pixelType)
		}
		// pLinear and reserved bytes.
		if _, err := r.Seek(4, io.SeekCurrent); err != nil {
			return nil, err
		}
		if ch.xSampling, err = readI32(r); err != nil {
			return nil, err
		}
		if ch.ySampling, err = readI32(r); err != nil {
			return nil, err
		}
		switch name {
		case "R", "r":
			ch.targets = []int{0}
		case "G", "g":
			ch.targets = []int{1}
		case "B", "b":
			ch.targets = []int{2}
		case "Y", "y":
			ch.targets = []int{0, 1, 2}
		}
		channels = append(channels, ch)
	}
}

func exrDecompress(compression byte, data []byte, expected int) ([]byte, error) {
	if compression == exrCompressionNone || len(data) == expected {
		// Chunks that do not shrink are stored raw.
		if len(data) != expected {
			return nil, fmt.Errorf("exr chunk has %d bytes, want %d", len(data), expected)
		}
		return data, nil
	}

	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, err
	}
	if len(raw) != expected {
		return nil, fmt.Errorf("exr chunk inflates to %d bytes, want %d", len(raw), expected)
	}

	for i := 1; i < len(raw); i++ {
		raw[i] = byte(int(raw[i]) + int(raw[i-1]) - 128)
	}
	half := (len(raw) + 1) / 2
	out := make([]byte, len(raw))
	for i := range out {
		if i%2 == 0 {
			out[i] = raw[i/2]
		} else {
			out[i] = raw[half+i/2]
		}
	}
	return out, nil
}

// storeLines copies scanlines, laid out channel by channel per line, into img.
func (h *exrHeader) storeLines(img *uhdr.OwnedRawImage, startY, lines int, data []byte) {
	w := h.width()
	off := 0
	for row := 0; row < lines; row++ {
		base := (startY + row) * w
		for _, ch := range h.channels {
			n := ch.sampleSize()
			if len(ch.targets) == 0 {
				off += w * n
				continue
			}
			for x := 0; x < w; x++ {
				s := data[off+x*n:]
				var v uint16
				switch ch.pixelType {
				case exrPixelHalf:
					v = binary.LittleEndian.Uint16(s)
				case exrPixelFloat:
					v = float32ToHalf(math.Float32frombits(binary.LittleEndian.Uint32(s)))
				default:
					v = float32ToHalf(float32(binary.LittleEndian.Uint32(s)))
				}
				for _, c := range ch.targets {
					setHalf(img, base+x, c, v)
				}
			}
			off += w * n
		}
	}
}

func readNullString(r *bytes.Reader) (string, error) {
	var buf []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return "", err
		}
		if b == 0 {
			return string(buf), nil
		}
		if len(buf) == 255 {
			return "", errors.New("exr name too long")
		}
		buf = append(buf, b)
	}
}

func readU32(r *bytes.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func readU64(r *bytes.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func readI32(r *bytes.Reader) (int32, error) {
	v, err := readU32(r)
	return int32(v), err
}
