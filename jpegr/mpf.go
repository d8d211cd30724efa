package jpegr

import (
	"bytes"
	"encoding/binary"
	"errors"
)

// Multi-Picture Format (CIPA DC-007) index with two images.
const (
	mpfNumPictures = 2
	mpfEndianSize  = 4
	mpfTagCount    = 3
	mpfTagSize     = 12

	mpfTypeLong      = 0x4
	mpfTypeUndefined = 0x7

	mpfVersionTag          = 0xB000
	mpfVersionCount        = 4
	mpfNumberOfImagesTag   = 0xB001
	mpfNumberOfImagesCount = 1
	mpfEntryTag            = 0xB002
	mpfEntrySize           = 16

	mpfAttrFormatJpeg  = 0x0000000
	mpfAttrTypePrimary = 0x030000
)

var (
	mpfSig       = []byte{'M', 'P', 'F', 0}
	mpfBigEndian = []byte{0x4D, 0x4D, 0x00, 0x2A}
	mpfVersion   = []byte{'0', '1', '0', '0'}
)

func mpfSize() int {
	return len(mpfSig) + mpfEndianSize + 4 + 2 + mpfTagCount*mpfTagSize + 4 + mpfNumPictures*mpfEntrySize
}

// generateMpf builds the APP2 payload. secondaryOffset is relative to the
// TIFF header that follows the MPF signature.
func generateMpf(primarySize, secondarySize, secondaryOffset int) []byte {
	buf := make([]byte, 0, mpfSize())
	putU16 := func(v uint16) { buf = binary.BigEndian.AppendUint16(buf, v) }
	putU32 := func(v uint32) { buf = binary.BigEndian.AppendUint32(buf, v) }

	buf = append(buf, mpfSig...)
	buf = append(buf, mpfBigEndian...)
	putU32(mpfEndianSize + 4)
	putU16(mpfTagCount)

	putU16(mpfVersionTag)
	putU16(mpfTypeUndefined)
	putU32(mpfVersionCount)
	buf = append(buf, mpfVersion...)

	putU16(mpfNumberOfImagesTag)
	putU16(mpfTypeLong)
	putU32(mpfNumberOfImagesCount)
	putU32(mpfNumPictures)

	putU16(mpfEntryTag)
	putU16(mpfTypeUndefined)
	putU32(mpfEntrySize * mpfNumPictures)
	putU32(uint32(mpfEndianSize + 4 + 2 + mpfTagCount*mpfTagSize + 4))

	// Attribute IFD offset.
	putU32(0)

	putU32(mpfAttrFormatJpeg | mpfAttrTypePrimary)
	putU32(uint32(primarySize))
	putU32(0)
	putU16(0)
	putU16(0)

	putU32(mpfAttrFormatJpeg)
	putU32(uint32(secondarySize))
	putU32(uint32(secondaryOffset))
	putU16(0)
	putU16(0)

	return buf
}

type mpfInfo struct {
	primarySize     int
	secondarySize   int
	secondaryOffset int
}

func parseMPF(payload []byte) (mpfInfo, error) {
	if !bytes.HasPrefix(payload, mpfSig) {
		return mpfInfo{}, errors.New("mpf signature missing")
	}
	tiff := payload[len(mpfSig):]
	if len(tiff) < 8 {
		return mpfInfo{}, errors.New("mpf tiff header too small")
	}
	var order binary.ByteOrder
	switch {
	case tiff[0] == 0x4D && tiff[1] == 0x4D:
		order = binary.BigEndian
	case tiff[0] == 0x49 && tiff[1] == 0x49:
		order = binary.LittleEndian
	default:
		return mpfInfo{}, errors.New("mpf endian invalid")
	}
	if order.Uint16(tiff[2:4]) != 0x002A {
		return mpfInfo{}, errors.New("mpf tiff magic invalid")
	}
	ifd := int(order.Uint32(tiff[4:8]))
	if ifd < 0 || ifd+2 > len(tiff) {
		return mpfInfo{}, errors.New("mpf ifd offset invalid")
	}
	tagCount := int(order.Uint16(tiff[ifd:]))
	pos := ifd + 2
	entryOffset := -1
	for i := 0; i < tagCount; i++ {
		if pos+12 > len(tiff) {
			return mpfInfo{}, errors.New("mpf ifd truncated")
		}
		tag := order.Uint16(tiff[pos:])
		typ := order.Uint16(tiff[pos+2:])
		count := order.Uint32(tiff[pos+4:])
		if tag == mpfEntryTag && typ == mpfTypeUndefined && count >= mpfEntrySize {
			entryOffset = int(order.Uint32(tiff[pos+8:]))
			break
		}
		pos += 12
	}
	if entryOffset < 0 || entryOffset+mpfEntrySize*mpfNumPictures > len(tiff) {
		return mpfInfo{}, errors.New("mpf entry offset invalid")
	}

	var info mpfInfo
	for i := 0; i < mpfNumPictures; i++ {
		e := tiff[entryOffset+i*mpfEntrySize:]
		attr := order.Uint32(e)
		size := int(order.Uint32(e[4:]))
		if attr&mpfAttrTypePrimary != 0 {
			info.primarySize = size
		} else {
			info.secondarySize = size
			info.secondaryOffset = int(order.Uint32(e[8:]))
		}
	}
	if info.primarySize == 0 || info.secondarySize == 0 {
		return mpfInfo{}, errors.New("mpf sizes missing")
	}
	return info, nil
}
