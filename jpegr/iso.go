package jpegr

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/vearutop/uhdr"
)

// ISO 21496-1 gain map metadata flags.
const (
	isoMultiChannel  = 1 << 7
	isoUseBaseColor  = 1 << 6
	isoBackward      = 1 << 2
	isoCommonDenom   = 1 << 3
	isoVersionLength = 4
)

// isoFraction is the rational representation of gain map metadata.
// Gain map bounds and headroom are log2 values.
type isoFraction struct {
	gainMapMinN   [3]int32
	gainMapMinD   [3]uint32
	gainMapMaxN   [3]int32
	gainMapMaxD   [3]uint32
	gammaN        [3]uint32
	gammaD        [3]uint32
	baseOffsetN   [3]int32
	baseOffsetD   [3]uint32
	altOffsetN    [3]int32
	altOffsetD    [3]uint32
	baseHeadroomN uint32
	baseHeadroomD uint32
	altHeadroomN  uint32
	altHeadroomD  uint32
	backward      bool
	useBaseColor  bool
}

func isoVersionPayload() []byte {
	payload := make([]byte, 0, len(isoPrefix)+isoVersionLength)
	payload = append(payload, isoPrefix...)
	return append(payload, 0, 0, 0, 0)
}

func buildISOPayload(meta uhdr.GainmapMetadata) ([]byte, error) {
	frac, err := toFraction(meta)
	if err != nil {
		return nil, err
	}
	payload := make([]byte, 0, len(isoPrefix)+128)
	payload = append(payload, isoPrefix...)
	return frac.appendTo(payload), nil
}

// parseISOPayload decodes an APP2 payload including its namespace prefix.
func parseISOPayload(payload []byte) (uhdr.GainmapMetadata, error) {
	if len(payload) < len(isoPrefix) || string(payload[:len(isoPrefix)]) != string(isoPrefix) {
		return uhdr.GainmapMetadata{}, errors.New("iso namespace mismatch")
	}
	var frac isoFraction
	if err := frac.decode(payload[len(isoPrefix):]); err != nil {
		return uhdr.GainmapMetadata{}, err
	}
	if frac.backward {
		return uhdr.GainmapMetadata{}, errors.New("hdr base rendition not supported")
	}
	return frac.metadata(), nil
}

type isoReader struct {
	in  []byte
	pos int
	err error
}

func (r *isoReader) u8() uint8 {
	if r.err != nil || r.pos+1 > len(r.in) {
		r.err = errors.New("iso metadata truncated")
		return 0
	}
	v := r.in[r.pos]
	r.pos++
	return v
}

func (r *isoReader) u16() uint16 {
	if r.err != nil || r.pos+2 > len(r.in) {
		r.err = errors.New("iso metadata truncated")
		return 0
	}
	v := binary.BigEndian.Uint16(r.in[r.pos:])
	r.pos += 2
	return v
}

func (r *isoReader) u32() uint32 {
	if r.err != nil || r.pos+4 > len(r.in) {
		r.err = errors.New("iso metadata truncated")
		return 0
	}
	v := binary.BigEndian.Uint32(r.in[r.pos:])
	r.pos += 4
	return v
}

func (r *isoReader) s32() int32 { return int32(r.u32()) }

func (m *isoFraction) decode(in []byte) error {
	r := &isoReader{in: in}
	if minVersion := r.u16(); r.err == nil && minVersion != 0 {
		return errors.New("unsupported iso min_version")
	}
	r.u16() // writer_version
	flags := r.u8()
	if r.err != nil {
		return r.err
	}

	channels := 1
	if flags&isoMultiChannel != 0 {
		channels = 3
	}
	m.useBaseColor = flags&isoUseBaseColor != 0
	m.backward = flags&isoBackward != 0

	if flags&isoCommonDenom != 0 {
		d := r.u32()
		m.baseHeadroomN, m.baseHeadroomD = r.u32(), d
		m.altHeadroomN, m.altHeadroomD = r.u32(), d
		for c := 0; c < channels; c++ {
			m.gainMapMinN[c], m.gainMapMinD[c] = r.s32(), d
			m.gainMapMaxN[c], m.gainMapMaxD[c] = r.s32(), d
			m.gammaN[c], m.gammaD[c] = r.u32(), d
			m.baseOffsetN[c], m.baseOffsetD[c] = r.s32(), d
			m.altOffsetN[c], m.altOffsetD[c] = r.s32(), d
		}
	} else {
		m.baseHeadroomN, m.baseHeadroomD = r.u32(), r.u32()
		m.altHeadroomN, m.altHeadroomD = r.u32(), r.u32()
		for c := 0; c < channels; c++ {
			m.gainMapMinN[c], m.gainMapMinD[c] = r.s32(), r.u32()
			m.gainMapMaxN[c], m.gainMapMaxD[c] = r.s32(), r.u32()
			m.gammaN[c], m.gammaD[c] = r.u32(), r.u32()
			m.baseOffsetN[c], m.baseOffsetD[c] = r.s32(), r.u32()
			m.altOffsetN[c], m.altOffsetD[c] = r.s32(), r.u32()
		}
	}
	if r.err != nil {
		return r.err
	}

	for c := channels; c < 3; c++ {
		m.gainMapMinN[c], m.gainMapMinD[c] = m.gainMapMinN[0], m.gainMapMinD[0]
		m.gainMapMaxN[c], m.gainMapMaxD[c] = m.gainMapMaxN[0], m.gainMapMaxD[0]
		m.gammaN[c], m.gammaD[c] = m.gammaN[0], m.gammaD[0]
		m.baseOffsetN[c], m.baseOffsetD[c] = m.baseOffsetN[0], m.baseOffsetD[0]
		m.altOffsetN[c], m.altOffsetD[c] = m.altOffsetN[0], m.altOffsetD[0]
	}

	if m.baseHeadroomD == 0 || m.altHeadroomD == 0 {
		return errors.New("iso metadata has zero denominator")
	}
	for c := 0; c < 3; c++ {
		if m.gainMapMinD[c] == 0 || m.gainMapMaxD[c] == 0 || m.gammaD[c] == 0 ||
			m.baseOffsetD[c] == 0 || m.altOffsetD[c] == 0 {
			return errors.New("iso metadata has zero denominator")
		}
	}
	return nil
}

func (m *isoFraction) channelsIdentical() bool {
	for c := 1; c < 3; c++ {
		if m.gainMapMinN[c] != m.gainMapMinN[0] || m.gainMapMinD[c] != m.gainMapMinD[0] ||
			m.gainMapMaxN[c] != m.gainMapMaxN[0] || m.gainMapMaxD[c] != m.gainMapMaxD[0] ||
			m.gammaN[c] != m.gammaN[0] || m.gammaD[c] != m.gammaD[0] ||
			m.baseOffsetN[c] != m.baseOffsetN[0] || m.baseOffsetD[c] != m.baseOffsetD[0] ||
			m.altOffsetN[c] != m.altOffsetN[0] || m.altOffsetD[c] != m.altOffsetD[0] {
			return false
		}
	}
	return true
}

func (m *isoFraction) appendTo(out []byte) []byte {
	channels := 3
	if m.channelsIdentical() {
		channels = 1
	}

	var flags uint8
	if channels == 3 {
		flags |= isoMultiChannel
	}
	if m.useBaseColor {
		flags |= isoUseBaseColor
	}
	if m.backward {
		flags |= isoBackward
	}

	d := m.baseHeadroomD
	common := m.altHeadroomD == d
	for c := 0; c < channels; c++ {
		if m.gainMapMinD[c] != d || m.gainMapMaxD[c] != d || m.gammaD[c] != d ||
			m.baseOffsetD[c] != d || m.altOffsetD[c] != d {
			common = false
		}
	}
	if common {
		flags |= isoCommonDenom
	}

	u32 := func(v uint32) { out = binary.BigEndian.AppendUint32(out, v) }
	s32 := func(v int32) { u32(uint32(v)) }

	out = binary.BigEndian.AppendUint16(out, 0) // min_version
	out = binary.BigEndian.AppendUint16(out, 0) // writer_version
	out = append(out, flags)

	if common {
		u32(d)
		u32(m.baseHeadroomN)
		u32(m.altHeadroomN)
		for c := 0; c < channels; c++ {
			s32(m.gainMapMinN[c])
			s32(m.gainMapMaxN[c])
			u32(m.gammaN[c])
			s32(m.baseOffsetN[c])
			s32(m.altOffsetN[c])
		}
		return out
	}

	u32(m.baseHeadroomN)
	u32(m.baseHeadroomD)
	u32(m.altHeadroomN)
	u32(m.altHeadroomD)
	for c := 0; c < channels; c++ {
		s32(m.gainMapMinN[c])
		u32(m.gainMapMinD[c])
		s32(m.gainMapMaxN[c])
		u32(m.gainMapMaxD[c])
		u32(m.gammaN[c])
		u32(m.gammaD[c])
		s32(m.baseOffsetN[c])
		u32(m.baseOffsetD[c])
		s32(m.altOffsetN[c])
		u32(m.altOffsetD[c])
	}
	return out
}

func (m *isoFraction) metadata() uhdr.GainmapMetadata {
	out := uhdr.GainmapMetadata{UseBaseColorGamut: m.useBaseColor}
	for c := 0; c < 3; c++ {
		out.MinContentBoost[c] = exp2f(float32(m.gainMapMinN[c]) / float32(m.gainMapMinD[c]))
		out.MaxContentBoost[c] = exp2f(float32(m.gainMapMaxN[c]) / float32(m.gainMapMaxD[c]))
		out.Gamma[c] = float32(m.gammaN[c]) / float32(m.gammaD[c])
		out.OffsetSDR[c] = float32(m.baseOffsetN[c]) / float32(m.baseOffsetD[c])
		out.OffsetHDR[c] = float32(m.altOffsetN[c]) / float32(m.altOffsetD[c])
	}
	out.HDRCapacityMin = exp2f(float32(m.baseHeadroomN) / float32(m.baseHeadroomD))
	out.HDRCapacityMax = exp2f(float32(m.altHeadroomN) / float32(m.altHeadroomD))
	return out
}

func toFraction(meta uhdr.GainmapMetadata) (isoFraction, error) {
	m := isoFraction{useBaseColor: meta.UseBaseColorGamut}
	for c := 0; c < 3; c++ {
		var ok [5]bool
		m.gainMapMaxN[c], m.gainMapMaxD[c], ok[0] = signedFraction(log2f(meta.MaxContentBoost[c]))
		m.gainMapMinN[c], m.gainMapMinD[c], ok[1] = signedFraction(log2f(meta.MinContentBoost[c]))
		m.gammaN[c], m.gammaD[c], ok[2] = unsignedFraction(meta.Gamma[c])
		m.baseOffsetN[c], m.baseOffsetD[c], ok[3] = signedFraction(meta.OffsetSDR[c])
		m.altOffsetN[c], m.altOffsetD[c], ok[4] = signedFraction(meta.OffsetHDR[c])
		for _, v := range ok {
			if !v {
				return isoFraction{}, errors.New("gain map metadata is not representable")
			}
		}
	}

	var ok1, ok2 bool
	m.baseHeadroomN, m.baseHeadroomD, ok1 = unsignedFraction(log2f(meta.HDRCapacityMin))
	m.altHeadroomN, m.altHeadroomD, ok2 = unsignedFraction(log2f(meta.HDRCapacityMax))
	if !ok1 || !ok2 {
		return isoFraction{}, errors.New("hdr capacity is not representable")
	}
	return m, nil
}

func signedFraction(v float32) (int32, uint32, bool) {
	const maxInt32 = uint32(math.MaxInt32)
	num, den, ok := continuedFraction(math.Abs(float64(v)), maxInt32)
	if !ok {
		return 0, 0, false
	}
	n := int32(num)
	if v < 0 {
		n = -n
	}
	return n, den, true
}

func unsignedFraction(v float32) (uint32, uint32, bool) {
	return continuedFraction(float64(v), math.MaxUint32)
}

// continuedFraction approximates v by num/den with num <= maxNumerator.
func continuedFraction(v float64, maxNumerator uint32) (uint32, uint32, bool) {
	if math.IsNaN(v) || v < 0 || v > float64(maxNumerator) {
		return 0, 0, false
	}
	maxD := float64(math.MaxUint32)
	if v > 1 {
		maxD = math.Floor(float64(maxNumerator) / v)
	}

	den, prevD := uint32(1), uint32(0)
	frac := v - math.Floor(v)
	for iter := 0; iter < 39; iter++ {
		numF := float64(den) * v
		if numF > float64(maxNumerator) {
			return 0, 0, false
		}
		num := uint32(math.Round(numF))
		if numF == float64(num) || frac == 0 {
			return num, den, true
		}
		frac = 1 / frac
		newD := float64(prevD) + math.Floor(frac)*float64(den)
		if newD > maxD {
			return num, den, true
		}
		prevD, den = den, uint32(newD)
		frac -= math.Floor(frac)
	}
	return uint32(math.Round(float64(den) * v)), den, true
}
