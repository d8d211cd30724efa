package jpegr

import (
	"bytes"
	"sort"

	"github.com/vearutop/uhdr"
	"seehuhn.de/go/icc"
)

// maxICCChunk is the profile payload that fits one APP2 segment.
const maxICCChunk = 0xFFFF - 2 - 12 - 2

// baseICCProfile returns the profile embedded into the primary image for a
// base of the given gamut, or nil if none is embedded.
func baseICCProfile(g uhdr.ColorGamut) []byte {
	if g != uhdr.GamutBT709 {
		return nil
	}
	return icc.SRGBv4Profile
}

// iccSegments splits a profile into APP2 payloads.
func iccSegments(profile []byte) [][]byte {
	if len(profile) == 0 {
		return nil
	}
	n := (len(profile) + maxICCChunk - 1) / maxICCChunk
	segs := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		chunk := profile[i*maxICCChunk : min((i+1)*maxICCChunk, len(profile))]
		seg := make([]byte, 0, len(iccSig)+2+len(chunk))
		seg = append(seg, iccSig...)
		seg = append(seg, byte(i+1), byte(n))
		seg = append(seg, chunk...)
		segs = append(segs, seg)
	}
	return segs
}

// collectICCProfile reassembles a profile from APP2 payloads.
func collectICCProfile(segs []segment) []byte {
	type chunk struct {
		seq  int
		data []byte
	}
	var chunks []chunk
	for _, s := range segs {
		if s.marker == markerAPP2 && len(s.payload) > len(iccSig)+2 && bytes.HasPrefix(s.payload, iccSig) {
			chunks = append(chunks, chunk{seq: int(s.payload[len(iccSig)]), data: s.payload[len(iccSig)+2:]})
		}
	}
	if len(chunks) == 0 {
		return nil
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].seq < chunks[j].seq })
	var out []byte
	for _, c := range chunks {
		out = append(out, c.data...)
	}
	return out
}
