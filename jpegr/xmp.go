package jpegr

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/vearutop/uhdr"
)

const hdrgmVersion = "1.0"

func formatFloat(v float32) string {
	return strconv.FormatFloat(float64(v), 'f', -1, 32)
}

// buildPrimaryXMP describes the container directory with the gain map item length.
func buildPrimaryXMP(gainmapLength int) []byte {
	var sb strings.Builder
	sb.WriteString(xmpNamespace)
	sb.WriteByte(0)
	sb.WriteString(`<x:xmpmeta xmlns:x="adobe:ns:meta/" x:xmptk="uhdr">
  <rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">
    <rdf:Description rdf:about=""
        xmlns:Container="http://ns.google.com/photos/1.0/container/"
        xmlns:Item="http://ns.google.com/photos/1.0/container/item/"
        xmlns:hdrgm="http://ns.adobe.com/hdr-gain-map/1.0/"
        hdrgm:Version="` + hdrgmVersion + `">
      <Container:Directory>
        <rdf:Seq>
          <rdf:li rdf:parseType="Resource">
            <Container:Item Item:Semantic="Primary" Item:Mime="image/jpeg"/>
          </rdf:li>
          <rdf:li rdf:parseType="Resource">
            <Container:Item Item:Semantic="GainMap" Item:Mime="image/jpeg" Item:Length="`)
	sb.WriteString(strconv.Itoa(gainmapLength))
	sb.WriteString(`"/>
          </rdf:li>
        </rdf:Seq>
      </Container:Directory>
    </rdf:Description>
  </rdf:RDF>
</x:xmpmeta>`)
	return []byte(sb.String())
}

// buildGainmapXMP writes hdrgm attributes of the first channel.
func buildGainmapXMP(meta uhdr.GainmapMetadata) []byte {
	attrs := []struct {
		name  string
		value string
	}{
		{"Version", hdrgmVersion},
		{"GainMapMin", formatFloat(log2f(meta.MinContentBoost[0]))},
		{"GainMapMax", formatFloat(log2f(meta.MaxContentBoost[0]))},
		{"Gamma", formatFloat(meta.Gamma[0])},
		{"OffsetSDR", formatFloat(meta.OffsetSDR[0])},
		{"OffsetHDR", formatFloat(meta.OffsetHDR[0])},
		{"HDRCapacityMin", formatFloat(log2f(meta.HDRCapacityMin))},
		{"HDRCapacityMax", formatFloat(log2f(meta.HDRCapacityMax))},
		{"BaseRenditionIsHDR", "False"},
	}

	var sb strings.Builder
	sb.WriteString(xmpNamespace)
	sb.WriteByte(0)
	sb.WriteString(`<x:xmpmeta xmlns:x="adobe:ns:meta/" x:xmptk="uhdr">
  <rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">
    <rdf:Description rdf:about=""
        xmlns:hdrgm="http://ns.adobe.com/hdr-gain-map/1.0/"`)
	for _, a := range attrs {
		sb.WriteString("\n        hdrgm:")
		sb.WriteString(a.name)
		sb.WriteString(`="`)
		sb.WriteString(a.value)
		sb.WriteByte('"')
	}
	sb.WriteString(`/>
  </rdf:RDF>
</x:xmpmeta>`)
	return []byte(sb.String())
}

var (
	reVersion    = regexp.MustCompile(`hdrgm:Version="([^"]+)"`)
	reGainMapMin = regexp.MustCompile(`hdrgm:GainMapMin="([^"]+)"`)
	reGainMapMax = regexp.MustCompile(`hdrgm:GainMapMax="([^"]+)"`)
	reGamma      = regexp.MustCompile(`hdrgm:Gamma="([^"]+)"`)
	reOffsetSDR  = regexp.MustCompile(`hdrgm:OffsetSDR="([^"]+)"`)
	reOffsetHDR  = regexp.MustCompile(`hdrgm:OffsetHDR="([^"]+)"`)
	reHDRCapMin  = regexp.MustCompile(`hdrgm:HDRCapacityMin="([^"]+)"`)
	reHDRCapMax  = regexp.MustCompile(`hdrgm:HDRCapacityMax="([^"]+)"`)
	reBaseIsHDR  = regexp.MustCompile(`hdrgm:BaseRenditionIsHDR="([^"]+)"`)
)

// parseXMP reads single-channel hdrgm attributes from an APP1 payload.
func parseXMP(payload []byte) (uhdr.GainmapMetadata, error) {
	if !strings.HasPrefix(string(payload), string(xmpPrefix)) {
		return uhdr.GainmapMetadata{}, errors.New("xmp namespace mismatch")
	}
	xml := string(payload[len(xmpPrefix):])
	meta := uhdr.DefaultGainmapMetadata()

	if !reVersion.MatchString(xml) {
		return uhdr.GainmapMetadata{}, errors.New("xmp missing version")
	}
	if m := reBaseIsHDR.FindStringSubmatch(xml); m != nil && m[1] == "True" {
		return uhdr.GainmapMetadata{}, errors.New("hdr base rendition not supported")
	}

	fields := []struct {
		re       *regexp.Regexp
		required bool
		log2     bool
		dst      *float32
	}{
		{reGainMapMax, true, true, &meta.MaxContentBoost[0]},
		{reHDRCapMax, true, true, &meta.HDRCapacityMax},
		{reGainMapMin, false, true, &meta.MinContentBoost[0]},
		{reGamma, false, false, &meta.Gamma[0]},
		{reOffsetSDR, false, false, &meta.OffsetSDR[0]},
		{reOffsetHDR, false, false, &meta.OffsetHDR[0]},
		{reHDRCapMin, false, true, &meta.HDRCapacityMin},
	}
	for _, f := range fields {
		m := f.re.FindStringSubmatch(xml)
		if m == nil {
			if f.required {
				return uhdr.GainmapMetadata{}, errors.New("xmp missing " + strings.TrimSuffix(strings.TrimPrefix(f.re.String(), "hdrgm:"), `="([^"]+)"`))
			}
			continue
		}
		v, err := strconv.ParseFloat(m[1], 32)
		if err != nil {
			return uhdr.GainmapMetadata{}, err
		}
		*f.dst = float32(v)
		if f.log2 {
			*f.dst = exp2f(float32(v))
		}
	}

	for c := 1; c < 3; c++ {
		meta.MinContentBoost[c] = meta.MinContentBoost[0]
		meta.MaxContentBoost[c] = meta.MaxContentBoost[0]
		meta.Gamma[c] = meta.Gamma[0]
		meta.OffsetSDR[c] = meta.OffsetSDR[0]
		meta.OffsetHDR[c] = meta.OffsetHDR[0]
	}
	return meta, nil
}
