package uhdr

// GainmapMetadata describes how a gain map is applied to the base image.
// It performs no validation, the codec validates on ingestion.
type GainmapMetadata struct {
	// MaxContentBoost controls how much brighter the HDR rendition can get
	// relative to SDR, per channel. Linear scale.
	MaxContentBoost [3]float32
	// MinContentBoost controls how much darker the HDR rendition can get
	// relative to SDR, per channel. Linear scale.
	MinContentBoost [3]float32
	// Gamma is the encoding gamma of the gain map image.
	Gamma [3]float32
	// OffsetSDR is added to SDR pixel values during gain map generation and application.
	OffsetSDR [3]float32
	// OffsetHDR is added to HDR pixel values during gain map generation and application.
	OffsetHDR [3]float32
	// HDRCapacityMin is the display boost at which the map starts to apply. Linear scale.
	HDRCapacityMin float32
	// HDRCapacityMax is the display boost at which the map applies completely. Linear scale.
	HDRCapacityMax float32
	// UseBaseColorGamut is set when the gain map is applied in the color space of the base image.
	UseBaseColorGamut bool
}

// DefaultGainmapMetadata returns an identity gain map description.
func DefaultGainmapMetadata() GainmapMetadata {
	m := GainmapMetadata{
		HDRCapacityMin:    1,
		HDRCapacityMax:    1,
		UseBaseColorGamut: true,
	}
	for i := 0; i < 3; i++ {
		m.MaxContentBoost[i] = 1
		m.MinContentBoost[i] = 1
		m.Gamma[i] = 1
		m.OffsetSDR[i] = 1.0 / 64.0
		m.OffsetHDR[i] = 1.0 / 64.0
	}
	return m
}

// GainmapMetadataFromDescriptor converts the codec representation.
func GainmapMetadataFromDescriptor(d *GainmapMetadataDescriptor) GainmapMetadata {
	return GainmapMetadata{
		MaxContentBoost:   d.MaxContentBoost,
		MinContentBoost:   d.MinContentBoost,
		Gamma:             d.Gamma,
		OffsetSDR:         d.OffsetSDR,
		OffsetHDR:         d.OffsetHDR,
		HDRCapacityMin:    d.HDRCapacityMin,
		HDRCapacityMax:    d.HDRCapacityMax,
		UseBaseColorGamut: d.UseBaseCG != 0,
	}
}

// Descriptor converts metadata to the codec representation.
func (m GainmapMetadata) Descriptor() GainmapMetadataDescriptor {
	d := GainmapMetadataDescriptor{
		MaxContentBoost: m.MaxContentBoost,
		MinContentBoost: m.MinContentBoost,
		Gamma:           m.Gamma,
		OffsetSDR:       m.OffsetSDR,
		OffsetHDR:       m.OffsetHDR,
		HDRCapacityMin:  m.HDRCapacityMin,
		HDRCapacityMax:  m.HDRCapacityMax,
	}
	if m.UseBaseColorGamut {
		d.UseBaseCG = 1
	}
	return d
}
