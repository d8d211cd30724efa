package uhdr

// RawImageDescriptor is the flat raw image representation exchanged with a Codec.
// Plane addresses alias memory owned by whoever built the descriptor.
type RawImageDescriptor struct {
	Format   PixelFormat
	Gamut    ColorGamut
	Transfer ColorTransfer
	Range    ColorRange
	Width    uint32
	Height   uint32
	Planes   [3]*byte
	Stride   [3]uint32
}

// CompressedImageDescriptor is the flat compressed image representation
// exchanged with a Codec.
type CompressedImageDescriptor struct {
	Data     *byte
	DataSize int
	Capacity int
	Gamut    ColorGamut
	Transfer ColorTransfer
	Range    ColorRange
}

// GainmapMetadataDescriptor is the flat gain map metadata representation
// exchanged with a Codec. Field order is fixed.
type GainmapMetadataDescriptor struct {
	MaxContentBoost [3]float32
	MinContentBoost [3]float32
	Gamma           [3]float32
	OffsetSDR       [3]float32
	OffsetHDR       [3]float32
	HDRCapacityMin  float32
	HDRCapacityMax  float32
	UseBaseCG       int32
}

// Codec is a foreign encoder handle.
//
// Every setter validates its arguments and reports a Status, a failed call
// leaves previously accepted configuration intact. Descriptors passed in are
// only valid for the duration of the call. Implementations need not be safe
// for concurrent use.
type Codec interface {
	SetRawImage(img *RawImageDescriptor, intent ImageLabel) Status
	SetCompressedImage(img *CompressedImageDescriptor, intent ImageLabel) Status
	SetGainmapImage(img *CompressedImageDescriptor, meta *GainmapMetadataDescriptor) Status
	SetGainmapScaleFactor(factor int32) Status
	SetGainmapGamma(gamma float32) Status
	SetMinMaxContentBoost(minBoost, maxBoost float32) Status
	SetTargetDisplayPeakBrightness(nits float32) Status
	SetQuality(quality int32, intent ImageLabel) Status
	SetExifData(exif *CompressedImageDescriptor) Status
	SetUsingMultiChannelGainmap(enable bool) Status

	// Encode runs the configured pipeline.
	Encode() Status
	// EncodedStream returns the output of the last successful Encode, or nil.
	// The descriptor and its data stay owned by the codec.
	EncodedStream() *CompressedImageDescriptor
	// Reset drops all configuration and output.
	Reset()
	// Release frees the handle, it is called exactly once.
	Release()
}
