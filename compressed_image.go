package uhdr

import "unsafe"

// CompressedImage is an encoded bitstream with its color metadata.
//
// An owning image adopts a byte slice. A referencing image is a view into a
// descriptor held by a codec: its bytes are read from the descriptor at call
// time and it must not be used after the codec reuses or releases its output.
type CompressedImage struct {
	inner CompressedImageDescriptor
	ref   *CompressedImageDescriptor
	data  []byte
}

// NewCompressedImage adopts data as the bitstream of an owning image.
// Capacity equals the current length, gamut and transfer are unspecified and
// range is full.
func NewCompressedImage(data []byte) *CompressedImage {
	c := &CompressedImage{
		data: data[:len(data):len(data)],
		inner: CompressedImageDescriptor{
			DataSize: len(data),
			Capacity: len(data),
			Gamut:    GamutUnspecified,
			Transfer: TransferUnspecified,
			Range:    RangeFull,
		},
	}
	if len(data) > 0 {
		c.inner.Data = unsafe.SliceData(data)
	}
	return c
}

// CompressedImageFromDescriptor returns a non-owning view of a codec-held descriptor.
func CompressedImageFromDescriptor(d *CompressedImageDescriptor) *CompressedImage {
	return &CompressedImage{inner: *d, ref: d}
}

// Owned reports whether the image owns its bitstream.
func (c *CompressedImage) Owned() bool {
	return c.ref == nil
}

// Bytes returns the bitstream. For a referencing image the slice aliases
// codec-held memory and must not be modified.
func (c *CompressedImage) Bytes() []byte {
	if c.ref == nil {
		return c.data
	}
	if c.ref.Data == nil || c.ref.DataSize == 0 {
		return nil
	}
	return unsafe.Slice(c.ref.Data, c.ref.DataSize)
}

// Len returns the bitstream length.
func (c *CompressedImage) Len() int {
	if c.ref == nil {
		return len(c.data)
	}
	return c.ref.DataSize
}

func (c *CompressedImage) ColorGamut() ColorGamut { return c.inner.Gamut }

func (c *CompressedImage) SetColorGamut(g ColorGamut) { c.inner.Gamut = g }

func (c *CompressedImage) ColorTransfer() ColorTransfer { return c.inner.Transfer }

func (c *CompressedImage) SetColorTransfer(t ColorTransfer) { c.inner.Transfer = t }

func (c *CompressedImage) ColorRange() ColorRange { return c.inner.Range }

func (c *CompressedImage) SetColorRange(r ColorRange) { c.inner.Range = r }

// Descriptor returns the codec representation of the image.
// Color metadata set on a referencing image is reported here, the codec-held
// descriptor itself is never modified.
func (c *CompressedImage) Descriptor() *CompressedImageDescriptor {
	if c.ref != nil {
		c.inner.Data = c.ref.Data
		c.inner.DataSize = c.ref.DataSize
		c.inner.Capacity = c.ref.Capacity
	}
	return &c.inner
}
