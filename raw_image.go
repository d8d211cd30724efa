package uhdr

import "unsafe"

// RawImageLayout is the layout shared by every raw image ownership variant.
type RawImageLayout struct {
	Format   PixelFormat
	Gamut    ColorGamut
	Transfer ColorTransfer
	Range    ColorRange
	Width    uint32
	Height   uint32
	// Stride holds per-plane row strides, see DefaultStrides for units.
	Stride [3]uint32
}

// PlaneExtents returns the byte length of every plane slot of the layout.
// It panics with *LayoutError if the layout cannot be addressed.
func (l RawImageLayout) PlaneExtents() [3]int {
	return PlaneExtents(l.Format, l.Width, l.Height, l.Stride)
}

func (l RawImageLayout) descriptor(planes [3][]byte) RawImageDescriptor {
	d := RawImageDescriptor{
		Format:   l.Format,
		Gamut:    l.Gamut,
		Transfer: l.Transfer,
		Range:    l.Range,
		Width:    l.Width,
		Height:   l.Height,
		Stride:   l.Stride,
	}
	for i, p := range planes {
		if len(p) > 0 {
			d.Planes[i] = unsafe.SliceData(p)
		}
	}
	return d
}

// OwnedRawImage holds exclusive, independently allocated storage per plane.
type OwnedRawImage struct {
	RawImageLayout
	Planes [3][]byte
}

// NewOwnedRawImage returns an empty image of unspecified format.
func NewOwnedRawImage() *OwnedRawImage {
	return &OwnedRawImage{
		RawImageLayout: RawImageLayout{
			Format:   FormatUnspecified,
			Gamut:    GamutUnspecified,
			Transfer: TransferUnspecified,
			Range:    RangeUnspecified,
		},
	}
}

// NewRawImage allocates zeroed planes for an image of the given format and
// dimensions, with tightly packed strides and unspecified color metadata.
// It panics with *LayoutError on an unknown format.
func NewRawImage(format PixelFormat, width, height uint32) *OwnedRawImage {
	img := NewOwnedRawImage()
	img.Format = format
	img.Width = width
	img.Height = height
	img.Stride = DefaultStrides(format, width)

	for i, n := range img.PlaneExtents() {
		if n > 0 {
			img.Planes[i] = make([]byte, n)
		}
	}
	return img
}

// Borrow returns a read-only view of the image without copying.
func (o *OwnedRawImage) Borrow() BorrowedRawImage {
	return BorrowedRawImage{RawImageLayout: o.RawImageLayout, planes: o.Planes}
}

// Mut returns a writable view of the image without copying.
func (o *OwnedRawImage) Mut() MutRawImage {
	return MutRawImage{RawImageLayout: o.RawImageLayout, Planes: o.Planes}
}

// BorrowedRawImage is a read-only view into plane storage owned elsewhere.
// The view keeps the storage reachable, but it must not be used after the
// owner has reused or released that storage (for example codec-held output
// after the next session call).
type BorrowedRawImage struct {
	RawImageLayout
	planes [3][]byte
}

// NewBorrowedRawImage wraps caller-owned planes into a read-only view.
// Plane lengths are not checked against the layout.
func NewBorrowedRawImage(layout RawImageLayout, planes [3][]byte) BorrowedRawImage {
	return BorrowedRawImage{RawImageLayout: layout, planes: planes}
}

// Plane returns plane i. The slice aliases the owner's storage and must not be modified.
func (b BorrowedRawImage) Plane(i int) []byte {
	p := b.planes[i]
	return p[:len(p):len(p)]
}

// ToOwned returns a deep copy of the view.
func (b BorrowedRawImage) ToOwned() *OwnedRawImage {
	o := &OwnedRawImage{RawImageLayout: b.RawImageLayout}
	for i, p := range b.planes {
		if p != nil {
			o.Planes[i] = append([]byte{}, p...)
		}
	}
	return o
}

// Descriptor returns a codec descriptor aliasing the view's planes.
// It is valid as long as the view is.
func (b BorrowedRawImage) Descriptor() RawImageDescriptor {
	return b.descriptor(b.planes)
}

// MutRawImage is a writable view into plane storage owned elsewhere.
type MutRawImage struct {
	RawImageLayout
	Planes [3][]byte
}

// MutRawImageFromDescriptor resolves plane extents of a codec descriptor and
// returns a writable view aliasing its plane addresses. It panics with
// *LayoutError if the layout cannot be addressed.
func MutRawImageFromDescriptor(d *RawImageDescriptor) MutRawImage {
	return MutRawImage{
		RawImageLayout: RawImageLayout{
			Format:   d.Format,
			Gamut:    d.Gamut,
			Transfer: d.Transfer,
			Range:    d.Range,
			Width:    d.Width,
			Height:   d.Height,
			Stride:   d.Stride,
		},
		Planes: ResolvePlanes(d),
	}
}

// Plane returns plane i for writing.
func (m MutRawImage) Plane(i int) []byte {
	return m.Planes[i]
}

// Borrow returns a read-only view over the same storage.
func (m MutRawImage) Borrow() BorrowedRawImage {
	return BorrowedRawImage{RawImageLayout: m.RawImageLayout, planes: m.Planes}
}

// Descriptor returns a codec descriptor aliasing the view's planes.
func (m MutRawImage) Descriptor() RawImageDescriptor {
	return m.descriptor(m.Planes)
}
