package uhdr

import (
	"fmt"
	"unsafe"
)

// LayoutError is the panic value of the plane layout resolver.
//
// It reports a layout the resolver cannot address at all: an unknown format tag,
// a broken stride invariant or a missing plane address. Retrying with the same
// input cannot succeed, so it is not returned as an error.
type LayoutError struct {
	Format PixelFormat
	Width  uint32
	Height uint32
	Reason string
}

func (e *LayoutError) Error() string {
	return fmt.Sprintf("uhdr: %s %dx%d: %s", e.Format, e.Width, e.Height, e.Reason)
}

// PlaneExtents returns the byte length of every plane slot of an image with
// the given format and dimensions. Unused slots have zero length.
//
// Extents are derived from the dimensions alone. Stride is only consulted for
// FormatYCbCrP010, where the luma stride counts 32-bit sample pairs and must
// equal width/2. PlaneExtents panics with *LayoutError on an unknown format or
// a broken P010 stride.
func PlaneExtents(format PixelFormat, width, height uint32, stride [3]uint32) [3]int {
	info, ok := format.Info()
	if !ok {
		panic(&LayoutError{Format: format, Width: width, Height: height, Reason: "unsupported pixel format"})
	}

	switch info.Family {
	case FamilyNone:
		return [3]int{}
	case FamilySemiPlanar:
		if stride[PlaneY] != width/2 {
			panic(&LayoutError{
				Format: format, Width: width, Height: height,
				Reason: fmt.Sprintf("luma stride %d, want %d", stride[PlaneY], width/2),
			})
		}
		return planeExtents(info, int(width), int(height))
	case FamilyPlanar, FamilyPacked:
		return planeExtents(info, int(width), int(height))
	default:
		panic(&LayoutError{Format: format, Width: width, Height: height, Reason: "unknown format family"})
	}
}

func planeExtents(info FormatInfo, w, h int) [3]int {
	var ext [3]int
	for i := 0; i < info.Planes; i++ {
		s := info.Subsampling[i]
		ext[i] = info.BytesPerSample * info.Samples[i] * (w / s.DX) * (h / s.DY)
	}
	return ext
}

// ResolvePlanes returns views over the plane addresses of a descriptor, each
// scoped to its computed extent. It never allocates or copies, the returned
// slices alias the descriptor's storage.
func ResolvePlanes(d *RawImageDescriptor) [3][]byte {
	ext := PlaneExtents(d.Format, d.Width, d.Height, d.Stride)

	var planes [3][]byte
	for i, n := range ext {
		if n == 0 {
			continue
		}
		if d.Planes[i] == nil {
			panic(&LayoutError{
				Format: d.Format, Width: d.Width, Height: d.Height,
				Reason: fmt.Sprintf("plane %d has no address, want %d bytes", i, n),
			})
		}
		planes[i] = unsafe.Slice(d.Planes[i], n)
	}
	return planes
}

// DefaultStrides returns row strides of tightly packed planes.
//
// Strides count plane elements: pixels for planar and packed formats, and
// 32-bit sample pairs for both planes of FormatYCbCrP010.
func DefaultStrides(format PixelFormat, width uint32) [3]uint32 {
	info, ok := format.Info()
	if !ok {
		return [3]uint32{}
	}
	var stride [3]uint32
	switch info.Family {
	case FamilyNone:
	case FamilySemiPlanar:
		stride[PlaneY] = width / 2
		stride[PlaneUV] = width / 2
	case FamilyPlanar, FamilyPacked:
		for i := 0; i < info.Planes; i++ {
			stride[i] = width / uint32(info.Subsampling[i].DX)
		}
	}
	return stride
}
