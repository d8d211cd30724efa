package uhdr

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPlaneExtents(t *testing.T) {
	cases := []struct {
		name   string
		format PixelFormat
		w, h   uint32
		want   [3]int
	}{
		{name: "yuv420 4x4", format: FormatYCbCr420, w: 4, h: 4, want: [3]int{16, 4, 4}},
		{name: "yuv420 1920x1080", format: FormatYCbCr420, w: 1920, h: 1080, want: [3]int{1920 * 1080, 960 * 540, 960 * 540}},
		{name: "yuv400", format: FormatYCbCr400, w: 8, h: 2, want: [3]int{16, 0, 0}},
		{name: "yuv444", format: FormatYCbCr444, w: 3, h: 5, want: [3]int{15, 15, 15}},
		{name: "yuv422", format: FormatYCbCr422, w: 8, h: 4, want: [3]int{32, 16, 16}},
		{name: "yuv440", format: FormatYCbCr440, w: 8, h: 4, want: [3]int{32, 16, 16}},
		{name: "yuv411", format: FormatYCbCr411, w: 8, h: 4, want: [3]int{32, 8, 8}},
		{name: "yuv410", format: FormatYCbCr410, w: 8, h: 4, want: [3]int{32, 4, 4}},
		{name: "p010", format: FormatYCbCrP010, w: 1920, h: 1080, want: [3]int{2 * 1920 * 1080, 2 * 960 * 540 * 2, 0}},
		{name: "yuv444p10", format: FormatYCbCr444P10, w: 4, h: 2, want: [3]int{16, 16, 16}},
		{name: "rgb888", format: FormatRGB888, w: 4, h: 2, want: [3]int{24, 0, 0}},
		{name: "rgba8888", format: FormatRGBA8888, w: 4, h: 2, want: [3]int{32, 0, 0}},
		{name: "rgba1010102", format: FormatRGBA1010102, w: 4, h: 2, want: [3]int{32, 0, 0}},
		{name: "rgba half float", format: FormatRGBAHalfFloat, w: 4, h: 2, want: [3]int{64, 0, 0}},
		{name: "unspecified", format: FormatUnspecified, w: 4, h: 2, want: [3]int{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := PlaneExtents(tc.format, tc.w, tc.h, DefaultStrides(tc.format, tc.w))
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("extents mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPlaneExtents_allFormats(t *testing.T) {
	for _, f := range Formats() {
		info, ok := f.Info()
		if !ok {
			t.Fatalf("%s: no format info", f)
		}

		ext := PlaneExtents(f, 16, 8, DefaultStrides(f, 16))
		for i := 0; i < 3; i++ {
			if i < info.Planes && ext[i] == 0 {
				t.Fatalf("%s: plane %d is empty", f, i)
			}
			if i >= info.Planes && ext[i] != 0 {
				t.Fatalf("%s: unused plane %d has %d bytes", f, i, ext[i])
			}
		}
	}
}

func expectLayoutPanic(t *testing.T, fn func()) *LayoutError {
	t.Helper()

	var le *LayoutError
	func() {
		defer func() {
			r := recover()
			if r == nil {
				t.Fatalf("expected panic")
			}
			err, ok := r.(error)
			if !ok || !errors.As(err, &le) {
				t.Fatalf("unexpected panic value: %v", r)
			}
		}()
		fn()
	}()
	return le
}

func TestPlaneExtents_p010BadStride(t *testing.T) {
	le := expectLayoutPanic(t, func() {
		PlaneExtents(FormatYCbCrP010, 1920, 1080, [3]uint32{1920, 960})
	})
	if le.Format != FormatYCbCrP010 || le.Width != 1920 || le.Height != 1080 {
		t.Fatalf("unexpected layout error: %v", le)
	}
}

func TestPlaneExtents_unknownFormat(t *testing.T) {
	le := expectLayoutPanic(t, func() {
		PlaneExtents(PixelFormat(99), 4, 4, [3]uint32{4})
	})
	if le.Format != PixelFormat(99) {
		t.Fatalf("unexpected layout error: %v", le)
	}
}

func TestResolvePlanes(t *testing.T) {
	img := NewRawImage(FormatYCbCr420, 4, 4)
	img.Planes[PlaneY][0] = 7

	d := img.Mut().Descriptor()
	planes := ResolvePlanes(&d)

	if diff := cmp.Diff([3]int{16, 4, 4}, [3]int{len(planes[0]), len(planes[1]), len(planes[2])}); diff != "" {
		t.Fatalf("plane lengths mismatch (-want +got):\n%s", diff)
	}
	if planes[PlaneY][0] != 7 {
		t.Fatalf("resolved plane does not alias storage")
	}

	planes[PlaneV][3] = 9
	if img.Planes[PlaneV][3] != 9 {
		t.Fatalf("write through resolved plane is not visible to owner")
	}
}

func TestResolvePlanes_missingAddress(t *testing.T) {
	d := RawImageDescriptor{Format: FormatRGBA8888, Width: 2, Height: 2, Stride: [3]uint32{2}}
	expectLayoutPanic(t, func() { ResolvePlanes(&d) })
}

func TestResolvePlanes_unspecified(t *testing.T) {
	d := RawImageDescriptor{Format: FormatUnspecified, Width: 2, Height: 2}
	planes := ResolvePlanes(&d)
	for i, p := range planes {
		if p != nil {
			t.Fatalf("plane %d: expected nil, got %d bytes", i, len(p))
		}
	}
}

func TestDefaultStrides(t *testing.T) {
	if diff := cmp.Diff([3]uint32{960, 960, 0}, DefaultStrides(FormatYCbCrP010, 1920)); diff != "" {
		t.Fatalf("p010 strides mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([3]uint32{1920, 960, 960}, DefaultStrides(FormatYCbCr420, 1920)); diff != "" {
		t.Fatalf("yuv420 strides mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([3]uint32{4, 0, 0}, DefaultStrides(FormatRGBA8888, 4)); diff != "" {
		t.Fatalf("rgba strides mismatch (-want +got):\n%s", diff)
	}
}
