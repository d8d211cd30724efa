package jpegr

import (
	"math"
	"testing"

	"github.com/vearutop/uhdr"
)

func near(a, b, tol float32) bool {
	return math.Abs(float64(a-b)) <= float64(tol)
}

func TestTransfer_roundTrip(t *testing.T) {
	for _, tc := range []struct {
		name    string
		oetf    func(float32) float32
		invOetf func(float32) float32
	}{
		{"srgb", srgbOetf, srgbInvOetf},
		{"pq", pqOetf, pqInvOetf},
		{"hlg", hlgOetf, hlgInvOetf},
	} {
		t.Run(tc.name, func(t *testing.T) {
			for i := 0; i <= 20; i++ {
				v := float32(i) / 20
				if got := tc.oetf(tc.invOetf(v)); !near(got, v, 5e-4) {
					t.Fatalf("round trip of %v gave %v", v, got)
				}
			}
		})
	}
}

func TestHDRInvOetf_peak(t *testing.T) {
	white := rgb{1, 1, 1}
	if got := hdrInvOetf(white, uhdr.TransferPQ).r; !near(got, pqMaxNits/sdrWhiteNits, 1e-2) {
		t.Fatalf("pq peak %v", got)
	}
	if got := hdrInvOetf(white, uhdr.TransferHLG).r; !near(got, hlgMaxNits/sdrWhiteNits, 1e-2) {
		t.Fatalf("hlg peak %v", got)
	}
	if got := hdrInvOetf(rgb{0.5, 0.5, 0.5}, uhdr.TransferLinear); got != (rgb{0.5, 0.5, 0.5}) {
		t.Fatalf("linear changed %v", got)
	}
}

func TestGamutConverter_white(t *testing.T) {
	gamuts := []uhdr.ColorGamut{uhdr.GamutBT709, uhdr.GamutDisplayP3, uhdr.GamutBT2100}
	for _, from := range gamuts {
		for _, to := range gamuts {
			got := gamutConverter(from, to)(rgb{1, 1, 1})
			if !near(got.r, 1, 1e-3) || !near(got.g, 1, 1e-3) || !near(got.b, 1, 1e-3) {
				t.Fatalf("%s to %s moved white to %v", from, to, got)
			}
		}
	}

	// Pure BT.2100 green is outside BT.709.
	got := gamutConverter(uhdr.GamutBT2100, uhdr.GamutBT709)(rgb{0, 1, 0})
	if got.r >= 0 || got.g <= 1 {
		t.Fatalf("unexpected conversion %v", got)
	}
}

func TestYUVToRGB_neutral(t *testing.T) {
	for _, g := range []uhdr.ColorGamut{uhdr.GamutBT709, uhdr.GamutDisplayP3, uhdr.GamutBT2100} {
		got := yuvToRGB(0.5, 0, 0, g)
		if !near(got.r, 0.5, 1e-5) || !near(got.g, 0.5, 1e-5) || !near(got.b, 0.5, 1e-5) {
			t.Fatalf("%s: neutral yuv gave %v", g, got)
		}
	}
}

func TestHalfToFloat32(t *testing.T) {
	for _, tc := range []struct {
		h    uint16
		want float32
	}{
		{0x0000, 0},
		{0x3C00, 1},
		{0xC000, -2},
		{0x3800, 0.5},
		{0x7BFF, 65504},
		{0x0001, 5.9604645e-08},
	} {
		if got := halfToFloat32(tc.h); got != tc.want {
			t.Fatalf("halfToFloat32(%#04x) = %v, want %v", tc.h, got, tc.want)
		}
	}
	if !math.IsInf(float64(halfToFloat32(0x7C00)), 1) {
		t.Fatal("expected +Inf")
	}
	if !math.IsNaN(float64(halfToFloat32(0x7E00))) {
		t.Fatal("expected NaN")
	}
}

func TestDecodeHDR_formats(t *testing.T) {
	half := uhdr.NewRawImage(uhdr.FormatRGBAHalfFloat, 2, 2)
	half.Transfer = uhdr.TransferLinear
	half.Gamut = uhdr.GamutBT709
	for i := 0; i < 4; i++ {
		p := half.Planes[uhdr.PlanePacked][i*8:]
		p[0], p[1] = 0x00, 0x40 // 2.0
		p[2], p[3] = 0x00, 0x3C // 1.0
		p[4], p[5] = 0x00, 0x38 // 0.5
	}
	lin, err := decodeHDR(half)
	if err != nil {
		t.Fatal(err)
	}
	if got := lin.at(1, 1); got != (rgb{2, 1, 0.5}) {
		t.Fatalf("unexpected half float pixel %v", got)
	}

	packed := uhdr.NewRawImage(uhdr.FormatRGBA1010102, 2, 2)
	packed.Transfer = uhdr.TransferPQ
	packed.Gamut = uhdr.GamutBT2100
	for i := 0; i < 4; i++ {
		p := packed.Planes[uhdr.PlanePacked][i*4:]
		p[0], p[1], p[2], p[3] = 0xFF, 0xFF, 0xFF, 0xFF
	}
	lin, err = decodeHDR(packed)
	if err != nil {
		t.Fatal(err)
	}
	if got := lin.at(0, 0).g; !near(got, pqMaxNits/sdrWhiteNits, 1e-2) {
		t.Fatalf("unexpected pq white %v", got)
	}

	if _, err := decodeHDR(sdrRawImage(2, 2)); err == nil {
		t.Fatal("expected error for sdr format")
	}
}
