package jpegr

import (
	"image"
	"testing"

	"github.com/vearutop/uhdr"
)

func filledLinear(w, h int, v rgb) *linearImage {
	img := newLinearImage(w, h, uhdr.GamutBT709)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.set(x, y, v)
		}
	}
	return img
}

func TestGenerateGainmap_applyRestoresHDR(t *testing.T) {
	sdr := newLinearImage(8, 8, uhdr.GamutBT709)
	hdr := newLinearImage(8, 8, uhdr.GamutBT709)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			s := 0.1 + float32(x)/10
			sdr.set(x, y, rgb{s, s, s})
			hdr.set(x, y, rgb{s, s, s}.scale(1+float32(y)/2))
		}
	}

	gm, meta, err := generateGainmap(sdr, hdr, gainmapConfig{scale: 1, gamma: 1, peakNits: 1000})
	if err != nil {
		t.Fatal(err)
	}
	gray, ok := gm.(*image.Gray)
	if !ok {
		t.Fatalf("expected gray gain map, got %T", gm)
	}
	if !near(meta.MaxContentBoost[0], 4.5, 0.1) || !near(meta.MinContentBoost[0], 1, 0.05) {
		t.Fatalf("unexpected boost range [%v, %v]", meta.MinContentBoost[0], meta.MaxContentBoost[0])
	}

	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			v := float32(gray.GrayAt(x, y).Y) / 255
			got := applyGain(sdr.at(x, y), rgb{v, v, v}, &meta, 1)
			if want := hdr.at(x, y); !near(got.g, want.g, want.g*0.02+0.01) {
				t.Fatalf("pixel %d,%d: got %v, want %v", x, y, got, want)
			}
		}
	}

	// Zero weight renders the SDR image.
	if got := applyGain(sdr.at(3, 3), rgb{1, 1, 1}, &meta, 0); !near(got.r, sdr.at(3, 3).r, 1e-5) {
		t.Fatalf("zero weight changed pixel to %v", got)
	}
}

func TestGenerateGainmap_options(t *testing.T) {
	sdr := filledLinear(16, 8, rgb{0.5, 0.5, 0.5})
	hdr := filledLinear(16, 8, rgb{1, 2, 0.5})

	gm, meta, err := generateGainmap(sdr, hdr, gainmapConfig{
		scale:        4,
		gamma:        2,
		multiChannel: true,
		minBoost:     0.5,
		maxBoost:     8,
	})
	if err != nil {
		t.Fatal(err)
	}
	if b := gm.Bounds(); b.Dx() != 4 || b.Dy() != 2 {
		t.Fatalf("unexpected gain map bounds %v", b)
	}
	if _, ok := gm.(*image.Gray); ok {
		t.Fatal("expected a color gain map")
	}
	for c := 0; c < 3; c++ {
		if meta.MinContentBoost[c] != 0.5 || meta.MaxContentBoost[c] != 8 || meta.Gamma[c] != 2 {
			t.Fatalf("channel %d: unexpected metadata %+v", c, meta)
		}
	}
	if meta.HDRCapacityMax != 8 {
		t.Fatalf("unexpected hdr capacity max %v", meta.HDRCapacityMax)
	}

	if _, _, err := generateGainmap(sdr, filledLinear(8, 8, rgb{}), gainmapConfig{scale: 1, gamma: 1}); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestTonemap(t *testing.T) {
	hdr := filledLinear(2, 1, rgb{})
	hdr.set(1, 0, rgb{10, 10, 10})
	out := tonemap(hdr, 1000)
	if out.Pix[0] != 0 || out.Pix[3] != 0xFF {
		t.Fatalf("unexpected black pixel %v", out.Pix[:4])
	}
	if out.Pix[4] != 0xFF {
		t.Fatalf("expected highlight to reach white, got %v", out.Pix[4:8])
	}
}
