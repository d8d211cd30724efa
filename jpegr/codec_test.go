package jpegr

import (
	"image"
	"testing"

	"github.com/vearutop/uhdr"
)

func sdrRawImage(w, h uint32) *uhdr.OwnedRawImage {
	img := uhdr.NewRawImage(uhdr.FormatYCbCr420, w, h)
	img.Gamut = uhdr.GamutBT709
	img.Transfer = uhdr.TransferSRGB
	img.Range = uhdr.RangeFull
	for i := range img.Planes[uhdr.PlaneY] {
		img.Planes[uhdr.PlaneY][i] = byte(i)
	}
	for _, p := range []int{uhdr.PlaneU, uhdr.PlaneV} {
		for i := range img.Planes[p] {
			img.Planes[p][i] = 128
		}
	}
	return img
}

func setRaw(c *Codec, img *uhdr.OwnedRawImage, label uhdr.ImageLabel) uhdr.Status {
	d := img.Borrow().Descriptor()
	return c.SetRawImage(&d, label)
}

func setCompressed(c *Codec, data []byte, label uhdr.ImageLabel) uhdr.Status {
	return c.SetCompressedImage(uhdr.NewCompressedImage(data).Descriptor(), label)
}

func wantCode(t *testing.T, s uhdr.Status, code uhdr.ErrorCode) {
	t.Helper()
	if s.Code != code {
		t.Fatalf("expected %s, got %s: %v", code, s.Code, uhdr.CheckStatus(s))
	}
}

func TestCodec_SetQuality(t *testing.T) {
	c := New()
	for _, q := range []int32{0, 1, 95, 100} {
		wantCode(t, c.SetQuality(q, uhdr.LabelBase), uhdr.CodecOK)
		wantCode(t, c.SetQuality(q, uhdr.LabelGainMap), uhdr.CodecOK)
	}
	for _, q := range []int32{-1, 101} {
		wantCode(t, c.SetQuality(q, uhdr.LabelBase), uhdr.CodecInvalidParam)
	}
	wantCode(t, c.SetQuality(90, uhdr.LabelHDR), uhdr.CodecInvalidParam)
}

func TestCodec_SetRawImage(t *testing.T) {
	c := New()
	wantCode(t, c.SetRawImage(nil, uhdr.LabelSDR), uhdr.CodecInvalidParam)
	wantCode(t, setRaw(c, sdrRawImage(16, 16), uhdr.LabelSDR), uhdr.CodecOK)

	// SDR pixels are not an HDR rendition.
	wantCode(t, setRaw(c, sdrRawImage(16, 16), uhdr.LabelHDR), uhdr.CodecInvalidParam)

	hdr := hdrP010Image(16, 16)
	wantCode(t, setRaw(c, hdr, uhdr.LabelHDR), uhdr.CodecOK)

	hdr.Stride[uhdr.PlaneY] = 16
	wantCode(t, setRaw(c, hdr, uhdr.LabelHDR), uhdr.CodecInvalidParam)

	odd := hdrP010Image(16, 16)
	odd.Width = 15
	wantCode(t, setRaw(c, odd, uhdr.LabelHDR), uhdr.CodecInvalidParam)

	pq := hdrP010Image(16, 16)
	pq.Transfer = uhdr.TransferSRGB
	wantCode(t, setRaw(c, pq, uhdr.LabelHDR), uhdr.CodecInvalidParam)
}

func TestCodec_SetCompressedImage(t *testing.T) {
	c := New()
	wantCode(t, setCompressed(c, []byte{0xFF, 0xD8, 0xFF, 0xD9}, uhdr.LabelHDR), uhdr.CodecUnsupportedFeature)
	wantCode(t, setCompressed(c, nil, uhdr.LabelSDR), uhdr.CodecInvalidParam)
	wantCode(t, c.SetCompressedImage(nil, uhdr.LabelBase), uhdr.CodecInvalidParam)
	wantCode(t, setCompressed(c, []byte{0xFF, 0xD8, 0xFF, 0xD9}, uhdr.LabelGainMap), uhdr.CodecInvalidParam)
}

func TestCodec_SetGainmapImage(t *testing.T) {
	c := New()
	gm := uhdr.NewCompressedImage([]byte{0xFF, 0xD8, 0xFF, 0xD9}).Descriptor()

	wantCode(t, c.SetGainmapImage(gm, nil), uhdr.CodecInvalidParam)

	md := uhdr.DefaultGainmapMetadata().Descriptor()
	wantCode(t, c.SetGainmapImage(gm, &md), uhdr.CodecOK)

	md.Gamma[1] = 0
	wantCode(t, c.SetGainmapImage(gm, &md), uhdr.CodecInvalidParam)

	md = uhdr.DefaultGainmapMetadata().Descriptor()
	md.HDRCapacityMin = 0.5
	wantCode(t, c.SetGainmapImage(gm, &md), uhdr.CodecInvalidParam)
}

func TestCodec_settings(t *testing.T) {
	c := New()
	wantCode(t, c.SetGainmapScaleFactor(0), uhdr.CodecInvalidParam)
	wantCode(t, c.SetGainmapScaleFactor(129), uhdr.CodecInvalidParam)
	wantCode(t, c.SetGainmapScaleFactor(4), uhdr.CodecOK)

	wantCode(t, c.SetGainmapGamma(0), uhdr.CodecInvalidParam)
	wantCode(t, c.SetGainmapGamma(2.2), uhdr.CodecOK)

	wantCode(t, c.SetMinMaxContentBoost(2, 1), uhdr.CodecInvalidParam)
	wantCode(t, c.SetMinMaxContentBoost(0, 4), uhdr.CodecInvalidParam)
	wantCode(t, c.SetMinMaxContentBoost(1, 4), uhdr.CodecOK)

	wantCode(t, c.SetTargetDisplayPeakBrightness(100), uhdr.CodecInvalidParam)
	wantCode(t, c.SetTargetDisplayPeakBrightness(20000), uhdr.CodecInvalidParam)
	wantCode(t, c.SetTargetDisplayPeakBrightness(1000), uhdr.CodecOK)

	wantCode(t, c.SetExifData(uhdr.NewCompressedImage(nil).Descriptor()), uhdr.CodecInvalidParam)
	wantCode(t, c.SetExifData(uhdr.NewCompressedImage([]byte("MM\x00\x2a")).Descriptor()), uhdr.CodecOK)

	wantCode(t, c.SetUsingMultiChannelGainmap(true), uhdr.CodecOK)

	if c.scale != 4 || c.gamma != 2.2 || c.maxBoost != 4 || c.targetPeak != 1000 || !c.multiChannel {
		t.Fatalf("settings not applied: %+v", c)
	}

	c.Reset()
	if c.scale != defaultScaleFactor || c.baseQuality != defaultQuality || c.multiChannel || c.exif != nil {
		t.Fatalf("reset did not restore defaults: %+v", c)
	}
}

func TestCodec_Encode_lifecycle(t *testing.T) {
	c := New()
	wantCode(t, c.Encode(), uhdr.CodecInvalidOperation)
	if c.EncodedStream() != nil {
		t.Fatal("unexpected output before encode")
	}

	wantCode(t, setRaw(c, sdrRawImage(16, 16), uhdr.LabelSDR), uhdr.CodecOK)
	wantCode(t, c.Encode(), uhdr.CodecOK)

	out := c.EncodedStream()
	if out == nil || out.DataSize == 0 {
		t.Fatal("missing output")
	}
	if out.Gamut != uhdr.GamutBT709 || out.Transfer != uhdr.TransferSRGB {
		t.Fatalf("unexpected output color: %s %s", out.Gamut, out.Transfer)
	}

	wantCode(t, c.SetQuality(50, uhdr.LabelBase), uhdr.CodecInvalidOperation)
	wantCode(t, c.Encode(), uhdr.CodecInvalidOperation)

	c.Reset()
	if c.EncodedStream() != nil {
		t.Fatal("output survived reset")
	}
	wantCode(t, c.SetQuality(50, uhdr.LabelBase), uhdr.CodecOK)

	c.Release()
	wantCode(t, c.SetQuality(50, uhdr.LabelBase), uhdr.CodecInvalidOperation)
	wantCode(t, c.Encode(), uhdr.CodecInvalidOperation)
}

func TestCodec_Encode_baseWithoutGainmap(t *testing.T) {
	c := New()
	sdr, err := encodeJPEG(sdrImageOrFail(t, sdrRawImage(16, 16)), 90)
	if err != nil {
		t.Fatal(err)
	}
	wantCode(t, setCompressed(c, sdr, uhdr.LabelBase), uhdr.CodecOK)
	wantCode(t, c.Encode(), uhdr.CodecInvalidOperation)
}

func TestCodec_Encode_dimensionMismatch(t *testing.T) {
	c := New()
	wantCode(t, setRaw(c, sdrRawImage(32, 32), uhdr.LabelSDR), uhdr.CodecOK)
	wantCode(t, setRaw(c, hdrP010Image(64, 32), uhdr.LabelHDR), uhdr.CodecOK)
	wantCode(t, c.Encode(), uhdr.CodecInvalidParam)
}

func sdrImageOrFail(t *testing.T, img *uhdr.OwnedRawImage) image.Image {
	t.Helper()
	m, err := sdrImage(img)
	if err != nil {
		t.Fatal(err)
	}
	return m
}
