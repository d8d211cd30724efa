package uhdr

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// fakeCodec records calls and rejects quality outside [0, 100].
type fakeCodec struct {
	calls    []string
	released int
	quality  map[ImageLabel]int32
	raw      []RawImageDescriptor
	rawBytes [][]byte
	exif     []byte
	failNext Status
	out      *CompressedImageDescriptor
	buf      []byte
}

func newFakeCodec() *fakeCodec {
	return &fakeCodec{quality: map[ImageLabel]int32{}}
}

func (f *fakeCodec) status(call string) Status {
	f.calls = append(f.calls, call)
	if f.failNext.Code != CodecOK {
		s := f.failNext
		f.failNext = OKStatus()
		return s
	}
	return OKStatus()
}

func (f *fakeCodec) SetRawImage(d *RawImageDescriptor, _ ImageLabel) Status {
	planes := ResolvePlanes(d)
	f.raw = append(f.raw, *d)
	f.rawBytes = append(f.rawBytes, append([]byte{}, planes[0]...))
	return f.status("raw")
}

func (f *fakeCodec) SetCompressedImage(d *CompressedImageDescriptor, _ ImageLabel) Status {
	if d == nil {
		f.calls = append(f.calls, "compressed")
		return NewStatus(CodecInvalidParam, "nil image")
	}
	return f.status("compressed")
}

func (f *fakeCodec) SetGainmapImage(*CompressedImageDescriptor, *GainmapMetadataDescriptor) Status {
	return f.status("gainmap")
}

func (f *fakeCodec) SetGainmapScaleFactor(int32) Status { return f.status("scale") }

func (f *fakeCodec) SetGainmapGamma(float32) Status { return f.status("gamma") }

func (f *fakeCodec) SetMinMaxContentBoost(float32, float32) Status { return f.status("boost") }

func (f *fakeCodec) SetTargetDisplayPeakBrightness(float32) Status { return f.status("peak") }

func (f *fakeCodec) SetQuality(q int32, label ImageLabel) Status {
	if q < 0 || q > 100 {
		f.calls = append(f.calls, "quality")
		return NewStatus(CodecInvalidParam, "quality out of range")
	}
	f.quality[label] = q
	return f.status("quality")
}

func (f *fakeCodec) SetExifData(d *CompressedImageDescriptor) Status {
	f.exif = append([]byte{}, CompressedImageFromDescriptor(d).Bytes()...)
	return f.status("exif")
}

func (f *fakeCodec) SetUsingMultiChannelGainmap(bool) Status { return f.status("multichannel") }

func (f *fakeCodec) Encode() Status {
	s := f.status("encode")
	if s.Code == CodecOK {
		f.buf = []byte{0xFF, 0xD8, 0xFF, 0xD9}
		f.out = NewCompressedImage(f.buf).Descriptor()
	}
	return s
}

func (f *fakeCodec) EncodedStream() *CompressedImageDescriptor { return f.out }

func (f *fakeCodec) Reset() {
	f.calls = append(f.calls, "reset")
	f.out = nil
}

func (f *fakeCodec) Release() { f.released++ }

func TestEncoder_Close(t *testing.T) {
	c := newFakeCodec()
	e := NewEncoder(c)

	if err := e.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if c.released != 1 {
		t.Fatalf("handle released %d times", c.released)
	}

	if err := e.SetGainmapGamma(1); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := e.Encode(); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := e.Reset(); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if _, ok := e.EncodedStream(); ok {
		t.Fatalf("unexpected stream after close")
	}
	if len(c.calls) != 0 {
		t.Fatalf("codec called after close: %v", c.calls)
	}
}

func TestEncoder_quality(t *testing.T) {
	c := newFakeCodec()
	e := NewEncoder(c)
	defer e.Close()

	for _, q := range []int{0, 100} {
		if err := e.SetBaseImageQuality(q); err != nil {
			t.Fatalf("base quality %d: %v", q, err)
		}
		if err := e.SetGainmapImageQuality(q); err != nil {
			t.Fatalf("gainmap quality %d: %v", q, err)
		}
	}
	if diff := cmp.Diff(map[ImageLabel]int32{LabelBase: 100, LabelGainMap: 100}, c.quality); diff != "" {
		t.Fatalf("quality mismatch (-want +got):\n%s", diff)
	}

	for _, q := range []int{-1, 101} {
		err := e.SetBaseImageQuality(q)
		if !errors.Is(err, ErrInvalidParam) {
			t.Fatalf("base quality %d: expected invalid parameter, got %v", q, err)
		}

		var ue *Error
		if !errors.As(err, &ue) || ue.Detail != "quality out of range" {
			t.Fatalf("codec detail lost: %v", err)
		}
		if e.State() != StateFailed {
			t.Fatalf("unexpected state %s", e.State())
		}
	}

	// The session stays usable after a rejected argument.
	if err := e.SetBaseImageQuality(50); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if e.State() != StateConfiguring {
		t.Fatalf("unexpected state %s", e.State())
	}
}

func TestEncoder_Encode(t *testing.T) {
	c := newFakeCodec()
	e := NewEncoder(c)
	defer e.Close()

	if _, ok := e.EncodedStream(); ok {
		t.Fatalf("stream available before encode")
	}
	if e.State() != StateUnconfigured {
		t.Fatalf("unexpected state %s", e.State())
	}

	img := NewRawImage(FormatYCbCrP010, 4, 2)
	img.Gamut = GamutBT2100
	img.Transfer = TransferHLG
	img.Planes[PlaneY][0] = 0xAB

	if err := e.SetRawHDRImage(img.Borrow()); err != nil {
		t.Fatalf("set raw: %v", err)
	}
	if len(c.raw) != 1 || c.raw[0].Format != FormatYCbCrP010 || c.raw[0].Stride[PlaneY] != 2 {
		t.Fatalf("unexpected descriptor %+v", c.raw)
	}
	if c.rawBytes[0][0] != 0xAB {
		t.Fatalf("codec did not see plane data")
	}

	c.failNext = NewStatus(CodecUnknownError, "")
	if err := e.Encode(); !errors.Is(err, ErrUnknown) {
		t.Fatalf("expected unknown error, got %v", err)
	}
	if _, ok := e.EncodedStream(); ok {
		t.Fatalf("stream available after failed encode")
	}

	if err := e.Encode(); err != nil {
		t.Fatalf("encode retry: %v", err)
	}
	if e.State() != StateEncoded {
		t.Fatalf("unexpected state %s", e.State())
	}

	out, ok := e.EncodedStream()
	if !ok {
		t.Fatalf("no stream after encode")
	}
	if out.Owned() || !bytes.Equal(out.Bytes(), []byte{0xFF, 0xD8, 0xFF, 0xD9}) {
		t.Fatalf("unexpected stream %x", out.Bytes())
	}

	if err := e.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, ok := e.EncodedStream(); ok {
		t.Fatalf("stream available after reset")
	}
	if e.State() != StateUnconfigured {
		t.Fatalf("unexpected state %s", e.State())
	}
}

func TestEncoder_forwarding(t *testing.T) {
	c := newFakeCodec()
	var logs bytes.Buffer
	e := NewEncoder(c, func(o *EncoderOptions) {
		o.Logger = slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	})

	exif := []byte("Exif\x00\x00II*\x00")
	steps := []func() error{
		func() error { return e.SetCompressedBaseImage(NewCompressedImage([]byte{1})) },
		func() error { return e.SetGainmapImage(NewCompressedImage([]byte{2}), DefaultGainmapMetadata()) },
		func() error { return e.SetGainmapScaleFactor(4) },
		func() error { return e.SetGainmapGamma(1) },
		func() error { return e.SetMinMaxContentBoost(1, 4) },
		func() error { return e.SetTargetDisplayPeakBrightness(1000) },
		func() error { return e.SetExifData(exif) },
		func() error { return e.SetUsingMultiChannelGainmap(true) },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	want := []string{"compressed", "gainmap", "scale", "gamma", "boost", "peak", "exif", "multichannel"}
	if diff := cmp.Diff(want, c.calls); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
	if !bytes.Equal(exif, c.exif) {
		t.Fatalf("exif mismatch")
	}

	if err := e.SetCompressedSDRImage(nil); !errors.Is(err, ErrInvalidParam) {
		t.Fatalf("expected invalid parameter, got %v", err)
	}
	if !bytes.Contains(logs.Bytes(), []byte("codec call failed")) {
		t.Fatalf("failure not logged: %s", logs.String())
	}

	if err := e.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !bytes.Contains(logs.Bytes(), []byte("codec handle released")) {
		t.Fatalf("release not logged: %s", logs.String())
	}
}

func TestSessionState_String(t *testing.T) {
	if StateEncoded.String() != "encoded" || SessionState(9).String() != "state(9)" {
		t.Fatalf("unexpected state names")
	}
}
