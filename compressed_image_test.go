package uhdr

import (
	"bytes"
	"testing"
)

func TestNewCompressedImage(t *testing.T) {
	data := []byte{0xFF, 0xD8, 0xFF, 0xD9}
	c := NewCompressedImage(data)

	if !c.Owned() {
		t.Fatalf("expected owning image")
	}
	d := c.Descriptor()
	if d.DataSize != 4 || d.Capacity != 4 {
		t.Fatalf("unexpected size %d capacity %d", d.DataSize, d.Capacity)
	}
	if c.ColorGamut() != GamutUnspecified || c.ColorTransfer() != TransferUnspecified {
		t.Fatalf("unexpected color metadata %s %s", c.ColorGamut(), c.ColorTransfer())
	}
	if c.ColorRange() != RangeFull {
		t.Fatalf("unexpected range %s", c.ColorRange())
	}
	if !bytes.Equal(c.Bytes(), data) {
		t.Fatalf("bytes mismatch")
	}
}

func TestNewCompressedImage_empty(t *testing.T) {
	c := NewCompressedImage(nil)
	if c.Len() != 0 || c.Descriptor().Data != nil {
		t.Fatalf("expected empty image")
	}
}

func TestCompressedImageFromDescriptor(t *testing.T) {
	buf := []byte("codec output")
	d := NewCompressedImage(buf).Descriptor()
	d.Gamut = GamutBT2100
	d.Transfer = TransferPQ

	c := CompressedImageFromDescriptor(d)
	if c.Owned() {
		t.Fatalf("expected referencing image")
	}
	if c.ColorGamut() != GamutBT2100 || c.ColorTransfer() != TransferPQ {
		t.Fatalf("metadata not carried over")
	}
	if !bytes.Equal(c.Bytes(), buf) {
		t.Fatalf("bytes mismatch")
	}

	// The view follows later changes of the codec-held descriptor.
	d.DataSize = 5
	if c.Len() != 5 || string(c.Bytes()) != "codec" {
		t.Fatalf("view does not track descriptor: %q", c.Bytes())
	}

	c.SetColorRange(RangeLimited)
	if d.Range == RangeLimited {
		t.Fatalf("setter modified codec-held descriptor")
	}
	if c.Descriptor().Range != RangeLimited {
		t.Fatalf("setter not reflected in descriptor")
	}
}
