package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vearutop/uhdr"
)

func TestParseBoost(t *testing.T) {
	lo, hi, err := parseBoost("1,4.5")
	if err != nil {
		t.Fatal(err)
	}
	if lo != 1 || hi != 4.5 {
		t.Fatalf("unexpected boost %v,%v", lo, hi)
	}
	for _, s := range []string{"4", "a,1", "1,b"} {
		if _, _, err := parseBoost(s); err == nil {
			t.Fatalf("expected error for %q", s)
		}
	}
}

func TestParseTag(t *testing.T) {
	g, ok := parseTag("display-p3", uhdr.GamutBT709, uhdr.GamutDisplayP3)
	if !ok || g != uhdr.GamutDisplayP3 {
		t.Fatalf("unexpected gamut %s", g)
	}
	if _, ok := parseTag("srgb", uhdr.TransferHLG, uhdr.TransferPQ); ok {
		t.Fatal("srgb is not an hdr transfer")
	}
}

func TestRawFlags_load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.yuv")
	f := rawFlags{format: "p010", width: 16, height: 8, transfer: "pq", gamut: "bt2100", rng: "full"}

	// 16x8 P010: luma 16*8*2 bytes, interleaved chroma 16*4*2 bytes.
	data := make([]byte, 16*8*2+16*4*2)
	data[0] = 0xAB
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	img, err := f.load(path)
	if err != nil {
		t.Fatal(err)
	}
	if img.Format != uhdr.FormatYCbCrP010 || img.Transfer != uhdr.TransferPQ || img.Range != uhdr.RangeFull {
		t.Fatalf("unexpected layout %+v", img.RawImageLayout)
	}
	if img.Planes[uhdr.PlaneY][0] != 0xAB {
		t.Fatal("planes not loaded")
	}

	if err := os.WriteFile(path, data[:10], 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := f.load(path); err == nil {
		t.Fatal("expected size mismatch error")
	}

	f.format = "bogus"
	if _, err := f.load(path); err == nil {
		t.Fatal("expected unknown format error")
	}
}
