package jpegr_test

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vearutop/uhdr"
	"github.com/vearutop/uhdr/jpegr"
)

func ExampleNewEncoder() {
	hdr := uhdr.NewRawImage(uhdr.FormatYCbCrP010, 64, 32)
	hdr.Gamut = uhdr.GamutBT2100
	hdr.Transfer = uhdr.TransferHLG
	hdr.Range = uhdr.RangeLimited

	enc := jpegr.NewEncoder()
	defer enc.Close()

	if err := enc.SetRawHDRImage(hdr.Borrow()); err != nil {
		fmt.Println(err)
		return
	}
	if err := enc.SetGainmapScaleFactor(4); err != nil {
		fmt.Println(err)
		return
	}
	if err := enc.Encode(); err != nil {
		fmt.Println(err)
		return
	}

	out, ok := enc.EncodedStream()
	if !ok {
		return
	}
	isUHDR, err := jpegr.IsUltraHDR(bytes.NewReader(out.Bytes()))
	fmt.Println(isUHDR, err, enc.State())

	// Output:
	// true <nil> encoded
}

func ExampleNewEncoder_invalidQuality() {
	enc := jpegr.NewEncoder()
	defer enc.Close()

	fmt.Println(enc.SetBaseImageQuality(101))

	// Output:
	// set base image quality: uhdr: invalid parameter: quality 101, want [0, 100]
}

func ExampleSplit() {
	data, err := os.ReadFile(filepath.FromSlash("testdata/uhdr.jpg"))
	if err != nil {
		return
	}
	sr, err := jpegr.Split(data)
	if err != nil {
		return
	}
	_ = sr.Metadata.MaxContentBoost
}
