package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/nfnt/resize"
	"github.com/vearutop/uhdr"
	"github.com/vearutop/uhdr/internal/hdrfile"
	"github.com/vearutop/uhdr/jpegr"
	_ "golang.org/x/image/tiff"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	var err error
	switch os.Args[1] {
	case "encode":
		err = runEncode(os.Args[2:])
	case "join":
		err = runJoin(os.Args[2:])
	case "split":
		err = runSplit(os.Args[2:])
	case "resize":
		err = runResize(os.Args[2:])
	case "rebase":
		err = runRebase(os.Args[2:])
	case "detect":
		err = runDetect(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fail(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: uhdrenc <command> [args]")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  encode -hdr input.exr|input.tiff -out output.jpg [-sdr sdr.jpg] [-q 95] [-gq 95] [-scale 1] [-gamma 1]")
	fmt.Fprintln(os.Stderr, "         [-multichannel] [-peak nits] [-boost min,max] [-exif exif.bin] [-interp bilinear] [-v]")
	fmt.Fprintln(os.Stderr, "  encode -hdr input.yuv -format p010 -width 1920 -height 1080 -transfer hlg -gamut bt2100 [-range limited] -out output.jpg")
	fmt.Fprintln(os.Stderr, "  join   -primary primary.jpg -gainmap gainmap.jpg -meta meta.json -out output.jpg")
	fmt.Fprintln(os.Stderr, "  split  -in input.jpg -primary-out primary.jpg -gainmap-out gainmap.jpg [-meta-out meta.json]")
	fmt.Fprintln(os.Stderr, "  resize -in input.jpg -out output.jpg -w 800 -h 600 [-q 85] [-gq 75] [-interp bilinear]")
	fmt.Fprintln(os.Stderr, "  rebase -in input.jpg -sdr new_sdr.(jpg|png|tiff) -out output.jpg [-q 85] [-gq 75]")
	fmt.Fprintln(os.Stderr, "  detect -in input.jpg")
}

var interpolations = map[string]resize.InterpolationFunction{
	"nearest":  resize.NearestNeighbor,
	"bilinear": resize.Bilinear,
	"bicubic":  resize.Bicubic,
	"mitchell": resize.MitchellNetravali,
	"lanczos2": resize.Lanczos2,
	"lanczos3": resize.Lanczos3,
}

func newEncoder(interp string, verbose bool) (*uhdr.Encoder, error) {
	fn, ok := interpolations[interp]
	if !ok {
		return nil, fmt.Errorf("unknown interpolation %q", interp)
	}
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	return uhdr.NewEncoder(jpegr.New(func(o *jpegr.Options) {
		o.Interpolation = fn
	}), func(o *uhdr.EncoderOptions) {
		o.Logger = logger
	}), nil
}

type rawFlags struct {
	format   string
	width    uint
	height   uint
	transfer string
	gamut    string
	rng      string
}

func (f *rawFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.format, "format", "", "raw hdr pixel format (p010, yuv444p10, rgba1010102, rgbahalffloat), empty for exr/tiff")
	fs.UintVar(&f.width, "width", 0, "raw image width")
	fs.UintVar(&f.height, "height", 0, "raw image height")
	fs.StringVar(&f.transfer, "transfer", "hlg", "raw hdr transfer (hlg, pq, linear)")
	fs.StringVar(&f.gamut, "gamut", "bt2100", "raw hdr gamut (bt709, display-p3, bt2100)")
	fs.StringVar(&f.rng, "range", "limited", "raw hdr range (limited, full)")
}

func (f *rawFlags) load(path string) (*uhdr.OwnedRawImage, error) {
	if f.format == "" {
		return hdrfile.ReadFile(path)
	}

	format, ok := uhdr.ParsePixelFormat(f.format)
	if !ok || format == uhdr.FormatUnspecified {
		return nil, fmt.Errorf("unknown pixel format %q", f.format)
	}
	if f.width == 0 || f.height == 0 {
		return nil, errors.New("raw input needs -width and -height")
	}
	img := uhdr.NewRawImage(format, uint32(f.width), uint32(f.height))
	if img.Transfer, ok = parseTag(f.transfer, uhdr.TransferHLG, uhdr.TransferPQ, uhdr.TransferLinear); !ok {
		return nil, fmt.Errorf("unknown transfer %q", f.transfer)
	}
	if img.Gamut, ok = parseTag(f.gamut, uhdr.GamutBT709, uhdr.GamutDisplayP3, uhdr.GamutBT2100); !ok {
		return nil, fmt.Errorf("unknown gamut %q", f.gamut)
	}
	if img.Range, ok = parseTag(f.rng, uhdr.RangeLimited, uhdr.RangeFull); !ok {
		return nil, fmt.Errorf("unknown range %q", f.rng)
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	total := 0
	for _, n := range img.PlaneExtents() {
		total += n
	}
	if len(data) != total {
		return nil, fmt.Errorf("%s: %d bytes, want %d for %s %dx%d", path, len(data), total, format, f.width, f.height)
	}
	for i, n := range img.PlaneExtents() {
		copy(img.Planes[i], data[:n])
		data = data[n:]
	}
	return img, nil
}

func parseTag[T fmt.Stringer](s string, values ...T) (T, bool) {
	for _, v := range values {
		if v.String() == s {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func parseBoost(s string) (float32, float32, error) {
	lo, hi, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("boost %q, want min,max", s)
	}
	var minBoost, maxBoost float32
	if _, err := fmt.Sscan(lo, &minBoost); err != nil {
		return 0, 0, fmt.Errorf("min boost: %w", err)
	}
	if _, err := fmt.Sscan(hi, &maxBoost); err != nil {
		return 0, 0, fmt.Errorf("max boost: %w", err)
	}
	return minBoost, maxBoost, nil
}

func runEncode(args []string) error {
	fs := flag.NewFlagSet("encode", flag.ContinueOnError)
	hdrPath := fs.String("hdr", "", "HDR input: OpenEXR, TIFF or raw planes")
	sdrPath := fs.String("sdr", "", "SDR JPEG rendition, tone mapped from HDR when empty")
	outPath := fs.String("out", "", "output UltraHDR JPEG")
	q := fs.Int("q", 95, "base quality")
	gq := fs.Int("gq", 95, "gainmap quality")
	scale := fs.Int("scale", 1, "gainmap downscale factor")
	gamma := fs.Float64("gamma", 1, "gainmap gamma")
	multiChannel := fs.Bool("multichannel", false, "per channel gainmap")
	peak := fs.Float64("peak", 0, "target display peak brightness in nits")
	boost := fs.String("boost", "", "content boost range min,max overriding the computed one")
	exifPath := fs.String("exif", "", "EXIF block to embed")
	interp := fs.String("interp", "bilinear", "gainmap downscale interpolation")
	verbose := fs.Bool("v", false, "log codec calls")
	var raw rawFlags
	raw.register(fs)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *hdrPath == "" || *outPath == "" {
		return errors.New("missing required arguments")
	}

	hdr, err := raw.load(*hdrPath)
	if err != nil {
		return err
	}

	enc, err := newEncoder(*interp, *verbose)
	if err != nil {
		return err
	}
	defer enc.Close()

	steps := []func() error{
		func() error { return enc.SetRawHDRImage(hdr.Borrow()) },
		func() error { return enc.SetBaseImageQuality(*q) },
		func() error { return enc.SetGainmapImageQuality(*gq) },
		func() error { return enc.SetGainmapScaleFactor(*scale) },
		func() error { return enc.SetGainmapGamma(float32(*gamma)) },
		func() error { return enc.SetUsingMultiChannelGainmap(*multiChannel) },
	}
	if *sdrPath != "" {
		sdr, err := os.ReadFile(filepath.Clean(*sdrPath))
		if err != nil {
			return err
		}
		steps = append(steps, func() error { return enc.SetCompressedSDRImage(uhdr.NewCompressedImage(sdr)) })
	}
	if *peak > 0 {
		steps = append(steps, func() error { return enc.SetTargetDisplayPeakBrightness(float32(*peak)) })
	}
	if *boost != "" {
		minBoost, maxBoost, err := parseBoost(*boost)
		if err != nil {
			return err
		}
		steps = append(steps, func() error { return enc.SetMinMaxContentBoost(minBoost, maxBoost) })
	}
	if *exifPath != "" {
		exif, err := os.ReadFile(filepath.Clean(*exifPath))
		if err != nil {
			return err
		}
		steps = append(steps, func() error { return enc.SetExifData(exif) })
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}

	return writeEncoded(enc, *outPath)
}

func writeEncoded(enc *uhdr.Encoder, outPath string) error {
	if err := enc.Encode(); err != nil {
		return err
	}
	out, ok := enc.EncodedStream()
	if !ok {
		return errors.New("encoder produced no output")
	}
	return os.WriteFile(filepath.Clean(outPath), out.Bytes(), 0o644)
}

func runJoin(args []string) error {
	fs := flag.NewFlagSet("join", flag.ContinueOnError)
	primaryPath := fs.String("primary", "", "primary JPEG")
	gainmapPath := fs.String("gainmap", "", "gainmap JPEG")
	metaPath := fs.String("meta", "", "gainmap metadata json")
	outPath := fs.String("out", "", "output UltraHDR JPEG")
	verbose := fs.Bool("v", false, "log codec calls")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *primaryPath == "" || *gainmapPath == "" || *metaPath == "" || *outPath == "" {
		return errors.New("missing required arguments")
	}

	primary, err := os.ReadFile(filepath.Clean(*primaryPath))
	if err != nil {
		return err
	}
	gainmap, err := os.ReadFile(filepath.Clean(*gainmapPath))
	if err != nil {
		return err
	}
	metaData, err := os.ReadFile(filepath.Clean(*metaPath))
	if err != nil {
		return err
	}
	meta := uhdr.DefaultGainmapMetadata()
	if err := json.Unmarshal(metaData, &meta); err != nil {
		return fmt.Errorf("parse %s: %w", *metaPath, err)
	}

	enc, err := newEncoder("bilinear", *verbose)
	if err != nil {
		return err
	}
	defer enc.Close()

	if err := enc.SetCompressedBaseImage(uhdr.NewCompressedImage(primary)); err != nil {
		return err
	}
	if err := enc.SetGainmapImage(uhdr.NewCompressedImage(gainmap), meta); err != nil {
		return err
	}
	return writeEncoded(enc, *outPath)
}

func runSplit(args []string) error {
	fs := flag.NewFlagSet("split", flag.ContinueOnError)
	inPath := fs.String("in", "", "input UltraHDR JPEG")
	primaryOut := fs.String("primary-out", "", "primary output JPEG")
	gainmapOut := fs.String("gainmap-out", "", "gainmap output JPEG")
	metaOut := fs.String("meta-out", "", "metadata json output")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inPath == "" || *primaryOut == "" || *gainmapOut == "" {
		return errors.New("missing required arguments")
	}
	data, err := os.ReadFile(filepath.Clean(*inPath))
	if err != nil {
		return err
	}
	split, err := jpegr.Split(data)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Clean(*primaryOut), split.PrimaryJPEG, 0o644); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Clean(*gainmapOut), split.GainmapJPEG, 0o644); err != nil {
		return err
	}
	if *metaOut != "" {
		payload, err := json.MarshalIndent(split.Metadata, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Clean(*metaOut), payload, 0o644); err != nil {
			return err
		}
	}
	return nil
}

func runResize(args []string) error {
	fs := flag.NewFlagSet("resize", flag.ContinueOnError)
	inPath := fs.String("in", "", "input UltraHDR JPEG")
	outPath := fs.String("out", "", "output UltraHDR JPEG")
	w := fs.Uint("w", 0, "target width")
	h := fs.Uint("h", 0, "target height")
	q := fs.Int("q", 85, "primary quality")
	gq := fs.Int("gq", 75, "gainmap quality")
	interp := fs.String("interp", "bilinear", "interpolation")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inPath == "" || *outPath == "" || *w == 0 || *h == 0 {
		return errors.New("missing required arguments")
	}
	fn, ok := interpolations[*interp]
	if !ok {
		return fmt.Errorf("unknown interpolation %q", *interp)
	}
	data, err := os.ReadFile(filepath.Clean(*inPath))
	if err != nil {
		return err
	}
	res, err := jpegr.Resize(data, *w, *h, func(o *jpegr.TransformOptions) {
		o.PrimaryQuality = *q
		o.GainmapQuality = *gq
		o.Interpolation = fn
	})
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Clean(*outPath), res.Container, 0o644)
}

func runRebase(args []string) error {
	fs := flag.NewFlagSet("rebase", flag.ContinueOnError)
	inPath := fs.String("in", "", "input UltraHDR JPEG")
	sdrPath := fs.String("sdr", "", "new SDR image: JPEG, PNG or TIFF")
	outPath := fs.String("out", "", "output UltraHDR JPEG")
	q := fs.Int("q", 85, "primary quality")
	gq := fs.Int("gq", 75, "gainmap quality")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inPath == "" || *sdrPath == "" || *outPath == "" {
		return errors.New("missing required arguments")
	}
	data, err := os.ReadFile(filepath.Clean(*inPath))
	if err != nil {
		return err
	}
	f, err := os.Open(filepath.Clean(*sdrPath))
	if err != nil {
		return err
	}
	defer f.Close()
	sdr, _, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("decode %s: %w", *sdrPath, err)
	}
	res, err := jpegr.Rebase(data, sdr, func(o *jpegr.TransformOptions) {
		o.PrimaryQuality = *q
		o.GainmapQuality = *gq
	})
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Clean(*outPath), res.Container, 0o644)
}

func runDetect(args []string) error {
	fs := flag.NewFlagSet("detect", flag.ContinueOnError)
	inPath := fs.String("in", "", "input JPEG")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inPath == "" {
		return errors.New("missing required arguments")
	}
	data, err := os.ReadFile(filepath.Clean(*inPath))
	if err != nil {
		return err
	}
	ok, err := jpegr.IsUltraHDR(bytes.NewReader(data))
	if err != nil {
		return err
	}
	if ok {
		fmt.Fprintln(os.Stdout, "ultrahdr")
		return nil
	}
	fmt.Fprintln(os.Stdout, "not ultrahdr")
	return nil
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
