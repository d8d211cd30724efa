package uhdr

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"
)

// SessionState is the configuration state of an Encoder.
type SessionState int

const (
	// StateUnconfigured is a fresh or reset session.
	StateUnconfigured SessionState = iota
	// StateConfiguring is a session with at least one accepted setter call.
	StateConfiguring
	// StateEncoded is a session whose last Encode succeeded.
	StateEncoded
	// StateFailed is a session whose last call failed. It can still be
	// reconfigured and encoded.
	StateFailed
)

func (s SessionState) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateConfiguring:
		return "configuring"
	case StateEncoded:
		return "encoded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// EncoderOptions configures an Encoder.
type EncoderOptions struct {
	// Logger receives debug records of failed codec calls and handle release.
	Logger *slog.Logger
}

// Encoder is an encoding session over a single Codec handle.
//
// Each setter forwards its arguments to the codec and returns the codec's
// verdict, arguments are not range-checked locally. A failed call does not
// invalidate the session, the caller may correct the argument and retry.
//
// The handle is released exactly once, by Close or, if Close is never called,
// when the Encoder becomes unreachable. An Encoder is not safe for concurrent use.
type Encoder struct {
	h      *handle
	state  SessionState
	closed bool
	log    *slog.Logger
}

type handle struct {
	codec Codec
	once  sync.Once
	log   *slog.Logger
}

func (h *handle) release() {
	h.once.Do(func() {
		h.codec.Release()
		if h.log != nil {
			h.log.Debug("codec handle released")
		}
	})
}

// NewEncoder starts a session that owns c. It panics if c is nil.
func NewEncoder(c Codec, opts ...func(o *EncoderOptions)) *Encoder {
	if c == nil {
		panic("uhdr: nil codec")
	}
	var opt EncoderOptions
	for _, applyOpt := range opts {
		applyOpt(&opt)
	}

	e := &Encoder{
		h:   &handle{codec: c, log: opt.Logger},
		log: opt.Logger,
	}
	runtime.SetFinalizer(e, func(e *Encoder) { e.h.release() })
	return e
}

// State returns the current session state.
func (e *Encoder) State() SessionState {
	return e.state
}

// Close releases the codec handle. It is safe to call more than once.
func (e *Encoder) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	e.h.release()
	runtime.SetFinalizer(e, nil)
	return nil
}

func (e *Encoder) call(op string, fn func(c Codec) Status) error {
	if e.closed {
		return ErrClosed
	}
	if err := CheckStatus(fn(e.h.codec)); err != nil {
		e.state = StateFailed
		if e.log != nil {
			e.log.Debug("codec call failed", "op", op, "error", err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (e *Encoder) configure(op string, fn func(c Codec) Status) error {
	if err := e.call(op, fn); err != nil {
		return err
	}
	e.state = StateConfiguring
	return nil
}

// SetRawImage supplies an uncompressed image for the given intent.
// The codec copies what it needs before returning.
func (e *Encoder) SetRawImage(img BorrowedRawImage, intent ImageLabel) error {
	d := img.Descriptor()
	err := e.configure("set raw "+intent.String()+" image", func(c Codec) Status {
		return c.SetRawImage(&d, intent)
	})
	runtime.KeepAlive(img)
	return err
}

// SetRawSDRImage supplies the uncompressed SDR rendition.
func (e *Encoder) SetRawSDRImage(img BorrowedRawImage) error {
	return e.SetRawImage(img, LabelSDR)
}

// SetRawHDRImage supplies the uncompressed HDR rendition.
func (e *Encoder) SetRawHDRImage(img BorrowedRawImage) error {
	return e.SetRawImage(img, LabelHDR)
}

// SetCompressedImage supplies an encoded image for the given intent.
func (e *Encoder) SetCompressedImage(img *CompressedImage, intent ImageLabel) error {
	var d *CompressedImageDescriptor
	if img != nil {
		d = img.Descriptor()
	}
	err := e.configure("set compressed "+intent.String()+" image", func(c Codec) Status {
		return c.SetCompressedImage(d, intent)
	})
	runtime.KeepAlive(img)
	return err
}

// SetCompressedBaseImage supplies an already encoded base image, to be
// combined with a gain map set by SetGainmapImage.
func (e *Encoder) SetCompressedBaseImage(img *CompressedImage) error {
	return e.SetCompressedImage(img, LabelBase)
}

// SetCompressedSDRImage supplies the encoded SDR rendition.
func (e *Encoder) SetCompressedSDRImage(img *CompressedImage) error {
	return e.SetCompressedImage(img, LabelSDR)
}

// SetCompressedHDRImage supplies the encoded HDR rendition.
func (e *Encoder) SetCompressedHDRImage(img *CompressedImage) error {
	return e.SetCompressedImage(img, LabelHDR)
}

// SetGainmapImage supplies an encoded gain map and its metadata.
func (e *Encoder) SetGainmapImage(img *CompressedImage, meta GainmapMetadata) error {
	var d *CompressedImageDescriptor
	if img != nil {
		d = img.Descriptor()
	}
	md := meta.Descriptor()
	err := e.configure("set gainmap image", func(c Codec) Status {
		return c.SetGainmapImage(d, &md)
	})
	runtime.KeepAlive(img)
	return err
}

// SetGainmapScaleFactor sets the downscale factor of the generated gain map.
func (e *Encoder) SetGainmapScaleFactor(factor int) error {
	return e.configure("set gainmap scale factor", func(c Codec) Status {
		return c.SetGainmapScaleFactor(int32(factor))
	})
}

// SetGainmapGamma sets the encoding gamma of the generated gain map.
func (e *Encoder) SetGainmapGamma(gamma float32) error {
	return e.configure("set gainmap gamma", func(c Codec) Status {
		return c.SetGainmapGamma(gamma)
	})
}

// SetMinMaxContentBoost overrides the computed content boost range, linear scale.
func (e *Encoder) SetMinMaxContentBoost(minBoost, maxBoost float32) error {
	return e.configure("set min max content boost", func(c Codec) Status {
		return c.SetMinMaxContentBoost(minBoost, maxBoost)
	})
}

// SetTargetDisplayPeakBrightness sets the peak brightness of the target display in nits.
func (e *Encoder) SetTargetDisplayPeakBrightness(nits float32) error {
	return e.configure("set target display peak brightness", func(c Codec) Status {
		return c.SetTargetDisplayPeakBrightness(nits)
	})
}

// SetBaseImageQuality sets the compression quality of the base image.
// The codec accepts any integer in [0, 100], default 95.
func (e *Encoder) SetBaseImageQuality(quality int) error {
	return e.configure("set base image quality", func(c Codec) Status {
		return c.SetQuality(int32(quality), LabelBase)
	})
}

// SetGainmapImageQuality sets the compression quality of the gain map image.
// The codec accepts any integer in [0, 100], default 95.
func (e *Encoder) SetGainmapImageQuality(quality int) error {
	return e.configure("set gainmap image quality", func(c Codec) Status {
		return c.SetQuality(int32(quality), LabelGainMap)
	})
}

// SetExifData supplies an EXIF block to embed in the output.
func (e *Encoder) SetExifData(exif []byte) error {
	d := NewCompressedImage(exif).Descriptor()
	err := e.configure("set exif data", func(c Codec) Status {
		return c.SetExifData(d)
	})
	runtime.KeepAlive(exif)
	return err
}

// SetUsingMultiChannelGainmap selects a per-channel gain map instead of a luminance one.
func (e *Encoder) SetUsingMultiChannelGainmap(enable bool) error {
	return e.configure("set using multi channel gainmap", func(c Codec) Status {
		return c.SetUsingMultiChannelGainmap(enable)
	})
}

// Encode runs the configured pipeline. On success the output is available
// from EncodedStream.
func (e *Encoder) Encode() error {
	if err := e.call("encode", func(c Codec) Status { return c.Encode() }); err != nil {
		return err
	}
	e.state = StateEncoded
	return nil
}

// EncodedStream returns a view into the codec-held output of the last
// successful Encode. It reports false if the codec holds no output.
// The view is valid until the next Reset or Close.
func (e *Encoder) EncodedStream() (*CompressedImage, bool) {
	if e.closed {
		return nil, false
	}
	d := e.h.codec.EncodedStream()
	if d == nil {
		return nil, false
	}
	return CompressedImageFromDescriptor(d), true
}

// Reset drops all configuration and output, returning the session to
// StateUnconfigured.
func (e *Encoder) Reset() error {
	if e.closed {
		return ErrClosed
	}
	e.h.codec.Reset()
	e.state = StateUnconfigured
	return nil
}
