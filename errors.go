package uhdr

import (
	"bytes"
	"errors"
	"strconv"
)

// ErrorCode classifies the status of a codec call.
type ErrorCode int32

const (
	CodecOK ErrorCode = iota
	CodecError
	CodecUnknownError
	CodecInvalidParam
	CodecMemError
	CodecInvalidOperation
	CodecUnsupportedFeature
)

func (c ErrorCode) String() string {
	switch c {
	case CodecOK:
		return "ok"
	case CodecError:
		return "error"
	case CodecUnknownError:
		return "unknown error"
	case CodecInvalidParam:
		return "invalid parameter"
	case CodecMemError:
		return "memory error"
	case CodecInvalidOperation:
		return "invalid operation"
	case CodecUnsupportedFeature:
		return "unsupported feature"
	default:
		return "code(" + strconv.Itoa(int(c)) + ")"
	}
}

// StatusDetailSize is the capacity of the detail text of a Status.
const StatusDetailSize = 256

// Status is the result of a codec call as reported by the codec.
// Detail holds NUL-terminated text and is meaningful only if HasDetail is set.
type Status struct {
	Code      ErrorCode
	HasDetail int32
	Detail    [StatusDetailSize]byte
}

// OKStatus reports success.
func OKStatus() Status {
	return Status{Code: CodecOK}
}

// NewStatus builds a status with optional detail text, truncated to fit.
func NewStatus(code ErrorCode, detail string) Status {
	s := Status{Code: code}
	if detail != "" {
		s.HasDetail = 1
		copy(s.Detail[:StatusDetailSize-1], detail)
	}
	return s
}

// Error is a failed codec call.
type Error struct {
	Code      ErrorCode
	Detail    string
	HasDetail bool
}

func (e *Error) Error() string {
	if e.HasDetail {
		return "uhdr: " + e.Code.String() + ": " + e.Detail
	}
	return "uhdr: " + e.Code.String()
}

// Is matches errors by code, so errors.Is(err, ErrInvalidParam) holds for
// any invalid parameter failure regardless of detail.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

var (
	// ErrCodec is a generic codec failure.
	ErrCodec = &Error{Code: CodecError}
	// ErrUnknown is a failure the codec could not classify.
	ErrUnknown = &Error{Code: CodecUnknownError}
	// ErrInvalidParam is returned when the codec rejects an argument.
	ErrInvalidParam = &Error{Code: CodecInvalidParam}
	// ErrMem is returned when the codec runs out of memory.
	ErrMem = &Error{Code: CodecMemError}
	// ErrInvalidOperation is returned for a call the codec does not allow in its current state.
	ErrInvalidOperation = &Error{Code: CodecInvalidOperation}
	// ErrUnsupportedFeature is returned for a configuration the codec cannot handle.
	ErrUnsupportedFeature = &Error{Code: CodecUnsupportedFeature}

	// ErrClosed is returned by an Encoder after Close.
	ErrClosed = errors.New("uhdr: encoder is closed")
)

// CheckStatus maps a codec status to nil on success or *Error on failure.
// The detail text is decoded only when the status says it is present.
func CheckStatus(s Status) error {
	if s.Code == CodecOK {
		return nil
	}
	e := &Error{Code: s.Code}
	if s.HasDetail != 0 {
		d := s.Detail[:]
		if i := bytes.IndexByte(d, 0); i >= 0 {
			d = d[:i]
		}
		e.Detail = string(d)
		e.HasDetail = true
	}
	return e
}
