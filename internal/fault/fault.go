// Package fault maps heterogeneous capture and recognition failures into a
// fixed taxonomy that decides whether a recording session survives them.
package fault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"syscall"

	"github.com/gorilla/websocket"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind is one taxonomy label.
type Kind string

const (
	PermissionDenied    Kind = "permission-denied"
	ResourceUnavailable Kind = "resource-unavailable"
	NetworkError        Kind = "network-error"
	NoSpeechDetected    Kind = "no-speech-detected"
	AudioCaptureError   Kind = "audio-capture-error"
	ServiceNotAllowed   Kind = "service-not-allowed"
	UnknownError        Kind = "unknown-error"
)

// Kinds lists every taxonomy label in a stable order.
var Kinds = []Kind{
	PermissionDenied,
	ResourceUnavailable,
	NetworkError,
	NoSpeechDetected,
	AudioCaptureError,
	ServiceNotAllowed,
	UnknownError,
}

// Recoverable reports whether a session keeps listening after this failure.
func (k Kind) Recoverable() bool {
	return k == NoSpeechDetected
}

// Guidance returns the user-facing hint for a failure kind.
func (k Kind) Guidance() string {
	switch k {
	case PermissionDenied:
		return "Microphone access denied - please allow microphone access"
	case ResourceUnavailable:
		return "Microphone is busy or missing - please check your device"
	case NetworkError:
		return "Network error - please check your internet connection"
	case NoSpeechDetected:
		return "No speech detected - please try speaking again"
	case AudioCaptureError:
		return "Audio capture error - please check your microphone"
	case ServiceNotAllowed:
		return "Speech service not allowed"
	default:
		return "Speech recognition error"
	}
}

func (k Kind) String() string {
	return string(k)
}

// Error is a classified failure.
type Error struct {
	Kind Kind
	Code string
	Err  error
}

func (e *Error) Error() string {
	label := string(e.Kind)
	if e.Code != "" {
		label = fmt.Sprintf("%s (%s)", e.Kind, e.Code)
	}
	if e.Err == nil {
		return label
	}
	return fmt.Sprintf("%s: %v", label, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a classified error with an explicit kind.
func New(kind Kind, code string, err error) *Error {
	return &Error{Kind: kind, Code: code, Err: err}
}

// FromCode builds a classified error from a platform code string.
func FromCode(code string, err error) *Error {
	return &Error{Kind: ClassifyCode(code), Code: code, Err: err}
}

// Wrap classifies err, returning nil for nil and passing *Error through.
func Wrap(err error) *Error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}
	return &Error{Kind: Classify(err), Err: err}
}

// KindOf returns the taxonomy label for err.
func KindOf(err error) Kind {
	return Classify(err)
}

var codeKinds = map[string]Kind{
	"not-allowed":            PermissionDenied,
	"permission-denied":      PermissionDenied,
	"denied":                 PermissionDenied,
	"busy":                   ResourceUnavailable,
	"not-found":              ResourceUnavailable,
	"device-not-found":       ResourceUnavailable,
	"not-readable":           ResourceUnavailable,
	"resource-unavailable":   ResourceUnavailable,
	"resource-exhausted":     ResourceUnavailable,
	"network":                NetworkError,
	"unavailable":            NetworkError,
	"timeout":                NetworkError,
	"deadline-exceeded":      NetworkError,
	"no-speech":              NoSpeechDetected,
	"audio-capture":          AudioCaptureError,
	"service-not-allowed":    ServiceNotAllowed,
	"unauthenticated":        ServiceNotAllowed,
	"language-not-supported": ServiceNotAllowed,
}

// ClassifyCode maps a platform error code such as "not-allowed" or
// "no-speech" to a Kind. Unknown codes map to UnknownError.
func ClassifyCode(code string) Kind {
	normalized := strings.ToLower(strings.TrimSpace(code))
	normalized = strings.ReplaceAll(normalized, "_", "-")
	if kind, ok := codeKinds[normalized]; ok {
		return kind
	}
	return UnknownError
}

// Classify maps a Go error to a Kind. It never fails; nil and unrecognized
// errors map to UnknownError.
func Classify(err error) Kind {
	if err == nil {
		return UnknownError
	}

	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}

	if st, ok := status.FromError(err); ok && st.Code() != codes.OK {
		if kind, known := grpcKind(st.Code()); known {
			return kind
		}
	}

	switch {
	case errors.Is(err, syscall.EACCES), errors.Is(err, syscall.EPERM), errors.Is(err, os.ErrPermission):
		return PermissionDenied
	case errors.Is(err, syscall.EBUSY), errors.Is(err, syscall.ENODEV), errors.Is(err, os.ErrNotExist):
		return ResourceUnavailable
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EHOSTUNREACH), errors.Is(err, syscall.ENETUNREACH),
		errors.Is(err, context.DeadlineExceeded):
		return NetworkError
	case errors.Is(err, websocket.ErrBadHandshake):
		return ServiceNotAllowed
	case errors.Is(err, io.ErrUnexpectedEOF):
		return AudioCaptureError
	}

	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		if closeErr.Code == websocket.ClosePolicyViolation {
			return ServiceNotAllowed
		}
		return NetworkError
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return NetworkError
	}

	return UnknownError
}

func grpcKind(code codes.Code) (Kind, bool) {
	switch code {
	case codes.Unavailable, codes.DeadlineExceeded:
		return NetworkError, true
	case codes.PermissionDenied, codes.Unauthenticated:
		return ServiceNotAllowed, true
	case codes.ResourceExhausted:
		return ResourceUnavailable, true
	case codes.InvalidArgument, codes.FailedPrecondition:
		return AudioCaptureError, true
	default:
		return UnknownError, false
	}
}
