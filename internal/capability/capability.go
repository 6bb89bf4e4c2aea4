// Package capability reports which voice features the host can support.
package capability

import (
	"context"
	"errors"

	"github.com/mindfulai/mindful/internal/fault"
)

// Availability is the result of one capability probe.
type Availability struct {
	Recognition  bool
	Recording    bool
	MediaDevices bool
	Synthesis    bool
}

// Supported reports whether voice capture and transcription can run.
func (a Availability) Supported() bool {
	return a.Recognition && a.Recording && a.MediaDevices
}

// Prober inspects the host.
type Prober interface {
	Probe(ctx context.Context) Availability
}

// Probe composes independent checks into a Prober. Nil checks report false.
type Probe struct {
	Recognition  func() bool
	Recording    func() bool
	MediaDevices func(ctx context.Context) error
	Synthesis    func() bool
}

// Probe runs every check.
func (p Probe) Probe(ctx context.Context) Availability {
	return Availability{
		Recognition:  call(p.Recognition),
		Recording:    call(p.Recording),
		MediaDevices: p.MediaDevices != nil && p.MediaDevices(ctx) == nil,
		Synthesis:    call(p.Synthesis),
	}
}

func call(check func() bool) bool {
	return check != nil && check()
}

// Static is a Prober with a fixed answer.
type Static Availability

// Probe returns the fixed availability.
func (s Static) Probe(context.Context) Availability {
	return Availability(s)
}

// Permission is the microphone permission state.
type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
	PermissionPrompt  Permission = "prompt"
	PermissionUnknown Permission = "unknown"
)

// PermissionFromError maps a microphone acquisition outcome to a permission
// state. A nil error means access was granted.
func PermissionFromError(err error) Permission {
	if err == nil {
		return PermissionGranted
	}
	if errors.Is(err, context.Canceled) {
		return PermissionPrompt
	}
	switch fault.Classify(err) {
	case fault.PermissionDenied, fault.ServiceNotAllowed:
		return PermissionDenied
	default:
		return PermissionUnknown
	}
}
