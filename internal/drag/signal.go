// Package drag turns three-finger gesture events into a held left-button
// drag on a virtual pointer, keeping the button down across chained swipes.
package drag

import "errors"

// ControlSignal instructs the delay controller at gesture boundaries.
type ControlSignal int

const (
	// RestartTimer arms the trailing release timer, or re-arms it for the
	// full delay when it is already running.
	RestartTimer ControlSignal = iota
	// CancelTimer stops any running timer and releases the button now.
	CancelTimer
	// CancelMouseUp abandons a pending release without emitting it.
	CancelMouseUp
	// TerminateThread shuts the controller down cleanly.
	TerminateThread
)

// SignalBuffer is the control channel capacity. The translator issues at
// most one signal per gesture boundary and the controller drains in O(1),
// so a blocked send means the controller is stuck and stalling the
// translator is the desired back-pressure.
const SignalBuffer = 3

// String returns the signal name for logs.
func (s ControlSignal) String() string {
	switch s {
	case RestartTimer:
		return "restart-timer"
	case CancelTimer:
		return "cancel-timer"
	case CancelMouseUp:
		return "cancel-mouse-up"
	case TerminateThread:
		return "terminate"
	default:
		return "unknown"
	}
}

// Sink is the synthetic pointing device the drag logic writes to. Press and
// Release toggle the left button; MoveRel emits a relative motion. Every
// operation includes its own report sync.
type Sink interface {
	Press() error
	Release() error
	MoveRel(dx, dy int32) error
}

// ErrControllerExited reports that the delay controller stopped while the
// main loop still expected it to be running.
var ErrControllerExited = errors.New("delay controller exited unexpectedly")
