// Package touchpad finds multitouch pads on the system and turns their raw
// evdev traffic into a small gesture alphabet of Begin/Update/End events.
package touchpad

// Kind labels a gesture event.
type Kind int

const (
	// Other is any event the consumer should ignore.
	Other Kind = iota
	// Begin marks a gesture starting with Fingers contacts.
	Begin
	// Update carries incremental motion while a gesture is active.
	Update
	// End marks a gesture finishing. Cancelled distinguishes an aborted
	// gesture from fingers lifting cleanly.
	End
)

// String returns the kind name for logs.
func (k Kind) String() string {
	switch k {
	case Begin:
		return "begin"
	case Update:
		return "update"
	case End:
		return "end"
	default:
		return "other"
	}
}

// Event is one entry in the gesture stream fed to the drag translator.
// DX/DY are in device units, averaged over the active contacts.
type Event struct {
	Kind      Kind
	Fingers   int
	DX        float64
	DY        float64
	Cancelled bool
}
