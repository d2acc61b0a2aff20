package drag

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/niubaoshu/linux-3-finger-drag/internal/touchpad"
)

// dragFingers is the contact count that drives the drag.
const dragFingers = 3

// Tuning holds the translator's immutable scaling and timing parameters.
type Tuning struct {
	// Acceleration scales every motion delta. Must be positive.
	Acceleration float64
	// DragEndDelay is the trailing window after a gesture ends during which
	// a new gesture re-joins the drag. Zero releases immediately.
	DragEndDelay time.Duration
	// ResponseTime is the minimum interval between motion emissions within
	// one continuous gesture.
	ResponseTime time.Duration
}

// Translator consumes gesture events, drives the sink synchronously for
// presses and motion, and signals the delay controller at gesture
// boundaries. It is not safe for concurrent use; the main loop feeds it one
// event at a time.
type Translator struct {
	sink    Sink
	signals chan<- ControlSignal
	tuning  Tuning
	log     zerolog.Logger

	mouseDown bool
	lastEmit  time.Time
	accumX    float64
	accumY    float64
	now       func() time.Time
}

// NewTranslator returns a translator writing to sink and signalling the
// delay controller through signals.
func NewTranslator(sink Sink, signals chan<- ControlSignal, tuning Tuning, log zerolog.Logger) *Translator {
	return &Translator{
		sink:    sink,
		signals: signals,
		tuning:  tuning,
		log:     log,
		now:     time.Now,
	}
}

// SetNowFunc overrides the clock used for rate limiting.
func (t *Translator) SetNowFunc(fn func() time.Time) {
	if fn != nil {
		t.now = fn
	}
}

// Translate processes one gesture event. A sink write failure is returned so
// the caller can log it; translator state is updated regardless, because the
// kernel's view of the button is authoritative and the next gesture restores
// consistency.
func (t *Translator) Translate(ev touchpad.Event) error {
	if ev.Fingers != dragFingers {
		return nil
	}
	switch ev.Kind {
	case touchpad.Begin:
		return t.begin()
	case touchpad.Update:
		return t.update(ev.DX, ev.DY)
	case touchpad.End:
		return t.end(ev.Cancelled)
	default:
		return nil
	}
}

// Terminate tells the delay controller to shut down. Call once, after the
// last Translate.
func (t *Translator) Terminate() {
	t.signals <- TerminateThread
}

// begin starts a new drag, or chains onto the previous one when its trailing
// release is still pending.
func (t *Translator) begin() error {
	t.accumX, t.accumY = 0, 0
	t.lastEmit = t.now()

	if t.mouseDown {
		// The controller may still hold a release for the previous gesture;
		// it must neither emit it nor re-arm, since the button stays down.
		t.signals <- CancelMouseUp
		t.log.Debug().Msg("gesture chained onto held drag")
		return nil
	}

	t.mouseDown = true
	if err := t.sink.Press(); err != nil {
		return fmt.Errorf("press: %w", err)
	}
	t.log.Debug().Msg("drag started")
	return nil
}

// update accumulates scaled motion and emits it at the configured cadence.
// Sub-unit residue stays in the accumulators so no motion is lost between
// emissions.
func (t *Translator) update(dx, dy float64) error {
	if !t.mouseDown {
		return nil
	}
	t.accumX += dx * t.tuning.Acceleration
	t.accumY += dy * t.tuning.Acceleration

	now := t.now()
	if now.Sub(t.lastEmit) < t.tuning.ResponseTime {
		return nil
	}
	tx := math.Trunc(t.accumX)
	ty := math.Trunc(t.accumY)
	t.accumX -= tx
	t.accumY -= ty
	t.lastEmit = now

	if err := t.sink.MoveRel(clampInt32(tx), clampInt32(ty)); err != nil {
		return fmt.Errorf("move: %w", err)
	}
	return nil
}

// end finishes the gesture: immediately when cancelled or when no trailing
// window is configured, otherwise by delegating the release to the delay
// controller.
func (t *Translator) end(cancelled bool) error {
	if !t.mouseDown {
		return nil
	}
	t.accumX, t.accumY = 0, 0

	if cancelled {
		t.mouseDown = false
		if t.tuning.DragEndDelay == 0 {
			if err := t.sink.Release(); err != nil {
				return fmt.Errorf("release: %w", err)
			}
			return nil
		}
		t.signals <- CancelTimer
		t.log.Debug().Msg("gesture cancelled, releasing now")
		return nil
	}

	if t.tuning.DragEndDelay == 0 {
		t.mouseDown = false
		if err := t.sink.Release(); err != nil {
			return fmt.Errorf("release: %w", err)
		}
		t.log.Debug().Msg("drag ended")
		return nil
	}

	// Delegate the release and keep treating the drag as held: a Begin that
	// arrives inside the window chains via the suppression path above.
	t.signals <- RestartTimer
	t.log.Debug().Dur("delay", t.tuning.DragEndDelay).Msg("trailing release armed")
	return nil
}

// clampInt32 saturates a truncated delta to the range the kernel accepts,
// so an extreme acceleration cannot overflow the wire value.
func clampInt32(v float64) int32 {
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	if v < math.MinInt32 {
		return math.MinInt32
	}
	return int32(v)
}
