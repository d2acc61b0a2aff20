package drag_test

import (
	"math"
	"testing"
	"time"

	"github.com/niubaoshu/linux-3-finger-drag/internal/drag"
	"github.com/niubaoshu/linux-3-finger-drag/internal/testutil"
	"github.com/niubaoshu/linux-3-finger-drag/internal/touchpad"
	"github.com/rs/zerolog"
)

// fakeClock is a manually advanced clock for rate-limit tests.
type fakeClock struct {
	now time.Time
}

// Now returns the fake time.
func (c *fakeClock) Now() time.Time {
	return c.now
}

// Advance moves the fake time forward.
func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

// newTranslator builds a translator on a fake sink with a fake clock and an
// inspectable signal channel.
func newTranslator(t *testing.T, tuning drag.Tuning) (*drag.Translator, *testutil.FakeSink, chan drag.ControlSignal, *fakeClock) {
	t.Helper()
	sink := &testutil.FakeSink{}
	signals := make(chan drag.ControlSignal, drag.SignalBuffer)
	tr := drag.NewTranslator(sink, signals, tuning, zerolog.Nop())
	clock := &fakeClock{now: time.Unix(1000, 0)}
	tr.SetNowFunc(clock.Now)
	return tr, sink, signals, clock
}

// translate feeds one event and fails the test on error.
func translate(t *testing.T, tr *drag.Translator, ev touchpad.Event) {
	t.Helper()
	if err := tr.Translate(ev); err != nil {
		t.Fatalf("Translate(%#v) returned error: %v", ev, err)
	}
}

// drainSignals empties the channel without blocking.
func drainSignals(ch chan drag.ControlSignal) []drag.ControlSignal {
	var out []drag.ControlSignal
	for {
		select {
		case s := <-ch:
			out = append(out, s)
		default:
			return out
		}
	}
}

// TestSingleDragNoDelay verifies a plain drag with no trailing window.
func TestSingleDragNoDelay(t *testing.T) {
	tr, sink, signals, clock := newTranslator(t, drag.Tuning{Acceleration: 1})

	translate(t, tr, touchpad.Event{Kind: touchpad.Begin, Fingers: 3})
	clock.Advance(time.Millisecond)
	translate(t, tr, touchpad.Event{Kind: touchpad.Update, Fingers: 3, DX: 10, DY: 0})
	clock.Advance(time.Millisecond)
	translate(t, tr, touchpad.Event{Kind: touchpad.Update, Fingers: 3, DX: 5, DY: -3})
	translate(t, tr, touchpad.Event{Kind: touchpad.End, Fingers: 3})

	want := []testutil.Call{
		{Name: "press"},
		{Name: "move", DX: 10, DY: 0},
		{Name: "move", DX: 5, DY: -3},
		{Name: "release"},
	}
	got := sink.Calls()
	if len(got) != len(want) {
		t.Fatalf("sink calls = %#v, want %#v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sink call %d = %#v, want %#v", i, got[i], want[i])
		}
	}
	if sigs := drainSignals(signals); len(sigs) != 0 {
		t.Fatalf("zero-delay drag sent signals %v", sigs)
	}
}

// TestAccelerationScalesMotion verifies the linear motion scalar.
func TestAccelerationScalesMotion(t *testing.T) {
	tr, sink, _, clock := newTranslator(t, drag.Tuning{Acceleration: 2})

	translate(t, tr, touchpad.Event{Kind: touchpad.Begin, Fingers: 3})
	clock.Advance(time.Millisecond)
	translate(t, tr, touchpad.Event{Kind: touchpad.Update, Fingers: 3, DX: 4, DY: -3})

	calls := sink.Calls()
	if len(calls) != 2 || calls[1] != (testutil.Call{Name: "move", DX: 8, DY: -6}) {
		t.Fatalf("sink calls = %#v, want press then move(8,-6)", calls)
	}
}

// TestSubUnitMotionAccumulates verifies fractional motion is never lost.
func TestSubUnitMotionAccumulates(t *testing.T) {
	tr, sink, _, clock := newTranslator(t, drag.Tuning{Acceleration: 0.25})

	translate(t, tr, touchpad.Event{Kind: touchpad.Begin, Fingers: 3})
	for i := 0; i < 8; i++ {
		clock.Advance(time.Millisecond)
		translate(t, tr, touchpad.Event{Kind: touchpad.Update, Fingers: 3, DX: 1, DY: 0})
	}

	var sum int32
	for _, c := range sink.Calls() {
		if c.Name == "move" {
			sum += c.DX
		}
	}
	// 8 updates of a quarter unit must surface as exactly 2 whole units.
	if sum != 2 {
		t.Fatalf("total emitted DX = %d, want 2", sum)
	}
}

// TestTruncationTowardZero verifies deltas truncate toward zero and carry residue.
func TestTruncationTowardZero(t *testing.T) {
	tr, sink, _, clock := newTranslator(t, drag.Tuning{Acceleration: 1})

	translate(t, tr, touchpad.Event{Kind: touchpad.Begin, Fingers: 3})
	clock.Advance(time.Millisecond)
	translate(t, tr, touchpad.Event{Kind: touchpad.Update, Fingers: 3, DX: -1.7, DY: 1.7})

	calls := sink.Calls()
	if len(calls) != 2 || calls[1] != (testutil.Call{Name: "move", DX: -1, DY: 1}) {
		t.Fatalf("sink calls = %#v, want press then move(-1,1)", calls)
	}

	// The residue of -0.7 and +0.7 carries into the next emission.
	clock.Advance(time.Millisecond)
	translate(t, tr, touchpad.Event{Kind: touchpad.Update, Fingers: 3, DX: -0.4, DY: 0.4})
	calls = sink.Calls()
	if len(calls) != 3 || calls[2] != (testutil.Call{Name: "move", DX: -1, DY: 1}) {
		t.Fatalf("sink calls = %#v, want a further move(-1,1)", calls)
	}
}

// TestExtremeDeltasSaturate verifies emitted motion clamps to the int32 range.
func TestExtremeDeltasSaturate(t *testing.T) {
	tr, sink, _, clock := newTranslator(t, drag.Tuning{Acceleration: 1e12})

	translate(t, tr, touchpad.Event{Kind: touchpad.Begin, Fingers: 3})
	clock.Advance(time.Millisecond)
	translate(t, tr, touchpad.Event{Kind: touchpad.Update, Fingers: 3, DX: 1e7, DY: -1e7})

	calls := sink.Calls()
	want := testutil.Call{Name: "move", DX: math.MaxInt32, DY: math.MinInt32}
	if len(calls) != 2 || calls[1] != want {
		t.Fatalf("sink calls = %#v, want press then %#v", calls, want)
	}

	// The overflow excess is not banked: the next small update moves small.
	clock.Advance(time.Millisecond)
	translate(t, tr, touchpad.Event{Kind: touchpad.Update, Fingers: 3, DX: 2.5e-12, DY: -2.5e-12})
	calls = sink.Calls()
	want = testutil.Call{Name: "move", DX: 2, DY: -2}
	if len(calls) != 3 || calls[2] != want {
		t.Fatalf("sink calls = %#v, want a further %#v", calls, want)
	}
}

// TestNonDragFingerCountsIgnored verifies gestures with other finger counts do nothing.
func TestNonDragFingerCountsIgnored(t *testing.T) {
	tr, sink, signals, clock := newTranslator(t, drag.Tuning{Acceleration: 1})

	for _, fingers := range []int{2, 4, 5} {
		translate(t, tr, touchpad.Event{Kind: touchpad.Begin, Fingers: fingers})
		clock.Advance(time.Millisecond)
		translate(t, tr, touchpad.Event{Kind: touchpad.Update, Fingers: fingers, DX: 10, DY: 10})
		translate(t, tr, touchpad.Event{Kind: touchpad.End, Fingers: fingers})
	}

	if calls := sink.Calls(); len(calls) != 0 {
		t.Fatalf("non-drag gestures reached the sink: %#v", calls)
	}
	if sigs := drainSignals(signals); len(sigs) != 0 {
		t.Fatalf("non-drag gestures sent signals %v", sigs)
	}
}

// TestRateLimiting verifies the minimum emission cadence.
func TestRateLimiting(t *testing.T) {
	tr, sink, _, clock := newTranslator(t, drag.Tuning{Acceleration: 1, ResponseTime: 5 * time.Millisecond})

	translate(t, tr, touchpad.Event{Kind: touchpad.Begin, Fingers: 3})
	translate(t, tr, touchpad.Event{Kind: touchpad.Update, Fingers: 3, DX: 2, DY: 0})
	clock.Advance(2 * time.Millisecond)
	translate(t, tr, touchpad.Event{Kind: touchpad.Update, Fingers: 3, DX: 3, DY: 0})

	if calls := sink.Calls(); len(calls) != 1 {
		t.Fatalf("motion emitted inside the response window: %#v", calls)
	}

	clock.Advance(4 * time.Millisecond)
	translate(t, tr, touchpad.Event{Kind: touchpad.Update, Fingers: 3, DX: 1, DY: 0})

	calls := sink.Calls()
	if len(calls) != 2 || calls[1] != (testutil.Call{Name: "move", DX: 6, DY: 0}) {
		t.Fatalf("sink calls = %#v, want press then a single move(6,0)", calls)
	}
}

// TestNoMotionWithoutPress verifies updates before a begin are dropped.
func TestNoMotionWithoutPress(t *testing.T) {
	tr, sink, _, clock := newTranslator(t, drag.Tuning{Acceleration: 1})

	clock.Advance(time.Millisecond)
	translate(t, tr, touchpad.Event{Kind: touchpad.Update, Fingers: 3, DX: 10, DY: 10})
	translate(t, tr, touchpad.Event{Kind: touchpad.End, Fingers: 3})

	if calls := sink.Calls(); len(calls) != 0 {
		t.Fatalf("motion without a begin reached the sink: %#v", calls)
	}
}

// TestDelayedEndArmsTimer verifies a clean end delegates the release.
func TestDelayedEndArmsTimer(t *testing.T) {
	tr, sink, signals, _ := newTranslator(t, drag.Tuning{Acceleration: 1, DragEndDelay: 100 * time.Millisecond})

	translate(t, tr, touchpad.Event{Kind: touchpad.Begin, Fingers: 3})
	translate(t, tr, touchpad.Event{Kind: touchpad.End, Fingers: 3})

	calls := sink.Calls()
	if len(calls) != 1 || calls[0].Name != "press" {
		t.Fatalf("sink calls = %#v, want press only", calls)
	}
	sigs := drainSignals(signals)
	if len(sigs) != 1 || sigs[0] != drag.RestartTimer {
		t.Fatalf("signals = %v, want [restart-timer]", sigs)
	}
}

// TestChainedBeginSuppressesRelease verifies chaining keeps the button held.
func TestChainedBeginSuppressesRelease(t *testing.T) {
	tr, sink, signals, _ := newTranslator(t, drag.Tuning{Acceleration: 1, DragEndDelay: 100 * time.Millisecond})

	translate(t, tr, touchpad.Event{Kind: touchpad.Begin, Fingers: 3})
	translate(t, tr, touchpad.Event{Kind: touchpad.End, Fingers: 3})
	translate(t, tr, touchpad.Event{Kind: touchpad.Begin, Fingers: 3})

	calls := sink.Calls()
	if len(calls) != 1 || calls[0].Name != "press" {
		t.Fatalf("sink calls = %#v, want exactly one press across the chain", calls)
	}
	sigs := drainSignals(signals)
	want := []drag.ControlSignal{drag.RestartTimer, drag.CancelMouseUp}
	if len(sigs) != len(want) || sigs[0] != want[0] || sigs[1] != want[1] {
		t.Fatalf("signals = %v, want %v", sigs, want)
	}
}

// TestCancelledEndWithDelaySignalsCancelTimer verifies cancellation releases via the controller.
func TestCancelledEndWithDelaySignalsCancelTimer(t *testing.T) {
	tr, sink, signals, _ := newTranslator(t, drag.Tuning{Acceleration: 1, DragEndDelay: 100 * time.Millisecond})

	translate(t, tr, touchpad.Event{Kind: touchpad.Begin, Fingers: 3})
	translate(t, tr, touchpad.Event{Kind: touchpad.End, Fingers: 3, Cancelled: true})

	calls := sink.Calls()
	if len(calls) != 1 || calls[0].Name != "press" {
		t.Fatalf("sink calls = %#v, want press only", calls)
	}
	sigs := drainSignals(signals)
	if len(sigs) != 1 || sigs[0] != drag.CancelTimer {
		t.Fatalf("signals = %v, want [cancel-timer]", sigs)
	}

	// The next three-finger touch is a fresh drag with its own press.
	translate(t, tr, touchpad.Event{Kind: touchpad.Begin, Fingers: 3})
	calls = sink.Calls()
	if len(calls) != 2 || calls[1].Name != "press" {
		t.Fatalf("sink calls = %#v, want a second press", calls)
	}
}

// TestCancelledEndNoDelayReleasesDirectly verifies zero-delay cancellation skips the controller.
func TestCancelledEndNoDelayReleasesDirectly(t *testing.T) {
	tr, sink, signals, _ := newTranslator(t, drag.Tuning{Acceleration: 1})

	translate(t, tr, touchpad.Event{Kind: touchpad.Begin, Fingers: 3})
	translate(t, tr, touchpad.Event{Kind: touchpad.End, Fingers: 3, Cancelled: true})

	calls := sink.Calls()
	if len(calls) != 2 || calls[1].Name != "release" {
		t.Fatalf("sink calls = %#v, want press then release", calls)
	}
	if sigs := drainSignals(signals); len(sigs) != 0 {
		t.Fatalf("zero-delay cancel sent signals %v", sigs)
	}
}

// TestTerminateSendsSignal verifies Terminate signals the controller.
func TestTerminateSendsSignal(t *testing.T) {
	tr, _, signals, _ := newTranslator(t, drag.Tuning{Acceleration: 1})

	tr.Terminate()

	sigs := drainSignals(signals)
	if len(sigs) != 1 || sigs[0] != drag.TerminateThread {
		t.Fatalf("signals = %v, want [terminate]", sigs)
	}
}
