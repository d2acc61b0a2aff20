// Package testutil provides fakes shared by tests across the module.
package testutil

import "sync"

// Call records one operation performed on a FakeSink.
type Call struct {
	// Name is "press", "release" or "move".
	Name string
	// DX and DY carry the deltas of a move call, zero otherwise.
	DX int32
	DY int32
}

// FakeSink records every pointer operation for later assertion. It is safe
// for concurrent use so tests can share one sink between the translator and
// a running delay controller.
type FakeSink struct {
	mu    sync.Mutex
	calls []Call
	err   error
}

// Press records a button press.
func (f *FakeSink) Press() error {
	return f.record(Call{Name: "press"})
}

// Release records a button release.
func (f *FakeSink) Release() error {
	return f.record(Call{Name: "release"})
}

// MoveRel records a relative motion.
func (f *FakeSink) MoveRel(dx, dy int32) error {
	return f.record(Call{Name: "move", DX: dx, DY: dy})
}

// FailWith makes every subsequent operation return err. Pass nil to restore
// normal recording.
func (f *FakeSink) FailWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Calls returns a copy of the recorded operations in order.
func (f *FakeSink) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// record appends a call, or returns the injected failure.
func (f *FakeSink) record(c Call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, c)
	return nil
}
