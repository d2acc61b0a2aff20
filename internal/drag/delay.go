package drag

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// DelayController owns a clone of the sink and performs trailing releases:
// once armed it waits out the configured delay and then releases the button,
// unless a later signal restarts, cancels, or suppresses the release. It
// masks the micro-pauses between consecutive swipes that the user perceives
// as one continuous drag.
type DelayController struct {
	sink    Sink
	delay   time.Duration
	signals <-chan ControlSignal
	log     zerolog.Logger
}

// NewDelayController returns a controller reading from signals. Run it on
// its own goroutine; sink must be a handle the caller does not write to.
func NewDelayController(sink Sink, delay time.Duration, signals <-chan ControlSignal, log zerolog.Logger) *DelayController {
	return &DelayController{
		sink:    sink,
		delay:   delay,
		signals: signals,
		log:     log,
	}
}

// Run processes control signals until TerminateThread arrives or the channel
// closes. It returns a non-nil error only when writing to the sink fails;
// the caller treats that as fatal.
func (c *DelayController) Run() error {
	for {
		sig, ok := <-c.signals
		if !ok {
			return nil
		}
		c.log.Debug().Stringer("signal", sig).Msg("signal received while idle")

		switch sig {
		case CancelTimer:
			if err := c.sink.Release(); err != nil {
				return fmt.Errorf("release: %w", err)
			}
			continue
		case CancelMouseUp:
			continue
		case TerminateThread:
			return nil
		case RestartTimer:
			// Fall through to the armed state below.
		}

		sig, expired, open := c.runTimer()
		if !open {
			return nil
		}
		if expired || sig == CancelTimer {
			if err := c.sink.Release(); err != nil {
				return fmt.Errorf("release: %w", err)
			}
			c.log.Debug().Bool("expired", expired).Msg("trailing release emitted")
			continue
		}
		if sig == TerminateThread {
			return nil
		}
		// CancelMouseUp: a new gesture re-joined the drag, nothing to emit.
	}
}

// runTimer waits out the delay while racing the signal channel. RestartTimer
// resets the full delay; any other signal pre-empts the timer and is
// returned. expired is true when the delay ran out, open is false when the
// channel closed.
func (c *DelayController) runTimer() (sig ControlSignal, expired, open bool) {
	timer := time.NewTimer(c.delay)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			return 0, true, true
		case sig, ok := <-c.signals:
			if !ok {
				return 0, false, false
			}
			c.log.Debug().Stringer("signal", sig).Msg("signal received while armed")
			if sig == RestartTimer {
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(c.delay)
				continue
			}
			return sig, false, true
		}
	}
}
