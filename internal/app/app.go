// Package app runs the daemon's main loop: it polls the bound touchpads,
// feeds their gesture events through the translator, and supervises the
// delay controller until a shutdown signal arrives.
package app

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/niubaoshu/linux-3-finger-drag/internal/drag"
	"github.com/niubaoshu/linux-3-finger-drag/internal/touchpad"
)

// pollTimeoutMs bounds each poll so the loop re-checks the shutdown flag and
// the controller's health even when the touchpads are silent.
const pollTimeoutMs = 100

// App owns the poll loop over the touchpads and the lifecycle of the delay
// controller goroutine.
type App struct {
	translator *drag.Translator
	pads       []*touchpad.Device
	ctrlDone   <-chan error
	shouldExit *atomic.Bool
	log        zerolog.Logger
}

// New assembles the main loop. ctrlDone must deliver exactly one value: the
// delay controller's Run result.
func New(translator *drag.Translator, pads []*touchpad.Device, ctrlDone <-chan error, shouldExit *atomic.Bool, log zerolog.Logger) *App {
	return &App{
		translator: translator,
		pads:       pads,
		ctrlDone:   ctrlDone,
		shouldExit: shouldExit,
		log:        log,
	}
}

// Run polls until the shutdown flag is set, a fatal error occurs, or every
// touchpad disappears. It always shuts the controller down before returning
// and reports the first fatal error encountered.
func (a *App) Run() error {
	runErr := a.loop()
	if err := a.shutdown(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// loop polls and drains the touchpads until shutdown or a fatal error.
func (a *App) loop() error {
	for !a.shouldExit.Load() {
		if err := a.checkController(); err != nil {
			return err
		}

		fds := make([]unix.PollFd, len(a.pads))
		for i, pad := range a.pads {
			fds[i] = unix.PollFd{Fd: pad.Fd(), Events: unix.POLLIN}
		}
		n, err := unix.Poll(fds, pollTimeoutMs)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return fmt.Errorf("poll touchpads: %w", err)
		}
		if n == 0 {
			continue
		}

		if err := a.drainReady(fds); err != nil {
			return err
		}
	}
	a.log.Info().Msg("shutdown requested")
	return nil
}

// drainReady reads every touchpad the poll marked readable and feeds the
// resulting gesture events to the translator. A touchpad that reports ENODEV
// is dropped; other read errors are logged and the device retried.
func (a *App) drainReady(fds []unix.PollFd) error {
	kept := a.pads[:0]
	for i, pad := range a.pads {
		if fds[i].Revents&(unix.POLLIN|unix.POLLERR|unix.POLLHUP) == 0 {
			kept = append(kept, pad)
			continue
		}

		// POLLERR/POLLHUP without POLLIN also goes through Drain: reading a
		// vanished evdev node fails immediately with ENODEV, which is the
		// removal path below, so the read never blocks.
		events, err := pad.Drain()
		for _, ev := range events {
			if terr := a.translator.Translate(ev); terr != nil {
				a.log.Error().Err(terr).Msg("sink write failed")
			}
		}
		if err != nil {
			if errors.Is(err, unix.ENODEV) {
				a.log.Warn().Str("device", pad.Name()).Msg("touchpad disconnected")
				_ = pad.Close()
				continue
			}
			a.log.Error().Err(err).Str("device", pad.Name()).Msg("touchpad read failed")
		}
		kept = append(kept, pad)
	}
	a.pads = kept
	if len(a.pads) == 0 {
		return errors.New("all touchpads disconnected")
	}
	return nil
}

// checkController surfaces a controller that died on its own; the drag
// machinery cannot work without it.
func (a *App) checkController() error {
	select {
	case err := <-a.ctrlDone:
		a.ctrlDone = nil
		if err != nil {
			return fmt.Errorf("%w: %w", drag.ErrControllerExited, err)
		}
		return drag.ErrControllerExited
	default:
		return nil
	}
}

// shutdown stops the controller and waits for it. If the controller already
// exited its result was consumed by checkController and there is nothing to
// collect.
func (a *App) shutdown() error {
	if a.ctrlDone == nil {
		return nil
	}
	a.translator.Terminate()
	if err := <-a.ctrlDone; err != nil {
		return fmt.Errorf("delay controller: %w", err)
	}
	return nil
}
