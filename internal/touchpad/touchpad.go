package touchpad

import (
	"errors"
	"fmt"
	"os/user"

	evdev "github.com/gvalkov/golang-evdev"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

// Device is one physical touchpad bound for gesture reading.
type Device struct {
	dev *evdev.InputDevice
	cls *classifier
	log zerolog.Logger
}

// FindAll binds every touchpad on the system and returns them ready for
// polling. When nothing qualifies it returns an error describing the most
// likely cause, since a missing 'input' group membership and a genuinely
// absent touchpad look identical at the evdev layer.
func FindAll(log zerolog.Logger) ([]*Device, error) {
	devices, err := evdev.ListInputDevices()
	if err != nil {
		return nil, fmt.Errorf("list input devices: %w", err)
	}

	var pads []*Device
	for _, d := range devices {
		if !isTouchpad(d) {
			_ = d.File.Close()
			continue
		}
		log.Info().Str("name", d.Name).Str("path", d.Fn).Msg("touchpad bound")
		pads = append(pads, &Device{
			dev: d,
			cls: newClassifier(),
			log: log.With().Str("device", d.Name).Logger(),
		})
	}
	if len(pads) == 0 {
		return nil, diagnoseNone(len(devices))
	}
	return pads, nil
}

// isTouchpad reports whether the device advertises three-finger multitouch:
// the BTN_TOOL_TRIPLETAP key bit plus multitouch position axes.
func isTouchpad(d *evdev.InputDevice) bool {
	var tripleTap, multitouch bool
	for typ, codes := range d.Capabilities {
		switch typ.Type {
		case evdev.EV_KEY:
			for _, code := range codes {
				if code.Code == evdev.BTN_TOOL_TRIPLETAP {
					tripleTap = true
				}
			}
		case evdev.EV_ABS:
			for _, code := range codes {
				if code.Code == evdev.ABS_MT_POSITION_X {
					multitouch = true
				}
			}
		}
	}
	return tripleTap && multitouch
}

// diagnoseNone explains an empty scan. scanned counts the devices that were
// at least readable.
func diagnoseNone(scanned int) error {
	if member, err := inInputGroup(); err == nil && !member {
		return errors.New("no touchpad readable: the current user is not in the 'input' group; add the user to it (or install a udev rule for /dev/input) and log in again")
	}
	if scanned == 0 {
		return errors.New("no devices readable under /dev/input: check permissions, then log in again or reboot so updated groups apply")
	}
	return errors.New("no multitouch-capable touchpad found among the readable input devices")
}

// inInputGroup reports whether the current user belongs to the 'input'
// group, the conventional grant for /dev/input access.
func inInputGroup() (bool, error) {
	u, err := user.Current()
	if err != nil {
		return false, err
	}
	grp, err := user.LookupGroup("input")
	if err != nil {
		return false, err
	}
	ids, err := u.GroupIds()
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		if id == grp.Gid {
			return true, nil
		}
	}
	return false, nil
}

// Name returns the device's advertised name.
func (d *Device) Name() string {
	return d.dev.Name
}

// Fd returns the descriptor to poll for readability.
func (d *Device) Fd() int32 {
	return int32(d.dev.File.Fd())
}

// Drain reads every event currently buffered on the device and returns the
// gesture events they complete. Call it only after the descriptor polled
// readable: each read is followed by a zero-timeout poll, so the call itself
// never blocks. Events decoded before a read error are still returned.
func (d *Device) Drain() ([]Event, error) {
	var out []Event
	for {
		raw, err := d.dev.Read()
		if err != nil {
			return out, fmt.Errorf("read %s: %w", d.dev.Fn, err)
		}
		for _, ev := range raw {
			out = append(out, d.cls.feed(ev)...)
		}
		ready, err := pollReadable(d.Fd(), 0)
		if err != nil {
			return out, fmt.Errorf("poll %s: %w", d.dev.Fn, err)
		}
		if !ready {
			return out, nil
		}
	}
}

// Close releases the device handle.
func (d *Device) Close() error {
	return d.dev.File.Close()
}

// pollReadable waits up to timeoutMs for the descriptor to become readable.
func pollReadable(fd int32, timeoutMs int) (bool, error) {
	fds := []unix.PollFd{{Fd: fd, Events: unix.POLLIN}}
	for {
		n, err := unix.Poll(fds, timeoutMs)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return false, err
		}
		return n > 0 && fds[0].Revents&unix.POLLIN != 0, nil
	}
}
