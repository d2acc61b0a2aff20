// Package vpointer creates the synthetic pointing device the drag is played
// back on: a uinput mouse with a left button and relative X/Y axes.
package vpointer

import (
	"fmt"
	"os"
	"time"

	evdev "github.com/gvalkov/golang-evdev"
	"golang.org/x/sys/unix"
)

const (
	uinputPath = "/dev/uinput"
	deviceName = "3fdrag virtual pointer"

	// uinput ioctls, from linux/uinput.h.
	uiSetEvBit   = 0x40045564
	uiSetKeyBit  = 0x40045565
	uiSetRelBit  = 0x40045566
	uiDevCreate  = 0x5501
	uiDevDestroy = 0x5502

	maxNameSize = 80
	absAxes     = 64
	busUSB      = 0x03

	// settleDelay gives the compositor time to pick the new device up
	// before events start flowing.
	settleDelay = 500 * time.Millisecond
)

// inputID mirrors struct input_id.
type inputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

// userDev mirrors the legacy struct uinput_user_dev written before
// UI_DEV_CREATE.
type userDev struct {
	Name       [maxNameSize]byte
	ID         inputID
	EffectsMax uint32
	AbsMax     [absAxes]int32
	AbsMin     [absAxes]int32
	AbsFuzz    [absAxes]int32
	AbsFlat    [absAxes]int32
}

// Device is a handle on the virtual pointer. Clones share the underlying
// kernel device through duplicated descriptors; only the creating handle
// destroys it.
type Device struct {
	file    *os.File
	creator bool
}

// Create builds the virtual pointer on /dev/uinput and waits briefly for the
// system to register it.
func Create() (*Device, error) {
	f, err := os.OpenFile(uinputPath, os.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s (is the uinput module loaded and writable by this user?): %w", uinputPath, err)
	}

	fd := int(f.Fd())
	bits := []struct {
		req   uint
		value int
	}{
		{uiSetEvBit, evdev.EV_KEY},
		{uiSetKeyBit, evdev.BTN_LEFT},
		{uiSetEvBit, evdev.EV_REL},
		{uiSetRelBit, evdev.REL_X},
		{uiSetRelBit, evdev.REL_Y},
	}
	for _, b := range bits {
		if err := unix.IoctlSetInt(fd, b.req, b.value); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("uinput capability ioctl 0x%x: %w", b.req, err)
		}
	}

	setup := userDev{
		ID: inputID{Bustype: busUSB, Vendor: 0x1234, Product: 0x5678},
	}
	copy(setup.Name[:], deviceName)
	buf, err := encodeSetup(&setup)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if _, err := f.Write(buf); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write uinput device setup: %w", err)
	}
	if err := unix.IoctlSetInt(fd, uiDevCreate, 0); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("create virtual pointer: %w", err)
	}

	time.Sleep(settleDelay)
	return &Device{file: f, creator: true}, nil
}

// Clone duplicates the descriptor so a second task can write to the same
// device. Writes from clones are serialised by the kernel; the clone cannot
// destroy the device. Duplication fails only under descriptor exhaustion.
func (d *Device) Clone() (*Device, error) {
	fd, err := unix.Dup(int(d.file.Fd()))
	if err != nil {
		return nil, fmt.Errorf("dup uinput descriptor: %w", err)
	}
	return &Device{file: os.NewFile(uintptr(fd), uinputPath)}, nil
}

// Press emits button-down plus a report sync.
func (d *Device) Press() error {
	return d.write(key(evdev.BTN_LEFT, 1), syn())
}

// Release emits button-up plus a report sync. It is safe to call when the
// button is already up; the kernel's state is authoritative and a redundant
// release is harmless.
func (d *Device) Release() error {
	return d.write(key(evdev.BTN_LEFT, 0), syn())
}

// MoveRel emits relative X, relative Y, then a report sync.
func (d *Device) MoveRel(dx, dy int32) error {
	return d.write(rel(evdev.REL_X, dx), rel(evdev.REL_Y, dy), syn())
}

// Close releases this handle's descriptor without touching the device.
func (d *Device) Close() error {
	return d.file.Close()
}

// Destroy tears the virtual device down and closes the handle. On a clone
// it only closes the descriptor.
func (d *Device) Destroy() error {
	var destroyErr error
	if d.creator {
		if err := unix.IoctlSetInt(int(d.file.Fd()), uiDevDestroy, 0); err != nil {
			destroyErr = fmt.Errorf("destroy virtual pointer: %w", err)
		}
	}
	if err := d.file.Close(); err != nil && destroyErr == nil {
		destroyErr = fmt.Errorf("close uinput descriptor: %w", err)
	}
	return destroyErr
}

// write marshals and writes one event batch.
func (d *Device) write(events ...rawEvent) error {
	buf, err := encodeEvents(events)
	if err != nil {
		return err
	}
	if _, err := d.file.Write(buf); err != nil {
		return fmt.Errorf("write input events: %w", err)
	}
	return nil
}
