package vpointer

import (
	"bytes"
	"encoding/binary"
	"fmt"

	evdev "github.com/gvalkov/golang-evdev"
	"golang.org/x/sys/unix"
)

// rawEvent mirrors struct input_event. Timestamps stay zero; the kernel
// stamps the real time on delivery.
type rawEvent struct {
	Time  unix.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

// key builds a button press/release event.
func key(code uint16, value int32) rawEvent {
	return rawEvent{Type: evdev.EV_KEY, Code: code, Value: value}
}

// rel builds a relative motion event.
func rel(code uint16, value int32) rawEvent {
	return rawEvent{Type: evdev.EV_REL, Code: code, Value: value}
}

// syn builds the report sync that closes an event batch.
func syn() rawEvent {
	return rawEvent{Type: evdev.EV_SYN, Code: evdev.SYN_REPORT}
}

// encodeSetup marshals the legacy uinput_user_dev setup block.
func encodeSetup(setup *userDev) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, binary.Size(*setup)))
	if err := binary.Write(buf, binary.LittleEndian, setup); err != nil {
		return nil, fmt.Errorf("encode uinput setup: %w", err)
	}
	return buf.Bytes(), nil
}

// encodeEvents marshals a batch in the kernel's native little-endian layout
// so it can be written to the uinput descriptor in one syscall.
func encodeEvents(events []rawEvent) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, len(events)*binary.Size(rawEvent{})))
	for i := range events {
		if err := binary.Write(buf, binary.LittleEndian, &events[i]); err != nil {
			return nil, fmt.Errorf("encode input event: %w", err)
		}
	}
	return buf.Bytes(), nil
}
