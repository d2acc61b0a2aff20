package touchpad

import (
	evdev "github.com/gvalkov/golang-evdev"
)

// minGestureFingers is the smallest contact count reported as a gesture;
// single-finger traffic is plain pointer motion, not a gesture.
const minGestureFingers = 2

// contact is the live state of one multitouch slot.
type contact struct {
	id int32
	x  int32
	y  int32
}

// classifier reconstructs gesture events from one device's raw multitouch
// stream. Raw events mutate slot state until a SYN_REPORT closes the frame;
// only frame boundaries produce gesture events.
type classifier struct {
	slots       map[int]*contact
	prev        map[int]contact
	slot        int
	fingers     int
	prevFingers int
}

// newClassifier returns an empty classifier ready for the first frame.
func newClassifier() *classifier {
	return &classifier{
		slots: make(map[int]*contact),
		prev:  make(map[int]contact),
	}
}

// feed consumes one raw event and returns the gesture events completed by
// it. The result is non-empty only on SYN_REPORT.
func (c *classifier) feed(ev evdev.InputEvent) []Event {
	switch ev.Type {
	case evdev.EV_ABS:
		switch ev.Code {
		case evdev.ABS_MT_SLOT:
			c.slot = int(ev.Value)
		case evdev.ABS_MT_TRACKING_ID:
			if ev.Value == -1 {
				delete(c.slots, c.slot)
			} else {
				c.active().id = ev.Value
			}
		case evdev.ABS_MT_POSITION_X:
			c.active().x = ev.Value
		case evdev.ABS_MT_POSITION_Y:
			c.active().y = ev.Value
		}
	case evdev.EV_KEY:
		switch ev.Code {
		case evdev.BTN_TOOL_FINGER:
			c.setFingers(1, ev.Value)
		case evdev.BTN_TOOL_DOUBLETAP:
			c.setFingers(2, ev.Value)
		case evdev.BTN_TOOL_TRIPLETAP:
			c.setFingers(3, ev.Value)
		case evdev.BTN_TOOL_QUADTAP:
			c.setFingers(4, ev.Value)
		case evdev.BTN_TOOL_QUINTTAP:
			c.setFingers(5, ev.Value)
		}
	case evdev.EV_SYN:
		if ev.Code == evdev.SYN_REPORT {
			return c.closeFrame()
		}
	}
	return nil
}

// active returns the contact for the current slot, creating it on demand.
func (c *classifier) active() *contact {
	ct, ok := c.slots[c.slot]
	if !ok {
		ct = &contact{id: -1}
		c.slots[c.slot] = ct
	}
	return ct
}

// setFingers tracks the BTN_TOOL_* finger count. The tool bits are mutually
// exclusive but arrive as independent press/release pairs, so a release only
// clears the count it set.
func (c *classifier) setFingers(n int, value int32) {
	if value != 0 {
		c.fingers = n
	} else if c.fingers == n {
		c.fingers = 0
	}
}

// closeFrame compares the finished frame against the previous one and emits
// the gesture events the transition implies.
func (c *classifier) closeFrame() []Event {
	var out []Event

	if c.fingers != c.prevFingers {
		if c.prevFingers >= minGestureFingers {
			// A gesture that grew extra fingers turned into something else;
			// one that shrank or lifted ended cleanly.
			out = append(out, Event{
				Kind:      End,
				Fingers:   c.prevFingers,
				Cancelled: c.fingers > c.prevFingers,
			})
		}
		if c.fingers >= minGestureFingers {
			out = append(out, Event{Kind: Begin, Fingers: c.fingers})
		}
	} else if c.fingers >= minGestureFingers {
		if dx, dy, ok := c.frameDelta(); ok {
			out = append(out, Event{Kind: Update, Fingers: c.fingers, DX: dx, DY: dy})
		}
	}

	c.prevFingers = c.fingers
	c.prev = make(map[int]contact, len(c.slots))
	for slot, ct := range c.slots {
		c.prev[slot] = *ct
	}
	return out
}

// frameDelta averages the motion of every contact present in both this frame
// and the previous one under the same tracking id. Contacts that just landed
// or were re-assigned contribute nothing.
func (c *classifier) frameDelta() (dx, dy float64, ok bool) {
	n := 0
	for slot, cur := range c.slots {
		p, seen := c.prev[slot]
		if !seen || p.id != cur.id {
			continue
		}
		dx += float64(cur.x - p.x)
		dy += float64(cur.y - p.y)
		n++
	}
	if n == 0 || (dx == 0 && dy == 0) {
		return 0, 0, false
	}
	return dx / float64(n), dy / float64(n), true
}
