// Package button turns noisy digital-pin samples into reliable press,
// release and hold events. The state machine is pure: time is injected per
// poll, no I/O happens here (the Pin implementations live in pin files).
package button

import "time"

// DefaultDebounce is the stability window a raw level must survive before
// a transition is committed.
const DefaultDebounce = 50 * time.Millisecond

// Pin reads one digital input level. Pressed is the logical state; the
// implementation hides polarity (the physical buttons are active-low).
type Pin interface {
	Pressed() (bool, error)
	Close() error
}

// Button tracks the debounced state of one physical input. Mutated only by
// its own Update call; one-shot flags are cleared by the act of being read.
type Button struct {
	pin      Pin
	debounce time.Duration

	rawLevel       bool
	debouncedLevel bool
	lastTransition time.Time
	pressStart     time.Time

	pressedEdge  bool
	releasedEdge bool

	primed bool // first sample establishes the baseline without edges
}

// New creates a Button over the given pin with the standard debounce
// window.
func New(pin Pin) *Button {
	return NewWithDebounce(pin, DefaultDebounce)
}

// NewWithDebounce creates a Button with an explicit debounce window.
func NewWithDebounce(pin Pin, debounce time.Duration) *Button {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Button{pin: pin, debounce: debounce}
}

// Update polls the pin once. Any raw change restarts the debounce timer; a
// level that stays put past the window and differs from the committed state
// becomes the new debounced state and raises the matching edge flag. A pin
// read error leaves all state untouched for this poll.
func (b *Button) Update(now time.Time) error {
	raw, err := b.pin.Pressed()
	if err != nil {
		return err
	}

	if !b.primed {
		b.primed = true
		b.rawLevel = raw
		b.debouncedLevel = raw
		b.lastTransition = now
		if raw {
			b.pressStart = now
		}
		return nil
	}

	if raw != b.rawLevel {
		b.rawLevel = raw
		b.lastTransition = now
		return nil
	}

	if raw != b.debouncedLevel && now.Sub(b.lastTransition) >= b.debounce {
		b.debouncedLevel = raw
		if raw {
			b.pressedEdge = true
			// Holds are measured from the raw transition, not from the end
			// of the debounce window.
			b.pressStart = b.lastTransition
		} else {
			b.releasedEdge = true
		}
	}
	return nil
}

// WasPressed consumes the press edge: true exactly once per committed
// press.
func (b *Button) WasPressed() bool {
	if b.pressedEdge {
		b.pressedEdge = false
		return true
	}
	return false
}

// WasReleased consumes the release edge.
func (b *Button) WasReleased() bool {
	if b.releasedEdge {
		b.releasedEdge = false
		return true
	}
	return false
}

// IsPressed reports the current debounced level.
func (b *Button) IsPressed() bool {
	return b.debouncedLevel
}

// IsLongPressed reports whether the button has been held at least
// threshold. Level-triggered: it is re-evaluated every call and stays true
// for as long as the hold continues.
func (b *Button) IsLongPressed(now time.Time, threshold time.Duration) bool {
	return b.debouncedLevel && now.Sub(b.pressStart) >= threshold
}

// PressedDuration returns how long the button has been held, or zero when
// it is not pressed.
func (b *Button) PressedDuration(now time.Time) time.Duration {
	if !b.debouncedLevel {
		return 0
	}
	return now.Sub(b.pressStart)
}

// Close releases the underlying pin.
func (b *Button) Close() error {
	return b.pin.Close()
}
