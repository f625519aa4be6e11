//go:build linux

package button

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// GPIOPin reads a physical button through the Linux GPIO character device.
// The buttons are wired active-low with the internal pull-up.
type GPIOPin struct {
	line *gpiocdev.Line
}

var _ Pin = (*GPIOPin)(nil)

// RequestPin requests the line offset on the named chip as a pulled-up
// input.
func RequestPin(chip string, offset int) (*GPIOPin, error) {
	line, err := gpiocdev.RequestLine(chip, offset, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		return nil, fmt.Errorf("request button line %s:%d: %w", chip, offset, err)
	}
	return &GPIOPin{line: line}, nil
}

// Pressed returns the logical state: raw low means pressed.
func (p *GPIOPin) Pressed() (bool, error) {
	v, err := p.line.Value()
	if err != nil {
		return false, fmt.Errorf("read button line: %w", err)
	}
	return v == 0, nil
}

// Close releases the line.
func (p *GPIOPin) Close() error {
	return p.line.Close()
}
