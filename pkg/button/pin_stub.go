//go:build !linux

package button

import "errors"

// GPIOPin is not available on non-Linux platforms.
type GPIOPin struct{}

// RequestPin returns an error on non-Linux platforms.
func RequestPin(chip string, offset int) (*GPIOPin, error) {
	return nil, errors.New("button: gpio not supported on this platform (requires Linux)")
}

func (p *GPIOPin) Pressed() (bool, error) { return false, errors.New("button: not supported") }
func (p *GPIOPin) Close() error           { return nil }
