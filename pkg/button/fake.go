package button

// FakePin is a test double whose level is set directly by the test.
type FakePin struct {
	Level  bool // true = pressed
	Err    error
	Closed bool
}

var _ Pin = (*FakePin)(nil)

// Pressed returns the scripted level.
func (f *FakePin) Pressed() (bool, error) {
	if f.Err != nil {
		return false, f.Err
	}
	return f.Level, nil
}

// Close marks the pin as closed.
func (f *FakePin) Close() error {
	f.Closed = true
	return nil
}
