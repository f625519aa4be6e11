package bus

import "fmt"

// RegWrite records one register write issued against a fake bus.
type RegWrite struct {
	Reg   byte
	Value byte
}

// FakeRead scripts the outcome of one ReadRegs call.
type FakeRead struct {
	Data []byte
	Err  error
}

// FakeRegisterBus is a test double returning scripted register reads. Reads
// are consumed in order; once exhausted, the last one repeats.
type FakeRegisterBus struct {
	Writes   []RegWrite
	Reads    []FakeRead
	WriteErr error
	Closed   bool

	index int
}

var _ RegisterBus = (*FakeRegisterBus)(nil)

// WriteReg records the write and returns WriteErr if set.
func (f *FakeRegisterBus) WriteReg(reg, value byte) error {
	if f.WriteErr != nil {
		return f.WriteErr
	}
	f.Writes = append(f.Writes, RegWrite{Reg: reg, Value: value})
	return nil
}

// ReadRegs returns the next scripted read. A scripted payload shorter than
// buf is reported as a short read, the malformed-transaction case.
func (f *FakeRegisterBus) ReadRegs(reg byte, buf []byte) error {
	if len(f.Reads) == 0 {
		return fmt.Errorf("%w: no reads scripted", ErrBus)
	}

	r := f.Reads[f.index]
	if f.index < len(f.Reads)-1 {
		f.index++
	}

	if r.Err != nil {
		return r.Err
	}
	if len(r.Data) < len(buf) {
		return fmt.Errorf("%w: short read: %d of %d bytes", ErrBus, len(r.Data), len(buf))
	}
	copy(buf, r.Data)
	return nil
}

// Close marks the bus as closed.
func (f *FakeRegisterBus) Close() error {
	f.Closed = true
	return nil
}

// FakeFrame scripts the outcome of one ReadFrame call.
type FakeFrame struct {
	Value uint32
	Err   error
}

// FakeFrameBus is a test double returning scripted frames. Frames are
// consumed in order; once exhausted, the last one repeats.
type FakeFrameBus struct {
	Frames []FakeFrame
	Closed bool

	index int
}

var _ FrameBus = (*FakeFrameBus)(nil)

// ReadFrame returns the next scripted frame.
func (f *FakeFrameBus) ReadFrame() (uint32, error) {
	if len(f.Frames) == 0 {
		return 0, fmt.Errorf("%w: no frames scripted", ErrBus)
	}

	fr := f.Frames[f.index]
	if f.index < len(f.Frames)-1 {
		f.index++
	}

	if fr.Err != nil {
		return 0, fr.Err
	}
	return fr.Value, nil
}

// Close marks the bus as closed.
func (f *FakeFrameBus) Close() error {
	f.Closed = true
	return nil
}
